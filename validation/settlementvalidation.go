package validation

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/cloudx-io/dynauction/api"
	"github.com/cloudx-io/dynauction/core"
)

// ExpectedSettlement is what a payee or seller believes the auction resolved
// to. Empty fields are not checked.
type ExpectedSettlement struct {
	AuctionID   string            `json:"auction_id,omitempty"`
	Winners     []api.ClaimWinner `json:"winners,omitempty"`
	TotalPayout string            `json:"total_payout,omitempty"`
}

// SettlementValidationInput contains all inputs needed for settlement envelope validation
type SettlementValidationInput struct {
	Envelope api.SettlementEnvelope
	// PinnedPublicKey, when set, must equal the envelope's key.
	PinnedPublicKey string
	Expected        *ExpectedSettlement
}

// ValidateSettlementEnvelope verifies a signed settlement envelope:
// - Signature checks against the envelope (or pinned) public key
// - Request hash recomputes from the signed claim
// - Winner amounts sum to the total payout
// - Envelope metadata matches the claim
// - Claim matches the caller's expectation, if any
//
// Returns:
//   - SettlementValidationResult with detailed results (call result.IsValid() to check overall status)
//   - error if validation cannot be performed (e.g., malformed envelope)
func ValidateSettlementEnvelope(input *SettlementValidationInput) (*SettlementValidationResult, error) {
	env := input.Envelope
	if env.COSEBase64 == "" {
		return nil, fmt.Errorf("envelope has no settlement_cose_base64")
	}
	coseBytes, err := env.COSEBase64.Decode()
	if err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	claim, err := coseBytes.ParseClaim()
	if err != nil {
		return nil, fmt.Errorf("parse settlement claim: %w", err)
	}

	result := &SettlementValidationResult{}
	result.KeyValid = validateKey(input, result)
	if result.KeyValid {
		if err := VerifyCOSESignature(env.COSEBase64, env.PublicKey); err != nil {
			result.detail("Signature invalid: %v", err)
		} else {
			result.SignatureValid = true
			result.detail("Signature valid (ES256)")
		}
	}

	result.HashValid = validateHash(claim, result)
	result.TotalsValid = validateTotals(claim, result)
	result.EnvelopeValid = validateEnvelope(env, claim, result)
	result.ExpectationValid = validateExpectation(input.Expected, claim, result)
	return result, nil
}

func validateKey(input *SettlementValidationInput, result *SettlementValidationResult) bool {
	if _, err := ParsePublicKeyPEM(input.Envelope.PublicKey); err != nil {
		result.detail("Envelope public key invalid: %v", err)
		return false
	}
	if input.PinnedPublicKey == "" {
		result.detail("No pinned public key; trusting the envelope key")
		return true
	}
	if strings.TrimSpace(input.PinnedPublicKey) != strings.TrimSpace(input.Envelope.PublicKey) {
		result.detail("Envelope public key does not match the pinned key")
		return false
	}
	result.detail("Envelope public key matches the pinned key")
	return true
}

// claimRequest rebuilds the settlement request the claim was derived from.
func claimRequest(claim *api.SettlementClaim) (core.SettlementRequest, error) {
	req := core.SettlementRequest{
		AuctionID:    claim.AuctionID,
		Seller:       claim.Seller,
		PaymentToken: claim.PaymentToken,
		Reason:       core.EndReason(claim.Reason),
		RequestedAt:  claim.RequestedAt,
	}
	for _, w := range claim.Winners {
		amount, err := decimal.NewFromString(w.Amount)
		if err != nil {
			return req, fmt.Errorf("winner %s amount %q: %w", w.Bidder, w.Amount, err)
		}
		req.Winners = append(req.Winners, core.SettlementWinner{Bidder: w.Bidder, Amount: amount})
	}
	var err error
	if req.TotalPayout, err = decimal.NewFromString(claim.TotalPayout); err != nil {
		return req, fmt.Errorf("total payout %q: %w", claim.TotalPayout, err)
	}
	if req.Fee, err = decimal.NewFromString(claim.Fee); err != nil {
		return req, fmt.Errorf("fee %q: %w", claim.Fee, err)
	}
	return req, nil
}

func validateHash(claim *api.SettlementClaim, result *SettlementValidationResult) bool {
	req, err := claimRequest(claim)
	if err != nil {
		result.detail("Claim amounts malformed: %v", err)
		return false
	}
	computed := core.ComputeSettlementHash(req)
	if computed != claim.RequestHash {
		result.detail("Request hash mismatch. Computed: %s, signed: %s", computed, claim.RequestHash)
		return false
	}
	result.detail("Request hash valid: %s", computed)
	return true
}

func validateTotals(claim *api.SettlementClaim, result *SettlementValidationResult) bool {
	req, err := claimRequest(claim)
	if err != nil {
		return false
	}
	if len(req.Winners) == 0 {
		result.detail("Claim has no winners")
		return false
	}

	sum := decimal.Zero
	seen := make(map[string]bool, len(req.Winners))
	for _, w := range req.Winners {
		if seen[w.Bidder] {
			result.detail("Winner %s appears more than once", w.Bidder)
			return false
		}
		seen[w.Bidder] = true
		if !w.Amount.IsPositive() {
			result.detail("Winner %s amount %s is not positive", w.Bidder, w.Amount)
			return false
		}
		sum = sum.Add(w.Amount)
	}
	if !sum.Equal(req.TotalPayout) {
		result.detail("Winner amounts sum to %s, total payout is %s", sum.StringFixed(core.MonetaryPrecision), claim.TotalPayout)
		return false
	}
	if req.Fee.IsNegative() || req.Fee.GreaterThan(req.TotalPayout) {
		result.detail("Fee %s outside [0, %s]", claim.Fee, claim.TotalPayout)
		return false
	}
	result.detail("Totals valid: %d winner(s), payout %s, fee %s", len(req.Winners), claim.TotalPayout, claim.Fee)
	return true
}

func validateEnvelope(env api.SettlementEnvelope, claim *api.SettlementClaim, result *SettlementValidationResult) bool {
	valid := true
	if env.Type != api.EnvelopeType {
		result.detail("Envelope type %q, want %q", env.Type, api.EnvelopeType)
		valid = false
	}
	if env.AuctionID != claim.AuctionID {
		result.detail("Envelope auction %s does not match signed auction %s", env.AuctionID, claim.AuctionID)
		valid = false
	}
	if env.KeyAlgorithm != api.KeyAlgorithm {
		result.detail("Envelope key algorithm %q, want %q", env.KeyAlgorithm, api.KeyAlgorithm)
		valid = false
	}
	if !env.SignedAt.Equal(claim.SignedAt) {
		result.detail("Envelope signed_at %s does not match signed %s", env.SignedAt, claim.SignedAt)
		valid = false
	}
	if valid {
		result.detail("Envelope metadata matches the signed claim")
	}
	return valid
}

func validateExpectation(expected *ExpectedSettlement, claim *api.SettlementClaim, result *SettlementValidationResult) bool {
	if expected == nil {
		return true
	}
	valid := true
	if expected.AuctionID != "" && expected.AuctionID != claim.AuctionID {
		result.detail("Expected auction %s, signed auction %s", expected.AuctionID, claim.AuctionID)
		valid = false
	}
	if expected.TotalPayout != "" && !sameAmount(expected.TotalPayout, claim.TotalPayout) {
		result.detail("Expected total payout %s, signed %s", expected.TotalPayout, claim.TotalPayout)
		valid = false
	}
	if len(expected.Winners) > 0 {
		if len(expected.Winners) != len(claim.Winners) {
			result.detail("Expected %d winner(s), signed %d", len(expected.Winners), len(claim.Winners))
			valid = false
		} else {
			for i, w := range expected.Winners {
				got := claim.Winners[i]
				if w.Bidder != got.Bidder || !sameAmount(w.Amount, got.Amount) {
					result.detail("Winner %d: expected %s at %s, signed %s at %s", i+1, w.Bidder, w.Amount, got.Bidder, got.Amount)
					valid = false
				}
			}
		}
	}
	if valid {
		result.detail("Signed claim matches the expected settlement")
	}
	return valid
}

// sameAmount compares decimal strings at monetary precision.
func sameAmount(a, b string) bool {
	x, err := decimal.NewFromString(a)
	if err != nil {
		return false
	}
	y, err := decimal.NewFromString(b)
	if err != nil {
		return false
	}
	return x.Round(core.MonetaryPrecision).Equal(y.Round(core.MonetaryPrecision))
}
