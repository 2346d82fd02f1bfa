package validation

import (
	"testing"
	"time"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"

	"github.com/cloudx-io/dynauction/api"
	"github.com/cloudx-io/dynauction/settlement"
)

func TestValidateSettlementEnvelope(t *testing.T) {
	env, km := signedEnvelope(t)
	publicPEM, err := km.PublicKeyPEM()
	assert.NoError(t, err)

	result, err := ValidateSettlementEnvelope(&SettlementValidationInput{
		Envelope:        *env,
		PinnedPublicKey: publicPEM,
		Expected: &ExpectedSettlement{
			AuctionID:   "auction-1",
			TotalPayout: "170",
			Winners: []api.ClaimWinner{
				{Bidder: "alice", Amount: "90.0"},
				{Bidder: "bob", Amount: "80"},
			},
		},
	})
	assert.NoError(t, err)
	check.True(t, result.KeyValid)
	check.True(t, result.SignatureValid)
	check.True(t, result.HashValid)
	check.True(t, result.TotalsValid)
	check.True(t, result.EnvelopeValid)
	check.True(t, result.ExpectationValid)
	check.True(t, result.IsValid())
	check.NotEqual(t, 0, len(result.ValidationDetails))
}

func TestValidateSettlementEnvelopePinnedKeyMismatch(t *testing.T) {
	env, _ := signedEnvelope(t)
	other, err := settlement.NewKeyManager()
	assert.NoError(t, err)
	otherPEM, err := other.PublicKeyPEM()
	assert.NoError(t, err)

	result, err := ValidateSettlementEnvelope(&SettlementValidationInput{Envelope: *env, PinnedPublicKey: otherPEM})
	assert.NoError(t, err)
	check.False(t, result.KeyValid)
	check.False(t, result.SignatureValid)
	check.True(t, result.HashValid)
	check.False(t, result.IsValid())
}

func TestValidateSettlementEnvelopeSwappedKey(t *testing.T) {
	env, _ := signedEnvelope(t)
	other, err := settlement.NewKeyManager()
	assert.NoError(t, err)
	env.PublicKey, err = other.PublicKeyPEM()
	assert.NoError(t, err)

	result, err := ValidateSettlementEnvelope(&SettlementValidationInput{Envelope: *env})
	assert.NoError(t, err)
	check.True(t, result.KeyValid)
	check.False(t, result.SignatureValid)
	check.False(t, result.IsValid())
}

func TestValidateSettlementEnvelopeForgedClaims(t *testing.T) {
	signedAt := time.Date(2026, 3, 1, 13, 0, 1, 0, time.UTC)
	base := api.NewSettlementClaim(testRequest(), "nonce", signedAt)

	t.Run("inflated winner amount", func(t *testing.T) {
		claim := base
		claim.Winners = []api.ClaimWinner{{Bidder: "alice", Amount: "95.000000"}, {Bidder: "bob", Amount: "80.000000"}}

		result, err := ValidateSettlementEnvelope(&SettlementValidationInput{Envelope: *forgeEnvelope(t, claim)})
		assert.NoError(t, err)
		check.True(t, result.SignatureValid)
		check.False(t, result.HashValid)
		check.False(t, result.TotalsValid)
		check.False(t, result.IsValid())
	})

	t.Run("duplicate winner", func(t *testing.T) {
		claim := base
		claim.Winners = []api.ClaimWinner{{Bidder: "alice", Amount: "90.000000"}, {Bidder: "alice", Amount: "80.000000"}}

		result, err := ValidateSettlementEnvelope(&SettlementValidationInput{Envelope: *forgeEnvelope(t, claim)})
		assert.NoError(t, err)
		check.False(t, result.TotalsValid)
	})

	t.Run("envelope auction mismatch", func(t *testing.T) {
		env := forgeEnvelope(t, base)
		env.AuctionID = "auction-2"

		result, err := ValidateSettlementEnvelope(&SettlementValidationInput{Envelope: *env})
		assert.NoError(t, err)
		check.True(t, result.SignatureValid)
		check.True(t, result.HashValid)
		check.False(t, result.EnvelopeValid)
	})

	t.Run("unexpected winner", func(t *testing.T) {
		result, err := ValidateSettlementEnvelope(&SettlementValidationInput{
			Envelope: *forgeEnvelope(t, base),
			Expected: &ExpectedSettlement{Winners: []api.ClaimWinner{{Bidder: "carol", Amount: "90"}, {Bidder: "bob", Amount: "80"}}},
		})
		assert.NoError(t, err)
		check.True(t, result.HashValid)
		check.False(t, result.ExpectationValid)
		check.False(t, result.IsValid())
	})
}

func TestValidateSettlementEnvelopeMalformed(t *testing.T) {
	_, err := ValidateSettlementEnvelope(&SettlementValidationInput{})
	check.Error(t, err)

	_, err = ValidateSettlementEnvelope(&SettlementValidationInput{Envelope: api.SettlementEnvelope{COSEBase64: "AAAA"}})
	check.Error(t, err)
}

func TestSameAmount(t *testing.T) {
	check.True(t, sameAmount("90", "90.000000"))
	check.True(t, sameAmount("0.1234564", "0.123456"))
	check.False(t, sameAmount("90", "90.01"))
	check.False(t, sameAmount("ninety", "90"))
}
