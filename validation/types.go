package validation

import "fmt"

// BaseValidationResult contains the signature checks shared by every envelope.
type BaseValidationResult struct {
	KeyValid          bool // public key parses and matches the pinned key, if any
	SignatureValid    bool
	ValidationDetails []string
}

// SettlementValidationResult contains validation results for a settlement envelope.
type SettlementValidationResult struct {
	BaseValidationResult
	HashValid        bool // request hash recomputes from the claim
	TotalsValid      bool // winners sum to the total payout; fee within it
	EnvelopeValid    bool // envelope metadata agrees with the signed claim
	ExpectationValid bool // claim matches what the caller expected; true when nothing was expected
}

// IsValid returns true if all settlement validation checks passed
func (r *SettlementValidationResult) IsValid() bool {
	return r.KeyValid && r.SignatureValid && r.HashValid && r.TotalsValid && r.EnvelopeValid && r.ExpectationValid
}

func (r *BaseValidationResult) detail(format string, args ...any) {
	r.ValidationDetails = append(r.ValidationDetails, fmt.Sprintf(format, args...))
}
