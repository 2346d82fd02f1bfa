package core

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Error kinds. Match with errors.Is.
var (
	ErrValidation    = errors.New("validation error")
	ErrState         = errors.New("state error")
	ErrAuthorization = errors.New("authorization error")
	ErrNotFound      = errors.New("not found")
	// ErrConcurrency means two writers raced on one auction. It indicates a bug.
	ErrConcurrency = errors.New("concurrency error")
)

// Error codes carried by Error.Code.
const (
	CodeInvalidField           = "InvalidField"
	CodeBidTooLow              = "BidTooLow"
	CodeBidCapExceeded         = "BidCapExceeded"
	CodeDepositRequired        = "DepositRequired"
	CodeNotActive              = "NotActive"
	CodeEnded                  = "Ended"
	CodeInvalidTransition      = "InvalidTransition"
	CodeSelfBid                = "SelfBid"
	CodeNotWhitelisted         = "NotWhitelisted"
	CodeBlacklisted            = "Blacklisted"
	CodeInsufficientReputation = "InsufficientReputation"
	CodeNotSeller              = "NotSeller"
	CodeNoBuyNow               = "NoBuyNow"
	CodeCancelNotAllowed       = "CancelNotAllowed"
	CodeUnknownAuction         = "UnknownAuction"
	CodeVersionConflict        = "VersionConflict"
)

// Error is the single error type returned by domain operations.
type Error struct {
	Kind    error
	Code    string
	Field   string
	Message string

	// NextMinimumBid is set on every rejected bid so the caller can retry.
	NextMinimumBid *decimal.Decimal
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%v: %s", e.Kind, e.Code)
	if e.Field != "" {
		msg += " (" + e.Field + ")"
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Kind }

// WithNextMinimum returns a copy of e carrying the computed minimum bid.
func (e *Error) WithNextMinimum(next decimal.Decimal) *Error {
	cp := *e
	cp.NextMinimumBid = &next
	return &cp
}

func ValidationError(field, format string, args ...any) *Error {
	return &Error{Kind: ErrValidation, Code: CodeInvalidField, Field: field, Message: fmt.Sprintf(format, args...)}
}

func StateError(code, format string, args ...any) *Error {
	return &Error{Kind: ErrState, Code: code, Message: fmt.Sprintf(format, args...)}
}

func AuthorizationError(code, format string, args ...any) *Error {
	return &Error{Kind: ErrAuthorization, Code: code, Message: fmt.Sprintf(format, args...)}
}

func NotFoundError(id string) *Error {
	return &Error{Kind: ErrNotFound, Code: CodeUnknownAuction, Message: fmt.Sprintf("auction %s", id)}
}

func ConcurrencyError(id string, want, got uint64) *Error {
	return &Error{Kind: ErrConcurrency, Code: CodeVersionConflict,
		Message: fmt.Sprintf("auction %s: expected version %d, found %d", id, want, got)}
}

// Code returns the error code of a domain error, or "".
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
