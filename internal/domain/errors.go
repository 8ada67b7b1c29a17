package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput marks malformed numeric arguments.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnknownLoanType marks a loan type outside the fixed enumeration.
	ErrUnknownLoanType = errors.New("unknown loan type")

	// ErrPolicyViolation matches every *PolicyViolation via errors.Is.
	ErrPolicyViolation = errors.New("policy violation")

	ErrNotFound          = errors.New("record not found")
	ErrConflict          = errors.New("concurrent modification")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// ViolationReason says which limit of a loan-type policy was broken.
type ViolationReason string

const (
	ViolationTermExceeded        ViolationReason = "TERM_EXCEEDED"
	ViolationRateOutOfBand       ViolationReason = "RATE_OUT_OF_BAND"
	ViolationLoanToValueExceeded ViolationReason = "LOAN_TO_VALUE_EXCEEDED"
)

// PolicyViolation is returned when a request falls outside its loan type's
// policy. It is a malformed-request failure, not a credit decision.
type PolicyViolation struct {
	Reason   ViolationReason `json:"reason"`
	LoanType LoanType        `json:"loanType"`
	Detail   string          `json:"detail"`
}

func (v *PolicyViolation) Error() string {
	return fmt.Sprintf("policy violation for %s: %s (%s)", v.LoanType, v.Reason, v.Detail)
}

// Is lets errors.Is(err, ErrPolicyViolation) match.
func (v *PolicyViolation) Is(target error) bool {
	return target == ErrPolicyViolation
}
