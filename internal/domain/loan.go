package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// LoanType identifies the mortgage product a request is made for.
// It is a closed set; the zero value is not a valid type.
type LoanType int

const (
	loanTypeUnknown LoanType = iota
	PrimaryResidence
	SecondaryResidence
	CommercialProperty
	Remodel

	// LoanTypeCount sizes tables indexed by LoanType.
	LoanTypeCount
)

var loanTypeNames = [LoanTypeCount]string{
	loanTypeUnknown:    "",
	PrimaryResidence:   "PRIMARY_RESIDENCE",
	SecondaryResidence: "SECONDARY_RESIDENCE",
	CommercialProperty: "COMMERCIAL_PROPERTY",
	Remodel:            "REMODEL",
}

// LoanTypes returns every known loan type in declaration order.
func LoanTypes() []LoanType {
	return []LoanType{PrimaryResidence, SecondaryResidence, CommercialProperty, Remodel}
}

// Valid reports whether t is one of the known loan types.
func (t LoanType) Valid() bool {
	return t > loanTypeUnknown && t < LoanTypeCount
}

func (t LoanType) String() string {
	if !t.Valid() {
		return fmt.Sprintf("LoanType(%d)", int(t))
	}
	return loanTypeNames[t]
}

// ParseLoanType parses the wire name of a loan type (case-insensitive).
func ParseLoanType(s string) (LoanType, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	for _, t := range LoanTypes() {
		if loanTypeNames[t] == name {
			return t, nil
		}
	}
	return loanTypeUnknown, fmt.Errorf("%w: %q", ErrUnknownLoanType, s)
}

// MarshalText implements encoding.TextMarshaler.
func (t LoanType) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownLoanType, int(t))
	}
	return []byte(loanTypeNames[t]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *LoanType) UnmarshalText(text []byte) error {
	parsed, err := ParseLoanType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// MaxTermYears is the longest term any calculation accepts.
const MaxTermYears = 100

// PolicyRecord holds the underwriting limits for one loan type.
type PolicyRecord struct {
	Type           LoanType        `json:"type"`
	MaxTermYears   int             `json:"maxTermYears"`
	MinRatePct     decimal.Decimal `json:"minRatePct"`
	MaxRatePct     decimal.Decimal `json:"maxRatePct"`
	MaxLoanToValue decimal.Decimal `json:"maxLoanToValue"`
}

// LoanRequest is the loan an applicant asks for.
type LoanRequest struct {
	Type          LoanType        `json:"type"`
	Amount        decimal.Decimal `json:"amount"`
	TermYears     int             `json:"termYears"`
	AnnualRatePct decimal.Decimal `json:"annualRatePct"`

	// PropertyValue is optional; zero means the loan-to-value check is skipped.
	PropertyValue decimal.Decimal `json:"propertyValue"`
}

// Validate checks the numeric shape of the request. Policy limits are
// checked separately.
func (r LoanRequest) Validate() error {
	if !r.Amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	}
	if r.TermYears <= 0 || r.TermYears > MaxTermYears {
		return fmt.Errorf("%w: term must be between 1 and %d years", ErrInvalidInput, MaxTermYears)
	}
	if !r.AnnualRatePct.IsPositive() {
		return fmt.Errorf("%w: annual rate must be positive", ErrInvalidInput)
	}
	if r.PropertyValue.IsNegative() {
		return fmt.Errorf("%w: property value cannot be negative", ErrInvalidInput)
	}
	return nil
}

// TermMonths returns the number of monthly periods in the request.
func (r LoanRequest) TermMonths() int {
	return r.TermYears * 12
}
