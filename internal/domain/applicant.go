package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// CreditRating is the applicant's credit history grade.
type CreditRating string

const (
	CreditGood  CreditRating = "GOOD"
	CreditOther CreditRating = "OTHER"
)

// NormalizeCreditRating maps free-form grades onto the closed set.
// Anything that is not "good" counts as OTHER.
func NormalizeCreditRating(s string) CreditRating {
	if strings.EqualFold(strings.TrimSpace(s), string(CreditGood)) {
		return CreditGood
	}
	return CreditOther
}

// SavingsCapacity says whether the applicant has shown adequate savings.
type SavingsCapacity string

const (
	SavingsAdequate SavingsCapacity = "ADEQUATE"
	SavingsOther    SavingsCapacity = "OTHER"
)

// NormalizeSavingsCapacity maps free-form values onto the closed set.
func NormalizeSavingsCapacity(s string) SavingsCapacity {
	if strings.EqualFold(strings.TrimSpace(s), string(SavingsAdequate)) {
		return SavingsAdequate
	}
	return SavingsOther
}

// ApplicantProfile is the financial profile the engine evaluates.
// The engine reads it and never modifies it.
type ApplicantProfile struct {
	MonthlyIncome   decimal.Decimal `json:"monthlyIncome"`
	CurrentDebts    decimal.Decimal `json:"currentDebts"`
	CreditRating    CreditRating    `json:"creditRating"`
	EmploymentYears decimal.Decimal `json:"employmentYears"`
	SavingsCapacity SavingsCapacity `json:"savingsCapacity"`
	BirthDate       time.Time       `json:"birthDate"`
}

// Validate rejects negative amounts and a missing birth date.
func (p ApplicantProfile) Validate() error {
	if p.MonthlyIncome.IsNegative() {
		return fmt.Errorf("%w: monthly income cannot be negative", ErrInvalidInput)
	}
	if p.CurrentDebts.IsNegative() {
		return fmt.Errorf("%w: current debts cannot be negative", ErrInvalidInput)
	}
	if p.EmploymentYears.IsNegative() {
		return fmt.Errorf("%w: employment years cannot be negative", ErrInvalidInput)
	}
	if p.BirthDate.IsZero() {
		return fmt.Errorf("%w: birth date is required", ErrInvalidInput)
	}
	return nil
}

// AgeAt returns the applicant's age in whole years on the given day.
func (p ApplicantProfile) AgeAt(asOf time.Time) int {
	by, bm, bd := p.BirthDate.Date()
	y, m, d := asOf.Date()

	age := y - by
	if m < bm || (m == bm && d < bd) {
		age--
	}
	if age < 0 {
		return 0
	}
	return age
}

// Applicant is a registered borrower. Lookup by full name mirrors how
// branch staff find applicants.
type Applicant struct {
	ID        string           `json:"id"`
	TenantID  string           `json:"tenantId"`
	FullName  string           `json:"fullName"`
	Email     string           `json:"email,omitempty"`
	Profile   ApplicantProfile `json:"profile"`
	CreatedAt time.Time        `json:"createdAt"`
}
