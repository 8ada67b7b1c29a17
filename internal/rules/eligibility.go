package rules

import (
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/shopspring/decimal"
)

// RatioPrecision is the number of fractional digits kept for the
// payment-to-income and debt-to-income ratios.
const RatioPrecision = 4

// Eligibility runs the credit rules R1 to R7 in order and stops at the first
// failure. It holds no state besides its thresholds and is safe for
// concurrent use.
type Eligibility struct {
	MaxPaymentToIncome decimal.Decimal
	MaxDebtToIncome    decimal.Decimal
	MaxTermYears       int
	MaxAgeAtTermEnd    int
	MinEmploymentYears decimal.Decimal
}

// NewEligibility returns the bank's standard thresholds.
func NewEligibility() *Eligibility {
	return &Eligibility{
		MaxPaymentToIncome: decimal.RequireFromString("0.40"),
		MaxDebtToIncome:    decimal.RequireFromString("0.50"),
		MaxTermYears:       30,
		MaxAgeAtTermEnd:    75,
		MinEmploymentYears: decimal.NewFromInt(2),
	}
}

// EligibilityOutcome is the result of one eligibility pass. Values belonging
// to rules that were never reached stay zero.
type EligibilityOutcome struct {
	Passed          bool
	Failed          domain.ReasonCode
	PaymentToIncome decimal.Decimal
	DebtToIncome    decimal.Decimal
	AgeAtTermEnd    int
	RulesEvaluated  int
}

type eligibilityCheck struct {
	code  domain.ReasonCode
	check func(e *Eligibility, in *eligibilityInput, out *EligibilityOutcome) bool
}

type eligibilityInput struct {
	profile domain.ApplicantProfile
	request domain.LoanRequest
	payment decimal.Decimal
	asOf    time.Time
}

// Order is part of the contract: reason codes must be reproducible.
var eligibilityChecks = []eligibilityCheck{
	{domain.ReasonPaymentToIncome, func(e *Eligibility, in *eligibilityInput, out *EligibilityOutcome) bool {
		out.PaymentToIncome = ratio(in.payment, in.profile.MonthlyIncome)
		return out.PaymentToIncome.LessThanOrEqual(e.MaxPaymentToIncome)
	}},
	{domain.ReasonDebtToIncome, func(e *Eligibility, in *eligibilityInput, out *EligibilityOutcome) bool {
		out.DebtToIncome = ratio(in.profile.CurrentDebts, in.profile.MonthlyIncome)
		return out.DebtToIncome.LessThanOrEqual(e.MaxDebtToIncome)
	}},
	{domain.ReasonCreditRating, func(_ *Eligibility, in *eligibilityInput, _ *EligibilityOutcome) bool {
		return in.profile.CreditRating == domain.CreditGood
	}},
	{domain.ReasonTermCeiling, func(e *Eligibility, in *eligibilityInput, _ *EligibilityOutcome) bool {
		return in.request.TermYears <= e.MaxTermYears
	}},
	{domain.ReasonAgeAtTermEnd, func(e *Eligibility, in *eligibilityInput, out *EligibilityOutcome) bool {
		out.AgeAtTermEnd = in.profile.AgeAt(in.asOf) + in.request.TermYears
		return out.AgeAtTermEnd <= e.MaxAgeAtTermEnd
	}},
	{domain.ReasonEmployment, func(e *Eligibility, in *eligibilityInput, _ *EligibilityOutcome) bool {
		return in.profile.EmploymentYears.GreaterThanOrEqual(e.MinEmploymentYears)
	}},
	{domain.ReasonSavingsCapacity, func(_ *Eligibility, in *eligibilityInput, _ *EligibilityOutcome) bool {
		return in.profile.SavingsCapacity == domain.SavingsAdequate
	}},
}

// Evaluate applies the rules to profile and request given the computed
// monthly payment. asOf is the day the applicant's age is taken on.
func (e *Eligibility) Evaluate(profile domain.ApplicantProfile, request domain.LoanRequest, monthlyPayment decimal.Decimal, asOf time.Time) EligibilityOutcome {
	in := &eligibilityInput{
		profile: profile,
		request: request,
		payment: monthlyPayment,
		asOf:    asOf,
	}

	var out EligibilityOutcome
	for _, c := range eligibilityChecks {
		out.RulesEvaluated++
		if !c.check(e, in, &out) {
			out.Failed = c.code
			return out
		}
	}
	out.Passed = true
	return out
}

// ratio divides with half-up rounding. A zero income makes the ratio zero.
func ratio(numerator, income decimal.Decimal) decimal.Decimal {
	if income.IsZero() {
		return decimal.Zero
	}
	return numerator.DivRound(income, RatioPrecision)
}
