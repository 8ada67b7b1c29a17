// Package evaluator combines loan-type policy, amortization and the
// eligibility rules into one evaluation pass.
//
// Evaluation is pure: it reads its inputs, performs no I/O and returns a
// freshly built result. Storing the result is the caller's job.
package evaluator

import (
	"time"

	"github.com/opensource-finance/kestrel/internal/amortization"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/policy"
	"github.com/opensource-finance/kestrel/internal/rules"
	"github.com/shopspring/decimal"
)

// Evaluator decides loan applications.
type Evaluator struct {
	// Eligibility holds the R1-R7 thresholds.
	Eligibility *rules.Eligibility

	// Costs prices the insurances and fees of an approved loan.
	Costs domain.CostConfig

	// Now supplies the evaluation instant. Tests pin it.
	Now func() time.Time
}

// New creates an evaluator with the standard eligibility thresholds.
func New(costs domain.CostConfig) *Evaluator {
	return &Evaluator{
		Eligibility: rules.NewEligibility(),
		Costs:       costs,
		Now:         func() time.Time { return time.Now().UTC() },
	}
}

// Evaluate decides request for profile as of now.
func (e *Evaluator) Evaluate(profile domain.ApplicantProfile, request domain.LoanRequest) (domain.EvaluationResult, error) {
	return e.EvaluateAt(profile, request, e.Now())
}

// EvaluateAt decides request for profile as of asOf. Ages are taken on
// the UTC calendar day of asOf, whatever its zone.
//
// Malformed input, an unknown loan type or a policy violation is returned
// as an error before any eligibility rule runs. A rejection is not an
// error: it comes back as a result with Decision REJECTED and the code of
// the first failing rule.
func (e *Evaluator) EvaluateAt(profile domain.ApplicantProfile, request domain.LoanRequest, asOf time.Time) (domain.EvaluationResult, error) {
	if err := request.Validate(); err != nil {
		return domain.EvaluationResult{}, err
	}
	if err := profile.Validate(); err != nil {
		return domain.EvaluationResult{}, err
	}
	if err := policy.Validate(request); err != nil {
		return domain.EvaluationResult{}, err
	}

	payment, err := amortization.MonthlyPayment(request.Amount, request.TermYears, request.AnnualRatePct)
	if err != nil {
		return domain.EvaluationResult{}, err
	}

	asOf = asOf.UTC()
	outcome := e.Eligibility.Evaluate(profile, request, payment, asOf)

	result := domain.EvaluationResult{
		MonthlyPayment:       payment,
		PaymentToIncomeRatio: outcome.PaymentToIncome,
		DebtToIncomeRatio:    outcome.DebtToIncome,
		AgeAtTermEnd:         outcome.AgeAtTermEnd,
		RulesEvaluated:       outcome.RulesEvaluated,
		EvaluatedAt:          asOf,
	}

	if !outcome.Passed {
		result.Decision = domain.DecisionRejected
		result.ReasonCode = outcome.Failed
		return result, nil
	}

	result.Decision = domain.DecisionApproved
	result.TotalPaid, result.TotalInterest = amortization.Totals(request.Amount, payment, request.TermYears)
	costs := e.costBreakdown(request, payment)
	result.Costs = &costs
	return result, nil
}

// costBreakdown prices the insurances and the admin fee of an approved loan.
func (e *Evaluator) costBreakdown(request domain.LoanRequest, payment decimal.Decimal) domain.CostBreakdown {
	life := request.Amount.Mul(e.Costs.LifeInsuranceRate).Round(amortization.MoneyPrecision)
	fire := e.Costs.FireInsuranceMonthly.Round(amortization.MoneyPrecision)
	adminFee := request.Amount.Mul(e.Costs.AdminFeeRate).Round(amortization.MoneyPrecision)

	monthly := payment.Add(life).Add(fire)
	periods := decimal.NewFromInt(int64(amortization.Periods(request.TermYears)))

	return domain.CostBreakdown{
		LifeInsuranceMonthly: life,
		FireInsuranceMonthly: fire,
		AdminFee:             adminFee,
		MonthlyCost:          monthly,
		TotalCost:            monthly.Mul(periods).Add(adminFee),
	}
}
