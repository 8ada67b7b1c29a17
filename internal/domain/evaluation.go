package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Decision is the terminal outcome of an evaluation.
type Decision string

const (
	DecisionApproved Decision = "APPROVED"
	DecisionRejected Decision = "REJECTED"
)

// ReasonCode names the eligibility rule that rejected an application.
type ReasonCode string

const (
	ReasonPaymentToIncome ReasonCode = "R1"
	ReasonDebtToIncome    ReasonCode = "R2"
	ReasonCreditRating    ReasonCode = "R3"
	ReasonTermCeiling     ReasonCode = "R4"
	ReasonAgeAtTermEnd    ReasonCode = "R5"
	ReasonEmployment      ReasonCode = "R6"
	ReasonSavingsCapacity ReasonCode = "R7"
)

var reasonDescriptions = map[ReasonCode]string{
	ReasonPaymentToIncome: "payment to income ratio exceeds 40%",
	ReasonDebtToIncome:    "debt to income ratio exceeds 50%",
	ReasonCreditRating:    "insufficient credit rating",
	ReasonTermCeiling:     "requested term exceeds 30 years",
	ReasonAgeAtTermEnd:    "applicant age at term end exceeds 75 years",
	ReasonEmployment:      "insufficient employment tenure",
	ReasonSavingsCapacity: "insufficient savings capacity",
}

// Description returns a human-readable explanation of the rule.
func (c ReasonCode) Description() string {
	return reasonDescriptions[c]
}

// EvaluationResult is produced once per evaluation and never modified
// afterwards. Ratios and age for rules that were not reached stay zero.
type EvaluationResult struct {
	Decision             Decision        `json:"decision"`
	ReasonCode           ReasonCode      `json:"reasonCode,omitempty"`
	MonthlyPayment       decimal.Decimal `json:"monthlyPayment"`
	TotalPaid            decimal.Decimal `json:"totalPaid"`
	TotalInterest        decimal.Decimal `json:"totalInterest"`
	PaymentToIncomeRatio decimal.Decimal `json:"paymentToIncomeRatio"`
	DebtToIncomeRatio    decimal.Decimal `json:"debtToIncomeRatio"`
	AgeAtTermEnd         int             `json:"ageAtTermEnd"`
	RulesEvaluated       int             `json:"rulesEvaluated"`

	// Costs is set on approval only.
	Costs *CostBreakdown `json:"costs,omitempty"`

	EvaluatedAt time.Time `json:"evaluatedAt"`
}

// Approved reports whether the evaluation approved the loan.
func (r EvaluationResult) Approved() bool {
	return r.Decision == DecisionApproved
}

// CostBreakdown lists the recurring insurance and one-off fees that come
// on top of the amortized payment.
type CostBreakdown struct {
	LifeInsuranceMonthly decimal.Decimal `json:"lifeInsuranceMonthly"`
	FireInsuranceMonthly decimal.Decimal `json:"fireInsuranceMonthly"`
	AdminFee             decimal.Decimal `json:"adminFee"`
	MonthlyCost          decimal.Decimal `json:"monthlyCost"`
	TotalCost            decimal.Decimal `json:"totalCost"`
}

// SimulationInput is a what-if query. Insurance and Fees are optional.
type SimulationInput struct {
	Amount          decimal.Decimal     `json:"amount"`
	TermYears       int                 `json:"termYears"`
	AnnualRatePct   decimal.Decimal     `json:"annualRatePct"`
	Insurance       decimal.NullDecimal `json:"insurance"`
	Fees            decimal.NullDecimal `json:"fees"`
	IncludeSchedule bool                `json:"includeSchedule,omitempty"`
}

// SimulationResult is the answer to a SimulationInput. It is never persisted.
type SimulationResult struct {
	MonthlyPayment  decimal.Decimal `json:"monthlyPayment"`
	TotalPaid       decimal.Decimal `json:"totalPaid"`
	TotalInterest   decimal.Decimal `json:"totalInterest"`
	ExtraCosts      decimal.Decimal `json:"extraCosts"`
	TotalWithExtras decimal.Decimal `json:"totalWithExtras"`
	Schedule        []Installment   `json:"schedule,omitempty"`
}

// Installment is one period of an amortization schedule.
type Installment struct {
	Period           int             `json:"period"`
	Payment          decimal.Decimal `json:"payment"`
	Principal        decimal.Decimal `json:"principal"`
	Interest         decimal.Decimal `json:"interest"`
	RemainingBalance decimal.Decimal `json:"remainingBalance"`
}
