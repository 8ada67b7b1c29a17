package rules

import (
	"testing"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

var asOf = time.Date(2025, time.June, 15, 0, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func goodProfile() domain.ApplicantProfile {
	return domain.ApplicantProfile{
		MonthlyIncome:   dec("5000"),
		CurrentDebts:    dec("500"),
		CreditRating:    domain.CreditGood,
		EmploymentYears: dec("5"),
		SavingsCapacity: domain.SavingsAdequate,
		BirthDate:       time.Date(1985, time.March, 1, 0, 0, 0, 0, time.UTC),
	}
}

func loanRequest(years int) domain.LoanRequest {
	return domain.LoanRequest{
		Type:          domain.PrimaryResidence,
		Amount:        dec("100000"),
		TermYears:     years,
		AnnualRatePct: dec("4.5"),
	}
}

func TestEligibilityApproves(t *testing.T) {
	out := NewEligibility().Evaluate(goodProfile(), loanRequest(20), dec("632.65"), asOf)

	assert.True(t, out.Passed)
	assert.Empty(t, out.Failed)
	assert.Equal(t, 7, out.RulesEvaluated)
	assert.Equal(t, "0.1265", out.PaymentToIncome.String())
	assert.Equal(t, "0.1", out.DebtToIncome.String())
	assert.Equal(t, 60, out.AgeAtTermEnd)
}

func TestEligibilityRejects(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(p *domain.ApplicantProfile)
		years   int
		payment string
		want    domain.ReasonCode
	}{
		{
			name:    "PaymentToIncome",
			mutate:  func(p *domain.ApplicantProfile) { p.MonthlyIncome = dec("1000"); p.CurrentDebts = decimal.Zero },
			years:   20,
			payment: "500",
			want:    domain.ReasonPaymentToIncome,
		},
		{
			name:    "DebtToIncome",
			mutate:  func(p *domain.ApplicantProfile) { p.CurrentDebts = dec("2600") },
			years:   20,
			payment: "632.65",
			want:    domain.ReasonDebtToIncome,
		},
		{
			name:    "CreditRating",
			mutate:  func(p *domain.ApplicantProfile) { p.CreditRating = domain.CreditOther },
			years:   20,
			payment: "632.65",
			want:    domain.ReasonCreditRating,
		},
		{
			name:    "TermCeiling",
			mutate:  func(p *domain.ApplicantProfile) {},
			years:   31,
			payment: "632.65",
			want:    domain.ReasonTermCeiling,
		},
		{
			name:    "AgeAtTermEnd",
			mutate:  func(p *domain.ApplicantProfile) { p.BirthDate = time.Date(1970, time.January, 1, 0, 0, 0, 0, time.UTC) },
			years:   30,
			payment: "632.65",
			want:    domain.ReasonAgeAtTermEnd,
		},
		{
			name:    "Employment",
			mutate:  func(p *domain.ApplicantProfile) { p.EmploymentYears = dec("1.9") },
			years:   20,
			payment: "632.65",
			want:    domain.ReasonEmployment,
		},
		{
			name:    "SavingsCapacity",
			mutate:  func(p *domain.ApplicantProfile) { p.SavingsCapacity = domain.SavingsOther },
			years:   20,
			payment: "632.65",
			want:    domain.ReasonSavingsCapacity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := goodProfile()
			tt.mutate(&p)

			out := NewEligibility().Evaluate(p, loanRequest(tt.years), dec(tt.payment), asOf)
			assert.False(t, out.Passed)
			assert.Equal(t, tt.want, out.Failed)
		})
	}
}

func TestEligibilityFirstFailureWins(t *testing.T) {
	p := goodProfile()
	p.MonthlyIncome = dec("1000")
	p.CreditRating = domain.CreditOther

	out := NewEligibility().Evaluate(p, loanRequest(20), dec("500"), asOf)

	assert.Equal(t, domain.ReasonPaymentToIncome, out.Failed)
	assert.Equal(t, 1, out.RulesEvaluated)
	assert.Equal(t, "0.5", out.PaymentToIncome.String())
	assert.True(t, out.DebtToIncome.IsZero(), "rules after the failure must not run")
	assert.Zero(t, out.AgeAtTermEnd)
}

func TestEligibilityBoundaries(t *testing.T) {
	t.Run("PaymentToIncomeAtLimit", func(t *testing.T) {
		p := goodProfile()
		p.MonthlyIncome = dec("1000")
		p.CurrentDebts = decimal.Zero
		out := NewEligibility().Evaluate(p, loanRequest(20), dec("400"), asOf)
		assert.True(t, out.Passed)
	})

	t.Run("RatioRoundsHalfUp", func(t *testing.T) {
		p := goodProfile()
		p.MonthlyIncome = dec("1000")
		p.CurrentDebts = decimal.Zero
		// 400.04 / 1000 = 0.40004 rounds to 0.4000
		out := NewEligibility().Evaluate(p, loanRequest(20), dec("400.04"), asOf)
		assert.True(t, out.Passed)
		// 400.05 / 1000 = 0.40005 rounds to 0.4001
		out = NewEligibility().Evaluate(p, loanRequest(20), dec("400.05"), asOf)
		assert.Equal(t, domain.ReasonPaymentToIncome, out.Failed)
		assert.Equal(t, "0.4001", out.PaymentToIncome.String())
	})

	t.Run("ZeroIncomePassesRatios", func(t *testing.T) {
		p := goodProfile()
		p.MonthlyIncome = decimal.Zero
		out := NewEligibility().Evaluate(p, loanRequest(20), dec("632.65"), asOf)
		assert.True(t, out.Passed)
		assert.True(t, out.PaymentToIncome.IsZero())
		assert.True(t, out.DebtToIncome.IsZero())
	})

	t.Run("TermAtCeiling", func(t *testing.T) {
		p := goodProfile()
		out := NewEligibility().Evaluate(p, loanRequest(30), dec("632.65"), asOf)
		assert.True(t, out.Passed)
	})

	t.Run("AgeAtTermEndAtLimit", func(t *testing.T) {
		p := goodProfile()
		// 45 on asOf: birthday already reached this year
		p.BirthDate = time.Date(1980, time.June, 15, 0, 0, 0, 0, time.UTC)
		out := NewEligibility().Evaluate(p, loanRequest(30), dec("632.65"), asOf)
		assert.True(t, out.Passed)
		assert.Equal(t, 75, out.AgeAtTermEnd)
	})

	t.Run("BirthdayNotYetReached", func(t *testing.T) {
		p := goodProfile()
		p.BirthDate = time.Date(1980, time.June, 16, 0, 0, 0, 0, time.UTC)
		out := NewEligibility().Evaluate(p, loanRequest(30), dec("632.65"), asOf)
		assert.Equal(t, 74, out.AgeAtTermEnd)
	})

	t.Run("EmploymentAtMinimum", func(t *testing.T) {
		p := goodProfile()
		p.EmploymentYears = dec("2")
		out := NewEligibility().Evaluate(p, loanRequest(20), dec("632.65"), asOf)
		assert.True(t, out.Passed)
	})
}
