// Package simulation answers what-if payment questions without an
// applicant or a loan-type policy.
package simulation

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/opensource-finance/kestrel/internal/amortization"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/shopspring/decimal"
)

// Simulate computes the payment and totals for in. Insurance and fees are
// flat extras added once to the total; absent values count as zero.
func Simulate(in domain.SimulationInput) (domain.SimulationResult, error) {
	if err := validate(in); err != nil {
		return domain.SimulationResult{}, err
	}

	payment, err := amortization.MonthlyPayment(in.Amount, in.TermYears, in.AnnualRatePct)
	if err != nil {
		return domain.SimulationResult{}, err
	}
	totalPaid, totalInterest := amortization.Totals(in.Amount, payment, in.TermYears)
	extras := valueOrZero(in.Insurance).Add(valueOrZero(in.Fees))

	result := domain.SimulationResult{
		MonthlyPayment:  payment,
		TotalPaid:       totalPaid,
		TotalInterest:   totalInterest,
		ExtraCosts:      extras,
		TotalWithExtras: totalPaid.Add(extras),
	}

	if in.IncludeSchedule {
		result.Schedule, err = amortization.Schedule(in.Amount, in.TermYears, in.AnnualRatePct)
		if err != nil {
			return domain.SimulationResult{}, err
		}
	}
	return result, nil
}

// Key returns a stable cache key for in. Inputs that differ only in
// trailing zeros share a key.
func Key(in domain.SimulationInput) string {
	var b strings.Builder
	b.WriteString("sim:")
	b.WriteString(in.Amount.String())
	b.WriteByte(':')
	b.WriteString(strconv.Itoa(in.TermYears))
	b.WriteByte(':')
	b.WriteString(in.AnnualRatePct.String())
	b.WriteByte(':')
	b.WriteString(valueOrZero(in.Insurance).String())
	b.WriteByte(':')
	b.WriteString(valueOrZero(in.Fees).String())
	if in.IncludeSchedule {
		b.WriteString(":schedule")
	}
	return b.String()
}

func validate(in domain.SimulationInput) error {
	if !in.Amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive", domain.ErrInvalidInput)
	}
	if in.TermYears <= 0 || in.TermYears > domain.MaxTermYears {
		return fmt.Errorf("%w: term must be between 1 and %d years", domain.ErrInvalidInput, domain.MaxTermYears)
	}
	if !in.AnnualRatePct.IsPositive() {
		return fmt.Errorf("%w: annual rate must be positive", domain.ErrInvalidInput)
	}
	if valueOrZero(in.Insurance).IsNegative() || valueOrZero(in.Fees).IsNegative() {
		return fmt.Errorf("%w: insurance and fees cannot be negative", domain.ErrInvalidInput)
	}
	return nil
}

func valueOrZero(v decimal.NullDecimal) decimal.Decimal {
	if !v.Valid {
		return decimal.Zero
	}
	return v.Decimal
}
