// Package amortization computes fixed-rate monthly payments, totals and
// repayment schedules. All arithmetic is decimal; nothing here touches
// binary floating point.
package amortization

import (
	"fmt"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/shopspring/decimal"
)

const (
	// RatePrecision is the number of fractional digits kept for the
	// monthly rate.
	RatePrecision = 10

	// growthPrecision is the number of digits kept after the leading
	// digit of intermediate products of (1+r)^n.
	growthPrecision = 34

	// MoneyPrecision is the number of fractional digits of a payment.
	MoneyPrecision = 2
)

var twelveHundred = decimal.NewFromInt(1200)

// MonthlyRate converts an annual percentage rate into a monthly fraction.
func MonthlyRate(annualRatePct decimal.Decimal) decimal.Decimal {
	return annualRatePct.DivRound(twelveHundred, RatePrecision)
}

// Periods returns the number of monthly installments in termYears.
func Periods(termYears int) int {
	return termYears * 12
}

// MonthlyPayment returns the fixed installment that repays principal over
// termYears at annualRatePct, rounded half-up to cents.
// A zero term or zero rate yields a zero payment.
func MonthlyPayment(principal decimal.Decimal, termYears int, annualRatePct decimal.Decimal) (decimal.Decimal, error) {
	if principal.IsNegative() || termYears < 0 || annualRatePct.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: principal, term and rate must not be negative", domain.ErrInvalidInput)
	}
	if termYears > domain.MaxTermYears {
		return decimal.Zero, fmt.Errorf("%w: term exceeds %d years", domain.ErrInvalidInput, domain.MaxTermYears)
	}
	if termYears == 0 || annualRatePct.IsZero() {
		return decimal.Zero, nil
	}

	r := MonthlyRate(annualRatePct)
	g := growth(decimal.NewFromInt(1).Add(r), Periods(termYears))

	denominator := g.Sub(decimal.NewFromInt(1))
	if denominator.IsZero() {
		return decimal.Zero, nil
	}
	return principal.Mul(r).Mul(g).DivRound(denominator, MoneyPrecision), nil
}

// Totals returns what the borrower pays over the whole term and the
// interest portion of it.
func Totals(principal, monthlyPayment decimal.Decimal, termYears int) (totalPaid, totalInterest decimal.Decimal) {
	totalPaid = monthlyPayment.Mul(decimal.NewFromInt(int64(Periods(termYears))))
	return totalPaid, totalPaid.Sub(principal)
}

// growth computes base^n by square-and-multiply, rounding every product to
// growthPrecision digits past its leading digit. base is never below one.
func growth(base decimal.Decimal, n int) decimal.Decimal {
	result := decimal.NewFromInt(1)
	for n > 0 {
		if n&1 == 1 {
			result = roundSignificant(result.Mul(base))
		}
		base = roundSignificant(base.Mul(base))
		n >>= 1
	}
	return result
}

// roundSignificant keeps growthPrecision digits after the leading digit of
// d, which is at least one.
func roundSignificant(d decimal.Decimal) decimal.Decimal {
	intDigits := d.NumDigits() + int(d.Exponent())
	if intDigits <= 1 {
		return d.Round(growthPrecision)
	}
	return d.Round(int32(growthPrecision - intDigits + 1))
}
