package amortization

import (
	"fmt"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/shopspring/decimal"
)

// Schedule returns one installment per month. Interest is charged on the
// outstanding balance and rounded to cents; the last installment absorbs
// the rounding remainder so the balance closes at exactly zero.
func Schedule(principal decimal.Decimal, termYears int, annualRatePct decimal.Decimal) ([]domain.Installment, error) {
	if !principal.IsPositive() || termYears <= 0 || !annualRatePct.IsPositive() {
		return nil, fmt.Errorf("%w: principal, term and rate must be positive", domain.ErrInvalidInput)
	}

	payment, err := MonthlyPayment(principal, termYears, annualRatePct)
	if err != nil {
		return nil, err
	}

	r := MonthlyRate(annualRatePct)
	n := Periods(termYears)
	balance := principal
	installments := make([]domain.Installment, 0, n)

	for period := 1; period <= n; period++ {
		interest := balance.Mul(r).Round(MoneyPrecision)
		principalPart := payment.Sub(interest)
		due := payment
		if period == n || principalPart.GreaterThan(balance) {
			principalPart = balance
			due = principalPart.Add(interest)
		}
		balance = balance.Sub(principalPart)

		installments = append(installments, domain.Installment{
			Period:           period,
			Payment:          due,
			Principal:        principalPart,
			Interest:         interest,
			RemainingBalance: balance,
		})
		if balance.IsZero() {
			break
		}
	}
	return installments, nil
}
