package amortization

import (
	"testing"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestMonthlyPayment(t *testing.T) {
	tests := []struct {
		name      string
		principal string
		years     int
		rate      string
		want      string
	}{
		{"twenty years at 4.5", "100000", 20, "4.5", "632.65"},
		{"ten years at 5", "50000", 10, "5", "530.33"},
		{"thirty years at 4", "200000", 30, "4", "954.83"},
		{"one year at 12", "1000", 1, "12", "88.85"},
		{"fifteen years at 4.5", "80000", 15, "4.5", "611.99"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MonthlyPayment(d(tt.principal), tt.years, d(tt.rate))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.StringFixed(2))
		})
	}
}

func TestMonthlyPaymentDegenerate(t *testing.T) {
	t.Run("ZeroRate", func(t *testing.T) {
		got, err := MonthlyPayment(d("100000"), 20, decimal.Zero)
		require.NoError(t, err)
		assert.True(t, got.IsZero())
	})

	t.Run("RateRoundsToZero", func(t *testing.T) {
		got, err := MonthlyPayment(d("100000"), 20, d("0.00000001"))
		require.NoError(t, err)
		assert.True(t, got.IsZero())
	})

	t.Run("ZeroTerm", func(t *testing.T) {
		got, err := MonthlyPayment(d("100000"), 0, d("4.5"))
		require.NoError(t, err)
		assert.True(t, got.IsZero())
	})

	t.Run("NegativeInputs", func(t *testing.T) {
		_, err := MonthlyPayment(d("-1"), 20, d("4.5"))
		assert.ErrorIs(t, err, domain.ErrInvalidInput)

		_, err = MonthlyPayment(d("1000"), -1, d("4.5"))
		assert.ErrorIs(t, err, domain.ErrInvalidInput)

		_, err = MonthlyPayment(d("1000"), 20, d("-4.5"))
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("TermAboveCeiling", func(t *testing.T) {
		_, err := MonthlyPayment(d("1000"), domain.MaxTermYears+1, d("5"))
		assert.ErrorIs(t, err, domain.ErrInvalidInput)

		_, err = MonthlyPayment(d("1000"), 1<<61, d("5"))
		assert.ErrorIs(t, err, domain.ErrInvalidInput)

		_, err = Schedule(d("1000"), 1<<61, d("5"))
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})
}

func TestMonthlyPaymentSteepGrowth(t *testing.T) {
	// (1+r)^1200 at r = 0.8333333333 has hundreds of integer digits;
	// the payment converges on principal times r.
	got, err := MonthlyPayment(d("1000"), domain.MaxTermYears, d("1000"))
	require.NoError(t, err)
	assert.Equal(t, "833.33", got.StringFixed(2))

	g := growth(d("1.8333333333"), Periods(domain.MaxTermYears))
	assert.LessOrEqual(t, g.NumDigits(), growthPrecision+2)
}

func TestMonthlyPaymentDeterministic(t *testing.T) {
	first, err := MonthlyPayment(d("123456.78"), 25, d("5.375"))
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		again, err := MonthlyPayment(d("123456.78"), 25, d("5.375"))
		require.NoError(t, err)
		assert.True(t, first.Equal(again))
	}
}

func TestMonthlyRate(t *testing.T) {
	assert.Equal(t, "0.00375", MonthlyRate(d("4.5")).String())
	assert.Equal(t, "0.0041666667", MonthlyRate(d("5")).String())
}

func TestTotals(t *testing.T) {
	payment, err := MonthlyPayment(d("100000"), 20, d("4.5"))
	require.NoError(t, err)

	totalPaid, totalInterest := Totals(d("100000"), payment, 20)
	assert.Equal(t, "151836.00", totalPaid.StringFixed(2))
	assert.Equal(t, "51836.00", totalInterest.StringFixed(2))
	assert.True(t, totalPaid.Sub(totalInterest).Equal(d("100000")))
}

func TestSchedule(t *testing.T) {
	installments, err := Schedule(d("100000"), 20, d("4.5"))
	require.NoError(t, err)
	require.Len(t, installments, 240)

	first := installments[0]
	assert.Equal(t, 1, first.Period)
	assert.Equal(t, "375.00", first.Interest.StringFixed(2))
	assert.Equal(t, "257.65", first.Principal.StringFixed(2))
	assert.Equal(t, "99742.35", first.RemainingBalance.StringFixed(2))

	last := installments[len(installments)-1]
	assert.True(t, last.RemainingBalance.IsZero())
	assert.Equal(t, "632.40", last.Payment.StringFixed(2))

	principalSum := decimal.Zero
	for _, in := range installments {
		principalSum = principalSum.Add(in.Principal)
		assert.True(t, in.Payment.Equal(in.Principal.Add(in.Interest)), "period %d", in.Period)
	}
	assert.True(t, principalSum.Equal(d("100000")))
}

func TestScheduleRejectsNonPositive(t *testing.T) {
	_, err := Schedule(decimal.Zero, 20, d("4.5"))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = Schedule(d("1000"), 0, d("4.5"))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = Schedule(d("1000"), 20, decimal.Zero)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
