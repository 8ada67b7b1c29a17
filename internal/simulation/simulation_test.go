package simulation

import (
	"testing"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func some(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(dec(s))
}

func TestSimulateWithExtras(t *testing.T) {
	result, err := Simulate(domain.SimulationInput{
		Amount:        dec("50000"),
		TermYears:     10,
		AnnualRatePct: dec("5"),
		Insurance:     some("200"),
		Fees:          some("100"),
	})
	require.NoError(t, err)

	assert.Equal(t, "530.33", result.MonthlyPayment.StringFixed(2))
	assert.Equal(t, "63639.60", result.TotalPaid.StringFixed(2))
	assert.Equal(t, "13639.60", result.TotalInterest.StringFixed(2))
	assert.Equal(t, "300", result.ExtraCosts.String())
	assert.True(t, result.TotalWithExtras.Equal(result.TotalPaid.Add(dec("300"))))
	assert.Nil(t, result.Schedule)
}

func TestSimulateWithoutExtras(t *testing.T) {
	result, err := Simulate(domain.SimulationInput{
		Amount:        dec("50000"),
		TermYears:     10,
		AnnualRatePct: dec("5"),
	})
	require.NoError(t, err)

	assert.True(t, result.ExtraCosts.IsZero())
	assert.True(t, result.TotalWithExtras.Equal(result.TotalPaid))
}

func TestSimulateOnlyInsurance(t *testing.T) {
	result, err := Simulate(domain.SimulationInput{
		Amount:        dec("50000"),
		TermYears:     10,
		AnnualRatePct: dec("5"),
		Insurance:     some("150.50"),
	})
	require.NoError(t, err)
	assert.Equal(t, "150.50", result.ExtraCosts.StringFixed(2))
}

func TestSimulateSchedule(t *testing.T) {
	result, err := Simulate(domain.SimulationInput{
		Amount:          dec("50000"),
		TermYears:       10,
		AnnualRatePct:   dec("5"),
		IncludeSchedule: true,
	})
	require.NoError(t, err)
	require.Len(t, result.Schedule, 120)
	assert.True(t, result.Schedule[119].RemainingBalance.IsZero())
}

func TestSimulateInvalidInput(t *testing.T) {
	base := domain.SimulationInput{Amount: dec("50000"), TermYears: 10, AnnualRatePct: dec("5")}

	tests := []struct {
		name   string
		mutate func(*domain.SimulationInput)
	}{
		{"ZeroAmount", func(in *domain.SimulationInput) { in.Amount = decimal.Zero }},
		{"NegativeAmount", func(in *domain.SimulationInput) { in.Amount = dec("-5") }},
		{"ZeroTerm", func(in *domain.SimulationInput) { in.TermYears = 0 }},
		{"TermAboveCeiling", func(in *domain.SimulationInput) { in.TermYears = domain.MaxTermYears + 1 }},
		{"OverflowingTerm", func(in *domain.SimulationInput) { in.TermYears = 1 << 61 }},
		{"ZeroRate", func(in *domain.SimulationInput) { in.AnnualRatePct = decimal.Zero }},
		{"NegativeFees", func(in *domain.SimulationInput) { in.Fees = some("-1") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := base
			tt.mutate(&in)
			_, err := Simulate(in)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}
}

func TestKey(t *testing.T) {
	a := domain.SimulationInput{Amount: dec("50000"), TermYears: 10, AnnualRatePct: dec("5")}
	b := domain.SimulationInput{Amount: dec("50000.00"), TermYears: 10, AnnualRatePct: dec("5.0"), Fees: some("0")}
	assert.Equal(t, Key(a), Key(b))

	c := a
	c.IncludeSchedule = true
	assert.NotEqual(t, Key(a), Key(c))

	d := a
	d.TermYears = 11
	assert.NotEqual(t, Key(a), Key(d))

	t.Run("TrailingZeros", func(t *testing.T) {
		x := domain.SimulationInput{Amount: dec("100000"), TermYears: 20, AnnualRatePct: dec("4.50"), Insurance: some("200.00")}
		y := domain.SimulationInput{Amount: dec("100000"), TermYears: 20, AnnualRatePct: dec("4.5"), Insurance: some("200")}
		assert.Equal(t, Key(x), Key(y))

		z := y
		z.AnnualRatePct = dec("4.05")
		assert.NotEqual(t, Key(y), Key(z))
	})
}

func TestSimulateAtTermCeiling(t *testing.T) {
	result, err := Simulate(domain.SimulationInput{Amount: dec("100000"), TermYears: domain.MaxTermYears, AnnualRatePct: dec("5")})
	require.NoError(t, err)
	assert.True(t, result.MonthlyPayment.IsPositive())
	assert.True(t, result.TotalInterest.IsPositive())
}
