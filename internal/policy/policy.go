// Package policy holds the per-loan-type underwriting limits and checks
// loan requests against them.
package policy

import (
	"fmt"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/shopspring/decimal"
)

var table = [domain.LoanTypeCount]domain.PolicyRecord{
	domain.PrimaryResidence: {
		Type:           domain.PrimaryResidence,
		MaxTermYears:   30,
		MinRatePct:     decimal.RequireFromString("3.5"),
		MaxRatePct:     decimal.RequireFromString("5.0"),
		MaxLoanToValue: decimal.RequireFromString("0.80"),
	},
	domain.SecondaryResidence: {
		Type:           domain.SecondaryResidence,
		MaxTermYears:   20,
		MinRatePct:     decimal.RequireFromString("4.0"),
		MaxRatePct:     decimal.RequireFromString("6.0"),
		MaxLoanToValue: decimal.RequireFromString("0.70"),
	},
	domain.CommercialProperty: {
		Type:           domain.CommercialProperty,
		MaxTermYears:   25,
		MinRatePct:     decimal.RequireFromString("5.0"),
		MaxRatePct:     decimal.RequireFromString("7.0"),
		MaxLoanToValue: decimal.RequireFromString("0.60"),
	},
	domain.Remodel: {
		Type:           domain.Remodel,
		MaxTermYears:   15,
		MinRatePct:     decimal.RequireFromString("4.5"),
		MaxRatePct:     decimal.RequireFromString("6.0"),
		MaxLoanToValue: decimal.RequireFromString("0.50"),
	},
}

func init() {
	for _, t := range domain.LoanTypes() {
		p := table[t]
		if p.Type != t {
			panic(fmt.Sprintf("policy: no record for %s", t))
		}
		if p.MaxTermYears <= 0 {
			panic(fmt.Sprintf("policy: %s max term must be positive", t))
		}
		if p.MinRatePct.GreaterThan(p.MaxRatePct) {
			panic(fmt.Sprintf("policy: %s rate band is inverted", t))
		}
		if !p.MaxLoanToValue.IsPositive() || p.MaxLoanToValue.GreaterThan(decimal.NewFromInt(1)) {
			panic(fmt.Sprintf("policy: %s max loan-to-value must be in (0, 1]", t))
		}
	}
}

// Lookup returns the policy for t.
func Lookup(t domain.LoanType) (domain.PolicyRecord, error) {
	if !t.Valid() {
		return domain.PolicyRecord{}, fmt.Errorf("%w: %d", domain.ErrUnknownLoanType, int(t))
	}
	return table[t], nil
}

// All returns a copy of the policy table in loan type order.
func All() []domain.PolicyRecord {
	out := make([]domain.PolicyRecord, 0, len(table))
	for _, t := range domain.LoanTypes() {
		out = append(out, table[t])
	}
	return out
}

// Validate checks req against its loan type's policy. Checks run in a fixed
// order and the first failure is returned as a *domain.PolicyViolation.
func Validate(req domain.LoanRequest) error {
	p, err := Lookup(req.Type)
	if err != nil {
		return err
	}

	if req.TermYears > p.MaxTermYears {
		return &domain.PolicyViolation{
			Reason:   domain.ViolationTermExceeded,
			LoanType: req.Type,
			Detail:   fmt.Sprintf("term %d years exceeds maximum of %d", req.TermYears, p.MaxTermYears),
		}
	}

	if req.AnnualRatePct.LessThan(p.MinRatePct) || req.AnnualRatePct.GreaterThan(p.MaxRatePct) {
		return &domain.PolicyViolation{
			Reason:   domain.ViolationRateOutOfBand,
			LoanType: req.Type,
			Detail: fmt.Sprintf("rate %s%% outside band %s%%-%s%%",
				req.AnnualRatePct, p.MinRatePct, p.MaxRatePct),
		}
	}

	if req.PropertyValue.IsPositive() {
		limit := req.PropertyValue.Mul(p.MaxLoanToValue)
		if req.Amount.GreaterThan(limit) {
			return &domain.PolicyViolation{
				Reason:   domain.ViolationLoanToValueExceeded,
				LoanType: req.Type,
				Detail:   fmt.Sprintf("amount %s exceeds %s (%s of property value)", req.Amount, limit, p.MaxLoanToValue),
			}
		}
	}

	return nil
}
