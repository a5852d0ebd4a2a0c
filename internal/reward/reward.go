// Package reward estimates the fixed-rate reward shown on deposit receipts.
package reward

import (
	"errors"
	"fmt"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// ErrUnsupportedTerm is returned for a term outside the offered set.
var ErrUnsupportedTerm = errors.New("unsupported term")

// Term selects a deposit product.
type Term string

const (
	Term3Months  Term = "3m"
	Term12Months Term = "12m"
)

// Plan is the annualized rate and the fraction of a year a term runs for.
type Plan struct {
	Term           Term            `json:"term"`
	Rate           decimal.Decimal `json:"rate"`
	PeriodFraction decimal.Decimal `json:"periodFraction"`
}

var plans = map[Term]Plan{
	Term3Months: {
		Term:           Term3Months,
		Rate:           decimal.RequireFromString("0.05"),
		PeriodFraction: decimal.RequireFromString("0.25"),
	},
	Term12Months: {
		Term:           Term12Months,
		Rate:           decimal.RequireFromString("0.08"),
		PeriodFraction: decimal.NewFromInt(1),
	},
}

// ParseTerm validates a term selector.
func ParseTerm(raw string) (Term, error) {
	t := Term(raw)
	if _, ok := plans[t]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedTerm, raw)
	}
	return t, nil
}

// Plans lists the offered terms, shortest first.
func Plans() []Plan {
	return []Plan{plans[Term3Months], plans[Term12Months]}
}

// Terms lists the offered term selectors.
func Terms() []Term {
	return lo.Map(Plans(), func(p Plan, _ int) Term { return p.Term })
}

// Estimate returns amount × rate × period fraction, without compounding.
// Non-positive amounts and unknown terms yield zero.
func Estimate(amount decimal.Decimal, term Term) decimal.Decimal {
	plan, ok := plans[term]
	if !ok || !amount.IsPositive() {
		return decimal.Zero
	}
	return amount.Mul(plan.Rate).Mul(plan.PeriodFraction)
}

// EstimateString is Estimate for user-entered text; anything that does not
// parse as a decimal yields zero.
func EstimateString(amount string, term Term) decimal.Decimal {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return decimal.Zero
	}
	return Estimate(d, term)
}
