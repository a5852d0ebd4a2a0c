package reward

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEstimate(t *testing.T) {
	tests := []struct {
		name   string
		amount string
		term   Term
		want   string
	}{
		{"three months", "1000", Term3Months, "12.5"},
		{"twelve months", "1000", Term12Months, "80"},
		{"fractional amount", "40.50", Term3Months, "0.50625"},
		{"zero", "0", Term12Months, "0"},
		{"negative", "-10", Term12Months, "0"},
		{"unknown term", "1000", Term("6m"), "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Estimate(decimal.RequireFromString(tt.amount), tt.term)
			assert.True(t, got.Equal(decimal.RequireFromString(tt.want)), "got %s want %s", got, tt.want)
		})
	}
}

func TestEstimateMatchesPlan(t *testing.T) {
	amount := decimal.RequireFromString("2500.75")
	for _, p := range Plans() {
		want := amount.Mul(p.Rate).Mul(p.PeriodFraction)
		assert.True(t, Estimate(amount, p.Term).Equal(want), "term %s", p.Term)
	}
}

func TestEstimateString(t *testing.T) {
	assert.True(t, EstimateString("abc", Term12Months).IsZero())
	assert.True(t, EstimateString("", Term12Months).IsZero())
	assert.True(t, EstimateString("100", Term12Months).Equal(decimal.NewFromInt(8)))
}

func TestParseTerm(t *testing.T) {
	got, err := ParseTerm("12m")
	require.NoError(t, err)
	assert.Equal(t, Term12Months, got)

	_, err = ParseTerm("1y")
	assert.ErrorIs(t, err, ErrUnsupportedTerm)

	assert.Equal(t, []Term{Term3Months, Term12Months}, Terms())
}
