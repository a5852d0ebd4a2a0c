package vaults

import (
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hongminglow/vault-be/internal/models"
)

func sample() []models.Vault {
	return []models.Vault{
		{ID: "1", Name: "Alpha Yield", APR: decimal.RequireFromString("12.5"), TVL: decimal.NewFromInt(500), Leader: "zed", AgeDays: 30, Points: decimal.NewFromInt(7)},
		{ID: "2", Name: "Beta Basis", APR: decimal.RequireFromString("-3"), TVL: decimal.NewFromInt(1500), Leader: "amy", AgeDays: 3},
		{ID: "3", Name: "ALPHA Delta", APR: decimal.RequireFromString("7"), Balance: decimal.NewFromInt(20), AgeDays: 90, Points: decimal.NewFromInt(2)},
		{ID: "4", Name: "Gamma", TVL: decimal.NewFromInt(50), Leader: "bob", AgeDays: 12},
	}
}

func ids(list []models.Vault) []string {
	return lo.Map(list, func(v models.Vault, _ int) string { return v.ID })
}

func TestApplyFiltersByNameOnly(t *testing.T) {
	got := Apply(sample(), Query{Search: "alpha"})
	assert.Equal(t, []string{"1", "3"}, ids(got))

	got = Apply(sample(), Query{Search: "amy"})
	assert.Empty(t, got, "leader must not match")

	assert.Len(t, Apply(sample(), Query{}), 4)
}

func TestApplyFilterProperty(t *testing.T) {
	for _, q := range []string{"a", "ALP", "ta", "zz", " gamma "} {
		got := Apply(sample(), Query{Search: q})
		needle := strings.ToLower(strings.TrimSpace(q))
		for _, v := range got {
			assert.Contains(t, strings.ToLower(v.Name), needle)
		}
		want := lo.CountBy(sample(), func(v models.Vault) bool {
			return strings.Contains(strings.ToLower(v.Name), needle)
		})
		assert.Len(t, got, want)
	}
}

func TestApplySorts(t *testing.T) {
	tests := []struct {
		field Field
		dir   Direction
		want  []string
	}{
		{FieldName, Asc, []string{"3", "1", "2", "4"}},
		{FieldAPR, Desc, []string{"1", "3", "4", "2"}},
		{FieldTVL, Asc, []string{"3", "4", "1", "2"}},
		{FieldBalance, Desc, []string{"3", "1", "2", "4"}},
		{FieldAge, Asc, []string{"2", "4", "1", "3"}},
		{FieldPoints, Desc, []string{"1", "3", "2", "4"}},
	}
	for _, tt := range tests {
		t.Run(string(tt.field)+"_"+string(tt.dir), func(t *testing.T) {
			assert.Equal(t, tt.want, ids(Apply(sample(), Query{Field: tt.field, Direction: tt.dir})))
		})
	}
}

func TestApplyDescIsReverseOfAscWithoutTies(t *testing.T) {
	for _, f := range []Field{FieldName, FieldAPR, FieldTVL, FieldAge} {
		asc := ids(Apply(sample(), Query{Field: f, Direction: Asc}))
		desc := ids(Apply(sample(), Query{Field: f, Direction: Desc}))
		slices.Reverse(asc)
		assert.Equal(t, asc, desc, "field %s", f)
	}
}

func TestApplyDoesNotModifyInput(t *testing.T) {
	in := sample()
	Apply(in, Query{Field: FieldAPR, Direction: Desc})
	assert.Equal(t, []string{"1", "2", "3", "4"}, ids(in))
}

func TestParseFieldAndDirection(t *testing.T) {
	f, err := ParseField("APR")
	require.NoError(t, err)
	assert.Equal(t, FieldAPR, f)

	_, err = ParseField("fees")
	assert.ErrorIs(t, err, ErrUnknownField)

	d, err := ParseDirection("")
	require.NoError(t, err)
	assert.Equal(t, Asc, d)

	_, err = ParseDirection("up")
	assert.ErrorIs(t, err, ErrUnknownDirection)
}

func TestBucketKeepsLastPerWindow(t *testing.T) {
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	pt := func(minutes int, v int64) models.HistoryPoint {
		return models.HistoryPoint{At: base.Add(time.Duration(minutes) * time.Minute), Value: decimal.NewFromInt(v)}
	}
	points := []models.HistoryPoint{pt(70, 3), pt(5, 1), pt(50, 2), pt(130, 4)}

	got := Bucket(points, time.Hour)
	require.Len(t, got, 3)
	assert.Equal(t, base, got[0].At)
	assert.True(t, got[0].Value.Equal(decimal.NewFromInt(2)))
	assert.Equal(t, base.Add(time.Hour), got[1].At)
	assert.True(t, got[1].Value.Equal(decimal.NewFromInt(3)))
	assert.True(t, got[2].Value.Equal(decimal.NewFromInt(4)))

	raw := Bucket(points, 0)
	require.Len(t, raw, 4)
	assert.True(t, raw[0].Value.Equal(decimal.NewFromInt(1)))
}
