// Package vaults derives the vault list and chart views from store records.
package vaults

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/hongminglow/vault-be/internal/models"
)

// ErrUnknownField is returned when a sort field is not one of the listed columns.
var ErrUnknownField = errors.New("unknown sort field")

// ErrUnknownDirection is returned for a direction other than asc or desc.
var ErrUnknownDirection = errors.New("unknown sort direction")

// Field is a sortable vault column.
type Field string

const (
	FieldName    Field = "name"
	FieldLeader  Field = "leader"
	FieldAPR     Field = "apr"
	FieldTVL     Field = "tvl"
	FieldBalance Field = "balance"
	FieldAge     Field = "age"
	FieldPoints  Field = "points"
)

// Direction orders a sorted list.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// Query filters by a case-insensitive substring of the name, then sorts.
// An empty Field leaves the store order untouched.
type Query struct {
	Search    string
	Field     Field
	Direction Direction
}

// ParseField validates a sort field; the empty string means no sort.
func ParseField(raw string) (Field, error) {
	f := Field(strings.ToLower(strings.TrimSpace(raw)))
	switch f {
	case "", FieldName, FieldLeader, FieldAPR, FieldTVL, FieldBalance, FieldAge, FieldPoints:
		return f, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownField, raw)
}

// ParseDirection validates a direction; the empty string means ascending.
func ParseDirection(raw string) (Direction, error) {
	switch d := Direction(strings.ToLower(strings.TrimSpace(raw))); d {
	case "":
		return Asc, nil
	case Asc, Desc:
		return d, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownDirection, raw)
}

// Apply returns the vaults matching q.Search, sorted by q.Field. The input is
// not modified and the sort is stable.
func Apply(list []models.Vault, q Query) []models.Vault {
	needle := strings.ToLower(strings.TrimSpace(q.Search))
	out := lo.Filter(list, func(v models.Vault, _ int) bool {
		return needle == "" || strings.Contains(strings.ToLower(v.Name), needle)
	})
	if q.Field == "" {
		return out
	}

	cmp := comparator(q.Field)
	sort.SliceStable(out, func(i, j int) bool {
		c := cmp(out[i], out[j])
		if q.Direction == Desc {
			return c > 0
		}
		return c < 0
	})
	return out
}

func comparator(f Field) func(a, b models.Vault) int {
	switch f {
	case FieldName:
		return func(a, b models.Vault) int { return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)) }
	case FieldLeader:
		return func(a, b models.Vault) int {
			if a.Leader == "" || b.Leader == "" {
				return 0
			}
			return strings.Compare(strings.ToLower(a.Leader), strings.ToLower(b.Leader))
		}
	case FieldAPR:
		return byDecimal(func(v models.Vault) decimal.Decimal { return v.APR })
	case FieldTVL:
		return byDecimal(func(v models.Vault) decimal.Decimal { return v.TVL })
	case FieldBalance:
		return byDecimal(func(v models.Vault) decimal.Decimal { return v.Balance })
	case FieldPoints:
		return byDecimal(func(v models.Vault) decimal.Decimal { return v.Points })
	case FieldAge:
		return func(a, b models.Vault) int {
			switch {
			case a.AgeDays < b.AgeDays:
				return -1
			case a.AgeDays > b.AgeDays:
				return 1
			}
			return 0
		}
	}
	return func(models.Vault, models.Vault) int { return 0 }
}

func byDecimal(get func(models.Vault) decimal.Decimal) func(a, b models.Vault) int {
	return func(a, b models.Vault) int { return get(a).Cmp(get(b)) }
}
