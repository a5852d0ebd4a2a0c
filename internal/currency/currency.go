// Package currency converts account values between display currencies using a
// static rate table.
package currency

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// ErrUnknownCurrency is returned for a code missing from the rate table.
var ErrUnknownCurrency = errors.New("unknown currency")

// Base is the currency balances are held in.
const Base = "SGD"

// Units of each currency per one SGD.
var rates = map[string]decimal.Decimal{
	"SGD": decimal.NewFromInt(1),
	"USD": decimal.RequireFromString("0.74"),
	"EUR": decimal.RequireFromString("0.68"),
	"GBP": decimal.RequireFromString("0.58"),
	"AUD": decimal.RequireFromString("1.12"),
	"JPY": decimal.RequireFromString("110.50"),
	"MYR": decimal.RequireFromString("3.45"),
}

var symbols = map[string]string{
	"SGD": "S$",
	"USD": "$",
	"EUR": "€",
	"GBP": "£",
	"AUD": "A$",
	"JPY": "¥",
	"MYR": "RM",
}

var locales = map[string]language.Tag{
	"SGD": language.MustParse("en-SG"),
	"USD": language.AmericanEnglish,
	"EUR": language.German,
	"GBP": language.BritishEnglish,
	"AUD": language.MustParse("en-AU"),
	"JPY": language.Japanese,
	"MYR": language.MustParse("ms-MY"),
}

// Codes lists the supported currency codes in alphabetical order.
func Codes() []string {
	codes := lo.Keys(rates)
	sort.Strings(codes)
	return codes
}

// Rate returns the multiplier from SGD to code.
func Rate(code string) (decimal.Decimal, error) {
	r, ok := rates[strings.ToUpper(code)]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrUnknownCurrency, code)
	}
	return r, nil
}

// Convert moves amount from one currency to another through SGD and rounds to
// two decimal places.
func Convert(amount decimal.Decimal, from, to string) (decimal.Decimal, error) {
	fromRate, err := Rate(from)
	if err != nil {
		return decimal.Zero, err
	}
	toRate, err := Rate(to)
	if err != nil {
		return decimal.Zero, err
	}
	return amount.Div(fromRate).Mul(toRate).Round(2), nil
}

// Format renders amount with the currency symbol and the grouping of the
// currency's home locale, always with two decimals.
func Format(amount decimal.Decimal, code string) (string, error) {
	code = strings.ToUpper(code)
	tag, ok := locales[code]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownCurrency, code)
	}
	f, _ := amount.Round(2).Float64()
	p := message.NewPrinter(tag)
	return symbols[code] + p.Sprintf("%.2f", f), nil
}
