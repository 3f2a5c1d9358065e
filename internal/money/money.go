// Package money converts between decimal currency text and integer cents.
//
// All amounts are carried as int64 minor units. Conversion goes through
// shopspring/decimal so that values such as 0.29 or 1299.99 never pick up
// binary floating point error on the way to cents.
package money

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"pricewatch/internal/errors"
)

// DefaultCurrency is the currency whose amounts are shown with a symbol.
const DefaultCurrency = "USD"

var (
	noiseWords   = regexp.MustCompile(`(?i)\b(now|was|from|sale|price|only)\b`)
	noiseSymbols = strings.NewReplacer("$", "", ",", "")
	// leading decimal number, mirroring a parseFloat style prefix read
	leadingNumber = regexp.MustCompile(`^[-+]?(\d+\.?\d*|\.\d+)`)
)

var hundred = decimal.NewFromInt(100)

// ToMinorUnits converts a decimal amount to cents, rounding half away from zero.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(hundred).Round(0).IntPart()
}

// FromString converts a clean decimal string such as "249.99" to cents.
func FromString(s string) (int64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", errors.ErrInvalidPriceFormat, s)
	}
	return ToMinorUnits(d), nil
}

// ToDecimal converts cents back to a decimal amount.
func ToDecimal(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

// Format renders cents with two decimals. The default currency is shown with
// a leading dollar sign, any other currency with a trailing code.
func Format(cents int64, currency string) string {
	if currency == "" {
		currency = DefaultCurrency
	}
	amount := ToDecimal(cents)
	sign := ""
	if amount.IsNegative() {
		sign = "-"
		amount = amount.Neg()
	}
	if currency == DefaultCurrency {
		return sign + "$" + amount.StringFixed(2)
	}
	return sign + amount.StringFixed(2) + " " + currency
}

// FormatUSD is Format with the default currency.
func FormatUSD(cents int64) string {
	return Format(cents, DefaultCurrency)
}

// Parse extracts a price from scraped text and returns it in cents.
// It handles "$249.99", "249.99", "$1,299.99" and "Now $199.00".
func Parse(text string) (int64, error) {
	cleaned := noiseWords.ReplaceAllString(text, "")
	cleaned = noiseSymbols.Replace(cleaned)
	cleaned = strings.TrimSpace(cleaned)

	num := leadingNumber.FindString(cleaned)
	if num == "" {
		return 0, fmt.Errorf("%w: %q", errors.ErrInvalidPriceFormat, text)
	}
	d, err := decimal.NewFromString(strings.TrimPrefix(num, "+"))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", errors.ErrInvalidPriceFormat, text)
	}
	return ToMinorUnits(d), nil
}

// DetectCurrency reports the currency of scraped price text.
// Only USD retailers are registered, so every price resolves to USD.
func DetectCurrency(text string) string {
	return DefaultCurrency
}
