package enums

import "strings"

// Currency is a lowercase ISO 4217 code as the payment processor expects it.
type Currency string

const (
	CurrencyCAD Currency = "cad"
	CurrencyUSD Currency = "usd"
	CurrencyINR Currency = "inr"
	CurrencyGBP Currency = "gbp"
	CurrencyEUR Currency = "eur"
	CurrencyAUD Currency = "aud"
	CurrencyNZD Currency = "nzd"
	CurrencySGD Currency = "sgd"
	CurrencyHKD Currency = "hkd"
	CurrencyJPY Currency = "jpy"
	CurrencyKRW Currency = "krw"
	CurrencyVND Currency = "vnd"
	CurrencyMXN Currency = "mxn"
	CurrencyBRL Currency = "brl"
)

// DefaultCurrency applies when neither the tier nor the order names one.
const DefaultCurrency = CurrencyCAD

var validCurrencies = []Currency{
	CurrencyCAD,
	CurrencyUSD,
	CurrencyINR,
	CurrencyGBP,
	CurrencyEUR,
	CurrencyAUD,
	CurrencyNZD,
	CurrencySGD,
	CurrencyHKD,
	CurrencyJPY,
	CurrencyKRW,
	CurrencyVND,
	CurrencyMXN,
	CurrencyBRL,
}

var zeroDecimalCurrencies = map[Currency]struct{}{
	CurrencyJPY: {},
	CurrencyKRW: {},
	CurrencyVND: {},
}

// String implements fmt.Stringer.
func (c Currency) String() string {
	return string(c)
}

// IsValid reports whether the currency is recognized.
func (c Currency) IsValid() bool {
	return known(c, validCurrencies)
}

// IsZeroDecimal reports whether the processor expects whole units for this currency.
func (c Currency) IsZeroDecimal() bool {
	_, ok := zeroDecimalCurrencies[Currency(strings.ToLower(string(c)))]
	return ok
}

// FirstCurrency returns the first non-blank candidate, falling back to DefaultCurrency.
func FirstCurrency(candidates ...string) Currency {
	for _, candidate := range candidates {
		if trimmed := strings.ToLower(strings.TrimSpace(candidate)); trimmed != "" {
			return Currency(trimmed)
		}
	}
	return DefaultCurrency
}
