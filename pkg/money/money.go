// Package money converts tier prices between display units and the payment
// processor's minor units.
package money

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/eventdesk-backend/pkg/enums"
)

var hundred = decimal.NewFromInt(100)

// ToMinorUnits converts a display amount to processor units. Zero-decimal
// currencies pass whole units; all others are multiplied by 100. Halves round
// away from zero.
func ToMinorUnits(amount decimal.Decimal, currency enums.Currency) int64 {
	if !currency.IsZeroDecimal() {
		amount = amount.Mul(hundred)
	}
	return amount.Round(0).IntPart()
}

// FromMinorUnits is the inverse of ToMinorUnits.
func FromMinorUnits(minor int64, currency enums.Currency) decimal.Decimal {
	amount := decimal.NewFromInt(minor)
	if currency.IsZeroDecimal() {
		return amount
	}
	return amount.Div(hundred)
}

// Sum adds display amounts.
func Sum(amounts ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}

var symbols = map[enums.Currency]string{
	enums.CurrencyCAD: "CA$",
	enums.CurrencyUSD: "$",
	enums.CurrencyINR: "₹",
	enums.CurrencyGBP: "£",
	enums.CurrencyEUR: "€",
	enums.CurrencyAUD: "A$",
	enums.CurrencyNZD: "NZ$",
	enums.CurrencySGD: "S$",
	enums.CurrencyHKD: "HK$",
	enums.CurrencyJPY: "¥",
	enums.CurrencyKRW: "₩",
	enums.CurrencyVND: "₫",
	enums.CurrencyMXN: "MX$",
	enums.CurrencyBRL: "R$",
}

// Format renders an amount for emails, e.g. "CA$1,000.00". Two fraction digits
// are always shown, matching the receipts attendees already get.
func Format(amount decimal.Decimal, currency enums.Currency) string {
	code := enums.Currency(strings.ToLower(string(currency)))
	symbol, ok := symbols[code]
	if !ok {
		symbol = strings.ToUpper(string(code)) + " "
	}

	sign := ""
	if amount.IsNegative() {
		sign = "-"
		amount = amount.Neg()
	}

	fixed := amount.StringFixed(2)
	whole, frac, _ := strings.Cut(fixed, ".")
	return fmt.Sprintf("%s%s%s.%s", sign, symbol, groupThousands(whole), frac)
}

func groupThousands(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}
