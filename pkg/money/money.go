// Package money formats and converts currency amounts.
package money

import (
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var hundred = decimal.NewFromInt(100)

var printer = message.NewPrinter(language.MustParse("es-MX"))

// ToMinorUnits converts a major-unit amount (pesos) to minor units (centavos),
// rounding half away from zero.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(hundred).Round(0).IntPart()
}

// FromMinorUnits converts centavos back to pesos.
func FromMinorUnits(cents int64) decimal.Decimal {
	return decimal.NewFromInt(cents).Div(hundred)
}

// Whole renders an amount rounded to whole currency units, e.g. "$1,200".
func Whole(amount decimal.Decimal) string {
	return printer.Sprintf("$%d", amount.Round(0).IntPart())
}

// Exact renders an amount with two decimals, e.g. "$1,200.50".
func Exact(amount decimal.Decimal) string {
	f, _ := amount.Round(2).Float64()
	return printer.Sprintf("$%.2f", f)
}
