package pricing

import (
	"strings"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// NormalizeCode trims and upper-cases a coupon code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// CouponRule is a single percentage coupon.
type CouponRule struct {
	Code    string
	Percent decimal.Decimal
}

// Enabled reports whether the rule can ever match.
func (c CouponRule) Enabled() bool {
	return NormalizeCode(c.Code) != "" && c.Percent.IsPositive()
}

// Matches compares an input code against the rule, both normalised.
// A rule without a positive percentage never matches.
func (c CouponRule) Matches(input string) bool {
	if !c.Enabled() {
		return false
	}
	return NormalizeCode(input) == NormalizeCode(c.Code)
}

// DiscountBase is the amount a percentage coupon applies to: the subtotal
// plus shipping, unless the cart carries custom-shipping items.
func DiscountBase(q Quote) decimal.Decimal {
	return q.Subtotal.Add(q.ChargeableShipping())
}

// Discount is percent/100 of the discount base.
func Discount(percent decimal.Decimal, q Quote) decimal.Decimal {
	if !percent.IsPositive() {
		return decimal.Zero
	}
	return percent.Div(hundred).Mul(DiscountBase(q))
}

// Total is the discount base minus the discount, floored at zero.
func Total(q Quote, discount decimal.Decimal) decimal.Decimal {
	t := DiscountBase(q).Sub(discount)
	if t.IsNegative() {
		return decimal.Zero
	}
	return t
}
