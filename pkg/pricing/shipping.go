package pricing

import (
	"fmt"

	"github.com/gonzalofreyna/melocoton-move/pkg/money"
	"github.com/shopspring/decimal"
)

// ShippingType classifies how an item ships.
type ShippingType string

const (
	ShippingStandard ShippingType = "standard"
	// ShippingCustom items are quoted out-of-band: no fee, no free shipping.
	ShippingCustom ShippingType = "custom"
)

// ParseShippingType maps anything other than "custom" to standard.
func ParseShippingType(s string) ShippingType {
	if ShippingType(s) == ShippingCustom {
		return ShippingCustom
	}
	return ShippingStandard
}

// QuoteKind names the rule that produced a shipping quote.
type QuoteKind string

const (
	QuoteNone           QuoteKind = "none"
	QuoteCustom         QuoteKind = "custom"
	QuoteFree           QuoteKind = "free"
	QuoteBelowThreshold QuoteKind = "below_threshold"
	QuoteFlat           QuoteKind = "flat"
)

// Line is the shipping-relevant view of one cart line.
type Line struct {
	UnitPrice    decimal.Decimal
	Quantity     int
	FreeShipping bool
	ShippingType ShippingType
}

// Total is UnitPrice × Quantity.
func (l Line) Total() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// ShippingRules holds the two configured shipping constants.
type ShippingRules struct {
	FreeShippingMinTotal decimal.Decimal
	FixedFee             decimal.Decimal
}

// DefaultShippingRules are the storefront defaults (MXN).
func DefaultShippingRules() ShippingRules {
	return ShippingRules{
		FreeShippingMinTotal: decimal.NewFromInt(499),
		FixedFee:             decimal.NewFromInt(149),
	}
}

// Quote is the derived shipping state of a cart.
type Quote struct {
	Kind                     QuoteKind
	Subtotal                 decimal.Decimal
	HasCustomShipping        bool
	AllItemsFreeShipping     bool
	QualifiesForFreeShipping bool
	Cost                     decimal.Decimal
	// Remaining is the amount still missing to reach the free shipping
	// threshold. Only set for QuoteBelowThreshold.
	Remaining decimal.Decimal
	Label     string
}

// Subtotal sums the line totals.
func Subtotal(lines []Line) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Total())
	}
	return total
}

// Quote derives shipping eligibility, cost and label from the cart lines.
// It is a pure function of lines and rules.
func (r ShippingRules) Quote(lines []Line) Quote {
	q := Quote{
		Kind:     QuoteNone,
		Subtotal: Subtotal(lines),
		Cost:     decimal.Zero,
	}
	if len(lines) == 0 {
		return q
	}

	allFree := true
	for _, l := range lines {
		if l.ShippingType == ShippingCustom {
			q.HasCustomShipping = true
		}
		if !l.FreeShipping {
			allFree = false
		}
	}
	q.AllItemsFreeShipping = allFree
	q.QualifiesForFreeShipping = allFree &&
		q.Subtotal.GreaterThanOrEqual(r.FreeShippingMinTotal) &&
		!q.HasCustomShipping

	switch {
	case q.HasCustomShipping:
		q.Kind = QuoteCustom
		q.Label = "Includes items with shipping quoted separately"
	case q.QualifiesForFreeShipping:
		q.Kind = QuoteFree
		q.Label = "Free shipping"
	case q.Subtotal.IsPositive() && q.Subtotal.LessThan(r.FreeShippingMinTotal):
		q.Kind = QuoteBelowThreshold
		q.Cost = r.FixedFee
		q.Remaining = r.FreeShippingMinTotal.Sub(q.Subtotal)
		q.Label = fmt.Sprintf("Add %s more to get free shipping", money.Whole(q.Remaining))
	case q.Subtotal.GreaterThanOrEqual(r.FreeShippingMinTotal):
		q.Kind = QuoteFlat
		q.Cost = r.FixedFee
		q.Label = fmt.Sprintf("Flat shipping fee: %s", money.Whole(r.FixedFee))
	}
	return q
}

// ChargeableShipping is the shipping amount that counts towards a total.
func (q Quote) ChargeableShipping() decimal.Decimal {
	if q.HasCustomShipping {
		return decimal.Zero
	}
	return q.Cost
}
