package service

import (
	"sync"

	"github.com/gonzalofreyna/melocoton-move/pkg/pricing"
	"github.com/shopspring/decimal"
)

type CouponStatus string

const (
	CouponApplied CouponStatus = "applied"
	CouponInvalid CouponStatus = "invalid"
	CouponMissing CouponStatus = "missing"
)

// CouponPreview shows the shopper what a coupon would take off. It is
// advisory only; checkout recomputes the charged amount server-side.
type CouponPreview struct {
	rule pricing.CouponRule

	mu       sync.Mutex
	applied  string
	discount decimal.Decimal
	last     Summary
}

// NewCouponPreview attaches a preview to store so the discount follows every
// cart change.
func NewCouponPreview(store *Store, rule pricing.CouponRule) *CouponPreview {
	c := &CouponPreview{
		rule:     rule,
		discount: decimal.Zero,
		last:     store.Summary(),
	}
	store.Subscribe(c.update)
	return c
}

// Apply validates input against the configured code. A mismatch clears any
// previously applied code.
func (c *CouponPreview) Apply(input string) CouponStatus {
	c.mu.Lock()
	defer c.mu.Unlock()

	if pricing.NormalizeCode(input) == "" {
		return CouponMissing
	}
	if !c.rule.Matches(input) {
		c.applied = ""
		c.discount = decimal.Zero
		return CouponInvalid
	}
	c.applied = pricing.NormalizeCode(c.rule.Code)
	c.recompute()
	return CouponApplied
}

func (c *CouponPreview) Remove() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.applied = ""
	c.discount = decimal.Zero
}

// AppliedCode is empty when no coupon is applied.
func (c *CouponPreview) AppliedCode() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.applied
}

func (c *CouponPreview) Percent() decimal.Decimal {
	return c.rule.Percent
}

func (c *CouponPreview) Discount() decimal.Decimal {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.discount
}

// DisplayedTotal is subtotal plus chargeable shipping minus the discount.
func (c *CouponPreview) DisplayedTotal() decimal.Decimal {
	c.mu.Lock()
	defer c.mu.Unlock()
	return pricing.Total(c.last.Shipping, c.discount)
}

func (c *CouponPreview) update(s Summary) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.last = s
	if s.Empty() {
		c.applied = ""
		c.discount = decimal.Zero
		return
	}
	if c.applied != "" {
		c.recompute()
	}
}

func (c *CouponPreview) recompute() {
	c.discount = pricing.Discount(c.rule.Percent, c.last.Shipping)
}
