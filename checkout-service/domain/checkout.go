package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

type CheckoutItem struct {
	Slug     string  `json:"slug"`
	Quantity float64 `json:"quantity"`
}

// CheckoutRequest is the body the storefront posts. Only slugs and
// quantities are trusted; everything else is read from the catalog.
type CheckoutRequest struct {
	Items      []CheckoutItem `json:"items"`
	CouponCode string         `json:"couponCode,omitempty"`
	// LegacyCoupon is the field name older storefront builds send.
	LegacyCoupon string `json:"coupon,omitempty"`
}

// Coupon returns the submitted coupon code, preferring couponCode.
func (r CheckoutRequest) Coupon() string {
	if strings.TrimSpace(r.CouponCode) != "" {
		return r.CouponCode
	}
	return r.LegacyCoupon
}

type CheckoutResponse struct {
	OK      bool   `json:"ok"`
	ID      string `json:"id,omitempty"`
	URL     string `json:"url,omitempty"`
	Message string `json:"message,omitempty"`
	// ShippingLabel and ShippingCost echo the server-side shipping quote the
	// session was built with.
	ShippingLabel string          `json:"shippingLabel,omitempty"`
	ShippingCost  decimal.Decimal `json:"shippingCost"`
}

type SummaryLine struct {
	Description string          `json:"description"`
	Quantity    int64           `json:"quantity"`
	AmountTotal decimal.Decimal `json:"amountTotal"`
}

// SessionSummary is what the success page shows for a gateway session.
// Amounts are in major units.
type SessionSummary struct {
	OK             bool            `json:"ok"`
	ID             string          `json:"id"`
	Status         string          `json:"status"`
	PaymentStatus  string          `json:"paymentStatus"`
	Paid           bool            `json:"paid"`
	Currency       string          `json:"currency"`
	CustomerEmail  string          `json:"customerEmail,omitempty"`
	CustomerName   string          `json:"customerName,omitempty"`
	AmountSubtotal decimal.Decimal `json:"amountSubtotal"`
	AmountShipping decimal.Decimal `json:"amountShipping"`
	AmountDiscount decimal.Decimal `json:"amountDiscount"`
	AmountTotal    decimal.Decimal `json:"amountTotal"`
	Lines          []SummaryLine   `json:"lines"`
}
