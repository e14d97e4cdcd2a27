package domain

import "github.com/shopspring/decimal"

// CheckoutItem is what the server sees of a line item: no prices.
type CheckoutItem struct {
	Slug     string `json:"slug"`
	Quantity int    `json:"quantity"`
}

type CheckoutRequest struct {
	Items      []CheckoutItem `json:"items"`
	CouponCode string         `json:"couponCode,omitempty"`
}

type CheckoutResponse struct {
	OK      bool   `json:"ok"`
	ID      string `json:"id,omitempty"`
	URL     string `json:"url,omitempty"`
	Message string `json:"message,omitempty"`
	// Shipping as the server quoted it; the local preview may differ.
	ShippingLabel string          `json:"shippingLabel,omitempty"`
	ShippingCost  decimal.Decimal `json:"shippingCost"`
}
