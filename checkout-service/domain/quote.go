package domain

import "github.com/shopspring/decimal"

// QuoteLine is one cart line priced from the catalog.
type QuoteLine struct {
	Slug         string          `json:"slug"`
	Name         string          `json:"name"`
	Image        string          `json:"image,omitempty"`
	UnitPrice    decimal.Decimal `json:"unitPrice"`
	Quantity     int             `json:"quantity"`
	LineTotal    decimal.Decimal `json:"lineTotal"`
	FreeShipping bool            `json:"freeShipping"`
	ShippingType string          `json:"shippingType"`
	// Adjusted is set when the requested quantity was clamped.
	Adjusted bool `json:"adjusted,omitempty"`
}

type ShippingSummary struct {
	Kind                     string          `json:"kind"`
	Cost                     decimal.Decimal `json:"cost"`
	Remaining                decimal.Decimal `json:"remaining"`
	Label                    string          `json:"label,omitempty"`
	QualifiesForFreeShipping bool            `json:"qualifiesForFreeShipping"`
	HasCustomShipping        bool            `json:"hasCustomShipping"`
}

type CouponSummary struct {
	Code     string          `json:"code,omitempty"`
	Applied  bool            `json:"applied"`
	Percent  decimal.Decimal `json:"percent"`
	Discount decimal.Decimal `json:"discount"`
}

type QuoteResponse struct {
	OK       bool            `json:"ok"`
	Currency string          `json:"currency"`
	Lines    []QuoteLine     `json:"lines"`
	Subtotal decimal.Decimal `json:"subtotal"`
	Shipping ShippingSummary `json:"shipping"`
	Coupon   CouponSummary   `json:"coupon"`
	Total    decimal.Decimal `json:"total"`
}
