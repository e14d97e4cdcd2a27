package domain

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/gonzalofreyna/melocoton-move/pkg/pricing"
	"github.com/shopspring/decimal"
)

// LineItem is one product in the cart, keyed by Slug.
type LineItem struct {
	Slug  string
	Name  string
	Image string
	// Price is display-only. Checkout re-prices from the catalog.
	Price        decimal.Decimal
	Quantity     int
	FreeShipping bool
	MaxStock     *int
	ShippingType pricing.ShippingType
}

func (i LineItem) Total() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

func (i LineItem) ShippingLine() pricing.Line {
	return pricing.Line{
		UnitPrice:    i.Price,
		Quantity:     i.Quantity,
		FreeShipping: i.FreeShipping,
		ShippingType: i.ShippingType,
	}
}

// Quantity accepts a JSON number or a numeric string. Anything else reads
// as 0.
type Quantity float64

func (q *Quantity) UnmarshalJSON(b []byte) error {
	var n float64
	if err := json.Unmarshal(b, &n); err == nil {
		*q = Quantity(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*q = Quantity(pricing.ParseQuantity(s))
		return nil
	}
	*q = 0
	return nil
}

// Record is the persisted form of a line item. Older records were keyed by
// name and may lack slug or shippingType.
type Record struct {
	Slug         string          `json:"slug,omitempty"`
	Name         string          `json:"name"`
	Image        string          `json:"image,omitempty"`
	Price        decimal.Decimal `json:"price"`
	Quantity     Quantity        `json:"quantity"`
	FreeShipping bool            `json:"freeShipping,omitempty"`
	MaxStock     *float64        `json:"maxStock,omitempty"`
	ShippingType string          `json:"shippingType,omitempty"`
}

// StaleItem is a persisted record without a slug. It can't be checked out
// and must be removed and added again by the shopper.
type StaleItem struct {
	Record Record
}

func (s StaleItem) Name() string {
	return s.Record.Name
}

// NormalizeStock floors a persisted stock ceiling and drops non-finite values.
func NormalizeStock(v *float64) *int {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return nil
	}
	n := math.Floor(*v)
	if n < 0 {
		n = 0
	}
	if n > math.MaxInt32 {
		n = math.MaxInt32
	}
	return pricing.Limit(int(n))
}

// FromRecords migrates persisted records to line items. Every quantity is
// re-clamped against its own stock; items that clamp to 0 are dropped.
// Duplicate slugs are merged into the first occurrence.
func FromRecords(records []Record) (items []LineItem, stale []StaleItem) {
	index := make(map[string]int, len(records))
	for _, r := range records {
		slug := strings.TrimSpace(r.Slug)
		if slug == "" {
			stale = append(stale, StaleItem{Record: r})
			continue
		}

		maxStock := NormalizeStock(r.MaxStock)
		qty := pricing.Clamp(float64(r.Quantity), maxStock)

		if i, ok := index[slug]; ok {
			items[i].Quantity = pricing.ClampInt(items[i].Quantity+qty, items[i].MaxStock)
			continue
		}
		if qty == 0 {
			continue
		}

		index[slug] = len(items)
		items = append(items, LineItem{
			Slug:         slug,
			Name:         r.Name,
			Image:        r.Image,
			Price:        r.Price,
			Quantity:     qty,
			FreeShipping: r.FreeShipping,
			MaxStock:     maxStock,
			ShippingType: pricing.ParseShippingType(r.ShippingType),
		})
	}
	return items, stale
}

// ToRecords is the inverse of FromRecords. Stale records are written back
// untouched so the shopper keeps seeing them until removed.
func ToRecords(items []LineItem, stale []StaleItem) []Record {
	out := make([]Record, 0, len(items)+len(stale))
	for _, it := range items {
		var maxStock *float64
		if it.MaxStock != nil {
			v := float64(*it.MaxStock)
			maxStock = &v
		}
		out = append(out, Record{
			Slug:         it.Slug,
			Name:         it.Name,
			Image:        it.Image,
			Price:        it.Price,
			Quantity:     Quantity(it.Quantity),
			FreeShipping: it.FreeShipping,
			MaxStock:     maxStock,
			ShippingType: string(it.ShippingType),
		})
	}
	for _, s := range stale {
		out = append(out, s.Record)
	}
	return out
}
