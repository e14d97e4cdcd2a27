// Package catalog reads the product catalog: the JSON array of product
// records published by the Catalog Service.
package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gonzalofreyna/melocoton-move/pkg/pricing"
	"github.com/shopspring/decimal"
)

var ErrInvalidCatalog = errors.New("invalid catalog")

type ShippingEstimate struct {
	MinBusinessDays int `json:"minBusinessDays" validate:"gte=0"`
	MaxBusinessDays int `json:"maxBusinessDays" validate:"gtefield=MinBusinessDays"`
}

// Record is one product as published. Prices are in pesos.
type Record struct {
	Slug          string            `json:"slug" validate:"required,max=120"`
	Name          string            `json:"name" validate:"required,max=200"`
	Image         string            `json:"image"`
	Category      string            `json:"category,omitempty"`
	Description   string            `json:"description,omitempty"`
	FullPrice     decimal.Decimal   `json:"fullPrice" validate:"gt=0"`
	DiscountPrice *decimal.Decimal  `json:"discountPrice,omitempty" validate:"omitempty,gte=0"`
	FreeShipping  bool              `json:"freeShipping"`
	Stock         *int              `json:"stock,omitempty" validate:"omitempty,gte=0"`
	MaxQty        *int              `json:"maxQty,omitempty" validate:"omitempty,gte=0"`
	ShippingType  string            `json:"shippingType,omitempty" validate:"omitempty,oneof=standard custom"`
	Estimate      *ShippingEstimate `json:"shippingEstimate,omitempty"`
}

// UnitPrice is the discount price when it is set and positive, the full
// price otherwise.
func (r Record) UnitPrice() decimal.Decimal {
	if r.DiscountPrice != nil && r.DiscountPrice.IsPositive() {
		return *r.DiscountPrice
	}
	return r.FullPrice
}

// StockLimit is the per-order ceiling the cart should enforce: maxQty when
// published, otherwise stock, otherwise none.
func (r Record) StockLimit() *int {
	if r.MaxQty != nil {
		return pricing.Limit(*r.MaxQty)
	}
	if r.Stock != nil {
		return pricing.Limit(*r.Stock)
	}
	return nil
}

// OrderLimit is StockLimit with a fallback for products that publish
// neither field.
func (r Record) OrderLimit(fallback int) int {
	if l := r.StockLimit(); l != nil {
		return *l
	}
	return fallback
}

func (r Record) Shipping() pricing.ShippingType {
	return pricing.ParseShippingType(r.ShippingType)
}

// Rejection explains why a record was left out of the catalog.
type Rejection struct {
	Index  int
	Slug   string
	Reason string
}

// Catalog is a validated snapshot keyed by slug.
type Catalog struct {
	Products []Record
	Rejected []Rejection
	bySlug   map[string]int
}

func (c *Catalog) Lookup(slug string) (Record, bool) {
	if c == nil {
		return Record{}, false
	}
	i, ok := c.bySlug[slug]
	if !ok {
		return Record{}, false
	}
	return c.Products[i], true
}

func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.Products)
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
	return v
}

type entry struct {
	index  int
	record Record
}

// New builds a catalog from records, validating each one. Invalid records
// and repeated slugs are rejected individually; the rest stay usable.
func New(records []Record) *Catalog {
	entries := make([]entry, len(records))
	for i, r := range records {
		entries[i] = entry{index: i, record: r}
	}
	return build(entries, nil)
}

// Parse decodes a catalog document. The document must be a JSON array;
// individual bad records are rejected without failing the whole catalog.
func Parse(data []byte) (*Catalog, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}

	entries := make([]entry, 0, len(raw))
	var rejected []Rejection
	for i, msg := range raw {
		var r Record
		if err := json.Unmarshal(msg, &r); err != nil {
			rejected = append(rejected, Rejection{Index: i, Reason: err.Error()})
			continue
		}
		entries = append(entries, entry{index: i, record: r})
	}
	return build(entries, rejected), nil
}

func build(entries []entry, rejected []Rejection) *Catalog {
	c := &Catalog{
		Rejected: rejected,
		bySlug:   make(map[string]int, len(entries)),
	}
	for _, e := range entries {
		r := e.record
		r.Slug = strings.TrimSpace(r.Slug)
		r.Name = strings.TrimSpace(r.Name)

		if err := validate.Struct(r); err != nil {
			c.Rejected = append(c.Rejected, Rejection{Index: e.index, Slug: r.Slug, Reason: err.Error()})
			continue
		}
		if _, dup := c.bySlug[r.Slug]; dup {
			c.Rejected = append(c.Rejected, Rejection{Index: e.index, Slug: r.Slug, Reason: "duplicate slug"})
			continue
		}
		c.bySlug[r.Slug] = len(c.Products)
		c.Products = append(c.Products, r)
	}
	return c
}
