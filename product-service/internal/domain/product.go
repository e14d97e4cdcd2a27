package domain

import (
	"time"

	"github.com/gonzalofreyna/melocoton-move/product-service/pkg/catalog"
	"github.com/shopspring/decimal"
)

type Product struct {
	ID            int64
	Slug          string
	Name          string
	Description   string
	Category      string
	ImageURL      string
	FullPrice     decimal.Decimal
	DiscountPrice *decimal.Decimal
	FreeShipping  bool
	Stock         *int
	MaxQty        *int
	ShippingType  string
	MinDays       *int
	MaxDays       *int
	CreatedAt     time.Time
}

// Record converts the product to its published catalog form.
func (p *Product) Record() catalog.Record {
	r := catalog.Record{
		Slug:          p.Slug,
		Name:          p.Name,
		Image:         p.ImageURL,
		Category:      p.Category,
		Description:   p.Description,
		FullPrice:     p.FullPrice,
		DiscountPrice: p.DiscountPrice,
		FreeShipping:  p.FreeShipping,
		Stock:         p.Stock,
		MaxQty:        p.MaxQty,
		ShippingType:  p.ShippingType,
	}
	if p.MinDays != nil && p.MaxDays != nil {
		r.Estimate = &catalog.ShippingEstimate{MinBusinessDays: *p.MinDays, MaxBusinessDays: *p.MaxDays}
	}
	return r
}
