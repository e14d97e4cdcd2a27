package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	d "github.com/gonzalofreyna/melocoton-move/checkout-service/domain"
	"github.com/gonzalofreyna/melocoton-move/checkout-service/internal/cache"
	r "github.com/gonzalofreyna/melocoton-move/checkout-service/internal/repository"
	"github.com/gonzalofreyna/melocoton-move/payment-service/pkg/gateway"
	"github.com/gonzalofreyna/melocoton-move/pkg/money"
	"github.com/gonzalofreyna/melocoton-move/pkg/pricing"
	"github.com/gonzalofreyna/melocoton-move/product-service/pkg/catalog"
)

const (
	DefaultMaxQty = 10

	successPath = "/success?session_id={CHECKOUT_SESSION_ID}"
	cancelPath  = "/cart"
)

type CheckoutService interface {
	CreateSession(ctx context.Context, req *d.CheckoutRequest, origin string) (*d.CheckoutResponse, error)
	Quote(ctx context.Context, req *d.CheckoutRequest) (*d.QuoteResponse, error)
	GetSession(ctx context.Context, id string) (*d.SessionSummary, error)
	HandleWebhook(ctx context.Context, payload []byte, signature string) error
}

// Options wires the checkout service. Gateway, Webhooks, Orders and Ledger
// may be nil: a nil Gateway fails every checkout with
// ErrGatewayNotConfigured, a nil Orders disables order recording.
type Options struct {
	Catalog  catalog.Source
	Gateway  gateway.Gateway
	Webhooks gateway.WebhookVerifier
	Orders   r.OrderRepository
	Ledger   cache.EventLedger

	Shipping        pricing.ShippingRules
	Coupon          pricing.CouponRule
	GatewayCouponID string

	DefaultMaxQty     int
	Currency          string
	ShippingCountries []string
	SiteURL           string
	AllowedOrigins    []string

	Logger *slog.Logger
}

type CheckoutServiceImpl struct {
	catalog  catalog.Source
	gateway  gateway.Gateway
	webhooks gateway.WebhookVerifier
	orders   r.OrderRepository
	ledger   cache.EventLedger

	shipping        pricing.ShippingRules
	coupon          pricing.CouponRule
	gatewayCouponID string

	defaultMaxQty int
	currency      string
	countries     []string
	redirect      redirectBase

	log *slog.Logger
}

func NewCheckoutService(opts Options) *CheckoutServiceImpl {
	if opts.DefaultMaxQty < 1 {
		opts.DefaultMaxQty = DefaultMaxQty
	}
	if opts.Currency == "" {
		opts.Currency = "mxn"
	}
	if len(opts.ShippingCountries) == 0 {
		opts.ShippingCountries = []string{"MX"}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &CheckoutServiceImpl{
		catalog:         opts.Catalog,
		gateway:         opts.Gateway,
		webhooks:        opts.Webhooks,
		orders:          opts.Orders,
		ledger:          opts.Ledger,
		shipping:        opts.Shipping,
		coupon:          opts.Coupon,
		gatewayCouponID: strings.TrimSpace(opts.GatewayCouponID),
		defaultMaxQty:   opts.DefaultMaxQty,
		currency:        strings.ToLower(opts.Currency),
		countries:       opts.ShippingCountries,
		redirect:        newRedirectBase(opts.SiteURL, opts.AllowedOrigins),
		log:             opts.Logger,
	}
}

// pricedLine is a requested item resolved against the catalog.
type pricedLine struct {
	record    catalog.Record
	requested float64
	quantity  int
}

func (l pricedLine) shippingLine() pricing.Line {
	return pricing.Line{
		UnitPrice:    l.record.UnitPrice(),
		Quantity:     l.quantity,
		FreeShipping: l.record.FreeShipping,
		ShippingType: l.record.Shipping(),
	}
}

// CreateSession builds a hosted payment session from catalog data only. The
// client contributes slugs, quantities and a coupon code, nothing else.
func (s *CheckoutServiceImpl) CreateSession(ctx context.Context, req *d.CheckoutRequest, origin string) (*d.CheckoutResponse, error) {
	if req == nil || len(req.Items) == 0 {
		return nil, invalid("items", "cart is empty")
	}
	if s.gateway == nil {
		return nil, ErrGatewayNotConfigured
	}

	base := s.redirect.resolve(origin)

	lines, err := s.priceItems(ctx, req.Items)
	if err != nil {
		return nil, err
	}

	code := pricing.NormalizeCode(req.Coupon())
	quote := s.shipping.Quote(shippingLines(lines))

	params := gateway.SessionParams{
		LineItems:        make([]gateway.LineItem, 0, len(lines)),
		Currency:         s.currency,
		AllowedCountries: s.countries,
		CollectPhone:     true,
		Shipping:         s.shippingOption(quote, lines),
		SuccessURL:       base + successPath,
		CancelURL:        base + cancelPath,
		Metadata: map[string]string{
			"source":        "web",
			"coupon":        code,
			"shipping_mode": string(quote.Kind),
		},
	}
	for _, l := range lines {
		params.LineItems = append(params.LineItems, gateway.LineItem{
			Name:       l.record.Name,
			Image:      absoluteURL(base, l.record.Image),
			UnitAmount: money.ToMinorUnits(l.record.UnitPrice()),
			Quantity:   int64(l.quantity),
		})
	}
	if s.couponMatches(code) && s.gatewayCouponID != "" {
		params.CouponID = s.gatewayCouponID
	}
	params.IdempotencyKey = idempotencyKey(params)

	session, err := s.gateway.CreateSession(ctx, params)
	if err != nil {
		var rejected *gateway.RejectedError
		if errors.As(err, &rejected) {
			s.log.WarnContext(ctx, "payment gateway rejected checkout session",
				"message", rejected.Message, "status", rejected.StatusCode)
			return nil, err
		}
		return nil, fmt.Errorf("create checkout session: %w", err)
	}

	s.log.InfoContext(ctx, "checkout session created",
		"session_id", session.ID,
		"lines", len(params.LineItems),
		"coupon", code,
		"coupon_attached", params.CouponID != "",
		"shipping_mode", quote.Kind)

	return &d.CheckoutResponse{
		OK:            true,
		ID:            session.ID,
		URL:           session.URL,
		ShippingLabel: quote.Label,
		ShippingCost:  quote.ChargeableShipping(),
	}, nil
}

// Quote prices a cart the same way CreateSession does, without calling the
// gateway. The coupon discount follows the storefront preview formula.
func (s *CheckoutServiceImpl) Quote(ctx context.Context, req *d.CheckoutRequest) (*d.QuoteResponse, error) {
	if req == nil || len(req.Items) == 0 {
		return nil, invalid("items", "cart is empty")
	}

	lines, err := s.priceItems(ctx, req.Items)
	if err != nil {
		return nil, err
	}
	quote := s.shipping.Quote(shippingLines(lines))

	resp := &d.QuoteResponse{
		OK:       true,
		Currency: s.currency,
		Lines:    make([]d.QuoteLine, 0, len(lines)),
		Subtotal: quote.Subtotal,
		Shipping: d.ShippingSummary{
			Kind:                     string(quote.Kind),
			Cost:                     quote.Cost,
			Remaining:                quote.Remaining,
			Label:                    quote.Label,
			QualifiesForFreeShipping: quote.QualifiesForFreeShipping,
			HasCustomShipping:        quote.HasCustomShipping,
		},
	}
	for _, l := range lines {
		sl := l.shippingLine()
		resp.Lines = append(resp.Lines, d.QuoteLine{
			Slug:         l.record.Slug,
			Name:         l.record.Name,
			Image:        l.record.Image,
			UnitPrice:    sl.UnitPrice,
			Quantity:     l.quantity,
			LineTotal:    sl.Total(),
			FreeShipping: l.record.FreeShipping,
			ShippingType: string(sl.ShippingType),
			Adjusted:     float64(l.quantity) != l.requested,
		})
	}

	code := pricing.NormalizeCode(req.Coupon())
	resp.Coupon.Code = code
	if s.couponMatches(code) && s.coupon.Percent.IsPositive() {
		resp.Coupon.Applied = true
		resp.Coupon.Percent = s.coupon.Percent
		resp.Coupon.Discount = pricing.Discount(s.coupon.Percent, quote)
	}
	resp.Total = pricing.Total(quote, resp.Coupon.Discount)
	return resp, nil
}

// priceItems resolves every requested item against the catalog. Duplicate
// slugs are merged before clamping. One unknown slug fails the whole cart.
func (s *CheckoutServiceImpl) priceItems(ctx context.Context, items []d.CheckoutItem) ([]pricedLine, error) {
	if s.catalog == nil {
		return nil, &CatalogUnavailableError{Err: catalog.ErrUnavailable}
	}
	cat, err := s.catalog.Fetch(ctx)
	if err != nil {
		s.log.ErrorContext(ctx, "catalog fetch failed", "error", err)
		return nil, &CatalogUnavailableError{Err: err}
	}

	var order []string
	requested := make(map[string]float64, len(items))
	for i, item := range items {
		slug := strings.TrimSpace(item.Slug)
		if slug == "" {
			return nil, invalid("items", "item %d has no product identifier; remove it and add it again", i+1)
		}
		if _, seen := requested[slug]; !seen {
			order = append(order, slug)
		}
		q := item.Quantity
		if q < 0 {
			q = 0
		}
		requested[slug] += q
	}

	lines := make([]pricedLine, 0, len(order))
	for _, slug := range order {
		rec, ok := cat.Lookup(slug)
		if !ok {
			return nil, invalid("items", "product invalid: %s", slug)
		}
		limit := rec.OrderLimit(s.defaultMaxQty)
		lines = append(lines, pricedLine{
			record:    rec,
			requested: requested[slug],
			quantity:  max(1, pricing.Clamp(requested[slug], pricing.Limit(limit))),
		})
	}
	return lines, nil
}

func (s *CheckoutServiceImpl) couponMatches(code string) bool {
	configured := pricing.NormalizeCode(s.coupon.Code)
	return configured != "" && code == configured
}

// shippingOption turns the shipping quote into the single fixed-amount
// option shown on the payment page. Carts with custom-shipping items get
// none: their shipping is quoted separately.
func (s *CheckoutServiceImpl) shippingOption(q pricing.Quote, lines []pricedLine) *gateway.ShippingOption {
	if q.HasCustomShipping {
		return nil
	}
	opt := &gateway.ShippingOption{
		DisplayName: "Standard shipping",
		Amount:      money.ToMinorUnits(q.ChargeableShipping()),
	}
	if q.Kind == pricing.QuoteFree {
		opt.DisplayName = "Free shipping"
	}
	for _, l := range lines {
		if e := l.record.Estimate; e != nil {
			opt.MinDays = max(opt.MinDays, e.MinBusinessDays)
			opt.MaxDays = max(opt.MaxDays, e.MaxBusinessDays)
		}
	}
	return opt
}

func shippingLines(lines []pricedLine) []pricing.Line {
	out := make([]pricing.Line, 0, len(lines))
	for _, l := range lines {
		out = append(out, l.shippingLine())
	}
	return out
}

// idempotencyKey hashes the full gateway request, so a double submit of the
// same cart maps to one session while a different redirect base, a catalog
// price change or another coupon gets a fresh one.
func idempotencyKey(p gateway.SessionParams) string {
	p.IdempotencyKey = ""
	b, _ := json.Marshal(p)
	sum := sha256.Sum256(b)
	return "checkout-" + hex.EncodeToString(sum[:])
}
