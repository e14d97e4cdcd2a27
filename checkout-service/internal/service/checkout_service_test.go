package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	d "github.com/gonzalofreyna/melocoton-move/checkout-service/domain"
	"github.com/gonzalofreyna/melocoton-move/payment-service/pkg/gateway"
	"github.com/gonzalofreyna/melocoton-move/pkg/logger"
	"github.com/gonzalofreyna/melocoton-move/pkg/pricing"
	"github.com/gonzalofreyna/melocoton-move/product-service/pkg/catalog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const siteURL = "https://melocotonmove.com"

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decPtr(s string) *decimal.Decimal {
	v := dec(s)
	return &v
}

func testCatalog() *catalog.Catalog {
	return catalog.New([]catalog.Record{
		{
			Slug: "botella-acero", Name: "Botella de acero", Image: "/img/botella.jpg",
			FullPrice: dec("300"), DiscountPrice: decPtr("249.5"), FreeShipping: true,
			Stock:    pricing.Limit(5),
			Estimate: &catalog.ShippingEstimate{MinBusinessDays: 2, MaxBusinessDays: 4},
		},
		{
			Slug: "tapete-yoga", Name: "Tapete de yoga", Image: "https://cdn.example.com/tapete.jpg",
			FullPrice: dec("150"),
			Estimate:  &catalog.ShippingEstimate{MinBusinessDays: 1, MaxBusinessDays: 3},
		},
		{
			Slug: "bolso-gym", Name: "Bolso gym", Image: "img/bolso.jpg",
			FullPrice: dec("600"), DiscountPrice: decPtr("0"), FreeShipping: true,
		},
		{
			Slug: "rack-sentadilla", Name: "Rack para sentadilla",
			FullPrice: dec("8999"), FreeShipping: true, MaxQty: pricing.Limit(1), ShippingType: "custom",
		},
	})
}

type fixture struct {
	svc     *CheckoutServiceImpl
	gateway *gateway.Fake
	catalog *MockCatalog
	orders  *MockOrders
	ledger  *MockLedger
	hooks   *MockVerifier
}

func newFixture(t *testing.T, mutate ...func(*Options)) *fixture {
	t.Helper()
	f := &fixture{
		gateway: gateway.NewFake(),
		catalog: &MockCatalog{Catalog: testCatalog()},
		orders:  &MockOrders{},
		ledger:  &MockLedger{},
		hooks:   &MockVerifier{},
	}
	opts := Options{
		Catalog:         f.catalog,
		Gateway:         f.gateway,
		Webhooks:        f.hooks,
		Orders:          f.orders,
		Ledger:          f.ledger,
		Shipping:        pricing.DefaultShippingRules(),
		Coupon:          pricing.CouponRule{Code: "MOVE10", Percent: dec("10")},
		GatewayCouponID: "coupon_move10",
		SiteURL:         siteURL + "/",
		AllowedOrigins:  []string{"https://melocotonmove.com", "https://www.melocotonmove.com"},
		Logger:          logger.Discard(),
	}
	for _, m := range mutate {
		m(&opts)
	}
	f.svc = NewCheckoutService(opts)
	return f
}

func cart(items ...any) *d.CheckoutRequest {
	req := &d.CheckoutRequest{}
	for i := 0; i+1 < len(items); i += 2 {
		req.Items = append(req.Items, d.CheckoutItem{Slug: items[i].(string), Quantity: items[i+1].(float64)})
	}
	return req
}

func (f *fixture) lastCall(t *testing.T) gateway.SessionParams {
	t.Helper()
	calls := f.gateway.Calls()
	require.NotEmpty(t, calls)
	return calls[len(calls)-1]
}

func TestCreateSession_BuildsLinesFromCatalog(t *testing.T) {
	f := newFixture(t)
	req := cart("botella-acero", 2.0, "tapete-yoga", 1.0)
	req.Items[0].Slug = " botella-acero "

	resp, err := f.svc.CreateSession(context.Background(), req, "")
	require.NoError(t, err)
	assert.True(t, resp.OK)
	assert.Equal(t, "cs_test_0001", resp.ID)
	assert.Equal(t, "https://pay.fake.local/c/cs_test_0001", resp.URL)

	p := f.lastCall(t)
	require.Len(t, p.LineItems, 2)
	assert.Equal(t, gateway.LineItem{
		Name: "Botella de acero", Image: siteURL + "/img/botella.jpg", UnitAmount: 24950, Quantity: 2,
	}, p.LineItems[0])
	assert.Equal(t, gateway.LineItem{
		Name: "Tapete de yoga", Image: "https://cdn.example.com/tapete.jpg", UnitAmount: 15000, Quantity: 1,
	}, p.LineItems[1])

	assert.Equal(t, "mxn", p.Currency)
	assert.Equal(t, []string{"MX"}, p.AllowedCountries)
	assert.True(t, p.CollectPhone)
	assert.Equal(t, siteURL+"/success?session_id={CHECKOUT_SESSION_ID}", p.SuccessURL)
	assert.Equal(t, siteURL+"/cart", p.CancelURL)
	assert.Equal(t, "web", p.Metadata["source"])
	assert.Equal(t, "flat", p.Metadata["shipping_mode"])

	require.NotNil(t, p.Shipping)
	assert.Equal(t, int64(14900), p.Shipping.Amount)
	assert.Equal(t, "Standard shipping", p.Shipping.DisplayName)
	assert.Equal(t, 2, p.Shipping.MinDays)
	assert.Equal(t, 4, p.Shipping.MaxDays)
}

func TestCreateSession_QuantityClamp(t *testing.T) {
	tests := []struct {
		name string
		slug string
		qty  float64
		want int64
	}{
		{"stock ceiling", "botella-acero", 9, 5},
		{"max qty beats stock", "rack-sentadilla", 5, 1},
		{"default ceiling", "bolso-gym", 50, DefaultMaxQty},
		{"zero floors to one", "tapete-yoga", 0, 1},
		{"negative floors to one", "tapete-yoga", -4, 1},
		{"fraction floors", "tapete-yoga", 2.7, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.svc.CreateSession(context.Background(), cart(tt.slug, tt.qty), "")
			require.NoError(t, err)
			assert.Equal(t, tt.want, f.lastCall(t).LineItems[0].Quantity)
		})
	}
}

func TestCreateSession_DiscountPriceZeroIgnored(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.CreateSession(context.Background(), cart("bolso-gym", 1.0), "")
	require.NoError(t, err)

	p := f.lastCall(t)
	assert.Equal(t, int64(60000), p.LineItems[0].UnitAmount)
	assert.Equal(t, siteURL+"/img/bolso.jpg", p.LineItems[0].Image)
	require.NotNil(t, p.Shipping)
	assert.Equal(t, "Free shipping", p.Shipping.DisplayName)
	assert.Equal(t, int64(0), p.Shipping.Amount)
}

func TestCreateSession_MergesDuplicateSlugs(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.CreateSession(context.Background(), cart("botella-acero", 3.0, "botella-acero", 4.0), "")
	require.NoError(t, err)

	p := f.lastCall(t)
	require.Len(t, p.LineItems, 1)
	assert.Equal(t, int64(5), p.LineItems[0].Quantity)
}

func TestCreateSession_CustomShippingHasNoOption(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.CreateSession(context.Background(), cart("rack-sentadilla", 1.0, "tapete-yoga", 1.0), "")
	require.NoError(t, err)

	p := f.lastCall(t)
	assert.Nil(t, p.Shipping)
	assert.Equal(t, "custom", p.Metadata["shipping_mode"])
}

func TestCreateSession_EmptyCart(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.CreateSession(context.Background(), &d.CheckoutRequest{}, "")

	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "items", ve.Field)
	assert.Empty(t, f.gateway.Calls())
}

func TestCreateSession_GatewayNotConfigured(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.Gateway = nil })

	_, err := f.svc.CreateSession(context.Background(), cart("tapete-yoga", 1.0), "")
	assert.ErrorIs(t, err, ErrGatewayNotConfigured)
	assert.Equal(t, 0, f.catalog.Calls)
}

func TestCreateSession_UnknownSlug(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.CreateSession(context.Background(), cart("tapete-yoga", 1.0, "nope", 1.0), "")

	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Message, "nope")
	assert.Empty(t, f.gateway.Calls())
}

func TestCreateSession_MissingSlug(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.CreateSession(context.Background(), cart("", 1.0), "")

	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Message, "remove it and add it again")
}

func TestCreateSession_CatalogUnavailable(t *testing.T) {
	f := newFixture(t)
	f.catalog.Err = fmt.Errorf("%w: %w", catalog.ErrUnavailable, errors.New("connection refused"))

	_, err := f.svc.CreateSession(context.Background(), cart("tapete-yoga", 1.0), "")

	var ce *CatalogUnavailableError
	require.ErrorAs(t, err, &ce)
	assert.ErrorIs(t, err, catalog.ErrUnavailable)
	var ve *ValidationError
	assert.False(t, errors.As(err, &ve), "catalog failures are not unknown products")
}

func TestCreateSession_RedirectBase(t *testing.T) {
	tests := []struct {
		origin string
		want   string
	}{
		{"https://www.melocotonmove.com", "https://www.melocotonmove.com"},
		{"https://WWW.melocotonmove.com/", "https://www.melocotonmove.com"},
		{"https://evil.example.com", siteURL},
		{"https://www.melocotonmove.com.evil.example", siteURL},
		{"https://www.melocotonmove.com/path", siteURL},
		{"null", siteURL},
		{"", siteURL},
	}

	for _, tt := range tests {
		t.Run(tt.origin, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.svc.CreateSession(context.Background(), cart("tapete-yoga", 1.0), tt.origin)
			require.NoError(t, err)
			assert.Equal(t, tt.want+"/cart", f.lastCall(t).CancelURL)
		})
	}
}

func TestCreateSession_Coupon(t *testing.T) {
	t.Run("matching code attaches gateway coupon", func(t *testing.T) {
		f := newFixture(t)
		req := cart("tapete-yoga", 1.0)
		req.CouponCode = " move10 "
		_, err := f.svc.CreateSession(context.Background(), req, "")
		require.NoError(t, err)

		p := f.lastCall(t)
		assert.Equal(t, "coupon_move10", p.CouponID)
		assert.False(t, p.AllowPromotionCodes())
		assert.Equal(t, "MOVE10", p.Metadata["coupon"])
	})

	t.Run("legacy field name", func(t *testing.T) {
		f := newFixture(t)
		req := cart("tapete-yoga", 1.0)
		req.LegacyCoupon = "MOVE10"
		_, err := f.svc.CreateSession(context.Background(), req, "")
		require.NoError(t, err)
		assert.Equal(t, "coupon_move10", f.lastCall(t).CouponID)
	})

	t.Run("wrong code allows promotion codes", func(t *testing.T) {
		f := newFixture(t)
		req := cart("tapete-yoga", 1.0)
		req.CouponCode = "MOVE20"
		_, err := f.svc.CreateSession(context.Background(), req, "")
		require.NoError(t, err)

		p := f.lastCall(t)
		assert.Empty(t, p.CouponID)
		assert.True(t, p.AllowPromotionCodes())
	})

	t.Run("no gateway coupon configured", func(t *testing.T) {
		f := newFixture(t, func(o *Options) { o.GatewayCouponID = "" })
		req := cart("tapete-yoga", 1.0)
		req.CouponCode = "MOVE10"
		_, err := f.svc.CreateSession(context.Background(), req, "")
		require.NoError(t, err)
		assert.True(t, f.lastCall(t).AllowPromotionCodes())
	})
}

func TestCreateSession_IdempotentOnDoubleSubmit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.CreateSession(ctx, cart("botella-acero", 2.0), "")
	require.NoError(t, err)
	// 2.4 clamps to the same effective quantity
	second, err := f.svc.CreateSession(ctx, cart("botella-acero", 2.4), "")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, f.gateway.SessionCount())

	calls := f.gateway.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, calls[0].IdempotencyKey, calls[1].IdempotencyKey)

	withCoupon := cart("botella-acero", 2.0)
	withCoupon.CouponCode = "MOVE10"
	third, err := f.svc.CreateSession(ctx, withCoupon, "")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, third.ID)
}

func TestCreateSession_KeyFollowsGatewayRequest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	www, err := f.svc.CreateSession(ctx, cart("tapete-yoga", 1.0), "https://www.melocotonmove.com")
	require.NoError(t, err)
	apex, err := f.svc.CreateSession(ctx, cart("tapete-yoga", 1.0), "https://melocotonmove.com")
	require.NoError(t, err)

	f.catalog.Catalog = catalog.New([]catalog.Record{
		{Slug: "tapete-yoga", Name: "Tapete de yoga", FullPrice: dec("99")},
	})
	cheaper, err := f.svc.CreateSession(ctx, cart("tapete-yoga", 1.0), "https://melocotonmove.com")
	require.NoError(t, err)

	calls := f.gateway.Calls()
	require.Len(t, calls, 3)
	assert.NotEqual(t, calls[0].IdempotencyKey, calls[1].IdempotencyKey)
	assert.NotEqual(t, calls[1].IdempotencyKey, calls[2].IdempotencyKey)
	assert.Equal(t, int64(9900), calls[2].LineItems[0].UnitAmount)

	assert.Equal(t, 3, f.gateway.SessionCount())
	assert.NotEqual(t, www.ID, apex.ID)
	assert.NotEqual(t, apex.ID, cheaper.ID)
}

func TestCreateSession_EchoesShippingQuote(t *testing.T) {
	f := newFixture(t)

	resp, err := f.svc.CreateSession(context.Background(), cart("tapete-yoga", 1.0), "")
	require.NoError(t, err)
	assert.Equal(t, "Add $349 more to get free shipping", resp.ShippingLabel)
	assert.True(t, resp.ShippingCost.Equal(dec("149")))

	resp, err = f.svc.CreateSession(context.Background(), cart("rack-sentadilla", 1.0), "")
	require.NoError(t, err)
	assert.NotEmpty(t, resp.ShippingLabel)
	assert.True(t, resp.ShippingCost.IsZero())
}

func TestCreateSession_GatewayRejection(t *testing.T) {
	f := newFixture(t)
	f.gateway.FailWith("Invalid URL: image must be absolute")

	resp, err := f.svc.CreateSession(context.Background(), cart("tapete-yoga", 1.0), "")
	assert.Nil(t, resp)

	var rejected *gateway.RejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, "Invalid URL: image must be absolute", rejected.Message)
}

func TestQuote(t *testing.T) {
	f := newFixture(t)
	req := cart("botella-acero", 2.0, "tapete-yoga", 1.0)
	req.CouponCode = "move10"

	q, err := f.svc.Quote(context.Background(), req)
	require.NoError(t, err)

	assert.True(t, q.OK)
	require.Len(t, q.Lines, 2)
	assert.True(t, q.Lines[0].LineTotal.Equal(dec("499")))
	assert.True(t, q.Subtotal.Equal(dec("649")))
	assert.Equal(t, "flat", q.Shipping.Kind)
	assert.True(t, q.Shipping.Cost.Equal(dec("149")))

	assert.True(t, q.Coupon.Applied)
	assert.Equal(t, "MOVE10", q.Coupon.Code)
	assert.True(t, q.Coupon.Discount.Equal(dec("79.8")), "discount %s", q.Coupon.Discount)
	assert.True(t, q.Total.Equal(dec("718.2")), "total %s", q.Total)
	assert.Empty(t, f.gateway.Calls(), "quote never calls the gateway")
}

func TestQuote_BelowThresholdAndAdjusted(t *testing.T) {
	f := newFixture(t)

	q, err := f.svc.Quote(context.Background(), cart("tapete-yoga", 1.5, "rack-sentadilla", 3.0))
	require.NoError(t, err)

	assert.True(t, q.Lines[0].Adjusted)
	assert.Equal(t, 1, q.Lines[1].Quantity)
	assert.Equal(t, "custom", q.Shipping.Kind)
	assert.False(t, q.Coupon.Applied)
	assert.True(t, q.Total.Equal(dec("9149")), "custom carts exclude shipping: %s", q.Total)
}

func TestQuote_WorksWithoutGateway(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.Gateway = nil })

	q, err := f.svc.Quote(context.Background(), cart("tapete-yoga", 1.0))
	require.NoError(t, err)
	assert.Equal(t, "below_threshold", q.Shipping.Kind)
	assert.Equal(t, "Add $349 more to get free shipping", q.Shipping.Label)
	assert.True(t, q.Total.Equal(dec("299")))
}
