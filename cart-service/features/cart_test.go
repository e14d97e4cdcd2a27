package features

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/cucumber/godog"
	"github.com/gonzalofreyna/melocoton-move/cart-service/internal/domain"
	"github.com/gonzalofreyna/melocoton-move/cart-service/internal/repository"
	"github.com/gonzalofreyna/melocoton-move/cart-service/internal/service"
	"github.com/gonzalofreyna/melocoton-move/pkg/logger"
	"github.com/gonzalofreyna/melocoton-move/pkg/pricing"
	"github.com/shopspring/decimal"
)

type cartTestContext struct {
	dir      string
	repo     *repository.FileRepository
	rules    pricing.ShippingRules
	coupon   pricing.CouponRule
	store    *service.Store
	preview  *service.CouponPreview
	products map[string]domain.LineItem
	results  []bool
}

func (c *cartTestContext) reset() error {
	if c.dir != "" {
		_ = os.RemoveAll(c.dir)
	}
	dir, err := os.MkdirTemp("", "cart-feature-*")
	if err != nil {
		return err
	}
	c.dir = dir
	c.repo = repository.NewFileRepository(filepath.Join(dir, "cart.json"))
	c.rules = pricing.DefaultShippingRules()
	c.coupon = pricing.CouponRule{}
	c.products = map[string]domain.LineItem{}
	c.results = nil
	c.store = nil
	c.preview = nil
	return nil
}

// cart builds the store lazily so Background steps can set the rules first.
func (c *cartTestContext) cart() *service.Store {
	if c.store == nil {
		c.store = service.NewStore(c.repo, c.rules, logger.Discard())
		c.preview = service.NewCouponPreview(c.store, c.coupon)
	}
	return c.store
}

func (c *cartTestContext) freeShippingStartsAtWithAFixedFeeOf(min, fee int) error {
	c.rules = pricing.ShippingRules{
		FreeShippingMinTotal: decimal.NewFromInt(int64(min)),
		FixedFee:             decimal.NewFromInt(int64(fee)),
	}
	return nil
}

func (c *cartTestContext) theCouponTakesPercentOff(code string, percent int) error {
	c.coupon = pricing.CouponRule{Code: code, Percent: decimal.NewFromInt(int64(percent))}
	return nil
}

func (c *cartTestContext) define(slug, price string, stock *int, free bool, shipping pricing.ShippingType) error {
	p, err := decimal.NewFromString(price)
	if err != nil {
		return err
	}
	c.products[slug] = domain.LineItem{
		Slug:         slug,
		Name:         slug,
		Price:        p,
		MaxStock:     stock,
		FreeShipping: free,
		ShippingType: shipping,
	}
	return nil
}

func (c *cartTestContext) aProductPricedWithStock(slug, price string, stock int) error {
	return c.define(slug, price, pricing.Limit(stock), false, pricing.ShippingStandard)
}

func (c *cartTestContext) aProductPricedWithoutStockLimit(slug, price string) error {
	return c.define(slug, price, nil, false, pricing.ShippingStandard)
}

func (c *cartTestContext) aFreeShippingProductPricedWithoutStockLimit(slug, price string) error {
	return c.define(slug, price, nil, true, pricing.ShippingStandard)
}

func (c *cartTestContext) aCustomShippingProductPricedWithoutStockLimit(slug, price string) error {
	return c.define(slug, price, nil, false, pricing.ShippingCustom)
}

func (c *cartTestContext) iAddToTheCartTimes(slug string, times int) error {
	p, ok := c.products[slug]
	if !ok {
		return fmt.Errorf("unknown product %q", slug)
	}
	for range times {
		c.results = append(c.results, c.cart().Add(context.Background(), p))
	}
	return nil
}

func (c *cartTestContext) iApplyTheCoupon(code string) error {
	c.cart()
	c.preview.Apply(code)
	return nil
}

func (c *cartTestContext) iVisit(url string) error {
	c.cart().Navigate(context.Background(), url)
	return nil
}

func (c *cartTestContext) theStockInTheSavedCartDropsTo(slug string, stock int) error {
	ctx := context.Background()
	records, err := c.repo.Load(ctx)
	if err != nil {
		return err
	}
	for i := range records {
		if records[i].Slug == slug {
			v := float64(stock)
			records[i].MaxStock = &v
		}
	}
	return c.repo.Save(ctx, records)
}

func (c *cartTestContext) theCartIsLoadedAgain() error {
	c.store = nil
	return c.cart().Hydrate(context.Background())
}

func (c *cartTestContext) theCartHasOf(qty int, slug string) error {
	it, ok := c.cart().Item(slug)
	if !ok {
		return fmt.Errorf("%q is not in the cart", slug)
	}
	if it.Quantity != qty {
		return fmt.Errorf("expected quantity %d, got %d", qty, it.Quantity)
	}
	return nil
}

func (c *cartTestContext) theLastAddsLeftTheCartUnchanged(n int) error {
	if len(c.results) < n {
		return fmt.Errorf("only %d adds recorded", len(c.results))
	}
	for _, changed := range c.results[len(c.results)-n:] {
		if changed {
			return fmt.Errorf("expected no-op adds, got %v", c.results)
		}
	}
	return nil
}

func (c *cartTestContext) theCartIsEmpty() error {
	if items := c.cart().Items(); len(items) != 0 {
		return fmt.Errorf("expected empty cart, got %d items", len(items))
	}
	return nil
}

func (c *cartTestContext) theCartPanelIs(state string) error {
	want := state == "open"
	if c.cart().IsOpen() != want {
		return fmt.Errorf("expected panel %s", state)
	}
	return nil
}

func (c *cartTestContext) theShippingCostIs(cost string) error {
	want, err := decimal.NewFromString(cost)
	if err != nil {
		return err
	}
	got := c.cart().Summary().Shipping.Cost
	if !got.Equal(want) {
		return fmt.Errorf("expected shipping %s, got %s", want, got)
	}
	return nil
}

func (c *cartTestContext) theShippingLabelIsEmpty() error {
	return c.theShippingLabelIs("")
}

func (c *cartTestContext) theShippingLabelIs(label string) error {
	if got := c.cart().Summary().Shipping.Label; got != label {
		return fmt.Errorf("expected label %q, got %q", label, got)
	}
	return nil
}

func (c *cartTestContext) theOrderQualifies(not string) error {
	want := not == ""
	if got := c.cart().Summary().Shipping.QualifiesForFreeShipping; got != want {
		return fmt.Errorf("expected qualifies=%v", want)
	}
	return nil
}

func (c *cartTestContext) noCouponIsApplied() error {
	c.cart()
	if code := c.preview.AppliedCode(); code != "" {
		return fmt.Errorf("expected no coupon, got %q", code)
	}
	return nil
}

func (c *cartTestContext) theDiscountIs(amount string) error {
	c.cart()
	want, err := decimal.NewFromString(amount)
	if err != nil {
		return err
	}
	if got := c.preview.Discount(); !got.Equal(want) {
		return fmt.Errorf("expected discount %s, got %s", want, got)
	}
	return nil
}

func (c *cartTestContext) theDisplayedTotalIs(amount string) error {
	c.cart()
	want, err := decimal.NewFromString(amount)
	if err != nil {
		return err
	}
	if got := c.preview.DisplayedTotal(); !got.Equal(want) {
		return fmt.Errorf("expected total %s, got %s", want, got)
	}
	return nil
}

func InitializeScenario(ctx *godog.ScenarioContext) {
	tc := &cartTestContext{}

	ctx.Before(func(ctx context.Context, sc *godog.Scenario) (context.Context, error) {
		return ctx, tc.reset()
	})
	ctx.After(func(ctx context.Context, sc *godog.Scenario, err error) (context.Context, error) {
		_ = os.RemoveAll(tc.dir)
		return ctx, nil
	})

	// Given steps
	ctx.Step(`^free shipping starts at (\d+) with a fixed fee of (\d+)$`, tc.freeShippingStartsAtWithAFixedFeeOf)
	ctx.Step(`^the coupon "([^"]*)" takes (\d+) percent off$`, tc.theCouponTakesPercentOff)
	ctx.Step(`^a product "([^"]*)" priced ([\d.]+) with stock (\d+)$`, tc.aProductPricedWithStock)
	ctx.Step(`^a product "([^"]*)" priced ([\d.]+) without stock limit$`, tc.aProductPricedWithoutStockLimit)
	ctx.Step(`^a free shipping product "([^"]*)" priced ([\d.]+) without stock limit$`, tc.aFreeShippingProductPricedWithoutStockLimit)
	ctx.Step(`^a custom shipping product "([^"]*)" priced ([\d.]+) without stock limit$`, tc.aCustomShippingProductPricedWithoutStockLimit)

	// When steps
	ctx.Step(`^I add "([^"]*)" to the cart (\d+) times$`, tc.iAddToTheCartTimes)
	ctx.Step(`^I apply the coupon "([^"]*)"$`, tc.iApplyTheCoupon)
	ctx.Step(`^I visit "([^"]*)"$`, tc.iVisit)
	ctx.Step(`^the stock of "([^"]*)" in the saved cart drops to (\d+)$`, tc.theStockInTheSavedCartDropsTo)
	ctx.Step(`^the cart is loaded again$`, tc.theCartIsLoadedAgain)

	// Then steps
	ctx.Step(`^the cart has (\d+) of "([^"]*)"$`, tc.theCartHasOf)
	ctx.Step(`^the last (\d+) adds left the cart unchanged$`, tc.theLastAddsLeftTheCartUnchanged)
	ctx.Step(`^the cart is empty$`, tc.theCartIsEmpty)
	ctx.Step(`^the cart panel is (open|closed)$`, tc.theCartPanelIs)
	ctx.Step(`^the shipping cost is ([\d.]+)$`, tc.theShippingCostIs)
	ctx.Step(`^the shipping label is empty$`, tc.theShippingLabelIsEmpty)
	ctx.Step(`^the shipping label is "([^"]*)"$`, tc.theShippingLabelIs)
	ctx.Step(`^the order (does not )?qualif(?:y|ies) for free shipping$`, tc.theOrderQualifies)
	ctx.Step(`^no coupon is applied$`, tc.noCouponIsApplied)
	ctx.Step(`^the discount is ([\d.]+)$`, tc.theDiscountIs)
	ctx.Step(`^the displayed total is ([\d.]+)$`, tc.theDisplayedTotalIs)
}

func TestFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: InitializeScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"cart.feature"},
			TestingT: t,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}
