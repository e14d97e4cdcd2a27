package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gonzalofreyna/melocoton-move/cart-service/internal/client"
	"github.com/gonzalofreyna/melocoton-move/cart-service/internal/repository"
	"github.com/gonzalofreyna/melocoton-move/cart-service/internal/service"
	"github.com/gonzalofreyna/melocoton-move/pkg/config"
	"github.com/gonzalofreyna/melocoton-move/pkg/logger"
	"github.com/gonzalofreyna/melocoton-move/pkg/pricing"
	"github.com/gonzalofreyna/melocoton-move/pkg/storeconfig"
	"github.com/gonzalofreyna/melocoton-move/product-service/pkg/catalog"
	"github.com/spf13/pflag"
)

// env holds the fallbacks for every flag.
type env struct {
	CartFile   string `env:"CART_FILE"`
	API        string `env:"CHECKOUT_API" envDefault:"http://localhost:8080"`
	CatalogURL string `env:"CATALOG_URL" envDefault:"http://localhost:8081/products.json"`
	ConfigURL  string `env:"STORE_CONFIG_URL"`
	Origin     string `env:"SITE_URL" envDefault:"https://melocotonmove.com"`
	LogLevel   string `env:"LOG_LEVEL" envDefault:"warn"`
}

func main() {
	var e env
	if err := config.ParseEnv(&e); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if e.CartFile == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			dir = "."
		}
		e.CartFile = filepath.Join(dir, "melocoton-move", "cart.json")
	}

	flags := pflag.NewFlagSet("cart", pflag.ContinueOnError)
	cartFile := flags.String("cart-file", e.CartFile, "where the cart is persisted")
	api := flags.String("api", e.API, "checkout API base URL")
	catalogURL := flags.String("catalog-url", e.CatalogURL, "product catalog URL")
	configURL := flags.String("config-url", e.ConfigURL, "store config URL (optional)")
	origin := flags.String("origin", e.Origin, "storefront origin sent with checkout requests")
	coupon := flags.String("coupon", "", "coupon code for show, quote and checkout")
	logLevel := flags.String("log-level", e.LogLevel, "log level")
	flags.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: cart [flags] <command> [args]\n\n%s\nflags:\n", commandHelp)
		flags.PrintDefaults()
	}
	if err := flags.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			os.Exit(0)
		}
		os.Exit(2)
	}

	log := logger.New(logger.Options{Service: "cart", Level: *logLevel, Output: os.Stderr})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rules, rule := loadRules(ctx, *configURL)
	store := service.NewStore(repository.NewFileRepository(*cartFile), rules, log)
	if err := store.Hydrate(ctx); err != nil {
		log.WarnContext(ctx, "cart could not be restored, starting empty", "error", err)
	}

	app := &app{
		store:    store,
		preview:  service.NewCouponPreview(store, rule),
		catalog:  catalog.NewHTTPClient(*catalogURL, catalog.WithLogger(log)),
		checkout: client.NewCheckoutClient(*api, client.WithOrigin(*origin)),
		coupon:   *coupon,
		out:      os.Stdout,
	}
	if err := app.run(ctx, flags.Args()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		if err == errUsage {
			flags.Usage()
			os.Exit(2)
		}
		os.Exit(1)
	}
}

// loadRules reads the shipping constants and coupon from the store config,
// falling back to the defaults when it is unset or unreachable.
func loadRules(ctx context.Context, url string) (pricing.ShippingRules, pricing.CouponRule) {
	if url == "" {
		return pricing.DefaultShippingRules(), pricing.CouponRule{}
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	doc, err := storeconfig.NewLoader(url).Load(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "warning: store config unavailable, using defaults:", err)
		return pricing.DefaultShippingRules(), pricing.CouponRule{}
	}
	return doc.ShippingRules(), doc.CouponRule()
}
