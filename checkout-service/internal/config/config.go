// Package config holds the checkout-service settings read from the
// environment.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/gonzalofreyna/melocoton-move/pkg/config"
	"github.com/gonzalofreyna/melocoton-move/pkg/pricing"
	"github.com/shopspring/decimal"
)

const (
	GatewayStripe = "stripe"
	GatewayFake   = "fake"
)

type Config struct {
	HTTPPort           string        `env:"HTTP_PORT" envDefault:"8080"`
	GRPCPort           string        `env:"GRPC_PORT" envDefault:"50056"`
	AppEnv             string        `env:"APP_ENV" envDefault:"development"`
	LogLevel           string        `env:"LOG_LEVEL" envDefault:"info"`
	RequestTimeout     time.Duration `env:"REQUEST_TIMEOUT" envDefault:"30s"`
	ShutdownTimeout    time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	MaxRequestBodySize int64         `env:"MAX_REQUEST_BODY_SIZE" envDefault:"1048576"`
	OtelEndpoint       string        `env:"OTEL_ENDPOINT"`

	CatalogURL string        `env:"CATALOG_URL" envDefault:"http://localhost:8081/products.json"`
	CatalogTTL time.Duration `env:"CATALOG_TTL" envDefault:"60s"`

	SiteURL        string   `env:"SITE_URL" envDefault:"https://melocotonmove.com"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"https://melocotonmove.com,https://www.melocotonmove.com"`

	PaymentGateway      string `env:"PAYMENT_GATEWAY" envDefault:"stripe"`
	StripeSecretKey     string `env:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret string `env:"STRIPE_WEBHOOK_SECRET"`
	StripeCouponID      string `env:"STRIPE_COUPON_ID"`

	CouponCode           string          `env:"COUPON_CODE"`
	CouponPercent        decimal.Decimal `env:"COUPON_PERCENT" envDefault:"0"`
	FreeShippingMinTotal decimal.Decimal `env:"FREE_SHIPPING_MIN_TOTAL" envDefault:"499"`
	FixedShippingFee     decimal.Decimal `env:"FIXED_SHIPPING_FEE" envDefault:"149"`
	DefaultMaxQty        int             `env:"DEFAULT_MAX_QTY" envDefault:"10"`
	Currency             string          `env:"CURRENCY" envDefault:"mxn"`
	ShippingCountries    []string        `env:"SHIPPING_COUNTRIES" envSeparator:"," envDefault:"MX"`

	DatabaseURL    string   `env:"DATABASE_URL"`
	MigrationsPath string   `env:"MIGRATIONS_PATH" envDefault:"./checkout-service/internal/repository/migrations"`
	RedisAddr      string   `env:"REDIS_ADDR"`
	KafkaBrokers   []string `env:"KAFKA_BROKERS" envSeparator:","`
}

// Load reads and validates the configuration.
func Load() (*Config, error) {
	var cfg Config
	if err := config.ParseEnv(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the service cannot run with. A missing Stripe
// key is not an error here: checkout requests report it instead.
func (c *Config) Validate() error {
	var errs []error
	if c.PaymentGateway != GatewayStripe && c.PaymentGateway != GatewayFake {
		errs = append(errs, fmt.Errorf("PAYMENT_GATEWAY must be %q or %q, got %q", GatewayStripe, GatewayFake, c.PaymentGateway))
	}
	if c.DefaultMaxQty < 1 {
		errs = append(errs, errors.New("DEFAULT_MAX_QTY must be at least 1"))
	}
	if c.CouponPercent.IsNegative() || c.CouponPercent.GreaterThan(decimal.NewFromInt(100)) {
		errs = append(errs, errors.New("COUPON_PERCENT must be between 0 and 100"))
	}
	if c.FreeShippingMinTotal.IsNegative() || c.FixedShippingFee.IsNegative() {
		errs = append(errs, errors.New("shipping amounts must not be negative"))
	}
	if c.SiteURL == "" {
		errs = append(errs, errors.New("SITE_URL is required"))
	}
	return errors.Join(errs...)
}

func (c *Config) ShippingRules() pricing.ShippingRules {
	return pricing.ShippingRules{
		FreeShippingMinTotal: c.FreeShippingMinTotal,
		FixedFee:             c.FixedShippingFee,
	}
}

func (c *Config) CouponRule() pricing.CouponRule {
	return pricing.CouponRule{Code: c.CouponCode, Percent: c.CouponPercent}
}
