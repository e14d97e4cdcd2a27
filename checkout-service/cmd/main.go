package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gonzalofreyna/melocoton-move/checkout-service/internal/cache"
	"github.com/gonzalofreyna/melocoton-move/checkout-service/internal/config"
	checkoutgrpc "github.com/gonzalofreyna/melocoton-move/checkout-service/internal/grpc"
	checkouthttp "github.com/gonzalofreyna/melocoton-move/checkout-service/internal/http"
	"github.com/gonzalofreyna/melocoton-move/checkout-service/internal/publisher"
	"github.com/gonzalofreyna/melocoton-move/checkout-service/internal/repository"
	"github.com/gonzalofreyna/melocoton-move/checkout-service/internal/service"
	"github.com/gonzalofreyna/melocoton-move/payment-service/pkg/gateway"
	"github.com/gonzalofreyna/melocoton-move/pkg/logger"
	"github.com/gonzalofreyna/melocoton-move/pkg/tracing"
	"github.com/gonzalofreyna/melocoton-move/product-service/pkg/catalog"
	"github.com/redis/go-redis/v9"
	"github.com/stripe/stripe-go/v79"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const serviceName = "checkout-service"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New(logger.Options{Service: serviceName}).Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New(logger.Options{Service: serviceName, Env: cfg.AppEnv, Level: cfg.LogLevel})

	if err := run(cfg, log); err != nil {
		log.Error("checkout-service stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Setup(ctx, serviceName, cfg.OtelEndpoint)
	if err != nil {
		return fmt.Errorf("set up tracing: %w", err)
	}
	defer shutdownTracing(context.Background())

	catalogClient := catalog.NewHTTPClient(cfg.CatalogURL, catalog.WithLogger(log))
	catalogCache := catalog.NewCache(catalogClient, cfg.CatalogTTL)

	opts := service.Options{
		Catalog:           catalogCache,
		Shipping:          cfg.ShippingRules(),
		Coupon:            cfg.CouponRule(),
		GatewayCouponID:   cfg.StripeCouponID,
		DefaultMaxQty:     cfg.DefaultMaxQty,
		Currency:          cfg.Currency,
		ShippingCountries: cfg.ShippingCountries,
		SiteURL:           cfg.SiteURL,
		AllowedOrigins:    cfg.AllowedOrigins,
		Logger:            log,
	}

	switch cfg.PaymentGateway {
	case config.GatewayFake:
		log.Warn("using in-memory payment gateway")
		opts.Gateway = gateway.NewFake()
	case config.GatewayStripe:
		if cfg.StripeSecretKey == "" {
			log.Warn("STRIPE_SECRET_KEY is not set, checkout is disabled")
			break
		}
		backends := stripe.NewBackends(&http.Client{
			Timeout:   80 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		})
		sc := gateway.NewStripe(cfg.StripeSecretKey, cfg.StripeWebhookSecret, backends)
		opts.Gateway = sc
		if cfg.StripeWebhookSecret != "" {
			opts.Webhooks = sc
		}
	}

	grpcServer := checkoutgrpc.NewServer(log)
	grpcServer.AddProbe("catalog", func(ctx context.Context) error {
		_, err := catalogCache.Fetch(ctx)
		return err
	})

	if cfg.DatabaseURL != "" {
		creds := &repository.Credentials{URL: cfg.DatabaseURL, MigrationsDirPath: cfg.MigrationsPath}
		repo, err := repository.NewRepository(creds)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		defer repo.Close()

		if err := repo.RunMigrations(creds); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
		log.Info("database migrations completed")
		opts.Orders = repo

		if len(cfg.KafkaBrokers) > 0 {
			poller := publisher.NewOutboxPoller(repo, log, cfg.KafkaBrokers...)
			defer poller.Close()
			go poller.Run(ctx)
			log.Info("outbox poller started", "topic", publisher.Topic)
		}
	} else {
		log.Warn("DATABASE_URL is not set, orders are not recorded")
	}

	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		opts.Ledger = cache.NewRedisLedger(rdb)
		grpcServer.AddProbe("redis", func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		})
	}

	svc := service.NewCheckoutService(opts)
	handler := checkouthttp.NewCheckoutHandler(svc, cfg.RequestTimeout, cfg.MaxRequestBodySize, log)

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(checkouthttp.RequestIDMiddleware)
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(middleware.Compress(5))
	r.Use(checkouthttp.CORS(cfg.AllowedOrigins))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	handler.Routes(r)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      otelhttp.NewHandler(r, serviceName),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		return fmt.Errorf("listen grpc: %w", err)
	}
	go grpcServer.Watch(ctx, 30*time.Second)

	errCh := make(chan error, 2)
	go func() {
		log.Info("grpc health server listening", "port", cfg.GRPCPort)
		if err := grpcServer.Serve(lis); err != nil {
			errCh <- fmt.Errorf("grpc server: %w", err)
		}
	}()
	go func() {
		log.Info("checkout-service listening", "port", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	grpcServer.GracefulStop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	log.Info("server exited")
	return nil
}
