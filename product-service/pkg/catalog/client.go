package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gonzalofreyna/melocoton-move/pkg/circuitbreaker"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// ErrUnavailable wraps every failure to obtain the catalog. It never means
// "product not found".
var ErrUnavailable = errors.New("catalog unavailable")

const maxCatalogSize = 16 << 20

// Source produces catalog snapshots.
type Source interface {
	Fetch(ctx context.Context) (*Catalog, error)
}

// HTTPClient fetches the catalog document over HTTP. A failed attempt is
// retried once before the error is reported.
type HTTPClient struct {
	url        string
	client     *http.Client
	breaker    *circuitbreaker.Breaker[*Catalog]
	retryDelay time.Duration
	log        *slog.Logger
}

type ClientOption func(*HTTPClient)

// WithHTTPClient replaces the default otelhttp-instrumented client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(h *HTTPClient) { h.client = c }
}

func WithRetryDelay(d time.Duration) ClientOption {
	return func(h *HTTPClient) { h.retryDelay = d }
}

func WithLogger(l *slog.Logger) ClientOption {
	return func(h *HTTPClient) { h.log = l }
}

func NewHTTPClient(url string, opts ...ClientOption) *HTTPClient {
	h := &HTTPClient{
		url: url,
		client: &http.Client{
			Timeout:   10 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		retryDelay: 200 * time.Millisecond,
		log:        slog.Default(),
	}
	for _, o := range opts {
		o(h)
	}
	h.breaker = circuitbreaker.New[*Catalog](circuitbreaker.Settings{
		Name:   "catalog",
		Logger: h.log,
	})
	return h
}

func (h *HTTPClient) Fetch(ctx context.Context) (*Catalog, error) {
	c, err := h.breaker.Execute(func() (*Catalog, error) {
		c, err := h.get(ctx)
		if err == nil {
			return c, nil
		}
		h.log.WarnContext(ctx, "catalog fetch failed, retrying", "error", err)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(h.retryDelay):
		}
		return h.get(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	if len(c.Rejected) > 0 {
		for _, r := range c.Rejected {
			h.log.WarnContext(ctx, "catalog record rejected", "index", r.Index, "slug", r.Slug, "reason", r.Reason)
		}
	}
	return c, nil
}

func (h *HTTPClient) get(ctx context.Context) (*Catalog, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Cache-Control", "no-store")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxCatalogSize))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return Parse(body)
}
