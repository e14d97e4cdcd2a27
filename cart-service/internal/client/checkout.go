// Package client talks to the checkout API on behalf of the shopper.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gonzalofreyna/melocoton-move/cart-service/internal/domain"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// CheckoutError is an {ok:false} answer from the checkout API.
type CheckoutError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *CheckoutError) Error() string {
	return fmt.Sprintf("checkout failed (%d): %s", e.StatusCode, e.Message)
}

// Temporary reports whether retrying later may succeed.
func (e *CheckoutError) Temporary() bool {
	return e.StatusCode == http.StatusServiceUnavailable || e.StatusCode == http.StatusGatewayTimeout
}

type QuoteLine struct {
	Slug      string          `json:"slug"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Quantity  int             `json:"quantity"`
	LineTotal decimal.Decimal `json:"lineTotal"`
	Adjusted  bool            `json:"adjusted"`
}

// Quote is the server-side pricing of a cart.
type Quote struct {
	Currency string          `json:"currency"`
	Lines    []QuoteLine     `json:"lines"`
	Subtotal decimal.Decimal `json:"subtotal"`
	Shipping struct {
		Kind  string          `json:"kind"`
		Cost  decimal.Decimal `json:"cost"`
		Label string          `json:"label"`
	} `json:"shipping"`
	Coupon struct {
		Code     string          `json:"code"`
		Applied  bool            `json:"applied"`
		Discount decimal.Decimal `json:"discount"`
	} `json:"coupon"`
	Total decimal.Decimal `json:"total"`
}

type SessionSummary struct {
	ID            string          `json:"id"`
	Status        string          `json:"status"`
	Paid          bool            `json:"paid"`
	Currency      string          `json:"currency"`
	CustomerEmail string          `json:"customerEmail"`
	AmountTotal   decimal.Decimal `json:"amountTotal"`
	Lines         []struct {
		Description string          `json:"description"`
		Quantity    int64           `json:"quantity"`
		AmountTotal decimal.Decimal `json:"amountTotal"`
	} `json:"lines"`
}

type CheckoutClient struct {
	baseURL string
	origin  string
	http    *http.Client
}

type Option func(*CheckoutClient)

func WithHTTPClient(c *http.Client) Option {
	return func(cc *CheckoutClient) { cc.http = c }
}

// WithOrigin sets the Origin header, which picks the redirect domain.
func WithOrigin(origin string) Option {
	return func(cc *CheckoutClient) { cc.origin = origin }
}

func NewCheckoutClient(baseURL string, opts ...Option) *CheckoutClient {
	c := &CheckoutClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout:   30 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// CreateSession submits the cart and returns the hosted payment page.
func (c *CheckoutClient) CreateSession(ctx context.Context, req domain.CheckoutRequest) (domain.CheckoutResponse, error) {
	var resp domain.CheckoutResponse
	err := c.do(ctx, http.MethodPost, "/api/v1/checkout", req, &resp)
	return resp, err
}

func (c *CheckoutClient) Quote(ctx context.Context, req domain.CheckoutRequest) (Quote, error) {
	var q Quote
	err := c.do(ctx, http.MethodPost, "/api/v1/cart/quote", req, &q)
	return q, err
}

func (c *CheckoutClient) Session(ctx context.Context, id string) (SessionSummary, error) {
	var s SessionSummary
	err := c.do(ctx, http.MethodGet, "/api/v1/checkout/sessions/"+url.PathEscape(id), nil, &s)
	return s, err
}

func (c *CheckoutClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.origin != "" {
		req.Header.Set("Origin", c.origin)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &CheckoutError{StatusCode: resp.StatusCode}
		var failure struct {
			Message string `json:"message"`
			Code    string `json:"code"`
		}
		if json.Unmarshal(data, &failure) == nil && failure.Message != "" {
			apiErr.Message, apiErr.Code = failure.Message, failure.Code
		} else {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// IsTemporary reports whether err is a checkout failure worth retrying.
func IsTemporary(err error) bool {
	var ce *CheckoutError
	return errors.As(err, &ce) && ce.Temporary()
}
