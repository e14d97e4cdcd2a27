package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	d "github.com/gonzalofreyna/melocoton-move/checkout-service/domain"
	"github.com/gonzalofreyna/melocoton-move/checkout-service/internal/service"
	"github.com/gonzalofreyna/melocoton-move/payment-service/pkg/gateway"
	"github.com/gonzalofreyna/melocoton-move/pkg/logger"
	"github.com/gonzalofreyna/melocoton-move/pkg/pricing"
	"github.com/gonzalofreyna/melocoton-move/product-service/pkg/catalog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type MockService struct {
	resp       *d.CheckoutResponse
	quote      *d.QuoteResponse
	session    *d.SessionSummary
	err        error
	gotReq     *d.CheckoutRequest
	gotOrigin  string
	gotPayload []byte
	gotSig     string
}

func (m *MockService) CreateSession(_ context.Context, req *d.CheckoutRequest, origin string) (*d.CheckoutResponse, error) {
	m.gotReq, m.gotOrigin = req, origin
	return m.resp, m.err
}

func (m *MockService) Quote(_ context.Context, req *d.CheckoutRequest) (*d.QuoteResponse, error) {
	m.gotReq = req
	return m.quote, m.err
}

func (m *MockService) GetSession(context.Context, string) (*d.SessionSummary, error) {
	return m.session, m.err
}

func (m *MockService) HandleWebhook(_ context.Context, payload []byte, sig string) error {
	m.gotPayload, m.gotSig = payload, sig
	return m.err
}

func newRouter(svc service.CheckoutService) http.Handler {
	h := NewCheckoutHandler(svc, 5*time.Second, 1<<20, logger.Discard())
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(RequestIDMiddleware)
	h.Routes(r)
	return r
}

func post(t *testing.T, h http.Handler, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestCreateSession_Success(t *testing.T) {
	svc := &MockService{resp: &d.CheckoutResponse{
		OK: true, ID: "cs_1", URL: "https://pay/cs_1",
		ShippingLabel: "Add $349 more to get free shipping", ShippingCost: decimal.NewFromInt(149),
	}}

	rec := post(t, newRouter(svc), "/api/v1/checkout",
		`{"items":[{"slug":"tapete-yoga","quantity":2}],"couponCode":"move10"}`,
		map[string]string{"Origin": "https://www.melocotonmove.com"})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.JSONEq(t, `{"ok":true,"id":"cs_1","url":"https://pay/cs_1","shippingLabel":"Add $349 more to get free shipping","shippingCost":"149"}`, rec.Body.String())

	require.NotNil(t, svc.gotReq)
	assert.Equal(t, "tapete-yoga", svc.gotReq.Items[0].Slug)
	assert.Equal(t, 2.0, svc.gotReq.Items[0].Quantity)
	assert.Equal(t, "move10", svc.gotReq.Coupon())
	assert.Equal(t, "https://www.melocotonmove.com", svc.gotOrigin)
}

func TestCreateSession_InvalidJSON(t *testing.T) {
	svc := &MockService{}
	rec := post(t, newRouter(svc), "/api/v1/checkout", `{"items":`, nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeError(t, rec)
	assert.False(t, resp.OK)
	assert.Equal(t, "invalid JSON body", resp.Message)
	assert.Nil(t, svc.gotReq)
}

func TestCreateSession_BodyTooLarge(t *testing.T) {
	h := NewCheckoutHandler(&MockService{}, time.Second, 16, logger.Discard())
	r := chi.NewRouter()
	h.Routes(r)

	rec := post(t, r, "/api/v1/checkout", `{"items":[{"slug":"a-very-long-slug","quantity":1}]}`, nil)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestCreateSession_ErrorMapping(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		code    string
		message string
	}{
		{"validation", &service.ValidationError{Field: "items", Message: "product invalid: nope"},
			http.StatusBadRequest, "invalid_request", "product invalid: nope"},
		{"not configured", service.ErrGatewayNotConfigured,
			http.StatusInternalServerError, "configuration_error", "payments are not configured"},
		{"rejected", &gateway.RejectedError{Message: "Invalid currency: xyz", StatusCode: 400},
			http.StatusBadGateway, "gateway_rejected", "Invalid currency: xyz"},
		{"catalog", &service.CatalogUnavailableError{Err: catalog.ErrUnavailable},
			http.StatusServiceUnavailable, "catalog_unavailable", "product catalog is temporarily unavailable, please try again"},
		{"deadline", context.DeadlineExceeded,
			http.StatusGatewayTimeout, "timeout", "request timed out"},
		{"unknown", errors.New("boom"),
			http.StatusInternalServerError, "internal_error", "internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := post(t, newRouter(&MockService{err: tt.err}), "/api/v1/checkout", `{"items":[]}`, nil)

			assert.Equal(t, tt.status, rec.Code)
			resp := decodeError(t, rec)
			assert.False(t, resp.OK)
			assert.Equal(t, tt.code, resp.Code)
			assert.Equal(t, tt.message, resp.Message)
		})
	}
}

func TestQuote_Success(t *testing.T) {
	svc := &MockService{quote: &d.QuoteResponse{OK: true, Currency: "mxn", Total: decimal.NewFromInt(299)}}

	rec := post(t, newRouter(svc), "/api/v1/cart/quote", `{"items":[{"slug":"tapete-yoga","quantity":1}]}`, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp d.QuoteResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.True(t, resp.Total.Equal(decimal.NewFromInt(299)))
}

func TestGetSession(t *testing.T) {
	svc := &MockService{session: &d.SessionSummary{OK: true, ID: "cs_1", Paid: true}}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/checkout/sessions/cs_1", nil)
	rec := httptest.NewRecorder()
	newRouter(svc).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	svc.err = gateway.ErrSessionNotFound
	rec = httptest.NewRecorder()
	newRouter(svc).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/checkout/sessions/cs_x", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWebhook(t *testing.T) {
	svc := &MockService{}
	rec := post(t, newRouter(svc), "/api/v1/webhooks/stripe", `{"id":"evt_1"}`,
		map[string]string{"Stripe-Signature": "t=1,v1=abc"})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `{"id":"evt_1"}`, string(svc.gotPayload))
	assert.Equal(t, "t=1,v1=abc", svc.gotSig)

	svc.err = gateway.ErrInvalidSignature
	rec = post(t, newRouter(svc), "/api/v1/webhooks/stripe", `{}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_signature", decodeError(t, rec).Code)
}

func TestCORS(t *testing.T) {
	r := chi.NewRouter()
	r.Use(CORS([]string{"https://melocotonmove.com/"}))
	NewCheckoutHandler(&MockService{resp: &d.CheckoutResponse{OK: true}}, time.Second, 1<<20, logger.Discard()).Routes(r)

	preflight := func(origin string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodOptions, "/api/v1/checkout", nil)
		req.Header.Set("Origin", origin)
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}

	ok := preflight("https://melocotonmove.com")
	assert.Equal(t, http.StatusOK, ok.Code)
	assert.Equal(t, "https://melocotonmove.com", ok.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, ok.Header().Get("Access-Control-Allow-Methods"), http.MethodPost)
	assert.Equal(t, "600", ok.Header().Get("Access-Control-Max-Age"))

	denied := preflight("https://evil.example.com")
	assert.Empty(t, denied.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, denied.Header().Get("Access-Control-Allow-Methods"))
}

type staticCatalog struct{ c *catalog.Catalog }

func (s staticCatalog) Fetch(context.Context) (*catalog.Catalog, error) { return s.c, nil }

// The full stack: router, real service, in-memory gateway.
func TestCheckoutFlow_EndToEnd(t *testing.T) {
	fake := gateway.NewFake()
	svc := service.NewCheckoutService(service.Options{
		Catalog: staticCatalog{catalog.New([]catalog.Record{
			{Slug: "tapete-yoga", Name: "Tapete de yoga", Image: "/img/tapete.jpg", FullPrice: decimal.NewFromInt(150)},
		})},
		Gateway:        fake,
		Shipping:       pricing.DefaultShippingRules(),
		SiteURL:        "https://melocotonmove.com",
		AllowedOrigins: []string{"https://melocotonmove.com"},
		Logger:         logger.Discard(),
	})
	router := newRouter(svc)

	body, _ := json.Marshal(d.CheckoutRequest{Items: []d.CheckoutItem{{Slug: "tapete-yoga", Quantity: 3}}})
	rec := post(t, router, "/api/v1/checkout", string(body), map[string]string{"Origin": "https://attacker.example"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var created d.CheckoutResponse
	require.NoError(t, json.NewDecoder(bytes.NewReader(rec.Body.Bytes())).Decode(&created))
	assert.True(t, created.OK)

	calls := fake.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "https://melocotonmove.com/cart", calls[0].CancelURL)
	assert.Equal(t, "https://melocotonmove.com/img/tapete.jpg", calls[0].LineItems[0].Image)

	rec = post(t, router, "/api/v1/checkout", `{"items":[{"slug":"ghost","quantity":1}]}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "product invalid: ghost", decodeError(t, rec).Message)
}
