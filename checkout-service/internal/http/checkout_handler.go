package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	d "github.com/gonzalofreyna/melocoton-move/checkout-service/domain"
	"github.com/gonzalofreyna/melocoton-move/checkout-service/internal/service"
)

// maxWebhookBody matches the gateway's documented payload ceiling.
const maxWebhookBody = 64 << 10

type CheckoutHandler struct {
	svc     service.CheckoutService
	timeout time.Duration
	maxBody int64
	log     *slog.Logger
}

func NewCheckoutHandler(svc service.CheckoutService, timeout time.Duration, maxBody int64, log *slog.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		svc:     svc,
		timeout: timeout,
		maxBody: maxBody,
		log:     log,
	}
}

func (h *CheckoutHandler) Routes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/checkout", h.CreateSession)
		r.Post("/cart/quote", h.Quote)
		r.Get("/checkout/sessions/{id}", h.GetSession)
		r.Post("/webhooks/stripe", h.Webhook)
	})
}

// POST /api/v1/checkout
func (h *CheckoutHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	req, ok := h.decode(w, r)
	if !ok {
		return
	}

	resp, err := h.svc.CreateSession(ctx, req, r.Header.Get("Origin"))
	if err != nil {
		handleServiceError(ctx, h.log, w, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// POST /api/v1/cart/quote
func (h *CheckoutHandler) Quote(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	req, ok := h.decode(w, r)
	if !ok {
		return
	}

	resp, err := h.svc.Quote(ctx, req)
	if err != nil {
		handleServiceError(ctx, h.log, w, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// GET /api/v1/checkout/sessions/{id}
func (h *CheckoutHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	resp, err := h.svc.GetSession(ctx, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(ctx, h.log, w, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	respondJSON(w, http.StatusOK, resp)
}

// POST /api/v1/webhooks/stripe
func (h *CheckoutHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		respondError(w, http.StatusRequestEntityTooLarge, "payload_too_large", "webhook payload too large")
		return
	}

	if err := h.svc.HandleWebhook(ctx, payload, r.Header.Get("Stripe-Signature")); err != nil {
		handleServiceError(ctx, h.log, w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"received": true})
}

func (h *CheckoutHandler) decode(w http.ResponseWriter, r *http.Request) (*d.CheckoutRequest, bool) {
	var req d.CheckoutRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, h.maxBody)).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, http.StatusRequestEntityTooLarge, "payload_too_large", "request body too large")
			return nil, false
		}
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return nil, false
	}
	return &req, true
}
