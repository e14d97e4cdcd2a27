package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gonzalofreyna/melocoton-move/checkout-service/internal/service"
	"github.com/gonzalofreyna/melocoton-move/payment-service/pkg/gateway"
)

// ErrorResponse is the failure shape of every endpoint.
type ErrorResponse struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{OK: false, Message: message, Code: code})
}

// handleServiceError maps service errors to HTTP statuses. Gateway
// rejections keep the gateway's own message.
func handleServiceError(ctx context.Context, log *slog.Logger, w http.ResponseWriter, err error) {
	var (
		validation *service.ValidationError
		rejected   *gateway.RejectedError
		catalog    *service.CatalogUnavailableError
	)

	var status int
	var code, message string

	switch {
	case errors.As(err, &validation):
		status, code, message = http.StatusBadRequest, "invalid_request", validation.Message
	case errors.As(err, &rejected):
		status, code, message = http.StatusBadGateway, "gateway_rejected", rejected.Message
	case errors.As(err, &catalog):
		status, code, message = http.StatusServiceUnavailable, "catalog_unavailable",
			"product catalog is temporarily unavailable, please try again"
	case errors.Is(err, gateway.ErrSessionNotFound):
		status, code, message = http.StatusNotFound, "not_found", "checkout session not found"
	case errors.Is(err, gateway.ErrInvalidSignature):
		status, code, message = http.StatusBadRequest, "invalid_signature", "invalid webhook signature"
	case errors.Is(err, service.ErrGatewayNotConfigured), errors.Is(err, service.ErrWebhookNotConfigured):
		status, code, message = http.StatusInternalServerError, "configuration_error", "payments are not configured"
	case errors.Is(err, context.DeadlineExceeded):
		status, code, message = http.StatusGatewayTimeout, "timeout", "request timed out"
	default:
		status, code, message = http.StatusInternalServerError, "internal_error", "internal server error"
	}

	if status >= http.StatusInternalServerError {
		log.ErrorContext(ctx, "request failed", "status", status, "error", err)
	} else {
		log.WarnContext(ctx, "request rejected", "status", status, "error", err)
	}
	respondError(w, status, code, message)
}
