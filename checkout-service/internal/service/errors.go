package service

import (
	"errors"
	"fmt"
)

var (
	ErrGatewayNotConfigured = errors.New("payment gateway is not configured")
	ErrWebhookNotConfigured = errors.New("webhook signing secret is not configured")
)

// ValidationError is bad client input. Message is safe to show the shopper.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// CatalogUnavailableError means the catalog could not be read even after a
// retry. It is never reported as an unknown product.
type CatalogUnavailableError struct {
	Err error
}

func (e *CatalogUnavailableError) Error() string {
	return fmt.Sprintf("catalog unavailable: %v", e.Err)
}

func (e *CatalogUnavailableError) Unwrap() error {
	return e.Err
}
