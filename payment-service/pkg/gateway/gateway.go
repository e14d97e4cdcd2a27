// Package gateway is the port to the hosted payment page provider.
package gateway

import (
	"context"
	"errors"
	"fmt"
)

var ErrSessionNotFound = errors.New("checkout session not found")

// LineItem is one priced line on the hosted payment page. Amounts are in
// minor units.
type LineItem struct {
	Name       string
	Image      string
	UnitAmount int64
	Quantity   int64
}

type ShippingOption struct {
	DisplayName string
	Amount      int64
	MinDays     int
	MaxDays     int
}

type SessionParams struct {
	LineItems []LineItem
	Currency  string
	// CouponID attaches a gateway-side discount. When empty the page offers
	// its own promotion code field instead; the two are exclusive.
	CouponID         string
	AllowedCountries []string
	CollectPhone     bool
	Shipping         *ShippingOption
	SuccessURL       string
	CancelURL        string
	IdempotencyKey   string
	Metadata         map[string]string
}

// AllowPromotionCodes reports whether the promotion code field is shown.
func (p SessionParams) AllowPromotionCodes() bool {
	return p.CouponID == ""
}

type Session struct {
	ID  string
	URL string
}

type PurchasedLine struct {
	Description string
	Quantity    int64
	AmountTotal int64
}

// SessionDetails is what the success page shows about a session.
type SessionDetails struct {
	ID             string
	Status         string
	PaymentStatus  string
	Currency       string
	CustomerEmail  string
	CustomerName   string
	AmountSubtotal int64
	AmountShipping int64
	AmountDiscount int64
	AmountTotal    int64
	Lines          []PurchasedLine
	Metadata       map[string]string
}

func (d SessionDetails) Paid() bool {
	return d.PaymentStatus == "paid" || d.PaymentStatus == "no_payment_required"
}

const EventCheckoutCompleted = "checkout.session.completed"

// Event is a verified webhook notification.
type Event struct {
	ID   string
	Type string
	// Session is set for checkout session events.
	Session *SessionDetails
}

type Gateway interface {
	CreateSession(ctx context.Context, params SessionParams) (Session, error)
	RetrieveSession(ctx context.Context, id string) (SessionDetails, error)
}

// WebhookVerifier checks a webhook signature and decodes the event.
type WebhookVerifier interface {
	ParseWebhook(payload []byte, signature string) (Event, error)
}

// RejectedError carries the gateway's own error message.
type RejectedError struct {
	Message    string
	StatusCode int
	Err        error
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("payment gateway rejected the request: %s", e.Message)
}

func (e *RejectedError) Unwrap() error {
	return e.Err
}

var ErrInvalidSignature = errors.New("invalid webhook signature")
