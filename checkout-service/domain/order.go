package domain

import (
	"time"

	"github.com/google/uuid"
)

type OrderStatus string

const (
	OrderStatusPaid           OrderStatus = "PAID"
	OrderStatusPaymentPending OrderStatus = "PAYMENT_PENDING"
)

// String representation (for logging)
func (s OrderStatus) String() string {
	return string(s)
}

type OrderLine struct {
	Description string `json:"description"`
	Quantity    int64  `json:"quantity"`
	AmountTotal int64  `json:"amount_total"`
}

// Order is recorded once per completed checkout session. Amounts are in
// minor units.
type Order struct {
	ID                uuid.UUID
	CheckoutSessionID string
	EventID           string
	Status            OrderStatus
	Currency          string
	CustomerEmail     string
	CustomerName      string
	AmountSubtotal    int64
	AmountShipping    int64
	AmountDiscount    int64
	AmountTotal       int64
	Lines             []OrderLine
	Coupon            string
	ShippingMode      string
	CreatedAt         time.Time
}

const EventTypeCheckoutCompleted = "CheckoutCompleted"

// CheckoutCompletedEvent is the outbox payload published for every order.
type CheckoutCompletedEvent struct {
	OrderID           string      `json:"order_id"`
	CheckoutSessionID string      `json:"checkout_session_id"`
	Status            OrderStatus `json:"status"`
	CustomerEmail     string      `json:"customer_email,omitempty"`
	Items             []OrderLine `json:"items"`
	AmountTotal       int64       `json:"amount_total"`
	Currency          string      `json:"currency"`
	Coupon            string      `json:"coupon,omitempty"`
	CompletedAt       time.Time   `json:"completed_at"`
}

func NewCheckoutCompletedEvent(o *Order) CheckoutCompletedEvent {
	return CheckoutCompletedEvent{
		OrderID:           o.ID.String(),
		CheckoutSessionID: o.CheckoutSessionID,
		Status:            o.Status,
		CustomerEmail:     o.CustomerEmail,
		Items:             o.Lines,
		AmountTotal:       o.AmountTotal,
		Currency:          o.Currency,
		Coupon:            o.Coupon,
		CompletedAt:       o.CreatedAt,
	}
}
