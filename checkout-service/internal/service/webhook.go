package service

import (
	"context"
	"errors"
	"fmt"

	d "github.com/gonzalofreyna/melocoton-move/checkout-service/domain"
	r "github.com/gonzalofreyna/melocoton-move/checkout-service/internal/repository"
	"github.com/gonzalofreyna/melocoton-move/payment-service/pkg/gateway"
	"github.com/google/uuid"
)

// HandleWebhook verifies a gateway notification and records an order for
// completed checkout sessions. Redelivered events are acknowledged without
// a second order. Unknown event types are ignored.
func (s *CheckoutServiceImpl) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	if s.webhooks == nil {
		return ErrWebhookNotConfigured
	}
	ev, err := s.webhooks.ParseWebhook(payload, signature)
	if err != nil {
		return err
	}

	log := s.log.With("event_id", ev.ID, "event_type", ev.Type)
	if ev.Type != gateway.EventCheckoutCompleted || ev.Session == nil {
		log.DebugContext(ctx, "webhook event ignored")
		return nil
	}
	if s.orders == nil {
		log.InfoContext(ctx, "checkout completed, order recording disabled", "session_id", ev.Session.ID)
		return nil
	}

	if s.ledger != nil {
		first, err := s.ledger.Claim(ctx, ev.ID)
		switch {
		case err != nil:
			// the unique session id in the orders table still dedupes
			log.WarnContext(ctx, "event ledger unavailable", "error", err)
		case !first:
			log.InfoContext(ctx, "duplicate webhook event")
			return nil
		}
	}

	order := newOrder(ev)
	err = s.orders.CreateOrder(ctx, order)
	if errors.Is(err, r.ErrDuplicateSession) {
		log.InfoContext(ctx, "order already recorded", "session_id", order.CheckoutSessionID)
		return nil
	}
	if err != nil {
		if s.ledger != nil {
			if relErr := s.ledger.Release(ctx, ev.ID); relErr != nil {
				log.WarnContext(ctx, "failed to release webhook event", "error", relErr)
			}
		}
		return fmt.Errorf("record order for session %s: %w", order.CheckoutSessionID, err)
	}

	log.InfoContext(ctx, "order recorded",
		"order_id", order.ID,
		"session_id", order.CheckoutSessionID,
		"status", order.Status,
		"amount_total", order.AmountTotal)
	return nil
}

func newOrder(ev gateway.Event) *d.Order {
	sd := ev.Session
	status := d.OrderStatusPaymentPending
	if sd.Paid() {
		status = d.OrderStatusPaid
	}
	o := &d.Order{
		ID:                uuid.New(),
		CheckoutSessionID: sd.ID,
		EventID:           ev.ID,
		Status:            status,
		Currency:          sd.Currency,
		CustomerEmail:     sd.CustomerEmail,
		CustomerName:      sd.CustomerName,
		AmountSubtotal:    sd.AmountSubtotal,
		AmountShipping:    sd.AmountShipping,
		AmountDiscount:    sd.AmountDiscount,
		AmountTotal:       sd.AmountTotal,
		Lines:             make([]d.OrderLine, 0, len(sd.Lines)),
		Coupon:            sd.Metadata["coupon"],
		ShippingMode:      sd.Metadata["shipping_mode"],
	}
	for _, l := range sd.Lines {
		o.Lines = append(o.Lines, d.OrderLine{
			Description: l.Description,
			Quantity:    l.Quantity,
			AmountTotal: l.AmountTotal,
		})
	}
	return o
}
