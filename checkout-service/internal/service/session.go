package service

import (
	"context"
	"fmt"
	"strings"

	d "github.com/gonzalofreyna/melocoton-move/checkout-service/domain"
	"github.com/gonzalofreyna/melocoton-move/payment-service/pkg/gateway"
	"github.com/gonzalofreyna/melocoton-move/pkg/money"
)

// GetSession returns the summary the success page renders.
func (s *CheckoutServiceImpl) GetSession(ctx context.Context, id string) (*d.SessionSummary, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, invalid("session_id", "session_id is required")
	}
	if s.gateway == nil {
		return nil, ErrGatewayNotConfigured
	}

	details, err := s.gateway.RetrieveSession(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("retrieve checkout session %s: %w", id, err)
	}
	return summarize(details), nil
}

func summarize(sd gateway.SessionDetails) *d.SessionSummary {
	out := &d.SessionSummary{
		OK:             true,
		ID:             sd.ID,
		Status:         sd.Status,
		PaymentStatus:  sd.PaymentStatus,
		Paid:           sd.Paid(),
		Currency:       sd.Currency,
		CustomerEmail:  sd.CustomerEmail,
		CustomerName:   sd.CustomerName,
		AmountSubtotal: money.FromMinorUnits(sd.AmountSubtotal),
		AmountShipping: money.FromMinorUnits(sd.AmountShipping),
		AmountDiscount: money.FromMinorUnits(sd.AmountDiscount),
		AmountTotal:    money.FromMinorUnits(sd.AmountTotal),
		Lines:          make([]d.SummaryLine, 0, len(sd.Lines)),
	}
	for _, l := range sd.Lines {
		out.Lines = append(out.Lines, d.SummaryLine{
			Description: l.Description,
			Quantity:    l.Quantity,
			AmountTotal: money.FromMinorUnits(l.AmountTotal),
		})
	}
	return out
}
