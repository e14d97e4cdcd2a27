package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
	"github.com/stripe/stripe-go/v79/webhook"
)

// Stripe implements Gateway and WebhookVerifier on Stripe Checkout.
type Stripe struct {
	api           *client.API
	webhookSecret string
}

func NewStripe(secretKey, webhookSecret string, backends *stripe.Backends) *Stripe {
	return &Stripe{
		api:           client.New(secretKey, backends),
		webhookSecret: webhookSecret,
	}
}

func (s *Stripe) CreateSession(ctx context.Context, p SessionParams) (Session, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:             stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:       stripe.String(p.SuccessURL),
		CancelURL:        stripe.String(p.CancelURL),
		CustomerCreation: stripe.String(string(stripe.CheckoutSessionCustomerCreationAlways)),
	}
	params.Context = ctx
	if p.IdempotencyKey != "" {
		params.SetIdempotencyKey(p.IdempotencyKey)
	}

	for _, li := range p.LineItems {
		product := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
			Name: stripe.String(li.Name),
		}
		if li.Image != "" {
			product.Images = stripe.StringSlice([]string{li.Image})
		}
		params.LineItems = append(params.LineItems, &stripe.CheckoutSessionLineItemParams{
			Quantity: stripe.Int64(li.Quantity),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:    stripe.String(p.Currency),
				UnitAmount:  stripe.Int64(li.UnitAmount),
				ProductData: product,
			},
		})
	}

	if p.CouponID != "" {
		params.Discounts = []*stripe.CheckoutSessionDiscountParams{
			{Coupon: stripe.String(p.CouponID)},
		}
	} else {
		params.AllowPromotionCodes = stripe.Bool(true)
	}

	if len(p.AllowedCountries) > 0 {
		params.ShippingAddressCollection = &stripe.CheckoutSessionShippingAddressCollectionParams{
			AllowedCountries: stripe.StringSlice(p.AllowedCountries),
		}
	}
	if p.CollectPhone {
		params.PhoneNumberCollection = &stripe.CheckoutSessionPhoneNumberCollectionParams{
			Enabled: stripe.Bool(true),
		}
	}

	if opt := p.Shipping; opt != nil {
		rate := &stripe.CheckoutSessionShippingOptionShippingRateDataParams{
			Type:        stripe.String("fixed_amount"),
			DisplayName: stripe.String(opt.DisplayName),
			FixedAmount: &stripe.CheckoutSessionShippingOptionShippingRateDataFixedAmountParams{
				Amount:   stripe.Int64(opt.Amount),
				Currency: stripe.String(p.Currency),
			},
		}
		if opt.MinDays > 0 && opt.MaxDays >= opt.MinDays {
			rate.DeliveryEstimate = &stripe.CheckoutSessionShippingOptionShippingRateDataDeliveryEstimateParams{
				Minimum: &stripe.CheckoutSessionShippingOptionShippingRateDataDeliveryEstimateMinimumParams{
					Unit:  stripe.String("business_day"),
					Value: stripe.Int64(int64(opt.MinDays)),
				},
				Maximum: &stripe.CheckoutSessionShippingOptionShippingRateDataDeliveryEstimateMaximumParams{
					Unit:  stripe.String("business_day"),
					Value: stripe.Int64(int64(opt.MaxDays)),
				},
			}
		}
		params.ShippingOptions = []*stripe.CheckoutSessionShippingOptionParams{{ShippingRateData: rate}}
	}

	for k, v := range p.Metadata {
		params.AddMetadata(k, v)
	}

	sess, err := s.api.CheckoutSessions.New(params)
	if err != nil {
		return Session{}, rejected(err)
	}
	return Session{ID: sess.ID, URL: sess.URL}, nil
}

func (s *Stripe) RetrieveSession(ctx context.Context, id string) (SessionDetails, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	params.AddExpand("line_items")

	sess, err := s.api.CheckoutSessions.Get(id, params)
	if err != nil {
		var se *stripe.Error
		if errors.As(err, &se) && se.HTTPStatusCode == http.StatusNotFound {
			return SessionDetails{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
		}
		return SessionDetails{}, rejected(err)
	}
	return detailsFromStripe(sess), nil
}

func (s *Stripe) ParseWebhook(payload []byte, signature string) (Event, error) {
	ev, err := webhook.ConstructEventWithOptions(payload, signature, s.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	out := Event{ID: ev.ID, Type: string(ev.Type)}
	if out.Type == EventCheckoutCompleted && ev.Data != nil {
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(ev.Data.Raw, &sess); err != nil {
			return Event{}, fmt.Errorf("decode checkout session: %w", err)
		}
		d := detailsFromStripe(&sess)
		out.Session = &d
	}
	return out, nil
}

func detailsFromStripe(s *stripe.CheckoutSession) SessionDetails {
	d := SessionDetails{
		ID:             s.ID,
		Status:         string(s.Status),
		PaymentStatus:  string(s.PaymentStatus),
		Currency:       string(s.Currency),
		AmountSubtotal: s.AmountSubtotal,
		AmountTotal:    s.AmountTotal,
		Metadata:       s.Metadata,
	}
	if s.CustomerDetails != nil {
		d.CustomerEmail = s.CustomerDetails.Email
		d.CustomerName = s.CustomerDetails.Name
	}
	if s.TotalDetails != nil {
		d.AmountShipping = s.TotalDetails.AmountShipping
		d.AmountDiscount = s.TotalDetails.AmountDiscount
	}
	if s.LineItems != nil {
		for _, li := range s.LineItems.Data {
			d.Lines = append(d.Lines, PurchasedLine{
				Description: li.Description,
				Quantity:    li.Quantity,
				AmountTotal: li.AmountTotal,
			})
		}
	}
	return d
}

func rejected(err error) error {
	var se *stripe.Error
	if errors.As(err, &se) {
		return &RejectedError{Message: se.Msg, StatusCode: se.HTTPStatusCode, Err: err}
	}
	return &RejectedError{Message: err.Error(), Err: err}
}
