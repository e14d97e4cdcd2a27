package gateway

import (
	"context"
	"fmt"
	"maps"
	"strings"
	"sync"
)

// Fake is an in-memory Gateway. Requests that reuse an idempotency key get
// the session created by the first one, as a real gateway would within its
// idempotency window.
type Fake struct {
	BaseURL string

	mu       sync.Mutex
	seq      int
	byKey    map[string]Session
	sessions map[string]SessionDetails
	params   []SessionParams
	err      error
}

func NewFake() *Fake {
	return &Fake{
		BaseURL:  "https://pay.fake.local/c/",
		byKey:    map[string]Session{},
		sessions: map[string]SessionDetails{},
	}
}

// FailWith makes the next calls fail with a rejection carrying msg. An empty
// msg clears the failure.
func (f *Fake) FailWith(msg string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if msg == "" {
		f.err = nil
		return
	}
	f.err = &RejectedError{Message: msg, StatusCode: 400}
}

func (f *Fake) CreateSession(_ context.Context, p SessionParams) (Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.params = append(f.params, p)
	if f.err != nil {
		return Session{}, f.err
	}
	if p.IdempotencyKey != "" {
		if s, ok := f.byKey[p.IdempotencyKey]; ok {
			return s, nil
		}
	}

	f.seq++
	s := Session{ID: fmt.Sprintf("cs_test_%04d", f.seq)}
	s.URL = f.BaseURL + s.ID

	var subtotal int64
	lines := make([]PurchasedLine, 0, len(p.LineItems))
	for _, li := range p.LineItems {
		total := li.UnitAmount * li.Quantity
		subtotal += total
		lines = append(lines, PurchasedLine{Description: li.Name, Quantity: li.Quantity, AmountTotal: total})
	}
	var shipping int64
	if p.Shipping != nil {
		shipping = p.Shipping.Amount
	}

	f.sessions[s.ID] = SessionDetails{
		ID:             s.ID,
		Status:         "open",
		PaymentStatus:  "unpaid",
		Currency:       strings.ToLower(p.Currency),
		AmountSubtotal: subtotal,
		AmountShipping: shipping,
		AmountTotal:    subtotal + shipping,
		Lines:          lines,
		Metadata:       maps.Clone(p.Metadata),
	}
	if p.IdempotencyKey != "" {
		f.byKey[p.IdempotencyKey] = s
	}
	return s, nil
}

func (f *Fake) RetrieveSession(_ context.Context, id string) (SessionDetails, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return SessionDetails{}, f.err
	}
	d, ok := f.sessions[id]
	if !ok {
		return SessionDetails{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return d, nil
}

// Complete marks a session as paid by email, as the hosted page would.
func (f *Fake) Complete(id, email string) (SessionDetails, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	d, ok := f.sessions[id]
	if !ok {
		return SessionDetails{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	d.Status = "complete"
	d.PaymentStatus = "paid"
	d.CustomerEmail = email
	f.sessions[id] = d
	return d, nil
}

// Calls returns every CreateSession request received, including failed ones.
func (f *Fake) Calls() []SessionParams {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]SessionParams, len(f.params))
	copy(out, f.params)
	return out
}

// SessionCount is the number of distinct sessions created.
func (f *Fake) SessionCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sessions)
}
