package cache

import "context"

// EventLedger remembers which webhook events were already handled, so a
// redelivered event is acknowledged without side effects.
type EventLedger interface {
	// Claim records eventID and reports whether this caller is the first.
	Claim(ctx context.Context, eventID string) (bool, error)
	// Release forgets eventID so a redelivery is processed again.
	Release(ctx context.Context, eventID string) error
}
