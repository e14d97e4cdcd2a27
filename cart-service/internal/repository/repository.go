package repository

import (
	"context"

	"github.com/gonzalofreyna/melocoton-move/cart-service/internal/domain"
)

// CartRepository is the durable storage behind the cart store.
// Consumers define this interface, not the file implementation.
type CartRepository interface {
	// Load returns the persisted records, or nil when nothing was saved yet.
	Load(ctx context.Context) ([]domain.Record, error)
	Save(ctx context.Context, records []domain.Record) error
	Delete(ctx context.Context) error
}
