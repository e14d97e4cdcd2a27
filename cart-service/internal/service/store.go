package service

import (
	"context"
	"log/slog"
	"net/url"
	"path"
	"slices"
	"sync"

	"github.com/gonzalofreyna/melocoton-move/cart-service/internal/domain"
	"github.com/gonzalofreyna/melocoton-move/cart-service/internal/repository"
	"github.com/gonzalofreyna/melocoton-move/pkg/pricing"
	"github.com/shopspring/decimal"
)

// SuccessPath is the route the payment gateway redirects to after payment.
const SuccessPath = "/success"

// SessionParam marks a success visit as a confirmed payment.
const SessionParam = "session_id"

// Summary is derived from the line items after every change.
type Summary struct {
	Count    int
	Subtotal decimal.Decimal
	Shipping pricing.Quote
}

func (s Summary) Empty() bool {
	return s.Count == 0
}

// Store owns one shopper's cart. Every mutation updates memory first and
// then persists the full collection; persistence failures are logged and
// never undo the mutation.
type Store struct {
	repo  repository.CartRepository
	rules pricing.ShippingRules
	log   *slog.Logger

	mu        sync.Mutex
	items     []domain.LineItem
	stale     []domain.StaleItem
	open      bool
	observers []func(Summary)
}

func NewStore(repo repository.CartRepository, rules pricing.ShippingRules, log *slog.Logger) *Store {
	return &Store{
		repo:  repo,
		rules: rules,
		log:   log,
	}
}

// Hydrate replaces the in-memory cart with the persisted one. Quantities are
// re-clamped against the stored stock, so a cart saved before stock dropped
// comes back within bounds.
func (s *Store) Hydrate(ctx context.Context) error {
	records, err := s.repo.Load(ctx)
	if err != nil {
		return err
	}
	items, stale := domain.FromRecords(records)

	s.mu.Lock()
	s.items = items
	s.stale = stale
	s.mu.Unlock()

	if len(stale) > 0 {
		s.log.WarnContext(ctx, "cart has items without a slug", "count", len(stale))
	}
	s.notify()
	return nil
}

// Add puts one unit of item in the cart, or one more unit if the slug is
// already there. It reports whether the cart changed. The cart panel opens
// either way.
func (s *Store) Add(ctx context.Context, item domain.LineItem) bool {
	changed := s.mutate(ctx, func() bool {
		s.open = true
		if item.Slug == "" {
			return false
		}

		maxStock := item.MaxStock
		if maxStock != nil && *maxStock < 0 {
			maxStock = pricing.Limit(0)
		}
		if maxStock != nil && *maxStock == 0 {
			return false
		}

		if i := s.index(item.Slug); i >= 0 {
			next := pricing.ClampInt(s.items[i].Quantity+1, s.items[i].MaxStock)
			if next == s.items[i].Quantity {
				return false
			}
			s.items[i].Quantity = next
			return true
		}

		item.MaxStock = maxStock
		item.Quantity = pricing.ClampInt(1, maxStock)
		if item.ShippingType == "" {
			item.ShippingType = pricing.ShippingStandard
		}
		s.items = append(s.items, item)
		return true
	})
	return changed
}

func (s *Store) Remove(ctx context.Context, slug string) bool {
	return s.mutate(ctx, func() bool {
		i := s.index(slug)
		if i < 0 {
			return false
		}
		s.items = slices.Delete(s.items, i, i+1)
		return true
	})
}

// Increment is a no-op at the stock ceiling.
func (s *Store) Increment(ctx context.Context, slug string) bool {
	return s.mutate(ctx, func() bool {
		i := s.index(slug)
		if i < 0 {
			return false
		}
		return s.setAt(i, float64(s.items[i].Quantity+1))
	})
}

// Decrement removes the item when it reaches 0.
func (s *Store) Decrement(ctx context.Context, slug string) bool {
	return s.mutate(ctx, func() bool {
		i := s.index(slug)
		if i < 0 {
			return false
		}
		return s.setAt(i, float64(s.items[i].Quantity-1))
	})
}

// SetQuantity sets the clamped quantity; 0 removes the item.
func (s *Store) SetQuantity(ctx context.Context, slug string, n float64) bool {
	return s.mutate(ctx, func() bool {
		i := s.index(slug)
		if i < 0 {
			return false
		}
		return s.setAt(i, n)
	})
}

// RemoveStale drops a legacy record by name.
func (s *Store) RemoveStale(ctx context.Context, name string) bool {
	return s.mutate(ctx, func() bool {
		i := slices.IndexFunc(s.stale, func(it domain.StaleItem) bool { return it.Name() == name })
		if i < 0 {
			return false
		}
		s.stale = slices.Delete(s.stale, i, i+1)
		return true
	})
}

// Clear empties the cart and its storage.
func (s *Store) Clear(ctx context.Context) {
	s.mu.Lock()
	s.items = nil
	s.stale = nil
	s.mu.Unlock()

	if err := s.repo.Delete(ctx); err != nil {
		s.log.WarnContext(ctx, "failed to delete persisted cart", "error", err)
	}
	s.notify()
}

// Navigate is called on every route change. A visit to the success route
// carrying the payment session parameter clears the cart and closes the
// panel; any other visit leaves the cart alone.
func (s *Store) Navigate(ctx context.Context, rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	p := path.Clean("/" + u.Path)
	if p != SuccessPath || !u.Query().Has(SessionParam) {
		return false
	}

	s.Clear(ctx)
	s.Close()
	s.log.InfoContext(ctx, "cart cleared after confirmed payment", "session_id", u.Query().Get(SessionParam))
	return true
}

func (s *Store) Open() {
	s.mu.Lock()
	s.open = true
	s.mu.Unlock()
}

func (s *Store) Close() {
	s.mu.Lock()
	s.open = false
	s.mu.Unlock()
}

func (s *Store) Toggle() {
	s.mu.Lock()
	s.open = !s.open
	s.mu.Unlock()
}

func (s *Store) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

// Items returns a copy of the line items in insertion order.
func (s *Store) Items() []domain.LineItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.items)
}

func (s *Store) StaleItems() []domain.StaleItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.stale)
}

func (s *Store) Item(slug string) (domain.LineItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.index(slug); i >= 0 {
		return s.items[i], true
	}
	return domain.LineItem{}, false
}

func (s *Store) Summary() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.summary()
}

// Subscribe registers fn to run with the fresh summary after every change.
func (s *Store) Subscribe(fn func(Summary)) {
	s.mu.Lock()
	s.observers = append(s.observers, fn)
	s.mu.Unlock()
}

// CheckoutRequest builds the price-free request sent to the checkout API.
func (s *Store) CheckoutRequest(couponCode string) (domain.CheckoutRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.stale) > 0 {
		names := make([]string, 0, len(s.stale))
		for _, it := range s.stale {
			names = append(names, it.Name())
		}
		return domain.CheckoutRequest{}, &StaleItemError{Names: names}
	}
	if len(s.items) == 0 {
		return domain.CheckoutRequest{}, ErrEmptyCart
	}

	req := domain.CheckoutRequest{
		Items:      make([]domain.CheckoutItem, 0, len(s.items)),
		CouponCode: pricing.NormalizeCode(couponCode),
	}
	for _, it := range s.items {
		req.Items = append(req.Items, domain.CheckoutItem{Slug: it.Slug, Quantity: it.Quantity})
	}
	return req, nil
}

func (s *Store) summary() Summary {
	lines := make([]pricing.Line, 0, len(s.items))
	count := 0
	for _, it := range s.items {
		lines = append(lines, it.ShippingLine())
		count += it.Quantity
	}
	return Summary{
		Count:    count,
		Subtotal: pricing.Subtotal(lines),
		Shipping: s.rules.Quote(lines),
	}
}

// mutate runs fn under the lock and, when it reports a change, persists and
// notifies observers.
func (s *Store) mutate(ctx context.Context, fn func() bool) bool {
	s.mu.Lock()
	changed := fn()
	var records []domain.Record
	if changed {
		records = domain.ToRecords(s.items, s.stale)
	}
	s.mu.Unlock()

	if !changed {
		return false
	}
	if err := s.repo.Save(ctx, records); err != nil {
		s.log.WarnContext(ctx, "failed to persist cart", "error", err)
	}
	s.notify()
	return true
}

func (s *Store) notify() {
	s.mu.Lock()
	sum := s.summary()
	observers := slices.Clone(s.observers)
	s.mu.Unlock()

	for _, fn := range observers {
		fn(sum)
	}
}

// setAt must be called with the lock held.
func (s *Store) setAt(i int, requested float64) bool {
	next := pricing.Clamp(requested, s.items[i].MaxStock)
	if next == 0 {
		s.items = slices.Delete(s.items, i, i+1)
		return true
	}
	if next == s.items[i].Quantity {
		return false
	}
	s.items[i].Quantity = next
	return true
}

func (s *Store) index(slug string) int {
	return slices.IndexFunc(s.items, func(it domain.LineItem) bool { return it.Slug == slug })
}
