package service

import (
	"context"
	"sync"

	d "github.com/gonzalofreyna/melocoton-move/checkout-service/domain"
	"github.com/gonzalofreyna/melocoton-move/payment-service/pkg/gateway"
	"github.com/gonzalofreyna/melocoton-move/product-service/pkg/catalog"
)

// MockCatalog implements catalog.Source
type MockCatalog struct {
	Catalog *catalog.Catalog
	Err     error
	Calls   int
}

func (m *MockCatalog) Fetch(context.Context) (*catalog.Catalog, error) {
	m.Calls++
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Catalog, nil
}

// MockOrders implements repository.OrderRepository
type MockOrders struct {
	mu        sync.Mutex
	Created   []*d.Order
	CreateErr error
}

func (m *MockOrders) CreateOrder(_ context.Context, order *d.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateErr != nil {
		return m.CreateErr
	}
	m.Created = append(m.Created, order)
	return nil
}

func (m *MockOrders) GetOrderBySessionID(context.Context, string) (*d.Order, error) {
	return nil, nil
}

// MockLedger implements cache.EventLedger
type MockLedger struct {
	Claimed  map[string]bool
	ClaimErr error
	Released []string
}

func (m *MockLedger) Claim(_ context.Context, id string) (bool, error) {
	if m.ClaimErr != nil {
		return false, m.ClaimErr
	}
	if m.Claimed == nil {
		m.Claimed = map[string]bool{}
	}
	if m.Claimed[id] {
		return false, nil
	}
	m.Claimed[id] = true
	return true, nil
}

func (m *MockLedger) Release(_ context.Context, id string) error {
	delete(m.Claimed, id)
	m.Released = append(m.Released, id)
	return nil
}

// MockVerifier implements gateway.WebhookVerifier
type MockVerifier struct {
	Event gateway.Event
	Err   error
}

func (m *MockVerifier) ParseWebhook([]byte, string) (gateway.Event, error) {
	return m.Event, m.Err
}
