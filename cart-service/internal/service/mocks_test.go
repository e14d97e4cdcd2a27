package service

import (
	"context"
	"slices"
	"sync"

	"github.com/gonzalofreyna/melocoton-move/cart-service/internal/domain"
)

type mockRepository struct {
	m       sync.RWMutex
	records []domain.Record
	saves   int
	deletes int
	err     error
}

func (m *mockRepository) Load(context.Context) ([]domain.Record, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	return slices.Clone(m.records), nil
}

func (m *mockRepository) Save(_ context.Context, records []domain.Record) error {
	m.m.Lock()
	defer m.m.Unlock()
	m.saves++
	if m.err != nil {
		return m.err
	}
	m.records = slices.Clone(records)
	return nil
}

func (m *mockRepository) Delete(context.Context) error {
	m.m.Lock()
	defer m.m.Unlock()
	m.deletes++
	if m.err != nil {
		return m.err
	}
	m.records = nil
	return nil
}

func (m *mockRepository) snapshot() []domain.Record {
	m.m.RLock()
	defer m.m.RUnlock()
	return slices.Clone(m.records)
}

func (m *mockRepository) saveCount() int {
	m.m.RLock()
	defer m.m.RUnlock()
	return m.saves
}
