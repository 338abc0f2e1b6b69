package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/abellodlm/drewsigloo/pkg/orders"
)

// MemoryStore keeps orders in process. It is used for local runs and tests.
type MemoryStore struct {
	mu     sync.Mutex
	orders map[string]orders.TrackedOrder
	now    func() time.Time
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{orders: make(map[string]orders.TrackedOrder), now: time.Now}
}

func (m *MemoryStore) Get(ctx context.Context, orderID string) (*orders.TrackedOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orders[orderID]
	if !ok {
		return nil, ErrNotFound
	}
	return &o, nil
}

func (m *MemoryStore) Create(ctx context.Context, order orders.TrackedOrder) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.orders[order.OrderID]; ok {
		return ErrAlreadyExists
	}
	m.orders[order.OrderID] = order
	return nil
}

func (m *MemoryStore) Put(ctx context.Context, order orders.TrackedOrder) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.orders[order.OrderID] = order
	return nil
}

func (m *MemoryStore) Touch(ctx context.Context, orderID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orders[orderID]
	if !ok {
		return ErrNotFound
	}
	o.LastCheckedAt = at.UTC()
	m.orders[orderID] = o
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, orderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.orders, orderID)
	return nil
}

// ScanActive returns unexpired orders sorted by registration time.
func (m *MemoryStore) ScanActive(ctx context.Context) ([]orders.TrackedOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now().Unix()
	active := make([]orders.TrackedOrder, 0, len(m.orders))
	for _, o := range m.orders {
		if o.ExpiresAt == 0 || o.ExpiresAt > now {
			active = append(active, o)
		}
	}

	sort.Slice(active, func(i, j int) bool {
		return active[i].RegisteredAt.Before(active[j].RegisteredAt)
	})
	return active, nil
}
