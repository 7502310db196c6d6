package memory

import (
	"context"
	"sort"
	"sync"

	"acdm-platform/internal/domain"
	"acdm-platform/internal/storage"
)

// OrderStore is an in-memory implementation of storage.OrderStore.
type OrderStore struct {
	mu   sync.RWMutex
	data map[uint64]domain.Order // keyed by id
}

// NewOrderStore creates a new in-memory order store.
func NewOrderStore() *OrderStore {
	return &OrderStore{
		data: make(map[uint64]domain.Order),
	}
}

// Upsert inserts the order or replaces the stored copy with the same id.
func (s *OrderStore) Upsert(_ context.Context, o *domain.Order) error {
	if o == nil || o.ID == 0 || o.Owner.IsZero() {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[o.ID] = o.Clone()
	return nil
}

// GetByID retrieves an order by id. Returns ErrNotFound if not exists.
func (s *OrderStore) GetByID(_ context.Context, id uint64) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, exists := s.data[id]
	if !exists {
		return nil, storage.ErrNotFound
	}

	c := o.Clone()
	return &c, nil
}

// GetByOwner retrieves all orders of an owner, ordered by id ASC.
func (s *OrderStore) GetByOwner(_ context.Context, owner domain.Address) ([]*domain.Order, error) {
	return s.filter(func(o *domain.Order) bool { return o.Owner == owner }), nil
}

// GetByRound retrieves all orders placed in a cycle, ordered by id ASC.
func (s *OrderStore) GetByRound(_ context.Context, round int) ([]*domain.Order, error) {
	return s.filter(func(o *domain.Order) bool { return o.Round == round }), nil
}

func (s *OrderStore) filter(keep func(*domain.Order) bool) []*domain.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Order
	for _, o := range s.data {
		if keep(&o) {
			c := o.Clone()
			result = append(result, &c)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ID < result[j].ID
	})
	return result
}

var _ storage.OrderStore = (*OrderStore)(nil)
