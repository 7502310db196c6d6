package memory

import (
	"context"
	"sort"
	"sync"

	"acdm-platform/internal/domain"
	"acdm-platform/internal/storage"
)

// FillStore is an in-memory implementation of storage.FillStore.
type FillStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Fill // keyed by fill_id
}

// NewFillStore creates a new in-memory fill store.
func NewFillStore() *FillStore {
	return &FillStore{
		data: make(map[string]*domain.Fill),
	}
}

// InsertBulk adds multiple fills atomically. Fails entire batch on any duplicate.
func (s *FillStore) InsertBulk(_ context.Context, fills []*domain.Fill) error {
	if len(fills) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// First pass: check for duplicates (existing + intra-batch)
	batchKeys := make(map[string]struct{}, len(fills))
	for _, f := range fills {
		if f == nil || f.FillID == "" {
			return storage.ErrInvalidInput
		}
		if _, exists := s.data[f.FillID]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[f.FillID]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[f.FillID] = struct{}{}
	}

	// Second pass: insert all
	for _, f := range fills {
		s.data[f.FillID] = cloneFill(f)
	}
	return nil
}

// GetByRound retrieves the fills of a cycle, ordered by timestamp ASC.
func (s *FillStore) GetByRound(_ context.Context, round int) ([]*domain.Fill, error) {
	return s.filter(func(f *domain.Fill) bool { return f.Round == round }), nil
}

// GetByTimeRange retrieves fills within [start, end] unix ms (inclusive).
func (s *FillStore) GetByTimeRange(_ context.Context, start, end int64) ([]*domain.Fill, error) {
	return s.filter(func(f *domain.Fill) bool {
		ms := f.Timestamp.UnixMilli()
		return ms >= start && ms <= end
	}), nil
}

func (s *FillStore) filter(keep func(*domain.Fill) bool) []*domain.Fill {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Fill
	for _, f := range s.data {
		if keep(f) {
			result = append(result, cloneFill(f))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].Timestamp.Equal(result[j].Timestamp) {
			return result[i].Timestamp.Before(result[j].Timestamp)
		}
		return result[i].FillID < result[j].FillID
	})
	return result
}

func cloneFill(f *domain.Fill) *domain.Fill {
	c := *f
	c.Amount = domain.Clone(f.Amount)
	c.Price = domain.Clone(f.Price)
	c.Cost = domain.Clone(f.Cost)
	c.Level1Fee = domain.Clone(f.Level1Fee)
	c.Level2Fee = domain.Clone(f.Level2Fee)
	c.Net = domain.Clone(f.Net)
	c.Refund = domain.Clone(f.Refund)
	return &c
}

var _ storage.FillStore = (*FillStore)(nil)
