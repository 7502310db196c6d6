package memory

import (
	"context"
	"sort"
	"sync"

	"acdm-platform/internal/domain"
	"acdm-platform/internal/storage"
)

// RoundStore is an in-memory implementation of storage.RoundStore.
type RoundStore struct {
	mu   sync.RWMutex
	data map[int]domain.Round // keyed by seq
}

// NewRoundStore creates a new in-memory round store.
func NewRoundStore() *RoundStore {
	return &RoundStore{
		data: make(map[int]domain.Round),
	}
}

// Upsert inserts the round or replaces the stored copy with the same seq.
func (s *RoundStore) Upsert(_ context.Context, r *domain.Round) error {
	if r == nil || r.Seq < 0 || r.Price == nil {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[r.Seq] = r.Clone()
	return nil
}

// GetBySeq retrieves a round by seq. Returns ErrNotFound if not exists.
func (s *RoundStore) GetBySeq(_ context.Context, seq int) (*domain.Round, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, exists := s.data[seq]
	if !exists {
		return nil, storage.ErrNotFound
	}

	c := r.Clone()
	return &c, nil
}

// GetByNumber retrieves the rounds of one cycle, ordered by seq ASC.
func (s *RoundStore) GetByNumber(_ context.Context, number int) ([]*domain.Round, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Round
	for _, r := range s.data {
		if r.Number == number {
			c := r.Clone()
			result = append(result, &c)
		}
	}
	sortRounds(result)
	return result, nil
}

// GetAll retrieves the full history, ordered by seq ASC.
func (s *RoundStore) GetAll(_ context.Context) ([]*domain.Round, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Round, 0, len(s.data))
	for _, r := range s.data {
		c := r.Clone()
		result = append(result, &c)
	}
	sortRounds(result)
	return result, nil
}

func sortRounds(rs []*domain.Round) {
	sort.Slice(rs, func(i, j int) bool {
		return rs[i].Seq < rs[j].Seq
	})
}

var _ storage.RoundStore = (*RoundStore)(nil)
