package memory

import (
	"context"
	"sort"
	"sync"

	"acdm-platform/internal/domain"
	"acdm-platform/internal/storage"
)

// ReferralStore is an in-memory implementation of storage.ReferralStore.
type ReferralStore struct {
	mu   sync.RWMutex
	data map[domain.Address]domain.Referral // keyed by participant
}

// NewReferralStore creates a new in-memory referral store.
func NewReferralStore() *ReferralStore {
	return &ReferralStore{
		data: make(map[domain.Address]domain.Referral),
	}
}

// Insert adds a link. Returns ErrDuplicateKey if the participant already has one.
func (s *ReferralStore) Insert(_ context.Context, r *domain.Referral) error {
	if r == nil || r.Participant.IsZero() || r.Referrer.IsZero() || r.Participant == r.Referrer {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[r.Participant]; exists {
		return storage.ErrDuplicateKey
	}
	s.data[r.Participant] = *r
	return nil
}

// GetByParticipant retrieves a participant's link. Returns ErrNotFound if not exists.
func (s *ReferralStore) GetByParticipant(_ context.Context, participant domain.Address) (*domain.Referral, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, exists := s.data[participant]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return &r, nil
}

// GetByReferrer retrieves the links pointing at referrer, ordered by created_at ASC.
func (s *ReferralStore) GetByReferrer(_ context.Context, referrer domain.Address) ([]*domain.Referral, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Referral
	for _, r := range s.data {
		if r.Referrer == referrer {
			c := r
			result = append(result, &c)
		}
	}
	sortReferrals(result)
	return result, nil
}

// GetAll retrieves every link, ordered by created_at ASC.
func (s *ReferralStore) GetAll(_ context.Context) ([]*domain.Referral, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Referral, 0, len(s.data))
	for _, r := range s.data {
		c := r
		result = append(result, &c)
	}
	sortReferrals(result)
	return result, nil
}

func sortReferrals(rs []*domain.Referral) {
	sort.Slice(rs, func(i, j int) bool {
		if !rs[i].CreatedAt.Equal(rs[j].CreatedAt) {
			return rs[i].CreatedAt.Before(rs[j].CreatedAt)
		}
		return rs[i].Participant < rs[j].Participant
	})
}

var _ storage.ReferralStore = (*ReferralStore)(nil)
