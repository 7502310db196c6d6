// Package referral keeps the one-time referrer links between participants
// and resolves the two-level chain fees are paid along.
package referral

import (
	"sync"
	"time"

	"acdm-platform/internal/domain"
	"acdm-platform/internal/txn"
)

// Registry errors
var (
	ErrAlreadyRegistered = domain.NewError(domain.ErrRegistration, "participant already has a referrer")
	ErrSelfReferral      = domain.NewError(domain.ErrRegistration, "participant cannot refer themselves")
	ErrNotRegistered     = domain.NewError(domain.ErrRegistration, "participant is not registered")
	ErrEmptyReferrer     = domain.NewError(domain.ErrInvalidArgument, "referrer address is empty")
)

// Registry maps each participant to at most one referrer. Links never change once set.
type Registry struct {
	mu    sync.RWMutex
	links map[domain.Address]domain.Referral
	order []domain.Address
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{links: make(map[domain.Address]domain.Referral)}
}

// Register links caller to referrer. The referrer does not need to be registered itself.
func (r *Registry) Register(caller, referrer domain.Address, at time.Time, j *txn.Journal) (domain.Referral, error) {
	if referrer.IsZero() {
		return domain.Referral{}, ErrEmptyReferrer
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.links[caller]; ok {
		return domain.Referral{}, ErrAlreadyRegistered
	}
	if caller == referrer {
		return domain.Referral{}, ErrSelfReferral
	}

	link := domain.Referral{Participant: caller, Referrer: referrer, CreatedAt: at}
	r.links[caller] = link
	r.order = append(r.order, caller)
	j.Record(func() error {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.links, caller)
		r.order = r.order[:len(r.order)-1]
		return nil
	})
	return link, nil
}

// Referrer returns the direct referrer of participant.
func (r *Registry) Referrer(participant domain.Address) (domain.Address, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	link, ok := r.links[participant]
	if !ok {
		return "", ErrNotRegistered
	}
	return link.Referrer, nil
}

// IsRegistered reports whether participant has a referrer.
func (r *Registry) IsRegistered(participant domain.Address) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.links[participant]
	return ok
}

// Chain resolves the level-1 and level-2 referrers of participant.
func (r *Registry) Chain(participant domain.Address) domain.Chain {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var c domain.Chain
	l1, ok := r.links[participant]
	if !ok {
		return c
	}
	c.Level1 = l1.Referrer
	if l2, ok := r.links[l1.Referrer]; ok {
		c.Level2 = l2.Referrer
	}
	return c
}

// Links returns every link in registration order.
func (r *Registry) Links() []domain.Referral {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Referral, 0, len(r.order))
	for _, p := range r.order {
		out = append(out, r.links[p])
	}
	return out
}

// Len returns the number of registered participants.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.links)
}
