package storage

import (
	"context"

	"acdm-platform/internal/domain"
)

// RoundStore provides access to rounds storage.
// Rounds are mutable while current (inventory, burn, traded volume), so writes are upserts keyed by seq.
type RoundStore interface {
	// Upsert inserts the round or replaces the stored row with the same seq.
	Upsert(ctx context.Context, r *domain.Round) error

	// GetBySeq retrieves a round by history position. Returns ErrNotFound if not exists.
	GetBySeq(ctx context.Context, seq int) (*domain.Round, error)

	// GetByNumber retrieves the rounds of one cycle, ordered by seq ASC.
	GetByNumber(ctx context.Context, number int) ([]*domain.Round, error)

	// GetAll retrieves the full history, ordered by seq ASC.
	GetAll(ctx context.Context) ([]*domain.Round, error)
}

// OrderStore provides access to orders storage.
type OrderStore interface {
	// Upsert inserts the order or replaces the stored row with the same id.
	Upsert(ctx context.Context, o *domain.Order) error

	// GetByID retrieves an order by id. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, id uint64) (*domain.Order, error)

	// GetByOwner retrieves all orders of an owner, ordered by id ASC.
	GetByOwner(ctx context.Context, owner domain.Address) ([]*domain.Order, error)

	// GetByRound retrieves all orders placed in a cycle, ordered by id ASC.
	GetByRound(ctx context.Context, round int) ([]*domain.Order, error)
}

// ReferralStore provides access to referrals storage. Links are append-only.
type ReferralStore interface {
	// Insert adds a link. Returns ErrDuplicateKey if the participant already has one.
	Insert(ctx context.Context, r *domain.Referral) error

	// GetByParticipant retrieves a participant's link. Returns ErrNotFound if not exists.
	GetByParticipant(ctx context.Context, participant domain.Address) (*domain.Referral, error)

	// GetByReferrer retrieves the links pointing at a referrer, ordered by created_at ASC.
	GetByReferrer(ctx context.Context, referrer domain.Address) ([]*domain.Referral, error)

	// GetAll retrieves every link, ordered by created_at ASC.
	GetAll(ctx context.Context) ([]*domain.Referral, error)
}

// FillStore provides access to the fills analytics table. Fills are append-only.
type FillStore interface {
	// InsertBulk adds multiple fills. Fails entire batch on any duplicate fill_id.
	InsertBulk(ctx context.Context, fills []*domain.Fill) error

	// GetByRound retrieves the fills of a cycle, ordered by timestamp ASC.
	GetByRound(ctx context.Context, round int) ([]*domain.Fill, error)

	// GetByTimeRange retrieves fills within [start, end] unix ms (inclusive).
	GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.Fill, error)
}
