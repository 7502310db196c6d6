package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"acdm-platform/internal/domain"
	"acdm-platform/internal/storage"
)

// ReferralStore implements storage.ReferralStore using PostgreSQL.
type ReferralStore struct {
	pool *Pool
}

// NewReferralStore creates a new ReferralStore.
func NewReferralStore(pool *Pool) *ReferralStore {
	return &ReferralStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ReferralStore = (*ReferralStore)(nil)

// Insert adds a link. Returns ErrDuplicateKey if the participant already has one.
func (s *ReferralStore) Insert(ctx context.Context, r *domain.Referral) error {
	if r == nil || r.Participant.IsZero() || r.Referrer.IsZero() || r.Participant == r.Referrer {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO referrals (participant, referrer, created_at)
		VALUES ($1, $2, $3)
	`

	_, err := s.pool.Exec(ctx, query, string(r.Participant), string(r.Referrer), r.CreatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert referral: %w", err)
	}
	return nil
}

// GetByParticipant retrieves a participant's link. Returns ErrNotFound if not exists.
func (s *ReferralStore) GetByParticipant(ctx context.Context, participant domain.Address) (*domain.Referral, error) {
	query := `
		SELECT participant, referrer, created_at
		FROM referrals
		WHERE participant = $1
	`

	r, err := scanReferral(s.pool.QueryRow(ctx, query, string(participant)))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get referral by participant: %w", err)
	}
	return r, nil
}

// GetByReferrer retrieves the links pointing at referrer, ordered by created_at ASC.
func (s *ReferralStore) GetByReferrer(ctx context.Context, referrer domain.Address) ([]*domain.Referral, error) {
	query := `
		SELECT participant, referrer, created_at
		FROM referrals
		WHERE referrer = $1
		ORDER BY created_at ASC, participant ASC
	`

	rows, err := s.pool.Query(ctx, query, string(referrer))
	if err != nil {
		return nil, fmt.Errorf("get referrals by referrer: %w", err)
	}
	defer rows.Close()

	return scanReferrals(rows)
}

// GetAll retrieves every link, ordered by created_at ASC.
func (s *ReferralStore) GetAll(ctx context.Context) ([]*domain.Referral, error) {
	query := `
		SELECT participant, referrer, created_at
		FROM referrals
		ORDER BY created_at ASC, participant ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get all referrals: %w", err)
	}
	defer rows.Close()

	return scanReferrals(rows)
}

func scanReferral(row pgx.Row) (*domain.Referral, error) {
	var participant, referrer string
	var r domain.Referral
	if err := row.Scan(&participant, &referrer, &r.CreatedAt); err != nil {
		return nil, err
	}
	r.Participant = domain.Address(participant)
	r.Referrer = domain.Address(referrer)
	return &r, nil
}

func scanReferrals(rows pgx.Rows) ([]*domain.Referral, error) {
	var links []*domain.Referral

	for rows.Next() {
		r, err := scanReferral(rows)
		if err != nil {
			return nil, fmt.Errorf("scan referral row: %w", err)
		}
		links = append(links, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate referral rows: %w", err)
	}

	return links, nil
}
