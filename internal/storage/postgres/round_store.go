package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"acdm-platform/internal/domain"
	"acdm-platform/internal/storage"
)

// RoundStore implements storage.RoundStore using PostgreSQL.
type RoundStore struct {
	pool *Pool
}

// NewRoundStore creates a new RoundStore.
func NewRoundStore(pool *Pool) *RoundStore {
	return &RoundStore{pool: pool}
}

// Compile-time interface check.
var _ storage.RoundStore = (*RoundStore)(nil)

const roundColumns = `
	seq, number, kind, start_time, price::text,
	sale_supply::text, sale_remaining::text, burned::text, eth_traded::text
`

// Upsert inserts the round or replaces the stored row with the same seq.
func (s *RoundStore) Upsert(ctx context.Context, r *domain.Round) error {
	if r == nil || r.Seq < 0 || r.Price == nil {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO rounds (
			seq, number, kind, start_time, price,
			sale_supply, sale_remaining, burned, eth_traded
		) VALUES (
			$1, $2, $3, $4, $5::text::numeric,
			$6::text::numeric, $7::text::numeric, $8::text::numeric, $9::text::numeric
		)
		ON CONFLICT (seq) DO UPDATE SET
			sale_remaining = EXCLUDED.sale_remaining,
			burned = EXCLUDED.burned,
			eth_traded = EXCLUDED.eth_traded,
			updated_at = now()
	`

	_, err := s.pool.Exec(ctx, query,
		r.Seq, r.Number, r.Kind.String(), r.StartTime, numericArg(r.Price),
		numericArg(r.SaleSupply), numericArg(r.SaleRemaining), numericArg(r.Burned), numericArg(r.EthTraded),
	)
	if err != nil {
		return fmt.Errorf("upsert round: %w", err)
	}
	return nil
}

// GetBySeq retrieves a round by seq. Returns ErrNotFound if not exists.
func (s *RoundStore) GetBySeq(ctx context.Context, seq int) (*domain.Round, error) {
	query := `SELECT ` + roundColumns + ` FROM rounds WHERE seq = $1`

	r, err := scanRound(s.pool.QueryRow(ctx, query, seq))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get round by seq: %w", err)
	}
	return r, nil
}

// GetByNumber retrieves the rounds of one cycle, ordered by seq ASC.
func (s *RoundStore) GetByNumber(ctx context.Context, number int) ([]*domain.Round, error) {
	query := `SELECT ` + roundColumns + ` FROM rounds WHERE number = $1 ORDER BY seq ASC`

	rows, err := s.pool.Query(ctx, query, number)
	if err != nil {
		return nil, fmt.Errorf("get rounds by number: %w", err)
	}
	defer rows.Close()

	return scanRounds(rows)
}

// GetAll retrieves the full history, ordered by seq ASC.
func (s *RoundStore) GetAll(ctx context.Context) ([]*domain.Round, error) {
	query := `SELECT ` + roundColumns + ` FROM rounds ORDER BY seq ASC`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get all rounds: %w", err)
	}
	defer rows.Close()

	return scanRounds(rows)
}

// scanRound scans a single row into a Round.
func scanRound(row pgx.Row) (*domain.Round, error) {
	var (
		r                                    domain.Round
		kind                                 string
		price                                string
		supply, remaining, burned, ethTraded *string
	)
	if err := row.Scan(&r.Seq, &r.Number, &kind, &r.StartTime, &price, &supply, &remaining, &burned, &ethTraded); err != nil {
		return nil, err
	}
	if err := r.Kind.UnmarshalText([]byte(kind)); err != nil {
		return nil, err
	}

	var err error
	if r.Price, err = parseNumeric(&price); err != nil {
		return nil, err
	}
	if r.SaleSupply, err = parseNumeric(supply); err != nil {
		return nil, err
	}
	if r.SaleRemaining, err = parseNumeric(remaining); err != nil {
		return nil, err
	}
	if r.Burned, err = parseNumeric(burned); err != nil {
		return nil, err
	}
	if r.EthTraded, err = parseNumeric(ethTraded); err != nil {
		return nil, err
	}
	return &r, nil
}

// scanRounds scans multiple rows into a slice of Round.
func scanRounds(rows pgx.Rows) ([]*domain.Round, error) {
	var rounds []*domain.Round

	for rows.Next() {
		r, err := scanRound(rows)
		if err != nil {
			return nil, fmt.Errorf("scan round row: %w", err)
		}
		rounds = append(rounds, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate round rows: %w", err)
	}

	return rounds, nil
}
