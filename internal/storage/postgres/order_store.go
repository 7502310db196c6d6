package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"acdm-platform/internal/domain"
	"acdm-platform/internal/storage"
)

// OrderStore implements storage.OrderStore using PostgreSQL.
type OrderStore struct {
	pool *Pool
}

// NewOrderStore creates a new OrderStore.
func NewOrderStore(pool *Pool) *OrderStore {
	return &OrderStore{pool: pool}
}

// Compile-time interface check.
var _ storage.OrderStore = (*OrderStore)(nil)

const orderColumns = `
	id, owner, round, price_per_token::text, amount::text, remaining::text,
	status, created_at, updated_at
`

// Upsert inserts the order or replaces the mutable fields of the row with the same id.
func (s *OrderStore) Upsert(ctx context.Context, o *domain.Order) error {
	if o == nil || o.ID == 0 || o.Owner.IsZero() {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO orders (
			id, owner, round, price_per_token, amount, remaining,
			status, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4::text::numeric, $5::text::numeric, $6::text::numeric,
			$7, $8, $9
		)
		ON CONFLICT (id) DO UPDATE SET
			remaining = EXCLUDED.remaining,
			status = EXCLUDED.status,
			updated_at = EXCLUDED.updated_at
	`

	_, err := s.pool.Exec(ctx, query,
		int64(o.ID), string(o.Owner), o.Round,
		numericArg(o.PricePerToken), numericArg(o.Amount), numericArg(o.Remaining),
		string(o.Status), o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert order: %w", err)
	}
	return nil
}

// GetByID retrieves an order by id. Returns ErrNotFound if not exists.
func (s *OrderStore) GetByID(ctx context.Context, id uint64) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	o, err := scanOrder(s.pool.QueryRow(ctx, query, int64(id)))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get order by id: %w", err)
	}
	return o, nil
}

// GetByOwner retrieves all orders of an owner, ordered by id ASC.
func (s *OrderStore) GetByOwner(ctx context.Context, owner domain.Address) ([]*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE owner = $1 ORDER BY id ASC`

	rows, err := s.pool.Query(ctx, query, string(owner))
	if err != nil {
		return nil, fmt.Errorf("get orders by owner: %w", err)
	}
	defer rows.Close()

	return scanOrders(rows)
}

// GetByRound retrieves all orders placed in a cycle, ordered by id ASC.
func (s *OrderStore) GetByRound(ctx context.Context, round int) ([]*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE round = $1 ORDER BY id ASC`

	rows, err := s.pool.Query(ctx, query, round)
	if err != nil {
		return nil, fmt.Errorf("get orders by round: %w", err)
	}
	defer rows.Close()

	return scanOrders(rows)
}

// scanOrder scans a single row into an Order.
func scanOrder(row pgx.Row) (*domain.Order, error) {
	var (
		o                        domain.Order
		id                       int64
		owner, status            string
		price, amount, remaining string
	)
	if err := row.Scan(&id, &owner, &o.Round, &price, &amount, &remaining, &status, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}
	o.ID = uint64(id)
	o.Owner = domain.Address(owner)
	o.Status = domain.OrderStatus(status)

	var err error
	if o.PricePerToken, err = parseNumeric(&price); err != nil {
		return nil, err
	}
	if o.Amount, err = parseNumeric(&amount); err != nil {
		return nil, err
	}
	if o.Remaining, err = parseNumeric(&remaining); err != nil {
		return nil, err
	}
	return &o, nil
}

// scanOrders scans multiple rows into a slice of Order.
func scanOrders(rows pgx.Rows) ([]*domain.Order, error) {
	var orders []*domain.Order

	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order rows: %w", err)
	}

	return orders, nil
}
