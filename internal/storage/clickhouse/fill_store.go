package clickhouse

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"acdm-platform/internal/domain"
	"acdm-platform/internal/storage"
)

// FillStore implements storage.FillStore using ClickHouse.
type FillStore struct {
	conn *Conn
}

// NewFillStore creates a new FillStore.
func NewFillStore(conn *Conn) *FillStore {
	return &FillStore{conn: conn}
}

// Compile-time interface check.
var _ storage.FillStore = (*FillStore)(nil)

const fillColumns = `
	fill_id, kind, round, order_id, buyer, seller,
	amount, price, cost, level1, level1_fee, level2, level2_fee, net, refund, timestamp_ms
`

// InsertBulk adds multiple fills. Fails entire batch on duplicate fill_id.
func (s *FillStore) InsertBulk(ctx context.Context, fills []*domain.Fill) error {
	if len(fills) == 0 {
		return nil
	}

	// Check for intra-batch duplicates
	seen := make(map[string]struct{}, len(fills))
	for _, f := range fills {
		if f == nil || f.FillID == "" {
			return storage.ErrInvalidInput
		}
		if _, exists := seen[f.FillID]; exists {
			return storage.ErrDuplicateKey
		}
		seen[f.FillID] = struct{}{}
	}

	// MergeTree does not enforce uniqueness, so check existing rows explicitly
	for _, f := range fills {
		exists, err := s.exists(ctx, f.FillID)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `INSERT INTO fills (`+fillColumns+`)`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, f := range fills {
		err = batch.Append(
			f.FillID, string(f.Kind), uint32(f.Round), f.OrderID, string(f.Buyer), string(f.Seller),
			u256(f.Amount), u256(f.Price), u256(f.Cost),
			string(f.Level1), u256(f.Level1Fee), string(f.Level2), u256(f.Level2Fee),
			u256(f.Net), u256(f.Refund), uint64(f.Timestamp.UnixMilli()),
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByRound retrieves the fills of a cycle, ordered by timestamp ASC.
func (s *FillStore) GetByRound(ctx context.Context, round int) ([]*domain.Fill, error) {
	query := `SELECT ` + fillColumns + ` FROM fills WHERE round = ? ORDER BY timestamp_ms ASC, fill_id ASC`

	rows, err := s.conn.Query(ctx, query, uint32(round))
	if err != nil {
		return nil, fmt.Errorf("query by round: %w", err)
	}
	defer rows.Close()

	return scanFills(rows)
}

// GetByTimeRange retrieves fills within [start, end] unix ms (inclusive).
func (s *FillStore) GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.Fill, error) {
	query := `SELECT ` + fillColumns + ` FROM fills WHERE timestamp_ms >= ? AND timestamp_ms <= ? ORDER BY timestamp_ms ASC, fill_id ASC`

	rows, err := s.conn.Query(ctx, query, uint64(start), uint64(end))
	if err != nil {
		return nil, fmt.Errorf("query by time range: %w", err)
	}
	defer rows.Close()

	return scanFills(rows)
}

func (s *FillStore) exists(ctx context.Context, fillID string) (bool, error) {
	var count uint64
	err := s.conn.QueryRow(ctx, `SELECT count(*) FROM fills WHERE fill_id = ?`, fillID).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// u256 maps nil amounts to zero for UInt256 columns.
func u256(x *big.Int) *big.Int {
	if x == nil {
		return new(big.Int)
	}
	return x
}

func scanFills(rows chRows) ([]*domain.Fill, error) {
	var fills []*domain.Fill

	for rows.Next() {
		var (
			f                                   domain.Fill
			kind, buyer, seller, level1, level2 string
			round                               uint32
			timestampMs                         uint64
		)
		err := rows.Scan(
			&f.FillID, &kind, &round, &f.OrderID, &buyer, &seller,
			&f.Amount, &f.Price, &f.Cost, &level1, &f.Level1Fee, &level2, &f.Level2Fee,
			&f.Net, &f.Refund, &timestampMs,
		)
		if err != nil {
			return nil, fmt.Errorf("scan fill row: %w", err)
		}

		f.Kind = domain.FillKind(kind)
		f.Round = int(round)
		f.Buyer = domain.Address(buyer)
		f.Seller = domain.Address(seller)
		f.Level1 = domain.Address(level1)
		f.Level2 = domain.Address(level2)
		f.Timestamp = time.UnixMilli(int64(timestampMs)).UTC()
		fills = append(fills, &f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate fill rows: %w", err)
	}

	return fills, nil
}
