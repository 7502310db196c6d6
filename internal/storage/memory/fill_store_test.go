package memory

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"acdm-platform/internal/domain"
	"acdm-platform/internal/domain/domaintest"
	"acdm-platform/internal/storage"
)

func testFill(id string, round int, ts time.Time) *domain.Fill {
	return &domain.Fill{
		FillID:    id,
		Kind:      domain.FillPurchase,
		Round:     round,
		Buyer:     domaintest.Address(2),
		Seller:    domaintest.Address(9),
		Amount:    big.NewInt(1000),
		Price:     big.NewInt(10_000_000_000_000),
		Cost:      big.NewInt(10_000_000_000_000_000),
		Level1Fee: big.NewInt(0),
		Level2Fee: big.NewInt(0),
		Net:       big.NewInt(10_000_000_000_000_000),
		Refund:    big.NewInt(0),
		Timestamp: ts,
	}
}

func TestFillStore_InsertBulkAndQuery(t *testing.T) {
	store := NewFillStore()
	ctx := context.Background()
	t0 := domaintest.Now()

	fills := []*domain.Fill{
		testFill("f2", 0, t0.Add(2*time.Second)),
		testFill("f1", 0, t0.Add(time.Second)),
		testFill("f3", 1, t0.Add(3*time.Second)),
	}
	if err := store.InsertBulk(ctx, fills); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	round0, _ := store.GetByRound(ctx, 0)
	if len(round0) != 2 || round0[0].FillID != "f1" {
		t.Errorf("GetByRound returned unexpected fills")
	}

	ranged, _ := store.GetByTimeRange(ctx, t0.Add(2*time.Second).UnixMilli(), t0.Add(3*time.Second).UnixMilli())
	if len(ranged) != 2 {
		t.Errorf("Expected 2 fills in range, got %d", len(ranged))
	}
}

func TestFillStore_InsertBulkPartialDuplicate(t *testing.T) {
	store := NewFillStore()
	ctx := context.Background()
	t0 := domaintest.Now()

	if err := store.InsertBulk(ctx, []*domain.Fill{testFill("f1", 0, t0)}); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	err := store.InsertBulk(ctx, []*domain.Fill{testFill("f2", 0, t0), testFill("f1", 0, t0)})
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}

	// f2 must not have been inserted
	all, _ := store.GetByRound(ctx, 0)
	if len(all) != 1 {
		t.Errorf("Expected 1 fill after failed batch, got %d", len(all))
	}

	err = store.InsertBulk(ctx, []*domain.Fill{testFill("f4", 0, t0), testFill("f4", 0, t0)})
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey for intra-batch duplicate, got %v", err)
	}
}
