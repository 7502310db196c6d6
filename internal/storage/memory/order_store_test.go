package memory

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"acdm-platform/internal/domain"
	"acdm-platform/internal/domain/domaintest"
	"acdm-platform/internal/storage"
)

func testOrder(id uint64, owner domain.Address, round int) *domain.Order {
	return &domain.Order{
		ID:            id,
		Owner:         owner,
		Round:         round,
		PricePerToken: big.NewInt(10_000_000_000_000_000),
		Amount:        big.NewInt(100),
		Remaining:     big.NewInt(100),
		Status:        domain.OrderOpen,
		CreatedAt:     domaintest.Now(),
		UpdatedAt:     domaintest.Now(),
	}
}

func TestOrderStore_UpsertAndGet(t *testing.T) {
	store := NewOrderStore()
	ctx := context.Background()
	alice := domaintest.Address(2)

	o := testOrder(1, alice, 0)
	if err := store.Upsert(ctx, o); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	o.Remaining = big.NewInt(40)
	if err := store.Upsert(ctx, o); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	got, err := store.GetByID(ctx, 1)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Remaining.Int64() != 40 {
		t.Errorf("Remaining mismatch: got %s, want 40", got.Remaining)
	}
	if got.Owner != alice {
		t.Errorf("Owner mismatch: got %s", got.Owner)
	}
}

func TestOrderStore_NotFoundAndInvalid(t *testing.T) {
	store := NewOrderStore()
	ctx := context.Background()

	if _, err := store.GetByID(ctx, 9); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	if err := store.Upsert(ctx, &domain.Order{ID: 0, Owner: domaintest.Address(2)}); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}
}

func TestOrderStore_Queries(t *testing.T) {
	store := NewOrderStore()
	ctx := context.Background()
	alice, bob := domaintest.Address(2), domaintest.Address(3)

	for _, o := range []*domain.Order{
		testOrder(3, alice, 1),
		testOrder(1, alice, 0),
		testOrder(2, bob, 0),
	} {
		if err := store.Upsert(ctx, o); err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}
	}

	byOwner, _ := store.GetByOwner(ctx, alice)
	if len(byOwner) != 2 || byOwner[0].ID != 1 || byOwner[1].ID != 3 {
		t.Errorf("GetByOwner returned unexpected orders: %d", len(byOwner))
	}

	byRound, _ := store.GetByRound(ctx, 0)
	if len(byRound) != 2 || byRound[0].ID != 1 || byRound[1].ID != 2 {
		t.Errorf("GetByRound returned unexpected orders: %d", len(byRound))
	}
}
