package idhash

import (
	"math/big"
	"testing"

	"acdm-platform/internal/domain"
)

func TestComputeFillID(t *testing.T) {
	buyer := domain.Address("8qbHbw2BbbTHBW1sbeqakYXVKRQM8Ne7pLK7m6CVfeR")

	tests := []struct {
		name    string
		kind    domain.FillKind
		orderID uint64
		amount  *big.Int
	}{
		{"purchase", domain.FillPurchase, 0, big.NewInt(1000)},
		{"redemption", domain.FillRedemption, 7, big.NewInt(60)},
		{"nil amount", domain.FillPurchase, 0, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeFillID(tt.kind, 1, tt.orderID, buyer, tt.amount, 1_700_000_000_000, 3)
			if len(got) != 64 {
				t.Errorf("ComputeFillID() length = %d, want 64", len(got))
			}
			got2 := ComputeFillID(tt.kind, 1, tt.orderID, buyer, tt.amount, 1_700_000_000_000, 3)
			if got != got2 {
				t.Errorf("ComputeFillID() not deterministic: %s != %s", got, got2)
			}
		})
	}
}

func TestComputeFillID_DistinctInputs(t *testing.T) {
	buyer := domain.Address("buyer")
	base := ComputeFillID(domain.FillPurchase, 0, 0, buyer, big.NewInt(1), 1000, 1)

	variants := map[string]string{
		"kind":   ComputeFillID(domain.FillRedemption, 0, 0, buyer, big.NewInt(1), 1000, 1),
		"round":  ComputeFillID(domain.FillPurchase, 1, 0, buyer, big.NewInt(1), 1000, 1),
		"order":  ComputeFillID(domain.FillPurchase, 0, 1, buyer, big.NewInt(1), 1000, 1),
		"buyer":  ComputeFillID(domain.FillPurchase, 0, 0, "other", big.NewInt(1), 1000, 1),
		"amount": ComputeFillID(domain.FillPurchase, 0, 0, buyer, big.NewInt(2), 1000, 1),
		"time":   ComputeFillID(domain.FillPurchase, 0, 0, buyer, big.NewInt(1), 1001, 1),
		"op seq": ComputeFillID(domain.FillPurchase, 0, 0, buyer, big.NewInt(1), 1000, 2),
	}
	for name, id := range variants {
		if id == base {
			t.Errorf("changing %s did not change the fill id", name)
		}
	}
}
