package domain

import (
	"math/big"
	"time"
)

// FillKind distinguishes sale purchases from order redemptions.
type FillKind string

// Fill kinds
const (
	FillPurchase   FillKind = "purchase"
	FillRedemption FillKind = "redemption"
)

// Fill records one executed purchase or redemption with its fee breakdown.
// Corresponds to the fills table in ClickHouse.
type Fill struct {
	FillID    string   // deterministic hash
	Kind      FillKind // purchase | redemption
	Round     int      // cycle number
	OrderID   uint64   // 0 for purchases
	Buyer     Address
	Seller    Address // platform account for purchases
	Amount    *big.Int
	Price     *big.Int // wei per token
	Cost      *big.Int // Amount * Price
	Level1    Address
	Level1Fee *big.Int
	Level2    Address
	Level2Fee *big.Int
	Net       *big.Int // credited to the fallback recipient
	Refund    *big.Int
	Timestamp time.Time
}
