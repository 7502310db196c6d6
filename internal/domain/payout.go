package domain

import "math/big"

// PayoutReason explains why value left the platform account.
type PayoutReason string

// Payout reasons
const (
	PayoutLevel1   PayoutReason = "level1"
	PayoutLevel2   PayoutReason = "level2"
	PayoutFallback PayoutReason = "fallback"
	PayoutRefund   PayoutReason = "refund"
)

// Payout is one coin transfer performed by an operation.
type Payout struct {
	To     Address      `json:"to"`
	Amount *big.Int     `json:"amount"`
	Reason PayoutReason `json:"reason"`
}
