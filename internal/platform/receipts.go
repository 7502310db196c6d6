package platform

import (
	"math/big"
	"time"

	"acdm-platform/internal/domain"
	"acdm-platform/internal/fees"
	"acdm-platform/internal/orderbook"
)

// Registered is returned by Register.
type Registered struct {
	Referral domain.Referral `json:"referral"`
	Chain    domain.Chain    `json:"chain"`
}

// RoundStarted is returned by StartSaleRound and StartTradeRound.
type RoundStarted struct {
	Round   domain.Round        `json:"round"`
	Burned  *big.Int            `json:"burned"`  // unsold inventory of the previous sale round
	Minted  *big.Int            `json:"minted"`  // supply minted for the new sale round
	Expired []orderbook.Release `json:"expired"` // orders returned to their owners
}

// Purchase is returned by BuyACDM.
type Purchase struct {
	Round   domain.Round    `json:"round"`
	Buyer   domain.Address  `json:"buyer"`
	Amount  *big.Int        `json:"amount"`
	Price   *big.Int        `json:"price"`
	Cost    *big.Int        `json:"cost"`
	Refund  *big.Int        `json:"refund"`
	Split   fees.Split      `json:"split"`
	Payouts []domain.Payout `json:"payouts"`
	At      time.Time       `json:"at"`
}

// OrderPlaced is returned by AddOrder.
type OrderPlaced struct {
	Order domain.Order `json:"order"`
}

// OrderRemoved is returned by RemoveOrder.
type OrderRemoved struct {
	Order    domain.Order `json:"order"`
	Released *big.Int     `json:"released"`
}

// Redemption is returned by RedeemOrder.
type Redemption struct {
	Round   domain.Round    `json:"round"`
	Order   domain.Order    `json:"order"`
	Buyer   domain.Address  `json:"buyer"`
	Amount  *big.Int        `json:"amount"`
	Cost    *big.Int        `json:"cost"`
	Refund  *big.Int        `json:"refund"`
	Split   fees.Split      `json:"split"`
	Payouts []domain.Payout `json:"payouts"`
	At      time.Time       `json:"at"`
}

// Snapshot is a read-only view of platform state.
type Snapshot struct {
	Time           time.Time     `json:"time"`
	Current        *domain.Round `json:"current,omitempty"`
	RoundCount     int           `json:"round_count"`
	OpenOrders     int           `json:"open_orders"`
	Escrow         *big.Int      `json:"escrow"`
	Inventory      *big.Int      `json:"inventory"`
	PlatformTokens *big.Int      `json:"platform_tokens"`
	PlatformCoins  *big.Int      `json:"platform_coins"`
	TotalSupply    *big.Int      `json:"total_supply"`
	Referrals      int           `json:"referrals"`
	RoundEndsAt    *time.Time    `json:"round_ends_at,omitempty"`
}
