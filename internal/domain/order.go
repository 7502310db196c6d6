package domain

import (
	"math/big"
	"time"
)

// OrderStatus is the lifecycle state of a trade-round sell order.
type OrderStatus string

// Order status constants
const (
	OrderOpen      OrderStatus = "open"
	OrderFilled    OrderStatus = "filled"
	OrderCancelled OrderStatus = "cancelled"
	OrderExpired   OrderStatus = "expired"
)

// Order is a sell order whose tokens are escrowed by the platform.
type Order struct {
	ID            uint64      `json:"id"` // sequence from 1
	Owner         Address     `json:"owner"`
	Round         int         `json:"round"` // cycle number the order was placed in
	PricePerToken *big.Int    `json:"price_per_token"`
	Amount        *big.Int    `json:"amount"`    // original size
	Remaining     *big.Int    `json:"remaining"` // <= Amount
	Status        OrderStatus `json:"status"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// IsOpen reports whether the order still has escrowed tokens.
func (o *Order) IsOpen() bool {
	return o.Status == OrderOpen && IsPositive(o.Remaining)
}

// Clone returns a deep copy.
func (o Order) Clone() Order {
	out := o
	out.PricePerToken = Clone(o.PricePerToken)
	out.Amount = Clone(o.Amount)
	out.Remaining = Clone(o.Remaining)
	return out
}
