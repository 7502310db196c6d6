package api

import (
	"math/big"

	"acdm-platform/internal/domain"
)

// Amounts are JSON numbers in base units: wei for coins, whole tokens for ACDM.

// RegisterRequest is the body of POST /api/v1/referrals.
type RegisterRequest struct {
	Referrer domain.Address `json:"referrer"`
}

// ReferrerResponse is returned by GET /api/v1/referrals/{address}.
type ReferrerResponse struct {
	Participant domain.Address `json:"participant"`
	Referrer    domain.Address `json:"referrer"`
}

// BuyRequest is the body of POST /api/v1/purchases.
type BuyRequest struct {
	Amount  *big.Int `json:"amount"`
	Payment *big.Int `json:"payment"`
}

// AddOrderRequest is the body of POST /api/v1/orders.
type AddOrderRequest struct {
	Amount        *big.Int `json:"amount"`
	PricePerToken *big.Int `json:"price_per_token"`
}

// RedeemRequest is the body of POST /api/v1/orders/{id}/redeem.
type RedeemRequest struct {
	Amount  *big.Int `json:"amount"`
	Payment *big.Int `json:"payment"`
}

// ApproveRequest is the body of POST /api/v1/approvals.
type ApproveRequest struct {
	Amount *big.Int `json:"amount"`
}

// StatusRoundResponse is returned by GET /api/v1/status-round/{number}.
type StatusRoundResponse struct {
	Number int              `json:"number"`
	Kind   domain.RoundKind `json:"kind"`
}
