package platform

import (
	"acdm-platform/internal/domain"
	"acdm-platform/internal/ledger"
	"acdm-platform/internal/orderbook"
	"acdm-platform/internal/referral"
	"acdm-platform/internal/rounds"
)

// Platform errors
var (
	ErrNotAdmin            = domain.NewError(domain.ErrAuthorization, "caller is not the admin")
	ErrInsufficientPayment = domain.NewError(domain.ErrPayment, "payment does not cover the cost")
	ErrInsufficientFunds   = domain.NewError(domain.ErrPayment, "caller does not have enough ETH")
	ErrInsufficientBalance = domain.NewError(domain.ErrSupply, "caller does not have enough tokens")
	ErrInvalidAmount       = domain.NewError(domain.ErrInvalidArgument, "amount must be positive")
	ErrReentrantCall       = domain.NewError(domain.ErrState, "reentrant call")
	ErrConservation        = domain.NewError(domain.ErrState, "token conservation violated")
)

// Component errors surfaced by platform operations.
var (
	ErrInsufficientAllowance = ledger.ErrInsufficientAllowance

	ErrAlreadyRegistered = referral.ErrAlreadyRegistered
	ErrSelfReferral      = referral.ErrSelfReferral
	ErrNotRegistered     = referral.ErrNotRegistered

	ErrNoActiveRound      = rounds.ErrNoActiveRound
	ErrRoundNotFinished   = rounds.ErrRoundNotFinished
	ErrWrongRoundKind     = rounds.ErrWrongRoundKind
	ErrSaleAlreadyActive  = rounds.ErrSaleAlreadyActive
	ErrTradeAlreadyActive = rounds.ErrTradeAlreadyActive
	ErrNotSaleRound       = rounds.ErrNotSaleRound
	ErrNotTradeRound      = rounds.ErrNotTradeRound
	ErrInsufficientSupply = rounds.ErrInsufficientSupply
	ErrRoundNotFound      = rounds.ErrRoundNotFound

	ErrOrderNotFound = orderbook.ErrOrderNotFound
	ErrExhausted     = orderbook.ErrExhausted
	ErrNotOwner      = orderbook.ErrNotOwner
)
