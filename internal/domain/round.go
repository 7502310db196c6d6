package domain

import (
	"fmt"
	"math/big"
	"time"
)

// RoundKind is the phase of a round.
type RoundKind int

// Round kinds. Values match the on-chain status codes (0 sale, 1 trade).
const (
	RoundSale RoundKind = iota
	RoundTrade
)

func (k RoundKind) String() string {
	switch k {
	case RoundSale:
		return "sale"
	case RoundTrade:
		return "trade"
	default:
		return fmt.Sprintf("RoundKind(%d)", int(k))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k RoundKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *RoundKind) UnmarshalText(b []byte) error {
	switch string(b) {
	case "sale":
		*k = RoundSale
	case "trade":
		*k = RoundTrade
	default:
		return fmt.Errorf("unknown round kind %q", string(b))
	}
	return nil
}

// Round is one entry of the append-only round history.
type Round struct {
	Seq       int       `json:"seq"`    // position in history, from 0
	Number    int       `json:"number"` // cycle number shared by a sale round and the trade round after it
	Kind      RoundKind `json:"kind"`
	StartTime time.Time `json:"start_time"`
	Price     *big.Int  `json:"price"` // wei per token of the sale round in this cycle

	// Sale rounds only
	SaleSupply    *big.Int `json:"sale_supply,omitempty"`
	SaleRemaining *big.Int `json:"sale_remaining,omitempty"`
	Burned        *big.Int `json:"burned,omitempty"`

	// Trade rounds only
	EthTraded *big.Int `json:"eth_traded,omitempty"`
}

// EndsAt returns the nominal end of the round.
func (r *Round) EndsAt(d time.Duration) time.Time {
	return r.StartTime.Add(d)
}

// Elapsed reports whether the round's duration has passed at now.
func (r *Round) Elapsed(now time.Time, d time.Duration) bool {
	return !now.Before(r.EndsAt(d))
}

// Clone returns a deep copy.
func (r Round) Clone() Round {
	out := r
	out.Price = Clone(r.Price)
	if r.SaleSupply != nil {
		out.SaleSupply = Clone(r.SaleSupply)
	}
	if r.SaleRemaining != nil {
		out.SaleRemaining = Clone(r.SaleRemaining)
	}
	if r.Burned != nil {
		out.Burned = Clone(r.Burned)
	}
	if r.EthTraded != nil {
		out.EthTraded = Clone(r.EthTraded)
	}
	return out
}
