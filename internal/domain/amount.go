package domain

import "math/big"

// BpsBase is the basis-point denominator (100%).
const BpsBase = 10000

// Zero returns a new zero amount.
func Zero() *big.Int {
	return new(big.Int)
}

// Clone copies an amount; nil becomes zero.
func Clone(x *big.Int) *big.Int {
	if x == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(x)
}

// MulBps returns floor(x * bps / BpsBase).
func MulBps(x *big.Int, bps int64) *big.Int {
	if x == nil || bps == 0 {
		return new(big.Int)
	}
	out := new(big.Int).Mul(x, big.NewInt(bps))
	return out.Quo(out, big.NewInt(BpsBase))
}

// IsPositive reports whether x > 0.
func IsPositive(x *big.Int) bool {
	return x != nil && x.Sign() > 0
}
