// Package domaintest provides deterministic participant addresses for tests.
package domaintest

import (
	"crypto/ed25519"
	"math/big"
	"time"

	"acdm-platform/internal/domain"
)

// Address derives a valid participant address from a one-byte seed.
func Address(seed byte) domain.Address {
	s := make([]byte, ed25519.SeedSize)
	for i := range s {
		s[i] = seed
	}
	pub := ed25519.NewKeyFromSeed(s).Public().(ed25519.PublicKey)
	addr, err := domain.AddressFromPublicKey(pub)
	if err != nil {
		panic(err)
	}
	return addr
}

// Ether converts a decimal ether string to wei. It panics on malformed input.
func Ether(s string) *big.Int {
	r, ok := new(big.Rat).SetString(s)
	if !ok {
		panic("domaintest: bad ether amount " + s)
	}
	r.Mul(r, new(big.Rat).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)))
	if !r.IsInt() {
		panic("domaintest: ether amount below one wei " + s)
	}
	return new(big.Int).Set(r.Num())
}

// Int is shorthand for big.NewInt.
func Int(v int64) *big.Int {
	return big.NewInt(v)
}

// Now is a fixed reference time.
func Now() time.Time {
	return time.Unix(1_700_000_000, 0).UTC()
}
