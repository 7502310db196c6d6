package domain

import (
	"errors"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// AddressLen is the size of a decoded participant key.
const AddressLen = 32

// ErrInvalidAddress is returned when an address cannot be parsed.
var ErrInvalidAddress = errors.New("invalid address")

// Address identifies a participant: the base58 text of a 32-byte ed25519 public key.
type Address string

// ParseAddress validates s and returns it as an Address.
// The decoded bytes must be a valid compressed edwards25519 point.
func ParseAddress(s string) (Address, error) {
	if s == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidAddress)
	}
	raw, err := base58.Decode(s)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	if len(raw) != AddressLen {
		return "", fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidAddress, AddressLen, len(raw))
	}
	if _, err := new(edwards25519.Point).SetBytes(raw); err != nil {
		return "", fmt.Errorf("%w: not a curve point", ErrInvalidAddress)
	}
	return Address(s), nil
}

// AddressFromPublicKey encodes a raw ed25519 public key.
func AddressFromPublicKey(pub []byte) (Address, error) {
	if len(pub) != AddressLen {
		return "", fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidAddress, AddressLen, len(pub))
	}
	return ParseAddress(base58.Encode(pub))
}

// IsZero reports whether the address is unset.
func (a Address) IsZero() bool {
	return a == ""
}

func (a Address) String() string {
	return string(a)
}
