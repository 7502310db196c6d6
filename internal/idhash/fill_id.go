// Package idhash derives deterministic record identifiers.
package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"

	"acdm-platform/internal/domain"
)

// ComputeFillID computes a deterministic fill_id using SHA256.
// Formula: SHA256(kind|round|order_id|buyer|amount|timestamp_ms|op_seq)
// op_seq is the committing operation's sequence number, which separates
// otherwise identical fills in the same millisecond.
// Returns hex-encoded hash (64 characters).
func ComputeFillID(
	kind domain.FillKind,
	round int,
	orderID uint64,
	buyer domain.Address,
	amount *big.Int,
	timestampMs int64,
	opSeq uint64,
) string {
	amt := "0"
	if amount != nil {
		amt = amount.String()
	}

	data := fmt.Sprintf("%s|%d|%d|%s|%s|%d|%d",
		string(kind),
		round,
		orderID,
		string(buyer),
		amt,
		timestampMs,
		opSeq,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
