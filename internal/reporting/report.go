package reporting

import (
	"math/big"
	"time"

	"acdm-platform/internal/domain"
)

// Report is the platform activity report.
type Report struct {
	GeneratedAt time.Time

	Summary Summary

	// Rounds sorted by seq
	Rounds []RoundRow

	// Referral earnings sorted by total desc, then address
	Earners []EarnerRow

	// Consistency checks between stored rounds and fills
	IntegrityErrors []string
}

// Summary totals the whole history. Coin amounts are wei.
type Summary struct {
	SaleRounds   int
	TradeRounds  int
	Referrals    int
	Orders       int
	Purchases    int
	Redemptions  int
	TokensSold   *big.Int
	TokensBurned *big.Int
	SaleVolume   *big.Int
	TradeVolume  *big.Int
	Level1Fees   *big.Int
	Level2Fees   *big.Int
	DateRange    [2]time.Time // first and last round start
}

// RoundRow is one round of the history.
type RoundRow struct {
	Seq       int
	Number    int
	Kind      domain.RoundKind
	StartTime time.Time
	Price     *big.Int
	Supply    *big.Int // sale rounds
	Sold      *big.Int // sale rounds
	Burned    *big.Int // sale rounds
	EthTraded *big.Int // trade rounds
	Fills     int
	Volume    *big.Int // sum of fill costs recorded for this round
	Orders    int      // orders placed, trade rounds
}

// EarnerRow is one referrer's fee income.
type EarnerRow struct {
	Address domain.Address
	Level1  *big.Int
	Level2  *big.Int
	Total   *big.Int
}
