// Package fees computes and pays the two-level referral fees skimmed from purchases and redemptions.
package fees

import (
	"fmt"
	"math/big"

	"acdm-platform/internal/domain"
	"acdm-platform/internal/ledger"
)

// Rates are the level-1 and level-2 referral shares in basis points.
type Rates struct {
	Level1Bps int64 `yaml:"level1_bps" json:"level1_bps"`
	Level2Bps int64 `yaml:"level2_bps" json:"level2_bps"`
}

// Default rates.
var (
	SaleRates  = Rates{Level1Bps: 500, Level2Bps: 300}
	TradeRates = Rates{Level1Bps: 250, Level2Bps: 250}
)

// Validate checks that the rates are non-negative and leave something for the fallback.
func (r Rates) Validate() error {
	if r.Level1Bps < 0 || r.Level2Bps < 0 {
		return fmt.Errorf("referral rates must not be negative: %d/%d", r.Level1Bps, r.Level2Bps)
	}
	if r.Level1Bps+r.Level2Bps > domain.BpsBase {
		return fmt.Errorf("referral rates exceed %d bps: %d/%d", domain.BpsBase, r.Level1Bps, r.Level2Bps)
	}
	return nil
}

// ChainResolver resolves a participant's referral chain.
type ChainResolver interface {
	Chain(participant domain.Address) domain.Chain
}

// Split is a computed fee breakdown. Shares for absent levels are zero and stay in Net.
type Split struct {
	Gross     *big.Int     `json:"gross"`
	Chain     domain.Chain `json:"chain"`
	Level1Fee *big.Int     `json:"level1_fee"`
	Level2Fee *big.Int     `json:"level2_fee"`
	Net       *big.Int     `json:"net"`
}

// Distributor pays fee splits out of the source account.
type Distributor struct {
	chains ChainResolver
	source domain.Address
}

// NewDistributor creates a distributor paying from source.
func NewDistributor(chains ChainResolver, source domain.Address) *Distributor {
	return &Distributor{chains: chains, source: source}
}

// Split computes the breakdown of gross along participant's referral chain.
func (d *Distributor) Split(participant domain.Address, gross *big.Int, rates Rates) Split {
	return Compute(d.chains.Chain(participant), gross, rates)
}

// Compute is the pure fee calculation for a resolved chain.
func Compute(chain domain.Chain, gross *big.Int, rates Rates) Split {
	s := Split{
		Gross:     domain.Clone(gross),
		Chain:     chain,
		Level1Fee: new(big.Int),
		Level2Fee: new(big.Int),
	}
	if !chain.Level1.IsZero() {
		s.Level1Fee = domain.MulBps(gross, rates.Level1Bps)
	}
	if !chain.Level2.IsZero() {
		s.Level2Fee = domain.MulBps(gross, rates.Level2Bps)
	}
	s.Net = new(big.Int).Sub(s.Gross, s.Level1Fee)
	s.Net.Sub(s.Net, s.Level2Fee)
	return s
}

// Pay transfers the split from the source account: referrer shares first, then Net to fallback.
// Zero amounts and transfers back to the source are skipped. Pass a ledger.CoinTx to make
// the legs all-or-nothing.
func (d *Distributor) Pay(coins ledger.Coins, s Split, fallback domain.Address) ([]domain.Payout, error) {
	var payouts []domain.Payout
	legs := []domain.Payout{
		{To: s.Chain.Level1, Amount: s.Level1Fee, Reason: domain.PayoutLevel1},
		{To: s.Chain.Level2, Amount: s.Level2Fee, Reason: domain.PayoutLevel2},
		{To: fallback, Amount: s.Net, Reason: domain.PayoutFallback},
	}
	for _, leg := range legs {
		if leg.To.IsZero() || !domain.IsPositive(leg.Amount) {
			continue
		}
		if err := Transfer(coins, d.source, leg.To, leg.Amount); err != nil {
			return nil, fmt.Errorf("pay %s fee: %w", leg.Reason, err)
		}
		payouts = append(payouts, domain.Payout{To: leg.To, Amount: domain.Clone(leg.Amount), Reason: leg.Reason})
	}
	return payouts, nil
}

// Transfer moves coins between two accounts. Self-transfers are no-ops.
func Transfer(coins ledger.Coins, from, to domain.Address, amount *big.Int) error {
	if from == to {
		return nil
	}
	return coins.Transfer(from, to, amount)
}
