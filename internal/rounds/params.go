package rounds

import (
	"fmt"
	"math/big"
	"time"
)

// Params configure round timing and sale pricing.
type Params struct {
	Duration        time.Duration // shared by sale and trade rounds
	BootstrapPrice  *big.Int      // wei per token in the first sale round
	BootstrapSupply *big.Int      // tokens minted for the first sale round
	GrowthBps       int64         // price multiplier applied each cycle
	Increment       *big.Int      // wei added after the multiplier
}

// DefaultParams: three-day rounds, 1000 tokens per 0.01 ETH, +3% +0.000004 ETH per cycle.
func DefaultParams() Params {
	return Params{
		Duration:        259200 * time.Second,
		BootstrapPrice:  big.NewInt(10_000_000_000_000),
		BootstrapSupply: big.NewInt(100_000),
		GrowthBps:       10300,
		Increment:       big.NewInt(4_000_000_000_000),
	}
}

// Validate checks that every parameter is usable.
func (p Params) Validate() error {
	if p.Duration <= 0 {
		return fmt.Errorf("round duration must be positive, got %s", p.Duration)
	}
	if p.BootstrapPrice == nil || p.BootstrapPrice.Sign() <= 0 {
		return fmt.Errorf("bootstrap price must be positive")
	}
	if p.BootstrapSupply == nil || p.BootstrapSupply.Sign() < 0 {
		return fmt.Errorf("bootstrap supply must not be negative")
	}
	if p.GrowthBps <= 0 {
		return fmt.Errorf("price growth must be positive, got %d bps", p.GrowthBps)
	}
	if p.Increment == nil || p.Increment.Sign() < 0 {
		return fmt.Errorf("price increment must not be negative")
	}
	return nil
}

// NextPrice returns prev * GrowthBps / 10000 + Increment.
func (p Params) NextPrice(prev *big.Int) *big.Int {
	next := new(big.Int).Mul(prev, big.NewInt(p.GrowthBps))
	next.Quo(next, big.NewInt(10000))
	return next.Add(next, p.Increment)
}
