package reporting

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"time"

	"acdm-platform/internal/domain"
	"acdm-platform/internal/storage"
)

// Generator produces reports from stored data.
type Generator struct {
	roundStore    storage.RoundStore
	fillStore     storage.FillStore
	referralStore storage.ReferralStore
	orderStore    storage.OrderStore
	now           func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator.
func NewGenerator(
	roundStore storage.RoundStore,
	fillStore storage.FillStore,
	referralStore storage.ReferralStore,
	orderStore storage.OrderStore,
) *Generator {
	return &Generator{
		roundStore:    roundStore,
		fillStore:     fillStore,
		referralStore: referralStore,
		orderStore:    orderStore,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate produces a complete report.
func (g *Generator) Generate(ctx context.Context) (*Report, error) {
	rounds, err := g.roundStore.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load rounds: %w", err)
	}
	links, err := g.referralStore.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load referrals: %w", err)
	}

	report := &Report{
		GeneratedAt: g.now(),
		Summary: Summary{
			Referrals:    len(links),
			TokensSold:   new(big.Int),
			TokensBurned: new(big.Int),
			SaleVolume:   new(big.Int),
			TradeVolume:  new(big.Int),
			Level1Fees:   new(big.Int),
			Level2Fees:   new(big.Int),
		},
	}

	earners := make(map[domain.Address]*EarnerRow)
	fillsByCycle := make(map[int][]*domain.Fill)
	ordersByCycle := make(map[int]int)

	for _, r := range rounds {
		if _, ok := fillsByCycle[r.Number]; !ok {
			fills, err := g.fillStore.GetByRound(ctx, r.Number)
			if err != nil {
				return nil, fmt.Errorf("load fills of round %d: %w", r.Number, err)
			}
			fillsByCycle[r.Number] = fills
			orders, err := g.orderStore.GetByRound(ctx, r.Number)
			if err != nil {
				return nil, fmt.Errorf("load orders of round %d: %w", r.Number, err)
			}
			ordersByCycle[r.Number] = len(orders)
			report.Summary.Orders += len(orders)

			for _, f := range fills {
				g.addFill(&report.Summary, earners, f)
			}
		}

		row, problems := g.roundRow(r, fillsByCycle[r.Number], ordersByCycle[r.Number])
		report.Rounds = append(report.Rounds, row)
		report.IntegrityErrors = append(report.IntegrityErrors, problems...)

		if r.Kind == domain.RoundSale {
			report.Summary.SaleRounds++
			report.Summary.TokensSold.Add(report.Summary.TokensSold, row.Sold)
			report.Summary.TokensBurned.Add(report.Summary.TokensBurned, row.Burned)
		} else {
			report.Summary.TradeRounds++
		}
	}
	if len(rounds) > 0 {
		report.Summary.DateRange = [2]time.Time{rounds[0].StartTime, rounds[len(rounds)-1].StartTime}
	}

	report.Earners = sortEarners(earners)
	return report, nil
}

func (g *Generator) addFill(s *Summary, earners map[domain.Address]*EarnerRow, f *domain.Fill) {
	if f.Kind == domain.FillPurchase {
		s.Purchases++
		s.SaleVolume.Add(s.SaleVolume, f.Cost)
	} else {
		s.Redemptions++
		s.TradeVolume.Add(s.TradeVolume, f.Cost)
	}
	s.Level1Fees.Add(s.Level1Fees, f.Level1Fee)
	s.Level2Fees.Add(s.Level2Fees, f.Level2Fee)

	credit := func(addr domain.Address, amount *big.Int, level1 bool) {
		if addr.IsZero() || !domain.IsPositive(amount) {
			return
		}
		e, ok := earners[addr]
		if !ok {
			e = &EarnerRow{Address: addr, Level1: new(big.Int), Level2: new(big.Int), Total: new(big.Int)}
			earners[addr] = e
		}
		if level1 {
			e.Level1.Add(e.Level1, amount)
		} else {
			e.Level2.Add(e.Level2, amount)
		}
		e.Total.Add(e.Total, amount)
	}
	credit(f.Level1, f.Level1Fee, true)
	credit(f.Level2, f.Level2Fee, false)
}

// roundRow builds the row for r from its cycle's fills and checks it against them.
func (g *Generator) roundRow(r *domain.Round, fills []*domain.Fill, orders int) (RoundRow, []string) {
	row := RoundRow{
		Seq:       r.Seq,
		Number:    r.Number,
		Kind:      r.Kind,
		StartTime: r.StartTime,
		Price:     domain.Clone(r.Price),
		Supply:    new(big.Int),
		Sold:      new(big.Int),
		Burned:    new(big.Int),
		EthTraded: new(big.Int),
		Volume:    new(big.Int),
	}

	want := domain.FillPurchase
	if r.Kind == domain.RoundTrade {
		want = domain.FillRedemption
		row.Orders = orders
	}
	filledTokens := new(big.Int)
	for _, f := range fills {
		if f.Kind != want {
			continue
		}
		row.Fills++
		row.Volume.Add(row.Volume, f.Cost)
		filledTokens.Add(filledTokens, f.Amount)
	}

	var problems []string
	switch r.Kind {
	case domain.RoundSale:
		row.Supply = domain.Clone(r.SaleSupply)
		row.Burned = domain.Clone(r.Burned)
		row.Sold = new(big.Int).Sub(row.Supply, domain.Clone(r.SaleRemaining))
		row.Sold.Sub(row.Sold, row.Burned)
		if row.Sold.Sign() < 0 {
			problems = append(problems, fmt.Sprintf("round seq %d: remaining %s plus burned %s exceed supply %s",
				r.Seq, r.SaleRemaining, r.Burned, r.SaleSupply))
		}
		if row.Sold.Cmp(filledTokens) != 0 {
			problems = append(problems, fmt.Sprintf("round seq %d: %s tokens sold but purchase fills total %s",
				r.Seq, row.Sold, filledTokens))
		}
	case domain.RoundTrade:
		row.EthTraded = domain.Clone(r.EthTraded)
		if row.EthTraded.Cmp(row.Volume) != 0 {
			problems = append(problems, fmt.Sprintf("round seq %d: traded %s wei but redemption fills total %s",
				r.Seq, row.EthTraded, row.Volume))
		}
	}
	return row, problems
}

func sortEarners(m map[domain.Address]*EarnerRow) []EarnerRow {
	out := make([]EarnerRow, 0, len(m))
	for _, e := range m {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Total.Cmp(out[j].Total); c != 0 {
			return c > 0
		}
		return out[i].Address < out[j].Address
	})
	return out
}
