// Package rounds keeps the round history and enforces the sale/trade alternation.
// Expiry is evaluated only when a transition is requested.
package rounds

import (
	"fmt"
	"math/big"
	"sync"
	"time"

	"acdm-platform/internal/domain"
	"acdm-platform/internal/txn"
)

// Scheduler errors
var (
	ErrNoActiveRound      = domain.NewError(domain.ErrState, "no round has been started")
	ErrRoundNotFinished   = domain.NewError(domain.ErrState, "current round has not finished")
	ErrWrongRoundKind     = domain.NewError(domain.ErrState, "wrong round kind")
	ErrSaleAlreadyActive  = domain.NewError(ErrWrongRoundKind, "sale round is already active")
	ErrTradeAlreadyActive = domain.NewError(ErrWrongRoundKind, "trade round is already active")
	ErrNotSaleRound       = domain.NewError(ErrWrongRoundKind, "not a sale round now")
	ErrNotTradeRound      = domain.NewError(ErrWrongRoundKind, "not a trade round now")
	ErrInsufficientSupply = domain.NewError(domain.ErrSupply, "not enough tokens left in this sale round")
	ErrRoundNotFound      = domain.NewError(domain.ErrNotFound, "round not found")
)

// Transition describes a started sale round.
type Transition struct {
	Round  domain.Round
	Unsold *big.Int // inventory of the previous sale round, to be burned
}

// Scheduler is the append-only round history.
type Scheduler struct {
	mu     sync.RWMutex
	params Params
	rounds []domain.Round
}

// NewScheduler creates a scheduler with no rounds.
func NewScheduler(p Params) (*Scheduler, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &Scheduler{params: p}, nil
}

// Params returns the scheduler's parameters.
func (s *Scheduler) Params() Params {
	return s.params
}

// StartSale appends a sale round. It is legal as the first round or once an elapsed trade round is current.
// The previous sale round's remaining inventory is zeroed and reported as Unsold.
func (s *Scheduler) StartSale(now time.Time, j *txn.Journal) (Transition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.rounds) == 0 {
		r := domain.Round{
			Seq:           0,
			Number:        0,
			Kind:          domain.RoundSale,
			StartTime:     now,
			Price:         domain.Clone(s.params.BootstrapPrice),
			SaleSupply:    domain.Clone(s.params.BootstrapSupply),
			SaleRemaining: domain.Clone(s.params.BootstrapSupply),
			Burned:        new(big.Int),
		}
		s.append(r, j)
		return Transition{Round: r.Clone(), Unsold: new(big.Int)}, nil
	}

	cur := &s.rounds[len(s.rounds)-1]
	if cur.Kind == domain.RoundSale {
		return Transition{}, ErrSaleAlreadyActive
	}
	if !cur.Elapsed(now, s.params.Duration) {
		return Transition{}, ErrRoundNotFinished
	}

	prevSale := &s.rounds[len(s.rounds)-2]
	price := s.params.NextPrice(prevSale.Price)
	supply := new(big.Int).Quo(cur.EthTraded, price)

	before := prevSale.Clone()
	unsold := domain.Clone(prevSale.SaleRemaining)
	prevSale.Burned = new(big.Int).Add(prevSale.Burned, unsold)
	prevSale.SaleRemaining = new(big.Int)
	idx := prevSale.Seq
	j.Record(func() error {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.rounds[idx] = before
		return nil
	})

	r := domain.Round{
		Seq:           len(s.rounds),
		Number:        cur.Number + 1,
		Kind:          domain.RoundSale,
		StartTime:     now,
		Price:         price,
		SaleSupply:    supply,
		SaleRemaining: domain.Clone(supply),
		Burned:        new(big.Int),
	}
	s.append(r, j)
	return Transition{Round: r.Clone(), Unsold: unsold}, nil
}

// StartTrade appends a trade round once the current sale round has elapsed.
func (s *Scheduler) StartTrade(now time.Time, j *txn.Journal) (domain.Round, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.rounds) == 0 {
		return domain.Round{}, ErrNoActiveRound
	}
	cur := s.rounds[len(s.rounds)-1]
	if cur.Kind == domain.RoundTrade {
		return domain.Round{}, ErrTradeAlreadyActive
	}
	if !cur.Elapsed(now, s.params.Duration) {
		return domain.Round{}, ErrRoundNotFinished
	}

	r := domain.Round{
		Seq:       len(s.rounds),
		Number:    cur.Number,
		Kind:      domain.RoundTrade,
		StartTime: now,
		Price:     domain.Clone(cur.Price),
		EthTraded: new(big.Int),
	}
	s.append(r, j)
	return r.Clone(), nil
}

// Sell takes amount tokens from the current sale round's inventory.
func (s *Scheduler) Sell(amount *big.Int, j *txn.Journal) (domain.Round, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, err := s.current(domain.RoundSale)
	if err != nil {
		return domain.Round{}, err
	}
	if cur.SaleRemaining.Cmp(amount) < 0 {
		return domain.Round{}, ErrInsufficientSupply
	}
	amt := domain.Clone(amount)
	cur.SaleRemaining = new(big.Int).Sub(cur.SaleRemaining, amt)
	s.journalAdd(j, cur.Seq, func(r *domain.Round) { r.SaleRemaining.Add(r.SaleRemaining, amt) })
	return cur.Clone(), nil
}

// RecordVolume adds cost to the current trade round's traded volume.
func (s *Scheduler) RecordVolume(cost *big.Int, j *txn.Journal) (domain.Round, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, err := s.current(domain.RoundTrade)
	if err != nil {
		return domain.Round{}, err
	}
	amt := domain.Clone(cost)
	cur.EthTraded = new(big.Int).Add(cur.EthTraded, amt)
	s.journalAdd(j, cur.Seq, func(r *domain.Round) { r.EthTraded.Sub(r.EthTraded, amt) })
	return cur.Clone(), nil
}

// RequireKind returns the current round if it is of kind k.
func (s *Scheduler) RequireKind(k domain.RoundKind) (domain.Round, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cur, err := s.current(k)
	if err != nil {
		return domain.Round{}, err
	}
	return cur.Clone(), nil
}

// Current returns the latest round.
func (s *Scheduler) Current() (domain.Round, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.rounds) == 0 {
		return domain.Round{}, ErrNoActiveRound
	}
	return s.rounds[len(s.rounds)-1].Clone(), nil
}

// StatusRound returns the kind of the latest round in cycle number.
func (s *Scheduler) StatusRound(number int) (domain.RoundKind, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := len(s.rounds) - 1; i >= 0; i-- {
		if s.rounds[i].Number == number {
			return s.rounds[i].Kind, nil
		}
	}
	return 0, fmt.Errorf("%w: cycle %d", ErrRoundNotFound, number)
}

// Round returns the round at history position seq.
func (s *Scheduler) Round(seq int) (domain.Round, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if seq < 0 || seq >= len(s.rounds) {
		return domain.Round{}, fmt.Errorf("%w: seq %d", ErrRoundNotFound, seq)
	}
	return s.rounds[seq].Clone(), nil
}

// Rounds returns the full history.
func (s *Scheduler) Rounds() []domain.Round {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Round, len(s.rounds))
	for i := range s.rounds {
		out[i] = s.rounds[i].Clone()
	}
	return out
}

// Inventory is the unsold, unburned supply of the most recent sale round.
func (s *Scheduler) Inventory() *big.Int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := len(s.rounds) - 1; i >= 0; i-- {
		if s.rounds[i].Kind == domain.RoundSale {
			return domain.Clone(s.rounds[i].SaleRemaining)
		}
	}
	return new(big.Int)
}

// current returns a pointer to the latest round if it has kind k. Callers hold the lock.
func (s *Scheduler) current(k domain.RoundKind) (*domain.Round, error) {
	if len(s.rounds) == 0 || s.rounds[len(s.rounds)-1].Kind != k {
		if k == domain.RoundSale {
			return nil, ErrNotSaleRound
		}
		return nil, ErrNotTradeRound
	}
	return &s.rounds[len(s.rounds)-1], nil
}

func (s *Scheduler) append(r domain.Round, j *txn.Journal) {
	s.rounds = append(s.rounds, r.Clone())
	j.Record(func() error {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.rounds = s.rounds[:len(s.rounds)-1]
		return nil
	})
}

func (s *Scheduler) journalAdd(j *txn.Journal, seq int, undo func(r *domain.Round)) {
	j.Record(func() error {
		s.mu.Lock()
		defer s.mu.Unlock()
		if seq >= len(s.rounds) {
			return fmt.Errorf("round %d no longer exists", seq)
		}
		undo(&s.rounds[seq])
		return nil
	})
}
