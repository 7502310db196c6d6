// Package platform composes the round scheduler, order book, referral registry and fee
// distributor into the caller-facing ACDM platform.
//
// Every operation is atomic: state is validated, then mutated, then value is transferred,
// and each step journals its inverse so a failure anywhere leaves no trace.
package platform

import (
	"errors"
	"fmt"
	"math/big"
	"sync/atomic"
	"time"

	"acdm-platform/internal/domain"
	"acdm-platform/internal/fees"
	"acdm-platform/internal/ledger"
	"acdm-platform/internal/orderbook"
	"acdm-platform/internal/referral"
	"acdm-platform/internal/rounds"
	"acdm-platform/internal/txn"
)

// Config fixes the platform's identities and economics at construction.
type Config struct {
	Admin      domain.Address // may start rounds
	Account    domain.Address // holds inventory, escrow and in-flight payments
	Treasury   domain.Address // receives sale proceeds net of referral fees
	Rounds     rounds.Params
	SaleRates  fees.Rates
	TradeRates fees.Rates
	Clock      func() time.Time
}

// DefaultConfig returns the default economics for the given identities.
func DefaultConfig(admin, account, treasury domain.Address) Config {
	return Config{
		Admin:      admin,
		Account:    account,
		Treasury:   treasury,
		Rounds:     rounds.DefaultParams(),
		SaleRates:  fees.SaleRates,
		TradeRates: fees.TradeRates,
		Clock:      time.Now,
	}
}

// Validate checks identities and rates.
func (c Config) Validate() error {
	if c.Admin.IsZero() || c.Account.IsZero() || c.Treasury.IsZero() {
		return errors.New("admin, account and treasury addresses are required")
	}
	if err := c.Rounds.Validate(); err != nil {
		return fmt.Errorf("rounds: %w", err)
	}
	if err := c.SaleRates.Validate(); err != nil {
		return fmt.Errorf("sale rates: %w", err)
	}
	if err := c.TradeRates.Validate(); err != nil {
		return fmt.Errorf("trade rates: %w", err)
	}
	return nil
}

// Platform is the ACDM platform. Callers serialize access; concurrent or nested calls
// are rejected with ErrReentrantCall.
type Platform struct {
	cfg       Config
	token     ledger.TokenLedger
	coins     ledger.CoinLedger
	referrals *referral.Registry
	book      *orderbook.Book
	sched     *rounds.Scheduler
	fees      *fees.Distributor
	busy      atomic.Bool
}

// New builds a platform over the given ledgers. Config.Account must hold the token's
// MINTER and BURNER roles before the first sale round starts.
func New(cfg Config, token ledger.TokenLedger, coins ledger.CoinLedger) (*Platform, error) {
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("platform config: %w", err)
	}
	sched, err := rounds.NewScheduler(cfg.Rounds)
	if err != nil {
		return nil, err
	}
	reg := referral.NewRegistry()
	return &Platform{
		cfg:       cfg,
		token:     token,
		coins:     coins,
		referrals: reg,
		book:      orderbook.New(),
		sched:     sched,
		fees:      fees.NewDistributor(reg, cfg.Account),
	}, nil
}

// Config returns the construction config.
func (p *Platform) Config() Config {
	return p.cfg
}

// Register links caller to referrer.
func (p *Platform) Register(caller, referrer domain.Address) (Registered, error) {
	var out Registered
	err := p.run(func(now time.Time, j *txn.Journal, coins ledger.CoinTx) error {
		link, err := p.referrals.Register(caller, referrer, now, j)
		if err != nil {
			return err
		}
		out = Registered{Referral: link, Chain: p.referrals.Chain(caller)}
		return nil
	})
	return out, err
}

// Referrer returns caller's referrer.
func (p *Platform) Referrer(caller domain.Address) (domain.Address, error) {
	var out domain.Address
	err := p.view(func() error {
		var err error
		out, err = p.referrals.Referrer(caller)
		return err
	})
	return out, err
}

// StartSaleRound expires the open orders of the finished trade round, burns the previous
// sale round's unsold tokens and mints the new round's supply. Admin only.
func (p *Platform) StartSaleRound(caller domain.Address) (RoundStarted, error) {
	var out RoundStarted
	err := p.run(func(now time.Time, j *txn.Journal, coins ledger.CoinTx) error {
		if caller != p.cfg.Admin {
			return ErrNotAdmin
		}
		tr, err := p.sched.StartSale(now, j)
		if err != nil {
			return err
		}
		expired := p.book.ExpireOpen(now, j)

		for _, rel := range expired {
			if err := p.moveTokens(p.cfg.Account, rel.Owner, rel.Amount, j); err != nil {
				return fmt.Errorf("return order %d: %w", rel.OrderID, err)
			}
		}
		if err := p.burn(tr.Unsold, j); err != nil {
			return fmt.Errorf("burn unsold: %w", err)
		}
		if err := p.mint(tr.Round.SaleSupply, j); err != nil {
			return fmt.Errorf("mint supply: %w", err)
		}
		out = RoundStarted{
			Round:   tr.Round,
			Burned:  tr.Unsold,
			Minted:  domain.Clone(tr.Round.SaleSupply),
			Expired: expired,
		}
		return nil
	})
	return out, err
}

// StartTradeRound ends the elapsed sale round. Unsold inventory stays with the platform
// until the next sale round burns it. Admin only.
func (p *Platform) StartTradeRound(caller domain.Address) (RoundStarted, error) {
	var out RoundStarted
	err := p.run(func(now time.Time, j *txn.Journal, coins ledger.CoinTx) error {
		if caller != p.cfg.Admin {
			return ErrNotAdmin
		}
		r, err := p.sched.StartTrade(now, j)
		if err != nil {
			return err
		}
		out = RoundStarted{Round: r, Burned: new(big.Int), Minted: new(big.Int)}
		return nil
	})
	return out, err
}

// BuyACDM sells amount tokens from the current sale round for payment wei.
// The excess over amount*price is refunded and the cost is split along caller's referral chain,
// with the remainder going to the treasury.
func (p *Platform) BuyACDM(caller domain.Address, amount, payment *big.Int) (Purchase, error) {
	var out Purchase
	err := p.run(func(now time.Time, j *txn.Journal, coins ledger.CoinTx) error {
		if !domain.IsPositive(amount) || payment == nil || payment.Sign() < 0 {
			return ErrInvalidAmount
		}
		cur, err := p.sched.RequireKind(domain.RoundSale)
		if err != nil {
			return err
		}
		if cur.SaleRemaining.Cmp(amount) < 0 {
			return ErrInsufficientSupply
		}
		cost := new(big.Int).Mul(amount, cur.Price)
		if payment.Cmp(cost) < 0 {
			return ErrInsufficientPayment
		}
		if coins.BalanceOf(caller).Cmp(payment) < 0 {
			return ErrInsufficientFunds
		}

		round, err := p.sched.Sell(amount, j)
		if err != nil {
			return err
		}

		if err := fees.Transfer(coins, caller, p.cfg.Account, payment); err != nil {
			return fmt.Errorf("collect payment: %w", err)
		}
		refund := new(big.Int).Sub(payment, cost)
		payouts, err := p.refund(coins, caller, refund)
		if err != nil {
			return err
		}
		split := p.fees.Split(caller, cost, p.cfg.SaleRates)
		paid, err := p.fees.Pay(coins, split, p.cfg.Treasury)
		if err != nil {
			return err
		}
		if err := p.moveTokens(p.cfg.Account, caller, amount, j); err != nil {
			return fmt.Errorf("deliver tokens: %w", err)
		}

		out = Purchase{
			Round:   round,
			Buyer:   caller,
			Amount:  domain.Clone(amount),
			Price:   domain.Clone(cur.Price),
			Cost:    cost,
			Refund:  refund,
			Split:   split,
			Payouts: append(payouts, paid...),
			At:      now,
		}
		return nil
	})
	return out, err
}

// AddOrder escrows amount of caller's tokens in a new sell order. The caller must have
// approved the platform account for at least amount.
func (p *Platform) AddOrder(caller domain.Address, amount, pricePerToken *big.Int) (OrderPlaced, error) {
	var out OrderPlaced
	err := p.run(func(now time.Time, j *txn.Journal, coins ledger.CoinTx) error {
		if !domain.IsPositive(amount) || !domain.IsPositive(pricePerToken) {
			return ErrInvalidAmount
		}
		cur, err := p.sched.RequireKind(domain.RoundTrade)
		if err != nil {
			return err
		}
		if p.token.BalanceOf(caller).Cmp(amount) < 0 {
			return ErrInsufficientBalance
		}
		if p.token.Allowance(caller, p.cfg.Account).Cmp(amount) < 0 {
			return ErrInsufficientAllowance
		}

		o, err := p.book.Add(caller, amount, pricePerToken, cur.Number, now, j)
		if err != nil {
			return err
		}

		if err := p.escrow(caller, amount, j); err != nil {
			return fmt.Errorf("escrow tokens: %w", err)
		}
		out = OrderPlaced{Order: o}
		return nil
	})
	return out, err
}

// RemoveOrder cancels caller's order and returns its remaining tokens.
func (p *Platform) RemoveOrder(caller domain.Address, id uint64) (OrderRemoved, error) {
	var out OrderRemoved
	err := p.run(func(now time.Time, j *txn.Journal, coins ledger.CoinTx) error {
		rel, err := p.book.Cancel(caller, id, now, j)
		if err != nil {
			return err
		}
		if err := p.moveTokens(p.cfg.Account, rel.Owner, rel.Amount, j); err != nil {
			return fmt.Errorf("release escrow: %w", err)
		}
		o, err := p.book.Get(id)
		if err != nil {
			return err
		}
		out = OrderRemoved{Order: o, Released: rel.Amount}
		return nil
	})
	return out, err
}

// RedeemOrder buys amount tokens from order id for payment wei. Fees follow the buyer's
// referral chain; the order owner receives the remainder.
func (p *Platform) RedeemOrder(caller domain.Address, id uint64, amount, payment *big.Int) (Redemption, error) {
	var out Redemption
	err := p.run(func(now time.Time, j *txn.Journal, coins ledger.CoinTx) error {
		if !domain.IsPositive(amount) || payment == nil || payment.Sign() < 0 {
			return ErrInvalidAmount
		}
		if _, err := p.sched.RequireKind(domain.RoundTrade); err != nil {
			return err
		}
		o, err := p.book.Get(id)
		if err != nil {
			return err
		}
		if o.Status != domain.OrderOpen || o.Remaining.Cmp(amount) < 0 {
			return ErrExhausted
		}
		cost := new(big.Int).Mul(amount, o.PricePerToken)
		if payment.Cmp(cost) < 0 {
			return ErrInsufficientPayment
		}
		if coins.BalanceOf(caller).Cmp(payment) < 0 {
			return ErrInsufficientFunds
		}

		filled, err := p.book.Fill(id, amount, now, j)
		if err != nil {
			return err
		}
		round, err := p.sched.RecordVolume(cost, j)
		if err != nil {
			return err
		}

		if err := fees.Transfer(coins, caller, p.cfg.Account, payment); err != nil {
			return fmt.Errorf("collect payment: %w", err)
		}
		refund := new(big.Int).Sub(payment, cost)
		payouts, err := p.refund(coins, caller, refund)
		if err != nil {
			return err
		}
		split := p.fees.Split(caller, cost, p.cfg.TradeRates)
		paid, err := p.fees.Pay(coins, split, o.Owner)
		if err != nil {
			return err
		}
		if err := p.moveTokens(p.cfg.Account, caller, amount, j); err != nil {
			return fmt.Errorf("deliver tokens: %w", err)
		}

		out = Redemption{
			Round:   round,
			Order:   filled,
			Buyer:   caller,
			Amount:  domain.Clone(amount),
			Cost:    cost,
			Refund:  refund,
			Split:   split,
			Payouts: append(payouts, paid...),
			At:      now,
		}
		return nil
	})
	return out, err
}

// StatusRound returns the kind of the latest round in cycle number (0-based).
func (p *Platform) StatusRound(number int) (domain.RoundKind, error) {
	var out domain.RoundKind
	err := p.view(func() error {
		var err error
		out, err = p.sched.StatusRound(number)
		return err
	})
	return out, err
}

// Round returns the round at history position seq (0-based).
func (p *Platform) Round(seq int) (domain.Round, error) {
	var out domain.Round
	err := p.view(func() error {
		var err error
		out, err = p.sched.Round(seq)
		return err
	})
	return out, err
}

// Rounds returns the round history.
func (p *Platform) Rounds() ([]domain.Round, error) {
	var out []domain.Round
	err := p.view(func() error {
		out = p.sched.Rounds()
		return nil
	})
	return out, err
}

// Order returns order id.
func (p *Platform) Order(id uint64) (domain.Order, error) {
	var out domain.Order
	err := p.view(func() error {
		var err error
		out, err = p.book.Get(id)
		return err
	})
	return out, err
}

// Orders returns every order.
func (p *Platform) Orders() ([]domain.Order, error) {
	var out []domain.Order
	err := p.view(func() error {
		out = p.book.Orders()
		return nil
	})
	return out, err
}

// Referrals returns every referral link.
func (p *Platform) Referrals() ([]domain.Referral, error) {
	var out []domain.Referral
	err := p.view(func() error {
		out = p.referrals.Links()
		return nil
	})
	return out, err
}

// Snapshot summarizes current state.
func (p *Platform) Snapshot() (Snapshot, error) {
	var out Snapshot
	err := p.view(func() error {
		out = p.snapshot()
		return nil
	})
	return out, err
}

// Audit checks that the platform account holds exactly the escrowed and unsold tokens.
func (p *Platform) Audit() error {
	return p.view(func() error {
		held := p.token.BalanceOf(p.cfg.Account)
		want := new(big.Int).Add(p.book.EscrowTotal(), p.sched.Inventory())
		if held.Cmp(want) != 0 {
			return fmt.Errorf("%w: account holds %s, escrow+inventory is %s", ErrConservation, held, want)
		}
		return nil
	})
}

func (p *Platform) snapshot() Snapshot {
	s := Snapshot{
		Time:           p.cfg.Clock(),
		RoundCount:     len(p.sched.Rounds()),
		OpenOrders:     len(p.book.OpenOrders()),
		Escrow:         p.book.EscrowTotal(),
		Inventory:      p.sched.Inventory(),
		PlatformTokens: p.token.BalanceOf(p.cfg.Account),
		PlatformCoins:  p.coins.BalanceOf(p.cfg.Account),
		TotalSupply:    p.token.TotalSupply(),
		Referrals:      p.referrals.Len(),
	}
	if cur, err := p.sched.Current(); err == nil {
		end := cur.EndsAt(p.cfg.Rounds.Duration)
		s.Current = &cur
		s.RoundEndsAt = &end
	}
	return s
}

// run executes fn as one atomic operation under the reentrancy guard.
// Token and state changes are journaled; coin movements are staged in a CoinTx
// that is committed or rolled back with the journal.
func (p *Platform) run(fn func(now time.Time, j *txn.Journal, coins ledger.CoinTx) error) error {
	if !p.busy.CompareAndSwap(false, true) {
		return ErrReentrantCall
	}
	defer p.busy.Store(false)

	j := txn.New()
	coins := p.coins.Begin()
	if err := fn(p.cfg.Clock(), j, coins); err != nil {
		coins.Rollback()
		if rerr := j.Rollback(); rerr != nil {
			return errors.Join(err, fmt.Errorf("rollback: %w", rerr))
		}
		return err
	}
	coins.Commit()
	j.Commit()
	return nil
}

func (p *Platform) view(fn func() error) error {
	if !p.busy.CompareAndSwap(false, true) {
		return ErrReentrantCall
	}
	defer p.busy.Store(false)
	return fn()
}

func (p *Platform) refund(coins ledger.Coins, to domain.Address, amount *big.Int) ([]domain.Payout, error) {
	if amount.Sign() == 0 {
		return nil, nil
	}
	if err := fees.Transfer(coins, p.cfg.Account, to, amount); err != nil {
		return nil, fmt.Errorf("refund excess: %w", err)
	}
	return []domain.Payout{{To: to, Amount: domain.Clone(amount), Reason: domain.PayoutRefund}}, nil
}

func (p *Platform) moveTokens(from, to domain.Address, amount *big.Int, j *txn.Journal) error {
	if amount.Sign() == 0 || from == to {
		return nil
	}
	if err := p.token.Transfer(from, to, amount); err != nil {
		return err
	}
	amt := domain.Clone(amount)
	j.Record(func() error { return p.token.Transfer(to, from, amt) })
	return nil
}

// escrow pulls amount from owner using the platform's allowance.
func (p *Platform) escrow(owner domain.Address, amount *big.Int, j *txn.Journal) error {
	allowed := p.token.Allowance(owner, p.cfg.Account)
	if err := p.token.TransferFrom(p.cfg.Account, owner, p.cfg.Account, amount); err != nil {
		return err
	}
	amt := domain.Clone(amount)
	j.Record(func() error {
		if err := p.token.Transfer(p.cfg.Account, owner, amt); err != nil {
			return err
		}
		return p.token.Approve(owner, p.cfg.Account, allowed)
	})
	return nil
}

func (p *Platform) mint(amount *big.Int, j *txn.Journal) error {
	if amount.Sign() == 0 {
		return nil
	}
	if err := p.token.Mint(p.cfg.Account, p.cfg.Account, amount); err != nil {
		return err
	}
	amt := domain.Clone(amount)
	j.Record(func() error { return p.token.Burn(p.cfg.Account, amt) })
	return nil
}

func (p *Platform) burn(amount *big.Int, j *txn.Journal) error {
	if amount.Sign() == 0 {
		return nil
	}
	if err := p.token.Burn(p.cfg.Account, amount); err != nil {
		return err
	}
	amt := domain.Clone(amount)
	j.Record(func() error { return p.token.Mint(p.cfg.Account, p.cfg.Account, amt) })
	return nil
}
