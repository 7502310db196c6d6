// Package service serializes calls into the platform and fans committed
// results out to the stores, metrics and the event stream.
package service

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"acdm-platform/internal/domain"
	"acdm-platform/internal/idhash"
	"acdm-platform/internal/ledger"
	"acdm-platform/internal/observability"
	"acdm-platform/internal/platform"
	"acdm-platform/internal/storage"
)

// Publisher receives events after an operation commits.
type Publisher interface {
	Publish(e domain.Event)
}

// Stores are the write-through targets. Nil stores are skipped.
type Stores struct {
	Rounds    storage.RoundStore
	Orders    storage.OrderStore
	Referrals storage.ReferralStore
	Fills     storage.FillStore
}

// Options for creating a Service.
type Options struct {
	Platform     *platform.Platform
	Token        ledger.TokenLedger // for approvals and balance queries
	Coins        ledger.CoinLedger
	Stores       Stores
	Metrics      *observability.Metrics
	Publisher    Publisher
	Logger       logrus.FieldLogger
	StoreTimeout time.Duration
}

// Service wraps a Platform for concurrent callers.
type Service struct {
	mu      sync.Mutex
	p       *platform.Platform
	token   ledger.TokenLedger
	coins   ledger.CoinLedger
	stores  Stores
	metrics *observability.Metrics
	pub     Publisher
	log     *logrus.Entry
	timeout time.Duration

	started   time.Time
	opSeq     uint64
	committed int
	rejected  int
	storeErrs int
	lastOp    time.Time
}

// New creates a Service.
func New(opts Options) *Service {
	m := opts.Metrics
	if m == nil {
		m = observability.DefaultMetrics
	}
	timeout := opts.StoreTimeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &Service{
		p:       opts.Platform,
		token:   opts.Token,
		coins:   opts.Coins,
		stores:  opts.Stores,
		metrics: m,
		pub:     opts.Publisher,
		log:     observability.Component(opts.Logger, "service"),
		timeout: timeout,
		started: time.Now(),
	}
}

// Platform returns the wrapped platform.
func (s *Service) Platform() *platform.Platform {
	return s.p
}

// Stats summarizes service activity.
type Stats struct {
	Started     time.Time `json:"started"`
	Committed   int       `json:"committed"`
	Rejected    int       `json:"rejected"`
	StoreErrors int       `json:"store_errors"`
	LastOp      time.Time `json:"last_op,omitempty"`
}

// Stats returns activity counters.
func (s *Service) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		Started:     s.started,
		Committed:   s.committed,
		Rejected:    s.rejected,
		StoreErrors: s.storeErrs,
		LastOp:      s.lastOp,
	}
}

// Register links caller to referrer.
func (s *Service) Register(ctx context.Context, caller, referrer domain.Address) (platform.Registered, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	out, err := s.p.Register(caller, referrer)
	if err != nil {
		return out, s.reject("register", caller, err)
	}
	s.commit("register", start)

	link := out.Referral
	s.persist(ctx, "referrals", "insert", func(ctx context.Context) error {
		if s.stores.Referrals == nil {
			return nil
		}
		return s.stores.Referrals.Insert(ctx, &link)
	})
	s.publish(domain.EventReferralRegistered, s.currentNumber(), link.CreatedAt, out)
	s.log.WithFields(logrus.Fields{"participant": caller, "referrer": referrer}).Info("referral registered")
	return out, nil
}

// Referrer returns caller's referrer.
func (s *Service) Referrer(ctx context.Context, caller domain.Address) (domain.Address, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.p.Referrer(caller)
}

// StartSaleRound starts the next sale round as caller.
func (s *Service) StartSaleRound(ctx context.Context, caller domain.Address) (platform.RoundStarted, error) {
	return s.startRound(ctx, "start_sale", caller, s.p.StartSaleRound)
}

// StartTradeRound starts the next trade round as caller.
func (s *Service) StartTradeRound(ctx context.Context, caller domain.Address) (platform.RoundStarted, error) {
	return s.startRound(ctx, "start_trade", caller, s.p.StartTradeRound)
}

func (s *Service) startRound(ctx context.Context, op string, caller domain.Address,
	fn func(domain.Address) (platform.RoundStarted, error)) (platform.RoundStarted, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	out, err := fn(caller)
	if err != nil {
		return out, s.reject(op, caller, err)
	}
	s.commit(op, start)

	r := out.Round
	s.metrics.RecordRoundStarted(r.Kind.String(), r.Number, toFloat(out.Burned))

	// A new sale round burns the previous sale round's inventory, two entries back.
	changed := []int{r.Seq}
	if r.Kind == domain.RoundSale && r.Seq >= 2 {
		changed = append(changed, r.Seq-2)
	}
	s.persistRounds(ctx, changed...)
	for _, rel := range out.Expired {
		s.persistOrder(ctx, rel.OrderID)
	}
	s.updateGauges()

	typ := domain.EventTradeRoundStarted
	if r.Kind == domain.RoundSale {
		typ = domain.EventSaleRoundStarted
	}
	s.publish(typ, r.Number, r.StartTime, out)
	s.log.WithFields(logrus.Fields{
		"kind":    r.Kind.String(),
		"number":  r.Number,
		"seq":     r.Seq,
		"price":   r.Price.String(),
		"burned":  out.Burned.String(),
		"minted":  out.Minted.String(),
		"expired": len(out.Expired),
	}).Info("round started")
	return out, nil
}

// BuyACDM buys amount tokens from the current sale round.
func (s *Service) BuyACDM(ctx context.Context, caller domain.Address, amount, payment *big.Int) (platform.Purchase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	out, err := s.p.BuyACDM(caller, amount, payment)
	if err != nil {
		return out, s.reject("buy", caller, err)
	}
	s.commit("buy", start)

	fill := &domain.Fill{
		Kind:      domain.FillPurchase,
		Round:     out.Round.Number,
		Buyer:     out.Buyer,
		Seller:    s.p.Config().Account,
		Amount:    out.Amount,
		Price:     out.Price,
		Cost:      out.Cost,
		Level1:    out.Split.Chain.Level1,
		Level1Fee: out.Split.Level1Fee,
		Level2:    out.Split.Chain.Level2,
		Level2Fee: out.Split.Level2Fee,
		Net:       out.Split.Net,
		Refund:    out.Refund,
		Timestamp: out.At,
	}
	s.recordFill(ctx, fill, out.Payouts)
	s.persistRounds(ctx, out.Round.Seq)

	s.publish(domain.EventPurchase, out.Round.Number, out.At, out)
	s.log.WithFields(logrus.Fields{
		"buyer":  caller,
		"amount": out.Amount.String(),
		"cost":   out.Cost.String(),
		"refund": out.Refund.String(),
	}).Info("tokens purchased")
	return out, nil
}

// AddOrder escrows amount tokens of caller at pricePerToken.
func (s *Service) AddOrder(ctx context.Context, caller domain.Address, amount, pricePerToken *big.Int) (platform.OrderPlaced, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	out, err := s.p.AddOrder(caller, amount, pricePerToken)
	if err != nil {
		return out, s.reject("add_order", caller, err)
	}
	s.commit("add_order", start)

	o := out.Order
	s.persist(ctx, "orders", "upsert", func(ctx context.Context) error {
		if s.stores.Orders == nil {
			return nil
		}
		return s.stores.Orders.Upsert(ctx, &o)
	})
	s.updateGauges()
	s.publish(domain.EventOrderPlaced, o.Round, o.CreatedAt, out)
	s.log.WithFields(logrus.Fields{
		"order_id": o.ID,
		"owner":    o.Owner,
		"amount":   o.Amount.String(),
		"price":    o.PricePerToken.String(),
	}).Info("order placed")
	return out, nil
}

// RemoveOrder cancels caller's order and returns its remaining tokens.
func (s *Service) RemoveOrder(ctx context.Context, caller domain.Address, id uint64) (platform.OrderRemoved, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	out, err := s.p.RemoveOrder(caller, id)
	if err != nil {
		return out, s.reject("remove_order", caller, err)
	}
	s.commit("remove_order", start)

	o := out.Order
	s.persist(ctx, "orders", "upsert", func(ctx context.Context) error {
		if s.stores.Orders == nil {
			return nil
		}
		return s.stores.Orders.Upsert(ctx, &o)
	})
	s.updateGauges()
	s.publish(domain.EventOrderRemoved, o.Round, o.UpdatedAt, out)
	s.log.WithFields(logrus.Fields{"order_id": id, "released": out.Released.String()}).Info("order removed")
	return out, nil
}

// RedeemOrder buys amount tokens from order id.
func (s *Service) RedeemOrder(ctx context.Context, caller domain.Address, id uint64, amount, payment *big.Int) (platform.Redemption, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	out, err := s.p.RedeemOrder(caller, id, amount, payment)
	if err != nil {
		return out, s.reject("redeem", caller, err)
	}
	s.commit("redeem", start)

	fill := &domain.Fill{
		Kind:      domain.FillRedemption,
		Round:     out.Round.Number,
		OrderID:   out.Order.ID,
		Buyer:     out.Buyer,
		Seller:    out.Order.Owner,
		Amount:    out.Amount,
		Price:     out.Order.PricePerToken,
		Cost:      out.Cost,
		Level1:    out.Split.Chain.Level1,
		Level1Fee: out.Split.Level1Fee,
		Level2:    out.Split.Chain.Level2,
		Level2Fee: out.Split.Level2Fee,
		Net:       out.Split.Net,
		Refund:    out.Refund,
		Timestamp: out.At,
	}
	s.recordFill(ctx, fill, out.Payouts)

	o := out.Order
	s.persist(ctx, "orders", "upsert", func(ctx context.Context) error {
		if s.stores.Orders == nil {
			return nil
		}
		return s.stores.Orders.Upsert(ctx, &o)
	})
	s.persistRounds(ctx, out.Round.Seq)
	s.updateGauges()

	s.publish(domain.EventOrderRedeemed, out.Round.Number, out.At, out)
	s.log.WithFields(logrus.Fields{
		"order_id": id,
		"buyer":    caller,
		"amount":   out.Amount.String(),
		"cost":     out.Cost.String(),
	}).Info("order redeemed")
	return out, nil
}

// Approve lets the platform account move up to amount of owner's tokens.
func (s *Service) Approve(ctx context.Context, owner domain.Address, amount *big.Int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token == nil {
		return errors.New("token ledger not configured")
	}
	if err := s.token.Approve(owner, s.p.Config().Account, amount); err != nil {
		return s.reject("approve", owner, err)
	}
	return nil
}

// Balance is an account's holdings on both ledgers.
type Balance struct {
	Account   domain.Address `json:"account"`
	Tokens    *big.Int       `json:"tokens"`
	Coins     *big.Int       `json:"coins"`
	Allowance *big.Int       `json:"allowance"` // granted to the platform account
}

// Balance returns account's token and coin balances.
func (s *Service) Balance(ctx context.Context, account domain.Address) (Balance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token == nil || s.coins == nil {
		return Balance{}, errors.New("ledgers not configured")
	}
	return Balance{
		Account:   account,
		Tokens:    s.token.BalanceOf(account),
		Coins:     s.coins.BalanceOf(account),
		Allowance: s.token.Allowance(account, s.p.Config().Account),
	}, nil
}

// StatusRound returns the kind of the latest round in cycle number.
func (s *Service) StatusRound(ctx context.Context, number int) (domain.RoundKind, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.p.StatusRound(number)
}

// Round returns the round at history position seq.
func (s *Service) Round(ctx context.Context, seq int) (domain.Round, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.p.Round(seq)
}

// Rounds returns the round history.
func (s *Service) Rounds(ctx context.Context) ([]domain.Round, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.p.Rounds()
}

// Order returns order id.
func (s *Service) Order(ctx context.Context, id uint64) (domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.p.Order(id)
}

// Orders returns every order.
func (s *Service) Orders(ctx context.Context) ([]domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.p.Orders()
}

// Referrals returns every referral link.
func (s *Service) Referrals(ctx context.Context) ([]domain.Referral, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.p.Referrals()
}

// Snapshot returns a summary of platform state.
func (s *Service) Snapshot(ctx context.Context) (platform.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.p.Snapshot()
}

// Audit checks token conservation on the platform account.
func (s *Service) Audit(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.p.Audit()
}

// commit bumps counters for a committed operation. Callers hold s.mu.
func (s *Service) commit(op string, start time.Time) {
	s.opSeq++
	s.committed++
	s.lastOp = time.Now()
	s.metrics.RecordOperation(op, time.Since(start).Seconds())
}

// reject records a failed operation and returns err unchanged.
func (s *Service) reject(op string, caller domain.Address, err error) error {
	s.rejected++
	kind := domain.KindName(err)
	s.metrics.RecordRejected(op, kind)
	s.log.WithFields(logrus.Fields{"op": op, "caller": caller, "kind": kind}).WithError(err).Debug("operation rejected")
	return err
}

func (s *Service) recordFill(ctx context.Context, f *domain.Fill, payouts []domain.Payout) {
	f.FillID = idhash.ComputeFillID(f.Kind, f.Round, f.OrderID, f.Buyer, f.Amount, f.Timestamp.UnixMilli(), s.opSeq)

	feeTotals := make(map[string]float64)
	for _, p := range payouts {
		feeTotals[string(p.Reason)] += toFloat(p.Amount)
	}
	s.metrics.RecordFill(string(f.Kind), toFloat(f.Amount), toFloat(f.Cost), feeTotals)

	s.persist(ctx, "fills", "insert", func(ctx context.Context) error {
		if s.stores.Fills == nil {
			return nil
		}
		return s.stores.Fills.InsertBulk(ctx, []*domain.Fill{f})
	})
}

func (s *Service) persistRounds(ctx context.Context, seqs ...int) {
	if s.stores.Rounds == nil {
		return
	}
	for _, seq := range seqs {
		r, err := s.p.Round(seq)
		if err != nil {
			s.log.WithError(err).WithField("seq", seq).Warn("round vanished before persist")
			continue
		}
		s.persist(ctx, "rounds", "upsert", func(ctx context.Context) error {
			return s.stores.Rounds.Upsert(ctx, &r)
		})
	}
}

func (s *Service) persistOrder(ctx context.Context, id uint64) {
	if s.stores.Orders == nil {
		return
	}
	o, err := s.p.Order(id)
	if err != nil {
		s.log.WithError(err).WithField("order_id", id).Warn("order vanished before persist")
		return
	}
	s.persist(ctx, "orders", "upsert", func(ctx context.Context) error {
		return s.stores.Orders.Upsert(ctx, &o)
	})
}

// persist writes through to a store. Failures are logged and counted; the
// platform state is authoritative and the operation has already committed.
func (s *Service) persist(ctx context.Context, store, op string, fn func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	err := fn(ctx)
	s.metrics.RecordStoreWrite(store, op, time.Since(start).Seconds(), err)
	if err != nil {
		s.storeErrs++
		s.log.WithError(err).WithFields(logrus.Fields{"store": store, "op": op}).Error("store write failed")
	}
}

func (s *Service) updateGauges() {
	snap, err := s.p.Snapshot()
	if err != nil {
		return
	}
	s.metrics.UpdateState(snap.OpenOrders, snap.Referrals)
}

// currentNumber is the current cycle number, or -1 before the first round.
func (s *Service) currentNumber() int {
	snap, err := s.p.Snapshot()
	if err != nil || snap.Current == nil {
		return -1
	}
	return snap.Current.Number
}

func (s *Service) publish(typ domain.EventType, round int, at time.Time, payload any) {
	if s.pub == nil {
		return
	}
	s.pub.Publish(domain.Event{
		ID:      uuid.NewString(),
		Type:    typ,
		Round:   round,
		Time:    at,
		Payload: payload,
	})
	s.metrics.RecordEvent(string(typ))
}

func toFloat(x *big.Int) float64 {
	if x == nil {
		return 0
	}
	f, _ := new(big.Float).SetInt(x).Float64()
	return f
}
