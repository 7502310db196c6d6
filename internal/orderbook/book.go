// Package orderbook holds trade-round sell orders and tracks the tokens they escrow.
// It does no token transfers; the platform moves tokens and keeps the book in step.
package orderbook

import (
	"math/big"
	"sort"
	"sync"
	"time"

	"acdm-platform/internal/domain"
	"acdm-platform/internal/txn"
)

// Book errors
var (
	ErrOrderNotFound = domain.NewError(domain.ErrNotFound, "order not found")
	ErrExhausted     = domain.NewError(domain.ErrNotFound, "order does not have enough tokens")
	ErrNotOwner      = domain.NewError(domain.ErrOwnership, "caller is not the order owner")
	ErrInvalidOrder  = domain.NewError(domain.ErrInvalidArgument, "order amount and price must be positive")
)

// Release is an amount of escrow handed back to an owner.
type Release struct {
	OrderID uint64         `json:"order_id"`
	Owner   domain.Address `json:"owner"`
	Amount  *big.Int       `json:"amount"`
}

// Book is the order book. Ids are assigned from 1 and never reused.
type Book struct {
	mu     sync.RWMutex
	orders map[uint64]*domain.Order
	nextID uint64
	escrow *big.Int
}

// New creates an empty book.
func New() *Book {
	return &Book{
		orders: make(map[uint64]*domain.Order),
		nextID: 1,
		escrow: new(big.Int),
	}
}

// Add opens an order for amount tokens at price wei per token.
func (b *Book) Add(owner domain.Address, amount, price *big.Int, round int, now time.Time, j *txn.Journal) (domain.Order, error) {
	if !domain.IsPositive(amount) || !domain.IsPositive(price) {
		return domain.Order{}, ErrInvalidOrder
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	o := &domain.Order{
		ID:            b.nextID,
		Owner:         owner,
		Round:         round,
		PricePerToken: domain.Clone(price),
		Amount:        domain.Clone(amount),
		Remaining:     domain.Clone(amount),
		Status:        domain.OrderOpen,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	b.orders[o.ID] = o
	b.nextID++
	b.escrow.Add(b.escrow, amount)

	j.Record(func() error {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.orders, o.ID)
		b.nextID--
		b.escrow.Sub(b.escrow, o.Amount)
		return nil
	})
	return o.Clone(), nil
}

// Fill takes amount tokens from an open order. An order filled to zero becomes filled.
func (b *Book) Fill(id uint64, amount *big.Int, now time.Time, j *txn.Journal) (domain.Order, error) {
	if !domain.IsPositive(amount) {
		return domain.Order{}, ErrInvalidOrder
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	o, ok := b.orders[id]
	if !ok {
		return domain.Order{}, ErrOrderNotFound
	}
	if o.Status != domain.OrderOpen || o.Remaining.Cmp(amount) < 0 {
		return domain.Order{}, ErrExhausted
	}

	prev := o.Clone()
	o.Remaining = new(big.Int).Sub(o.Remaining, amount)
	if o.Remaining.Sign() == 0 {
		o.Status = domain.OrderFilled
	}
	o.UpdatedAt = now
	b.escrow.Sub(b.escrow, amount)
	b.journal(j, prev, amount)
	return o.Clone(), nil
}

// Cancel closes caller's order and returns the released remainder.
func (b *Book) Cancel(caller domain.Address, id uint64, now time.Time, j *txn.Journal) (Release, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	o, ok := b.orders[id]
	if !ok {
		return Release{}, ErrOrderNotFound
	}
	if o.Owner != caller {
		return Release{}, ErrNotOwner
	}
	if !o.IsOpen() {
		return Release{}, ErrExhausted
	}
	return b.close(o, domain.OrderCancelled, now, j), nil
}

// ExpireOpen closes every open order and returns the releases in id order.
func (b *Book) ExpireOpen(now time.Time, j *txn.Journal) []Release {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []Release
	for _, id := range b.ids() {
		o := b.orders[id]
		if o.IsOpen() {
			out = append(out, b.close(o, domain.OrderExpired, now, j))
		}
	}
	return out
}

// Get returns a copy of order id.
func (b *Book) Get(id uint64) (domain.Order, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	o, ok := b.orders[id]
	if !ok {
		return domain.Order{}, ErrOrderNotFound
	}
	return o.Clone(), nil
}

// Orders returns every order in id order.
func (b *Book) Orders() []domain.Order {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]domain.Order, 0, len(b.orders))
	for _, id := range b.ids() {
		out = append(out, b.orders[id].Clone())
	}
	return out
}

// OpenOrders returns the orders that still escrow tokens.
func (b *Book) OpenOrders() []domain.Order {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var out []domain.Order
	for _, id := range b.ids() {
		if o := b.orders[id]; o.IsOpen() {
			out = append(out, o.Clone())
		}
	}
	return out
}

// EscrowTotal is the sum of Remaining over open orders.
func (b *Book) EscrowTotal() *big.Int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return domain.Clone(b.escrow)
}

func (b *Book) close(o *domain.Order, status domain.OrderStatus, now time.Time, j *txn.Journal) Release {
	prev := o.Clone()
	released := o.Remaining
	o.Remaining = new(big.Int)
	o.Status = status
	o.UpdatedAt = now
	b.escrow.Sub(b.escrow, released)
	b.journal(j, prev, released)
	return Release{OrderID: o.ID, Owner: o.Owner, Amount: domain.Clone(released)}
}

// journal records restoring prev and re-adding delta to escrow.
func (b *Book) journal(j *txn.Journal, prev domain.Order, delta *big.Int) {
	d := domain.Clone(delta)
	j.Record(func() error {
		b.mu.Lock()
		defer b.mu.Unlock()
		restored := prev.Clone()
		b.orders[prev.ID] = &restored
		b.escrow.Add(b.escrow, d)
		return nil
	})
}

func (b *Book) ids() []uint64 {
	ids := make([]uint64, 0, len(b.orders))
	for id := range b.orders {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, k int) bool { return ids[i] < ids[k] })
	return ids
}
