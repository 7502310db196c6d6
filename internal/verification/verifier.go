// Package verification checks the persisted rounds, orders and referrals against
// the live platform state. Store writes are best effort, so a failed write shows up
// here as a divergence.
package verification

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"acdm-platform/internal/domain"
	"acdm-platform/internal/storage"
)

// TimeTolerance absorbs the timestamp precision of the stores (microseconds in
// PostgreSQL, milliseconds in ClickHouse).
const TimeTolerance = time.Millisecond

// Source is the live state, usually a *service.Service.
type Source interface {
	Rounds(ctx context.Context) ([]domain.Round, error)
	Orders(ctx context.Context) ([]domain.Order, error)
	Referrals(ctx context.Context) ([]domain.Referral, error)
}

// FieldDivergence represents a mismatch between live and stored values.
type FieldDivergence struct {
	Entity   string `json:"entity"` // round | order | referral
	Key      string `json:"key"`    // seq, order id or participant
	Field    string `json:"field"`
	Expected string `json:"expected"` // live value
	Actual   string `json:"actual"`   // stored value
}

// Report contains the result of one verification pass.
type Report struct {
	CheckedAt   time.Time         `json:"checked_at"`
	Rounds      int               `json:"rounds"`
	Orders      int               `json:"orders"`
	Referrals   int               `json:"referrals"`
	Divergences []FieldDivergence `json:"divergences"`
}

// Match reports whether the stores agree with the live state.
func (r *Report) Match() bool {
	return len(r.Divergences) == 0
}

// Verifier compares a Source with its write-through stores. Nil stores are skipped.
type Verifier struct {
	source    Source
	rounds    storage.RoundStore
	orders    storage.OrderStore
	referrals storage.ReferralStore
	now       func() time.Time
}

// NewVerifier creates a verifier.
func NewVerifier(source Source, rounds storage.RoundStore, orders storage.OrderStore, referrals storage.ReferralStore) *Verifier {
	return &Verifier{
		source:    source,
		rounds:    rounds,
		orders:    orders,
		referrals: referrals,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// VerifyAll checks every entity kind that has a store.
func (v *Verifier) VerifyAll(ctx context.Context) (*Report, error) {
	report := &Report{CheckedAt: v.now()}
	if v.rounds != nil {
		if err := v.verifyRounds(ctx, report); err != nil {
			return nil, err
		}
	}
	if v.orders != nil {
		if err := v.verifyOrders(ctx, report); err != nil {
			return nil, err
		}
	}
	if v.referrals != nil {
		if err := v.verifyReferrals(ctx, report); err != nil {
			return nil, err
		}
	}
	return report, nil
}

func (v *Verifier) verifyRounds(ctx context.Context, report *Report) error {
	live, err := v.source.Rounds(ctx)
	if err != nil {
		return fmt.Errorf("live rounds: %w", err)
	}
	stored, err := v.rounds.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("stored rounds: %w", err)
	}
	report.Rounds = len(live)

	bySeq := make(map[int]*domain.Round, len(stored))
	for _, r := range stored {
		bySeq[r.Seq] = r
	}
	for i := range live {
		key := fmt.Sprint(live[i].Seq)
		s, ok := bySeq[live[i].Seq]
		if !ok {
			report.add("round", key, "", "present", "missing")
			continue
		}
		delete(bySeq, live[i].Seq)
		report.Divergences = append(report.Divergences, CompareRounds(&live[i], s)...)
	}
	for seq := range bySeq {
		report.add("round", fmt.Sprint(seq), "", "missing", "present")
	}
	return nil
}

func (v *Verifier) verifyOrders(ctx context.Context, report *Report) error {
	live, err := v.source.Orders(ctx)
	if err != nil {
		return fmt.Errorf("live orders: %w", err)
	}
	report.Orders = len(live)

	for i := range live {
		s, err := v.orders.GetByID(ctx, live[i].ID)
		if errors.Is(err, storage.ErrNotFound) {
			report.add("order", fmt.Sprint(live[i].ID), "", "present", "missing")
			continue
		}
		if err != nil {
			return fmt.Errorf("stored order %d: %w", live[i].ID, err)
		}
		report.Divergences = append(report.Divergences, CompareOrders(&live[i], s)...)
	}
	return nil
}

func (v *Verifier) verifyReferrals(ctx context.Context, report *Report) error {
	live, err := v.source.Referrals(ctx)
	if err != nil {
		return fmt.Errorf("live referrals: %w", err)
	}
	stored, err := v.referrals.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("stored referrals: %w", err)
	}
	report.Referrals = len(live)

	byParticipant := make(map[domain.Address]domain.Address, len(stored))
	for _, r := range stored {
		byParticipant[r.Participant] = r.Referrer
	}
	for _, l := range live {
		ref, ok := byParticipant[l.Participant]
		switch {
		case !ok:
			report.add("referral", l.Participant.String(), "", "present", "missing")
		case ref != l.Referrer:
			report.add("referral", l.Participant.String(), "Referrer", l.Referrer.String(), ref.String())
		}
		delete(byParticipant, l.Participant)
	}
	for p := range byParticipant {
		report.add("referral", p.String(), "", "missing", "present")
	}
	return nil
}

func (r *Report) add(entity, key, field, expected, actual string) {
	r.Divergences = append(r.Divergences, FieldDivergence{
		Entity:   entity,
		Key:      key,
		Field:    field,
		Expected: expected,
		Actual:   actual,
	})
}

// CompareRounds compares a live round with its stored row.
func CompareRounds(live, stored *domain.Round) []FieldDivergence {
	d := diff{entity: "round", key: fmt.Sprint(live.Seq)}
	d.value("Number", live.Number, stored.Number)
	d.value("Kind", live.Kind, stored.Kind)
	d.time("StartTime", live.StartTime, stored.StartTime)
	d.amount("Price", live.Price, stored.Price)
	d.amount("SaleSupply", live.SaleSupply, stored.SaleSupply)
	d.amount("SaleRemaining", live.SaleRemaining, stored.SaleRemaining)
	d.amount("Burned", live.Burned, stored.Burned)
	d.amount("EthTraded", live.EthTraded, stored.EthTraded)
	return d.out
}

// CompareOrders compares a live order with its stored row.
func CompareOrders(live, stored *domain.Order) []FieldDivergence {
	d := diff{entity: "order", key: fmt.Sprint(live.ID)}
	d.value("Owner", live.Owner, stored.Owner)
	d.value("Round", live.Round, stored.Round)
	d.value("Status", live.Status, stored.Status)
	d.amount("PricePerToken", live.PricePerToken, stored.PricePerToken)
	d.amount("Amount", live.Amount, stored.Amount)
	d.amount("Remaining", live.Remaining, stored.Remaining)
	d.time("CreatedAt", live.CreatedAt, stored.CreatedAt)
	return d.out
}

type diff struct {
	entity string
	key    string
	out    []FieldDivergence
}

func (d *diff) add(field string, expected, actual any) {
	d.out = append(d.out, FieldDivergence{
		Entity:   d.entity,
		Key:      d.key,
		Field:    field,
		Expected: fmt.Sprint(expected),
		Actual:   fmt.Sprint(actual),
	})
}

func (d *diff) value(field string, expected, actual any) {
	if expected != actual {
		d.add(field, expected, actual)
	}
}

// amount treats nil as zero.
func (d *diff) amount(field string, expected, actual *big.Int) {
	e, a := orZero(expected), orZero(actual)
	if e.Cmp(a) != 0 {
		d.add(field, e, a)
	}
}

func (d *diff) time(field string, expected, actual time.Time) {
	delta := expected.Sub(actual)
	if delta < 0 {
		delta = -delta
	}
	if delta >= TimeTolerance {
		d.add(field, expected.UTC().Format(time.RFC3339Nano), actual.UTC().Format(time.RFC3339Nano))
	}
}

func orZero(x *big.Int) *big.Int {
	if x == nil {
		return new(big.Int)
	}
	return x
}
