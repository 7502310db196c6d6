// Package keeper starts rounds on a schedule once the current round has elapsed.
// It is an ordinary admin caller; the platform still decides whether a transition is legal.
package keeper

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"acdm-platform/internal/domain"
	"acdm-platform/internal/observability"
	"acdm-platform/internal/platform"
)

// Rounds is the part of the service the keeper drives.
type Rounds interface {
	Snapshot(ctx context.Context) (platform.Snapshot, error)
	StartSaleRound(ctx context.Context, caller domain.Address) (platform.RoundStarted, error)
	StartTradeRound(ctx context.Context, caller domain.Address) (platform.RoundStarted, error)
}

// Options for creating a Keeper.
type Options struct {
	Rounds    Rounds
	Admin     domain.Address
	Schedule  string // standard cron spec or @every descriptor
	Bootstrap bool   // start the first sale round when none exists
	Logger    logrus.FieldLogger
}

// Keeper advances rounds.
type Keeper struct {
	rounds    Rounds
	admin     domain.Address
	bootstrap bool
	log       *logrus.Entry

	cron *cron.Cron
	mu   sync.Mutex // one tick at a time
}

// New creates a keeper. The schedule is validated here.
func New(opts Options) (*Keeper, error) {
	k := &Keeper{
		rounds:    opts.Rounds,
		admin:     opts.Admin,
		bootstrap: opts.Bootstrap,
		log:       observability.Component(opts.Logger, "keeper"),
		cron:      cron.New(),
	}
	if _, err := k.cron.AddFunc(opts.Schedule, func() {
		if _, err := k.Tick(context.Background()); err != nil {
			k.log.WithError(err).Warn("keeper tick failed")
		}
	}); err != nil {
		return nil, fmt.Errorf("keeper schedule %q: %w", opts.Schedule, err)
	}
	return k, nil
}

// Start runs the schedule in the background.
func (k *Keeper) Start() {
	k.log.Info("keeper started")
	k.cron.Start()
}

// Stop stops the schedule and waits for a running tick, or for ctx.
func (k *Keeper) Stop(ctx context.Context) error {
	done := k.cron.Stop()
	select {
	case <-done.Done():
		k.log.Info("keeper stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Tick starts the next round if the current one has elapsed on the platform clock.
// It returns the started round, or nil when nothing was due.
func (k *Keeper) Tick(ctx context.Context) (*domain.Round, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	snap, err := k.rounds.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}

	var started platform.RoundStarted
	switch {
	case snap.Current == nil:
		if !k.bootstrap {
			return nil, nil
		}
		started, err = k.rounds.StartSaleRound(ctx, k.admin)
	case snap.RoundEndsAt != nil && snap.Time.Before(*snap.RoundEndsAt):
		return nil, nil
	case snap.Current.Kind == domain.RoundSale:
		started, err = k.rounds.StartTradeRound(ctx, k.admin)
	default:
		started, err = k.rounds.StartSaleRound(ctx, k.admin)
	}
	if err != nil {
		// Another admin call may have won the race; that is not a failure.
		if errors.Is(err, domain.ErrState) {
			k.log.WithError(err).Debug("round transition skipped")
			return nil, nil
		}
		return nil, err
	}

	r := started.Round
	k.log.WithFields(logrus.Fields{"kind": r.Kind.String(), "number": r.Number}).Info("keeper started round")
	return &r, nil
}
