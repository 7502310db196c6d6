package keeper

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"acdm-platform/internal/domain"
	"acdm-platform/internal/domain/domaintest"
	"acdm-platform/internal/ledger"
	"acdm-platform/internal/observability"
	"acdm-platform/internal/platform"
)

var (
	admin    = domaintest.Address(1)
	account  = domaintest.Address(2)
	treasury = domaintest.Address(3)
)

// direct adapts a Platform to Rounds without the service layer.
type direct struct {
	mu sync.Mutex
	p  *platform.Platform
}

func (d *direct) Snapshot(context.Context) (platform.Snapshot, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.p.Snapshot()
}

func (d *direct) StartSaleRound(_ context.Context, caller domain.Address) (platform.RoundStarted, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.p.StartSaleRound(caller)
}

func (d *direct) StartTradeRound(_ context.Context, caller domain.Address) (platform.RoundStarted, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.p.StartTradeRound(caller)
}

func newPlatform(t *testing.T, now *time.Time) (*direct, time.Duration) {
	t.Helper()
	token := ledger.NewToken("ACADEM Coin", "ACDM", 6)
	token.GrantRole(ledger.RoleMinter, account)
	token.GrantRole(ledger.RoleBurner, account)
	cfg := platform.DefaultConfig(admin, account, treasury)
	cfg.Clock = func() time.Time { return *now }
	p, err := platform.New(cfg, token, ledger.NewBank())
	require.NoError(t, err)
	return &direct{p: p}, cfg.Rounds.Duration
}

func TestTick_AdvancesElapsedRounds(t *testing.T) {
	now := domaintest.Now()
	rounds, d := newPlatform(t, &now)
	k, err := New(Options{Rounds: rounds, Admin: admin, Schedule: "@every 1m", Bootstrap: true, Logger: observability.Discard()})
	require.NoError(t, err)
	ctx := context.Background()

	r, err := k.Tick(ctx)
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.Equal(t, domain.RoundSale, r.Kind)

	r, err = k.Tick(ctx)
	require.NoError(t, err)
	assert.Nil(t, r, "sale round has not elapsed")

	now = now.Add(d)
	r, err = k.Tick(ctx)
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.Equal(t, domain.RoundTrade, r.Kind)
	assert.Equal(t, 0, r.Number)

	now = now.Add(d)
	r, err = k.Tick(ctx)
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.Equal(t, domain.RoundSale, r.Kind)
	assert.Equal(t, 1, r.Number)
}

func TestTick_NoBootstrap(t *testing.T) {
	now := domaintest.Now()
	rounds, _ := newPlatform(t, &now)
	k, err := New(Options{Rounds: rounds, Admin: admin, Schedule: "@every 1m", Logger: observability.Discard()})
	require.NoError(t, err)

	r, err := k.Tick(context.Background())
	require.NoError(t, err)
	assert.Nil(t, r)

	snap, err := rounds.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Zero(t, snap.RoundCount)
}

func TestTick_WrongAdminSurfaces(t *testing.T) {
	now := domaintest.Now()
	rounds, _ := newPlatform(t, &now)
	k, err := New(Options{Rounds: rounds, Admin: treasury, Schedule: "@every 1m", Bootstrap: true, Logger: observability.Discard()})
	require.NoError(t, err)

	_, err = k.Tick(context.Background())
	assert.ErrorIs(t, err, platform.ErrNotAdmin)
}

func TestNew_BadSchedule(t *testing.T) {
	_, err := New(Options{Schedule: "whenever"})
	assert.Error(t, err)
}

func TestStartStop(t *testing.T) {
	now := domaintest.Now()
	rounds, _ := newPlatform(t, &now)
	k, err := New(Options{Rounds: rounds, Admin: admin, Schedule: "@every 1h", Logger: observability.Discard()})
	require.NoError(t, err)

	k.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, k.Stop(ctx))
}
