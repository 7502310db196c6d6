package rounds

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"acdm-platform/internal/domain"
	"acdm-platform/internal/domain/domaintest"
	"acdm-platform/internal/txn"
)

func newScheduler(t *testing.T) *Scheduler {
	t.Helper()
	s, err := NewScheduler(DefaultParams())
	require.NoError(t, err)
	return s
}

func TestNextPrice(t *testing.T) {
	p := DefaultParams()
	got := p.NextPrice(p.BootstrapPrice)
	assert.Equal(t, "14300000000000", got.String())
}

func TestAlternation(t *testing.T) {
	s := newScheduler(t)
	d := s.Params().Duration
	t0 := domaintest.Now()

	_, err := s.StartTrade(t0, nil)
	assert.ErrorIs(t, err, ErrNoActiveRound)

	tr, err := s.StartSale(t0, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, tr.Round.Number)
	assert.Equal(t, "100000", tr.Round.SaleSupply.String())
	assert.Equal(t, "10000000000000", tr.Round.Price.String())

	_, err = s.StartSale(t0.Add(d), nil)
	assert.ErrorIs(t, err, ErrSaleAlreadyActive)
	assert.ErrorIs(t, err, ErrWrongRoundKind)
	assert.ErrorIs(t, err, domain.ErrState)

	_, err = s.StartTrade(t0.Add(d-time.Second), nil)
	assert.ErrorIs(t, err, ErrRoundNotFinished)

	trade, err := s.StartTrade(t0.Add(d), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, trade.Seq)
	assert.Equal(t, 0, trade.Number)
	assert.Equal(t, int64(0), trade.EthTraded.Int64())

	_, err = s.StartTrade(t0.Add(2*d), nil)
	assert.ErrorIs(t, err, ErrTradeAlreadyActive)

	_, err = s.StartSale(t0.Add(2*d-time.Second), nil)
	assert.ErrorIs(t, err, ErrRoundNotFinished)

	_, err = s.StartSale(t0.Add(2*d), nil)
	require.NoError(t, err)

	k, err := s.StatusRound(0)
	require.NoError(t, err)
	assert.Equal(t, domain.RoundTrade, k)
	k, err = s.StatusRound(1)
	require.NoError(t, err)
	assert.Equal(t, domain.RoundSale, k)
	_, err = s.StatusRound(2)
	assert.ErrorIs(t, err, ErrRoundNotFound)

	r, err := s.Round(2)
	require.NoError(t, err)
	assert.Equal(t, domain.RoundSale, r.Kind)
	_, err = s.Round(3)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Len(t, s.Rounds(), 3)
}

func TestSecondSaleSupplyAndBurn(t *testing.T) {
	s := newScheduler(t)
	d := s.Params().Duration
	t0 := domaintest.Now()

	_, err := s.StartSale(t0, nil)
	require.NoError(t, err)
	_, err = s.Sell(big.NewInt(1000), nil)
	require.NoError(t, err)
	assert.Equal(t, "99000", s.Inventory().String())

	_, err = s.StartTrade(t0.Add(d), nil)
	require.NoError(t, err)
	assert.Equal(t, "99000", s.Inventory().String(), "inventory stays until the next sale")
	_, err = s.RecordVolume(domaintest.Ether("10"), nil)
	require.NoError(t, err)

	tr, err := s.StartSale(t0.Add(2*d), nil)
	require.NoError(t, err)
	assert.Equal(t, "99000", tr.Unsold.String())
	assert.Equal(t, "14300000000000", tr.Round.Price.String())
	// 10 ETH at the new price; the previous price would give 1000000
	assert.Equal(t, "699300", tr.Round.SaleSupply.String())
	assert.Equal(t, "699300", s.Inventory().String())

	first, err := s.Round(0)
	require.NoError(t, err)
	assert.Equal(t, "99000", first.Burned.String())
	assert.Equal(t, int64(0), first.SaleRemaining.Int64())
}

func TestSellAndVolumeKinds(t *testing.T) {
	s := newScheduler(t)
	_, err := s.Sell(big.NewInt(1), nil)
	assert.ErrorIs(t, err, ErrNotSaleRound)
	_, err = s.RecordVolume(big.NewInt(1), nil)
	assert.ErrorIs(t, err, ErrNotTradeRound)

	_, err = s.StartSale(domaintest.Now(), nil)
	require.NoError(t, err)
	_, err = s.Sell(big.NewInt(100_001), nil)
	assert.ErrorIs(t, err, ErrInsufficientSupply)
	assert.ErrorIs(t, err, domain.ErrSupply)
	_, err = s.RecordVolume(big.NewInt(1), nil)
	assert.ErrorIs(t, err, ErrNotTradeRound)
	_, err = s.RequireKind(domain.RoundSale)
	assert.NoError(t, err)
}

func TestRollback(t *testing.T) {
	s := newScheduler(t)
	d := s.Params().Duration
	t0 := domaintest.Now()
	_, err := s.StartSale(t0, nil)
	require.NoError(t, err)
	_, err = s.Sell(big.NewInt(500), nil)
	require.NoError(t, err)
	_, err = s.StartTrade(t0.Add(d), nil)
	require.NoError(t, err)

	j := txn.New()
	_, err = s.RecordVolume(big.NewInt(77), j)
	require.NoError(t, err)
	require.NoError(t, j.Rollback())
	cur, err := s.Current()
	require.NoError(t, err)
	assert.Equal(t, int64(0), cur.EthTraded.Int64())

	j = txn.New()
	_, err = s.StartSale(t0.Add(2*d), j)
	require.NoError(t, err)
	require.NoError(t, j.Rollback())

	assert.Len(t, s.Rounds(), 2)
	assert.Equal(t, "99500", s.Inventory().String())
	first, _ := s.Round(0)
	assert.Equal(t, int64(0), first.Burned.Int64())
}

func TestParamsValidate(t *testing.T) {
	p := DefaultParams()
	p.Duration = 0
	_, err := NewScheduler(p)
	assert.Error(t, err)
}
