package platform

import (
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"acdm-platform/internal/domain"
	"acdm-platform/internal/domain/domaintest"
	"acdm-platform/internal/ledger"
)

var (
	admin    = domaintest.Address(1)
	account  = domaintest.Address(2)
	treasury = domaintest.Address(3)
	owner    = domaintest.Address(10) // top of the referral chain
	alice    = domaintest.Address(11)
	bob      = domaintest.Address(12)
	carol    = domaintest.Address(13)
	dave     = domaintest.Address(14) // unfunded
	sink     = domaintest.Address(15)

	ether = domaintest.Ether
)

type fixture struct {
	p     *Platform
	token *ledger.Token
	bank  *ledger.Bank
	now   time.Time
	round time.Duration
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{now: domaintest.Now()}
	f.token = ledger.NewToken("ACADEM Coin", "ACDM", 6)
	f.token.GrantRole(ledger.RoleMinter, account)
	f.token.GrantRole(ledger.RoleBurner, account)
	f.bank = ledger.NewBank()
	for _, a := range []domain.Address{owner, alice, bob, carol} {
		require.NoError(t, f.bank.Deposit(a, ether("100")))
	}

	cfg := DefaultConfig(admin, account, treasury)
	cfg.Clock = func() time.Time { return f.now }
	f.round = cfg.Rounds.Duration

	p, err := New(cfg, f.token, f.bank)
	require.NoError(t, err)
	f.p = p
	return f
}

func (f *fixture) advance() {
	f.now = f.now.Add(f.round)
}

func (f *fixture) startSale(t *testing.T) RoundStarted {
	t.Helper()
	rs, err := f.p.StartSaleRound(admin)
	require.NoError(t, err)
	return rs
}

func (f *fixture) startTrade(t *testing.T) RoundStarted {
	t.Helper()
	f.advance()
	rs, err := f.p.StartTradeRound(admin)
	require.NoError(t, err)
	return rs
}

// assertConserved checks participant balances + escrow + inventory == total supply
// and that the platform account holds exactly escrow + inventory.
func (f *fixture) assertConserved(t *testing.T) {
	t.Helper()
	require.NoError(t, f.p.Audit())
	snap, err := f.p.Snapshot()
	require.NoError(t, err)

	sum := new(big.Int)
	for a, b := range f.token.Balances() {
		if a != account {
			sum.Add(sum, b)
		}
	}
	sum.Add(sum, snap.Escrow)
	sum.Add(sum, snap.Inventory)
	assert.Equal(t, f.token.TotalSupply().String(), sum.String())
	minted := new(big.Int).Sub(f.token.Minted(), f.token.Burned())
	assert.Equal(t, minted.String(), sum.String())
}

func TestEndToEnd(t *testing.T) {
	f := newFixture(t)

	// alice -> bob -> owner
	_, err := f.p.Register(bob, owner)
	require.NoError(t, err)
	reg, err := f.p.Register(alice, bob)
	require.NoError(t, err)
	assert.Equal(t, domain.Chain{Level1: bob, Level2: owner}, reg.Chain)

	rs := f.startSale(t)
	assert.Equal(t, "100000", rs.Minted.String())
	f.assertConserved(t)

	bobBefore := f.bank.BalanceOf(bob)
	ownerBefore := f.bank.BalanceOf(owner)

	// 1000 tokens for 0.01 ETH
	buy, err := f.p.BuyACDM(alice, big.NewInt(1000), ether("0.01"))
	require.NoError(t, err)
	assert.Equal(t, ether("0.01"), buy.Cost)
	assert.Equal(t, int64(1000), f.token.BalanceOf(alice).Int64())
	assert.Equal(t, ether("0.0005"), new(big.Int).Sub(f.bank.BalanceOf(bob), bobBefore))
	assert.Equal(t, ether("0.0003"), new(big.Int).Sub(f.bank.BalanceOf(owner), ownerBefore))
	assert.Equal(t, ether("0.0092"), f.bank.BalanceOf(treasury))
	f.assertConserved(t)

	f.startTrade(t)
	require.NoError(t, f.token.Approve(alice, account, big.NewInt(1000)))
	placed, err := f.p.AddOrder(alice, big.NewInt(1000), ether("0.01"))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), placed.Order.ID)
	f.assertConserved(t)

	bobBefore = f.bank.BalanceOf(bob)
	ownerBefore = f.bank.BalanceOf(owner)
	aliceBefore := f.bank.BalanceOf(alice)

	red, err := f.p.RedeemOrder(alice, 1, big.NewInt(1000), ether("10"))
	require.NoError(t, err)
	assert.Equal(t, ether("10"), red.Cost)
	assert.Equal(t, ether("0.25"), new(big.Int).Sub(f.bank.BalanceOf(bob), bobBefore))
	assert.Equal(t, ether("0.25"), new(big.Int).Sub(f.bank.BalanceOf(owner), ownerBefore))
	// alice paid 10 and received 9.5 back as the order owner
	assert.Equal(t, ether("0.5"), new(big.Int).Sub(aliceBefore, f.bank.BalanceOf(alice)))
	assert.Equal(t, domain.OrderFilled, red.Order.Status)
	assert.Equal(t, ether("10"), red.Round.EthTraded)
	f.assertConserved(t)

	f.advance()
	next := f.startSale(t)
	assert.Equal(t, 1, next.Round.Number)
	assert.Equal(t, "14300000000000", next.Round.Price.String())
	assert.Equal(t, "699300", next.Round.SaleSupply.String())
	assert.Equal(t, "99000", next.Burned.String())
	f.assertConserved(t)

	k, err := f.p.StatusRound(1)
	require.NoError(t, err)
	assert.Equal(t, domain.RoundSale, k)
	k, err = f.p.StatusRound(0)
	require.NoError(t, err)
	assert.Equal(t, domain.RoundTrade, k)
	r, err := f.p.Round(1)
	require.NoError(t, err)
	assert.Equal(t, domain.RoundTrade, r.Kind)
	rounds, err := f.p.Rounds()
	require.NoError(t, err)
	assert.Len(t, rounds, 3)
}

func TestBuy_UnregisteredPaysTreasury(t *testing.T) {
	f := newFixture(t)
	f.startSale(t)

	buy, err := f.p.BuyACDM(carol, big.NewInt(100), ether("0.5"))
	require.NoError(t, err)
	assert.Equal(t, ether("0.001"), f.bank.BalanceOf(treasury))
	assert.Equal(t, ether("0.499"), buy.Refund)
	assert.Equal(t, ether("99.999"), f.bank.BalanceOf(carol))
	require.Len(t, buy.Payouts, 2)
	assert.Equal(t, domain.PayoutRefund, buy.Payouts[0].Reason)
	assert.Equal(t, domain.PayoutFallback, buy.Payouts[1].Reason)
	assert.Equal(t, int64(0), f.bank.BalanceOf(account).Int64())
}

func TestBuy_Rejections(t *testing.T) {
	f := newFixture(t)

	_, err := f.p.BuyACDM(alice, big.NewInt(1), ether("1"))
	assert.ErrorIs(t, err, ErrNotSaleRound)

	f.startSale(t)
	tests := []struct {
		name    string
		amount  *big.Int
		payment *big.Int
		want    error
	}{
		{"zero amount", big.NewInt(0), ether("1"), ErrInvalidAmount},
		{"over supply", big.NewInt(100_001), ether("100"), ErrInsufficientSupply},
		{"underpaid", big.NewInt(1000), ether("0.0099"), ErrInsufficientPayment},
		{"cannot cover", big.NewInt(1000), ether("101"), ErrInsufficientFunds},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.p.BuyACDM(alice, tt.amount, tt.payment)
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, ether("100"), f.bank.BalanceOf(alice))
			assert.Equal(t, int64(0), f.token.BalanceOf(alice).Int64())
		})
	}
	assert.ErrorIs(t, ErrInsufficientFunds, domain.ErrPayment)
	f.assertConserved(t)
}

func TestRounds_AdminAndTiming(t *testing.T) {
	f := newFixture(t)

	_, err := f.p.StartSaleRound(alice)
	assert.ErrorIs(t, err, ErrNotAdmin)
	assert.ErrorIs(t, err, domain.ErrAuthorization)
	_, err = f.p.StartTradeRound(admin)
	assert.ErrorIs(t, err, ErrNoActiveRound)

	f.startSale(t)
	_, err = f.p.StartTradeRound(admin)
	assert.ErrorIs(t, err, ErrRoundNotFinished)
	_, err = f.p.StartSaleRound(admin)
	assert.ErrorIs(t, err, ErrSaleAlreadyActive)

	f.startTrade(t)
	_, err = f.p.StartTradeRound(admin)
	assert.ErrorIs(t, err, ErrTradeAlreadyActive)
	_, err = f.p.StartTradeRound(bob)
	assert.ErrorIs(t, err, ErrNotAdmin)
	_, err = f.p.StartSaleRound(admin)
	assert.ErrorIs(t, err, ErrRoundNotFinished)

	// no volume: the next sale round has nothing to sell and the old inventory is burned
	f.advance()
	rs := f.startSale(t)
	assert.Equal(t, int64(0), rs.Round.SaleSupply.Int64())
	assert.Equal(t, "100000", rs.Burned.String())
	assert.Equal(t, int64(0), f.token.TotalSupply().Int64())
	f.assertConserved(t)
}

func TestOrderLifecycle(t *testing.T) {
	f := newFixture(t)
	f.startSale(t)
	_, err := f.p.BuyACDM(alice, big.NewInt(100), ether("1"))
	require.NoError(t, err)

	_, err = f.p.AddOrder(alice, big.NewInt(100), ether("0.001"))
	assert.ErrorIs(t, err, ErrNotTradeRound)

	f.startTrade(t)
	_, err = f.p.AddOrder(alice, big.NewInt(100), ether("0.001"))
	assert.ErrorIs(t, err, ErrInsufficientAllowance)
	require.NoError(t, f.token.Approve(alice, account, big.NewInt(1000)))
	_, err = f.p.AddOrder(alice, big.NewInt(101), ether("0.001"))
	assert.ErrorIs(t, err, ErrInsufficientBalance)

	placed, err := f.p.AddOrder(alice, big.NewInt(100), ether("0.001"))
	require.NoError(t, err)
	id := placed.Order.ID
	assert.Equal(t, int64(900), f.token.Allowance(alice, account).Int64())

	red, err := f.p.RedeemOrder(bob, id, big.NewInt(60), ether("0.06"))
	require.NoError(t, err)
	assert.Equal(t, int64(40), red.Order.Remaining.Int64())
	assert.Equal(t, int64(60), f.token.BalanceOf(bob).Int64())
	// bob is unregistered so alice receives the whole cost
	assert.Equal(t, ether("0.06"), red.Payouts[0].Amount)
	assert.Equal(t, alice, red.Payouts[0].To)

	_, err = f.p.RedeemOrder(bob, id, big.NewInt(41), ether("1"))
	assert.ErrorIs(t, err, ErrExhausted)
	_, err = f.p.RedeemOrder(bob, id, big.NewInt(10), ether("0.009"))
	assert.ErrorIs(t, err, ErrInsufficientPayment)
	_, err = f.p.RedeemOrder(bob, 99, big.NewInt(1), ether("1"))
	assert.ErrorIs(t, err, ErrOrderNotFound)

	_, err = f.p.RemoveOrder(bob, id)
	assert.ErrorIs(t, err, ErrNotOwner)
	removed, err := f.p.RemoveOrder(alice, id)
	require.NoError(t, err)
	assert.Equal(t, int64(40), removed.Released.Int64())
	assert.Equal(t, domain.OrderCancelled, removed.Order.Status)
	assert.Equal(t, int64(40), f.token.BalanceOf(alice).Int64())

	_, err = f.p.RedeemOrder(bob, id, big.NewInt(1), ether("1"))
	assert.ErrorIs(t, err, ErrExhausted)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = f.p.RemoveOrder(alice, id)
	assert.ErrorIs(t, err, ErrExhausted)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	f.assertConserved(t)
}

func TestStartSale_ReturnsOpenOrders(t *testing.T) {
	f := newFixture(t)
	f.startSale(t)
	_, err := f.p.BuyACDM(alice, big.NewInt(300), ether("1"))
	require.NoError(t, err)
	_, err = f.p.BuyACDM(bob, big.NewInt(200), ether("1"))
	require.NoError(t, err)

	f.startTrade(t)
	require.NoError(t, f.token.Approve(alice, account, big.NewInt(300)))
	require.NoError(t, f.token.Approve(bob, account, big.NewInt(200)))
	_, err = f.p.AddOrder(alice, big.NewInt(300), ether("0.01"))
	require.NoError(t, err)
	_, err = f.p.AddOrder(bob, big.NewInt(200), ether("0.01"))
	require.NoError(t, err)
	_, err = f.p.RedeemOrder(carol, 1, big.NewInt(100), ether("1"))
	require.NoError(t, err)

	f.advance()
	rs := f.startSale(t)
	require.Len(t, rs.Expired, 2)
	assert.Equal(t, int64(200), f.token.BalanceOf(alice).Int64())
	assert.Equal(t, int64(200), f.token.BalanceOf(bob).Int64())
	assert.Equal(t, int64(100), f.token.BalanceOf(carol).Int64())

	orders, err := f.p.Orders()
	require.NoError(t, err)
	for _, o := range orders {
		assert.Equal(t, domain.OrderExpired, o.Status)
		assert.Equal(t, int64(0), o.Remaining.Int64())
	}
	f.assertConserved(t)
}

func TestRegister(t *testing.T) {
	f := newFixture(t)
	_, err := f.p.Referrer(alice)
	assert.ErrorIs(t, err, ErrNotRegistered)

	_, err = f.p.Register(alice, alice)
	assert.ErrorIs(t, err, ErrSelfReferral)
	_, err = f.p.Register(alice, bob)
	require.NoError(t, err)
	_, err = f.p.Register(alice, carol)
	assert.ErrorIs(t, err, ErrAlreadyRegistered)
	assert.ErrorIs(t, err, domain.ErrRegistration)

	ref, err := f.p.Referrer(alice)
	require.NoError(t, err)
	assert.Equal(t, bob, ref)
	links, err := f.p.Referrals()
	require.NoError(t, err)
	assert.Len(t, links, 1)
}

func TestReentrantCallRollsBack(t *testing.T) {
	f := newFixture(t)
	_, err := f.p.Register(alice, bob)
	require.NoError(t, err)
	f.startSale(t)

	var nested error
	f.bank.SetReceiveHook(treasury, func(domain.Address, *big.Int) error {
		_, nested = f.p.BuyACDM(treasury, big.NewInt(1), ether("1"))
		return nested
	})

	before, err := f.p.Snapshot()
	require.NoError(t, err)
	_, err = f.p.BuyACDM(alice, big.NewInt(1000), ether("0.02"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrReentrantCall)
	assert.ErrorIs(t, nested, ErrReentrantCall)

	// nothing moved
	assert.Equal(t, ether("100"), f.bank.BalanceOf(alice))
	assert.Equal(t, ether("100"), f.bank.BalanceOf(bob))
	assert.Equal(t, int64(0), f.bank.BalanceOf(treasury).Int64())
	assert.Equal(t, int64(0), f.bank.BalanceOf(account).Int64())
	assert.Equal(t, int64(0), f.token.BalanceOf(alice).Int64())
	after, err := f.p.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, before.Inventory, after.Inventory)
	f.assertConserved(t)

	// a hook that swallows the rejection lets the outer call finish
	f.bank.SetReceiveHook(treasury, func(domain.Address, *big.Int) error {
		_, nested = f.p.Referrer(alice)
		return nil
	})
	_, err = f.p.BuyACDM(alice, big.NewInt(1000), ether("0.01"))
	require.NoError(t, err)
	assert.True(t, errors.Is(nested, ErrReentrantCall))
}

func TestFailedBuy_HookCannotSpendHeldFee(t *testing.T) {
	f := newFixture(t)
	_, err := f.p.Register(alice, dave)
	require.NoError(t, err)
	f.startSale(t)

	var forwarded []error
	f.bank.SetReceiveHook(dave, func(_ domain.Address, amount *big.Int) error {
		forwarded = append(forwarded, f.bank.Transfer(dave, sink, amount))
		return nil
	})
	f.bank.SetReceiveHook(treasury, func(domain.Address, *big.Int) error {
		return errors.New("treasury closed")
	})

	_, err = f.p.BuyACDM(alice, big.NewInt(1000), ether("0.01"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ledger.ErrTransferRejected)
	require.Len(t, forwarded, 1)
	assert.ErrorIs(t, forwarded[0], ledger.ErrInsufficientBalance)

	assert.Equal(t, ether("100"), f.bank.BalanceOf(alice))
	assert.Equal(t, int64(0), f.bank.BalanceOf(dave).Int64())
	assert.Equal(t, int64(0), f.bank.BalanceOf(sink).Int64())
	assert.Equal(t, int64(0), f.bank.BalanceOf(account).Int64())
	snap, err := f.p.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, int64(100000), snap.Inventory.Int64())
	f.assertConserved(t)

	// once the treasury accepts, dave's fee lands on commit and is spendable
	f.bank.SetReceiveHook(treasury, nil)
	_, err = f.p.BuyACDM(alice, big.NewInt(1000), ether("0.01"))
	require.NoError(t, err)
	assert.Equal(t, ether("0.0005"), f.bank.BalanceOf(dave))
	assert.Equal(t, ether("0.0095"), f.bank.BalanceOf(treasury))
	assert.Equal(t, ether("99.99"), f.bank.BalanceOf(alice))
	require.NoError(t, f.bank.Transfer(dave, sink, ether("0.0005")))
	assert.Equal(t, ether("0.0005"), f.bank.BalanceOf(sink))
}

func TestNew_RejectsBadConfig(t *testing.T) {
	cfg := DefaultConfig(admin, "", treasury)
	_, err := New(cfg, ledger.NewToken("", "", 0), ledger.NewBank())
	assert.Error(t, err)

	cfg = DefaultConfig(admin, account, treasury)
	cfg.SaleRates.Level1Bps = 20000
	_, err = New(cfg, ledger.NewToken("", "", 0), ledger.NewBank())
	assert.Error(t, err)
}
