package domain_test

import (
	"encoding/json"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"acdm-platform/internal/domain"
	"acdm-platform/internal/domain/domaintest"
)

// --- Address ---

func TestParseAddress_Valid(t *testing.T) {
	a := domaintest.Address(0x01)
	got, err := domain.ParseAddress(a.String())
	require.NoError(t, err)
	assert.Equal(t, a, got)
	assert.False(t, got.IsZero())
}

func TestParseAddress_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"bad alphabet", "0OIl"},
		{"short", base58.Encode([]byte{1, 2, 3})},
		{"long", base58.Encode(make([]byte, 33))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := domain.ParseAddress(tt.input)
			assert.ErrorIs(t, err, domain.ErrInvalidAddress)
		})
	}
}

func TestAddressFromPublicKey_WrongSize(t *testing.T) {
	_, err := domain.AddressFromPublicKey([]byte{1, 2})
	assert.ErrorIs(t, err, domain.ErrInvalidAddress)
}

func TestDomaintestAddress_Distinct(t *testing.T) {
	assert.NotEqual(t, domaintest.Address(1), domaintest.Address(2))
	assert.Equal(t, domaintest.Address(7), domaintest.Address(7))
}

// --- Errors ---

func TestError_KindChain(t *testing.T) {
	wrong := domain.NewError(domain.ErrState, "wrong round kind")
	specific := domain.NewError(wrong, "trade round already active")

	assert.True(t, errors.Is(specific, wrong))
	assert.True(t, errors.Is(specific, domain.ErrState))
	assert.False(t, errors.Is(specific, domain.ErrPayment))
	assert.Equal(t, domain.ErrState, domain.KindOf(specific))
	assert.Equal(t, "trade round already active", specific.Error())
}

func TestKindOf_Foreign(t *testing.T) {
	assert.Nil(t, domain.KindOf(errors.New("boom")))
	assert.Equal(t, "internal", domain.KindName(errors.New("boom")))
	assert.Equal(t, "supply", domain.KindName(domain.NewError(domain.ErrSupply, "gone")))
}

// --- Amounts ---

func TestMulBps(t *testing.T) {
	tests := []struct {
		x    int64
		bps  int64
		want int64
	}{
		{10000, 500, 500},
		{10000, 300, 300},
		{999, 250, 24}, // floor
		{0, 500, 0},
		{12345, 0, 0},
	}
	for _, tt := range tests {
		got := domain.MulBps(big.NewInt(tt.x), tt.bps)
		assert.Equal(t, tt.want, got.Int64(), "MulBps(%d, %d)", tt.x, tt.bps)
	}
}

func TestEtherHelper(t *testing.T) {
	assert.Equal(t, "10000000000000000", domaintest.Ether("0.01").String())
	assert.Equal(t, "500000000000000", domaintest.Ether("0.0005").String())
}

// --- Round / Order ---

func TestRoundKind_Text(t *testing.T) {
	b, err := json.Marshal(domain.RoundTrade)
	require.NoError(t, err)
	assert.Equal(t, `"trade"`, string(b))

	var k domain.RoundKind
	require.NoError(t, json.Unmarshal([]byte(`"sale"`), &k))
	assert.Equal(t, domain.RoundSale, k)
	assert.Error(t, json.Unmarshal([]byte(`"end"`), &k))
}

func TestRound_Elapsed(t *testing.T) {
	start := time.Unix(1_700_000_000, 0)
	r := domain.Round{StartTime: start}
	d := 259200 * time.Second

	assert.False(t, r.Elapsed(start.Add(d-time.Second), d))
	assert.True(t, r.Elapsed(start.Add(d), d))
}

func TestRound_CloneIsDeep(t *testing.T) {
	r := domain.Round{Price: big.NewInt(10), SaleRemaining: big.NewInt(5)}
	c := r.Clone()
	c.SaleRemaining.SetInt64(1)
	c.Price.SetInt64(1)
	assert.Equal(t, int64(5), r.SaleRemaining.Int64())
	assert.Equal(t, int64(10), r.Price.Int64())
	assert.Nil(t, c.EthTraded)
}

func TestOrder_IsOpen(t *testing.T) {
	o := domain.Order{Status: domain.OrderOpen, Remaining: big.NewInt(1)}
	assert.True(t, o.IsOpen())
	o.Remaining = big.NewInt(0)
	assert.False(t, o.IsOpen())
	o.Remaining = big.NewInt(1)
	o.Status = domain.OrderCancelled
	assert.False(t, o.IsOpen())
}

func TestParseEther(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"0.01", "10000000000000000"},
		{"1", "1000000000000000000"},
		{"0.00001", "10000000000000"},
		{"0.000000000000000001", "1"},
	}
	for _, tt := range tests {
		got, err := domain.ParseEther(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got.String(), tt.in)
		assert.Equal(t, tt.in, domain.FormatEther(got))
	}

	_, err := domain.ParseEther("0.0000000000000000001")
	assert.Error(t, err)
	_, err = domain.ParseEther("abc")
	assert.Error(t, err)
	assert.Equal(t, "0", domain.FormatEther(nil))
}
