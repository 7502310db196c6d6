package referral

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"acdm-platform/internal/domain"
	"acdm-platform/internal/domain/domaintest"
	"acdm-platform/internal/txn"
)

var (
	owner = domaintest.Address(1)
	alice = domaintest.Address(2)
	bob   = domaintest.Address(3)
	carol = domaintest.Address(4)
	now   = time.Unix(1_700_000_000, 0).UTC()
)

func TestRegister_OnlyOnce(t *testing.T) {
	r := NewRegistry()
	_, err := r.Register(alice, bob, now, nil)
	require.NoError(t, err)

	_, err = r.Register(alice, carol, now, nil)
	assert.ErrorIs(t, err, ErrAlreadyRegistered)
	assert.ErrorIs(t, err, domain.ErrRegistration)

	ref, err := r.Referrer(alice)
	require.NoError(t, err)
	assert.Equal(t, bob, ref, "link must not change after a rejected re-registration")
}

func TestRegister_SelfReferral(t *testing.T) {
	r := NewRegistry()
	_, err := r.Register(alice, alice, now, nil)
	assert.ErrorIs(t, err, ErrSelfReferral)
	assert.False(t, r.IsRegistered(alice))

	_, err = r.Register(alice, "", now, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestReferrer_NotRegistered(t *testing.T) {
	r := NewRegistry()
	_, err := r.Referrer(alice)
	assert.ErrorIs(t, err, ErrNotRegistered)
}

func TestChain(t *testing.T) {
	r := NewRegistry()
	// alice -> bob -> owner
	_, err := r.Register(bob, owner, now, nil)
	require.NoError(t, err)
	_, err = r.Register(alice, bob, now, nil)
	require.NoError(t, err)

	assert.Equal(t, domain.Chain{Level1: bob, Level2: owner}, r.Chain(alice))
	assert.Equal(t, domain.Chain{Level1: owner}, r.Chain(bob))
	assert.Equal(t, domain.Chain{}, r.Chain(carol))
}

func TestRegister_Rollback(t *testing.T) {
	r := NewRegistry()
	_, err := r.Register(bob, owner, now, nil)
	require.NoError(t, err)

	j := txn.New()
	_, err = r.Register(alice, bob, now, j)
	require.NoError(t, err)
	require.NoError(t, j.Rollback())

	assert.False(t, r.IsRegistered(alice))
	assert.Equal(t, 1, r.Len())
	links := r.Links()
	require.Len(t, links, 1)
	assert.Equal(t, bob, links[0].Participant)
}
