package ledger

import (
	"math/big"
	"sync"

	"acdm-platform/internal/domain"
)

// Token is an in-memory TokenLedger.
type Token struct {
	mu         sync.RWMutex
	name       string
	symbol     string
	decimals   uint8
	balances   map[domain.Address]*big.Int
	allowances map[domain.Address]map[domain.Address]*big.Int
	roles      map[Role]map[domain.Address]bool
	supply     *big.Int
	minted     *big.Int
	burned     *big.Int
}

// NewToken creates an empty token.
func NewToken(name, symbol string, decimals uint8) *Token {
	return &Token{
		name:       name,
		symbol:     symbol,
		decimals:   decimals,
		balances:   make(map[domain.Address]*big.Int),
		allowances: make(map[domain.Address]map[domain.Address]*big.Int),
		roles:      make(map[Role]map[domain.Address]bool),
		supply:     new(big.Int),
		minted:     new(big.Int),
		burned:     new(big.Int),
	}
}

func (t *Token) Name() string    { return t.name }
func (t *Token) Symbol() string  { return t.symbol }
func (t *Token) Decimals() uint8 { return t.decimals }

// GrantRole gives account the role.
func (t *Token) GrantRole(role Role, account domain.Address) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.roles[role] == nil {
		t.roles[role] = make(map[domain.Address]bool)
	}
	t.roles[role][account] = true
}

// RevokeRole removes the role from account.
func (t *Token) RevokeRole(role Role, account domain.Address) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.roles[role], account)
}

// HasRole reports whether account holds role.
func (t *Token) HasRole(role Role, account domain.Address) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.roles[role][account]
}

func (t *Token) Mint(caller, to domain.Address, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	if to.IsZero() {
		return ErrInvalidAccount
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.roles[RoleMinter][caller] {
		return ErrMissingRole
	}
	b := balance(t.balances, to)
	b.Add(b, amount)
	t.supply.Add(t.supply, amount)
	t.minted.Add(t.minted, amount)
	return nil
}

func (t *Token) Burn(caller domain.Address, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.roles[RoleBurner][caller] {
		return ErrMissingRole
	}
	b := balance(t.balances, caller)
	if b.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	b.Sub(b, amount)
	t.supply.Sub(t.supply, amount)
	t.burned.Add(t.burned, amount)
	return nil
}

func (t *Token) Transfer(from, to domain.Address, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	if to.IsZero() {
		return ErrInvalidAccount
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.move(from, to, amount)
}

func (t *Token) TransferFrom(spender, from, to domain.Address, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	if to.IsZero() {
		return ErrInvalidAccount
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	allowed := t.allowance(from, spender)
	if allowed.Cmp(amount) < 0 {
		return ErrInsufficientAllowance
	}
	if err := t.move(from, to, amount); err != nil {
		return err
	}
	allowed.Sub(allowed, amount)
	return nil
}

func (t *Token) Approve(owner, spender domain.Address, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	if spender.IsZero() {
		return ErrInvalidAccount
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.allowance(owner, spender).Set(amount)
	return nil
}

func (t *Token) Allowance(owner, spender domain.Address) *big.Int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return domain.Clone(t.allowances[owner][spender])
}

func (t *Token) BalanceOf(account domain.Address) *big.Int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return domain.Clone(t.balances[account])
}

func (t *Token) TotalSupply() *big.Int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return domain.Clone(t.supply)
}

// Minted returns the cumulative amount ever minted.
func (t *Token) Minted() *big.Int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return domain.Clone(t.minted)
}

// Burned returns the cumulative amount ever burned.
func (t *Token) Burned() *big.Int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return domain.Clone(t.burned)
}

// Balances returns a snapshot of every non-zero balance.
func (t *Token) Balances() map[domain.Address]*big.Int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[domain.Address]*big.Int, len(t.balances))
	for a, b := range t.balances {
		if b.Sign() != 0 {
			out[a] = domain.Clone(b)
		}
	}
	return out
}

func (t *Token) move(from, to domain.Address, amount *big.Int) error {
	src := balance(t.balances, from)
	if src.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	src.Sub(src, amount)
	dst := balance(t.balances, to)
	dst.Add(dst, amount)
	return nil
}

func (t *Token) allowance(owner, spender domain.Address) *big.Int {
	m := t.allowances[owner]
	if m == nil {
		m = make(map[domain.Address]*big.Int)
		t.allowances[owner] = m
	}
	return balance(m, spender)
}
