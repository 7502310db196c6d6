package ledger

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"acdm-platform/internal/domain"
)

// ReceiveHook runs after a coin transfer credits its account.
// A non-nil error reverses the transfer.
type ReceiveHook func(from domain.Address, amount *big.Int) error

// Bank is an in-memory CoinLedger with optional per-account receive hooks.
type Bank struct {
	mu       sync.RWMutex
	balances map[domain.Address]*big.Int
	hooks    map[domain.Address]ReceiveHook
	supply   *big.Int
}

// NewBank creates an empty bank.
func NewBank() *Bank {
	return &Bank{
		balances: make(map[domain.Address]*big.Int),
		hooks:    make(map[domain.Address]ReceiveHook),
		supply:   new(big.Int),
	}
}

// Deposit credits new coins to account.
func (b *Bank) Deposit(account domain.Address, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	if account.IsZero() {
		return ErrInvalidAccount
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	bal := balance(b.balances, account)
	bal.Add(bal, amount)
	b.supply.Add(b.supply, amount)
	return nil
}

// SetReceiveHook installs fn for account; nil removes it.
func (b *Bank) SetReceiveHook(account domain.Address, fn ReceiveHook) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if fn == nil {
		delete(b.hooks, account)
		return
	}
	b.hooks[account] = fn
}

// Transfer moves amount from one account to another and then runs the recipient's hook
// outside the lock. The hook may call back into the bank or anything else.
func (b *Bank) Transfer(from, to domain.Address, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	if to.IsZero() {
		return ErrInvalidAccount
	}

	b.mu.Lock()
	if err := b.move(from, to, amount); err != nil {
		b.mu.Unlock()
		return err
	}
	hook := b.hooks[to]
	b.mu.Unlock()

	if hook == nil {
		return nil
	}
	herr := hook(from, amount)
	if herr == nil {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.move(to, from, amount); err != nil {
		return errors.Join(fmt.Errorf("%w: %w", ErrTransferRejected, herr), fmt.Errorf("reverse transfer: %w", err))
	}
	return fmt.Errorf("%w: %w", ErrTransferRejected, herr)
}

// BalanceOf returns account's committed balance. Credits staged in an open CoinTx are not included.
func (b *Bank) BalanceOf(account domain.Address) *big.Int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return domain.Clone(b.balances[account])
}

// TotalSupply returns the sum of all deposits.
func (b *Bank) TotalSupply() *big.Int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return domain.Clone(b.supply)
}

func (b *Bank) move(from, to domain.Address, amount *big.Int) error {
	src := balance(b.balances, from)
	if src.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	src.Sub(src, amount)
	dst := balance(b.balances, to)
	dst.Add(dst, amount)
	return nil
}

// Begin opens a staged transaction. Receive hooks still run on every staged transfer,
// but they see the bank without the staged credit, so a hook cannot spend coins
// that a later Rollback has to take back.
func (b *Bank) Begin() CoinTx {
	return &bankTx{
		bank:    b,
		debits:  make(map[domain.Address]*big.Int),
		credits: make(map[domain.Address]*big.Int),
	}
}

type bankTx struct {
	bank    *Bank
	debits  map[domain.Address]*big.Int // taken from committed balances
	credits map[domain.Address]*big.Int // held until Commit
	done    bool
}

// BalanceOf is the committed balance plus whatever the transaction holds for account.
func (t *bankTx) BalanceOf(account domain.Address) *big.Int {
	t.bank.mu.RLock()
	defer t.bank.mu.RUnlock()
	bal := domain.Clone(t.bank.balances[account])
	if c, ok := t.credits[account]; ok {
		bal.Add(bal, c)
	}
	return bal
}

// Transfer spends from's staged credit first and the committed balance for the rest.
// A hook error hands the credit back to from inside the transaction.
func (t *bankTx) Transfer(from, to domain.Address, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	if to.IsZero() {
		return ErrInvalidAccount
	}
	b := t.bank

	b.mu.Lock()
	if t.done {
		b.mu.Unlock()
		return ErrTxFinished
	}
	staged := balance(t.credits, from)
	fromStaged := domain.Clone(staged)
	if fromStaged.Cmp(amount) > 0 {
		fromStaged.Set(amount)
	}
	rest := new(big.Int).Sub(amount, fromStaged)
	src := balance(b.balances, from)
	if src.Cmp(rest) < 0 {
		b.mu.Unlock()
		return ErrInsufficientBalance
	}
	src.Sub(src, rest)
	debit := balance(t.debits, from)
	debit.Add(debit, rest)
	staged.Sub(staged, fromStaged)
	dst := balance(t.credits, to)
	dst.Add(dst, amount)
	hook := b.hooks[to]
	b.mu.Unlock()

	if hook == nil {
		return nil
	}
	herr := hook(from, amount)
	if herr == nil {
		return nil
	}

	// the credit is still held here, so giving it back cannot fail
	b.mu.Lock()
	defer b.mu.Unlock()
	dst.Sub(dst, amount)
	back := balance(t.credits, from)
	back.Add(back, amount)
	return fmt.Errorf("%w: %w", ErrTransferRejected, herr)
}

// Commit releases the staged credits to their accounts.
func (t *bankTx) Commit() {
	t.finish(t.credits)
}

// Rollback drops the staged credits and returns every debit to its sender.
func (t *bankTx) Rollback() {
	t.finish(t.debits)
}

func (t *bankTx) finish(release map[domain.Address]*big.Int) {
	b := t.bank
	b.mu.Lock()
	defer b.mu.Unlock()
	if t.done {
		return
	}
	t.done = true
	for account, amount := range release {
		if amount.Sign() == 0 {
			continue
		}
		bal := balance(b.balances, account)
		bal.Add(bal, amount)
	}
}
