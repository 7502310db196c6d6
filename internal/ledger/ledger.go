// Package ledger defines the token and coin ledgers the platform moves value through,
// with in-memory implementations used by the server and tests.
package ledger

import (
	"math/big"

	"acdm-platform/internal/domain"
)

// Role is a privileged token capability.
type Role string

// Token roles
const (
	RoleMinter Role = "MINTER"
	RoleBurner Role = "BURNER"
)

// TokenLedger is the ACDM token: balances, allowances and privileged supply changes.
type TokenLedger interface {
	// Mint creates amount tokens for to. Caller must hold RoleMinter.
	Mint(caller, to domain.Address, amount *big.Int) error
	// Burn destroys amount tokens from the caller's balance. Caller must hold RoleBurner.
	Burn(caller domain.Address, amount *big.Int) error
	Transfer(from, to domain.Address, amount *big.Int) error
	// TransferFrom moves tokens on behalf of from, consuming spender's allowance.
	TransferFrom(spender, from, to domain.Address, amount *big.Int) error
	Approve(owner, spender domain.Address, amount *big.Int) error
	Allowance(owner, spender domain.Address) *big.Int
	BalanceOf(account domain.Address) *big.Int
	TotalSupply() *big.Int
}

// Coins moves and reads native coin (wei) balances.
type Coins interface {
	Transfer(from, to domain.Address, amount *big.Int) error
	BalanceOf(account domain.Address) *big.Int
}

// CoinLedger is the native coin the platform is paid in.
type CoinLedger interface {
	Coins
	// Begin opens a staged transaction for one platform operation.
	Begin() CoinTx
}

// CoinTx stages transfers on a CoinLedger. Debits leave the sender at once; credits stay
// in the transaction, spendable only through it, until Commit. Rollback returns every debit.
type CoinTx interface {
	Coins
	Commit()
	Rollback()
}

// Ledger errors
var (
	ErrMissingRole           = domain.NewError(domain.ErrAuthorization, "ledger: caller is missing role")
	ErrInsufficientAllowance = domain.NewError(domain.ErrAuthorization, "ledger: insufficient allowance")
	ErrInsufficientBalance   = domain.NewError(domain.ErrSupply, "ledger: insufficient balance")
	ErrInvalidAmount         = domain.NewError(domain.ErrInvalidArgument, "ledger: amount must not be negative")
	ErrInvalidAccount        = domain.NewError(domain.ErrInvalidArgument, "ledger: empty account")
	ErrTransferRejected      = domain.NewError(domain.ErrPayment, "ledger: transfer rejected by recipient")
	ErrTxFinished            = domain.NewError(domain.ErrState, "ledger: coin transaction already finished")
)

func checkAmount(amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	return nil
}

func balance(m map[domain.Address]*big.Int, a domain.Address) *big.Int {
	if b, ok := m[a]; ok {
		return b
	}
	b := new(big.Int)
	m[a] = b
	return b
}
