// Package ledger implements the in-memory account ledger: the account
// primitive, the per-account lock manager, the atomic transaction
// executor, and the service that composes them.
package ledger

import "github.com/shopspring/decimal"

// Account holds one monetary balance. Balances are decimal, never
// binary floating point. An Account is not safe for concurrent use on
// its own; every mutation must happen inside an executor closure while
// the account's lock is held.
type Account struct {
	ID      string
	Name    string
	Balance decimal.Decimal
}

func NewAccount(id, name string, balance decimal.Decimal) *Account {
	return &Account{ID: id, Name: name, Balance: balance}
}

// Deposit adds amount to the balance. It reports false when amount is
// not strictly positive and leaves the balance untouched.
func (a *Account) Deposit(amount decimal.Decimal) bool {
	if !amount.IsPositive() {
		return false
	}
	a.Balance = a.Balance.Add(amount)
	return true
}

// Withdraw subtracts amount from the balance. It reports false when
// amount is not strictly positive or exceeds the balance (overdraft
// protection), leaving the balance untouched.
func (a *Account) Withdraw(amount decimal.Decimal) bool {
	if !amount.IsPositive() {
		return false
	}
	if amount.GreaterThan(a.Balance) {
		return false
	}
	a.Balance = a.Balance.Sub(amount)
	return true
}
