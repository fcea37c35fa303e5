package ledger

import "errors"

// Domain errors. Business failures are returned as values, never as
// panics; the HTTP layer maps them onto status codes.
var (
	ErrAccountNotFound   = errors.New("account not found")
	ErrInvalidAmount     = errors.New("amount must be greater than zero")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrSameAccount       = errors.New("source and destination accounts are the same")
	ErrEmptyName         = errors.New("account holder name is required")
	ErrNegativeBalance   = errors.New("initial balance cannot be negative")
)
