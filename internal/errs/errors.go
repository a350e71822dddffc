package errs

import "errors"

// Common sentinel errors for cross-layer signaling.
var (
	ErrNotFound = errors.New("not_found")
	ErrInvalid  = errors.New("invalid")
	// ErrDuplicateAccount means the tax id is already registered.
	ErrDuplicateAccount = errors.New("duplicate_account")
	// ErrInsufficientFunds rejects a withdrawal larger than the current balance.
	ErrInsufficientFunds = errors.New("insufficient_funds")
	// ErrInvalidAmount is used for negative amounts or amounts in a foreign currency.
	ErrInvalidAmount = errors.New("invalid_amount")
)
