package engine

import "errors"

// Validation and insufficiency errors are rejected without retry; only
// store conflicts are retried, and exhausting those surfaces
// ErrTooManyConflicts.
var (
	ErrInvalidOrder       = errors.New("invalid order: price and quantity must be positive")
	ErrAccountNotFound    = errors.New("account not found")
	ErrInsufficientFunds  = errors.New("insufficient funds (including credit limit)")
	ErrInsufficientShares = errors.New("insufficient shares")
	ErrInsufficientCredit = errors.New("insufficient credit limit for short sale")
	ErrTooManyConflicts   = errors.New("order not executed: too many concurrent updates")
)
