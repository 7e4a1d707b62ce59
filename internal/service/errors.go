package service

import "errors"

// Validation failures are rejected before any ledger mutation and surfaced
// to the caller as-is; they are never retried.
var (
	ErrUserDisabled     = errors.New("user account is disabled")
	ErrInvalidPin       = errors.New("invalid transaction pin")
	ErrInvalidAmount    = errors.New("amount must be greater than zero")
	ErrAmountBlocked    = errors.New("amount is blocked for this provider")
	ErrProviderNotFound = errors.New("provider not found or disabled")
	ErrNoApiAvailable   = errors.New("no api available for this recharge")
	ErrOrderNotFound    = errors.New("order not found")
	ErrSelfTransfer     = errors.New("cannot transfer to the same account")
)
