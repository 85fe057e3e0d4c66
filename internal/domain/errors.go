package domain

import "errors"

// Error taxonomy crossing the engine boundary. Store-layer faults are always
// translated into one of these before they reach a caller; expected business
// rejections are returned, never panicked.
var (
	// ErrBadRequest covers malformed or missing fields, non-positive
	// amounts and same-account transfers.
	ErrBadRequest = errors.New("bad request")

	// ErrUnauthorized means no verified caller identity was supplied.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden means an account does not belong to the caller.
	ErrForbidden = errors.New("forbidden")

	// ErrAccountNotFound means a referenced account does not exist.
	ErrAccountNotFound = errors.New("account not found")

	// ErrProfileNotFound means the customer profile does not exist.
	ErrProfileNotFound = errors.New("profile not found")

	// ErrInsufficientFunds rejects a debit larger than the source balance.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrDailyLimitExceeded rejects a debit past the remaining daily limit.
	ErrDailyLimitExceeded = errors.New("daily limit exceeded")

	// ErrConflict means a concurrent modification was detected; the caller
	// should retry the identical request, ideally with the same
	// idempotency key.
	ErrConflict = errors.New("concurrent modification detected")

	// ErrVersionConflict is the store-level compare-and-set miss that the
	// engine surfaces as ErrConflict.
	ErrVersionConflict = errors.New("version conflict")

	// ErrInternal covers store unavailability and unexpected faults.
	ErrInternal = errors.New("internal failure")
)
