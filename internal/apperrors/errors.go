package apperrors

import "errors"

// Validation errors reported synchronously to the caller.
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotStarted   = errors.New("auction has not started yet")
	ErrAlreadyEnded = errors.New("auction has already ended")
	ErrBidTooLow    = errors.New("bid amount too low")
	ErrBidTooHigh   = errors.New("bid amount too high")
)

// Resource and authorization errors.
var (
	ErrNotFound   = errors.New("not found")
	ErrNotAllowed = errors.New("not allowed")
)

// Infrastructure errors.
var (
	// ErrPriceConflict signals that a conditional bid append lost a race:
	// the auction's price moved between read and write.
	ErrPriceConflict = errors.New("auction price changed concurrently")
	// ErrUnresolvedUser marks a presence event whose user id could not be
	// resolved; such events are logged and dropped, never fatal.
	ErrUnresolvedUser = errors.New("user identity could not be resolved")
	ErrUnavailable    = errors.New("persistent store unavailable")
)
