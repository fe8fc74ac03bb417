package checkout

import "errors"

var (
	// ErrInvalidForm is returned by Submit when the form would not pass
	// input validation. Nothing is sent and the status is left alone.
	ErrInvalidForm = errors.New("invalid form")
	// ErrSubmitInFlight is returned by Submit while an order is being placed.
	ErrSubmitInFlight = errors.New("order submission in flight")
	// ErrFormDisabled is returned by input edits while an order is being placed.
	ErrFormDisabled = errors.New("form disabled while submitting")
	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("checkout closed")
)
