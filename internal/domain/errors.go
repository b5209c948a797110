package domain

import (
	"errors"
	"fmt"
)

// Error taxonomy for the transaction engine. Callers classify failures with
// errors.Is; only ErrConflict is retryable (after a re-fetch of the current
// revision). Everything else is terminal for that invocation.
var (
	ErrValidation             = errors.New("validation error")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrNotFound               = errors.New("not found")
	ErrConflict               = errors.New("conflict")
	ErrBusinessRule           = errors.New("business rule violation")
)

// ErrNotRetrievable is returned when retrieving a transaction that is already
// completed or voided. It is a specialization of ErrInvalidStateTransition.
var ErrNotRetrievable = fmt.Errorf("%w: transaction is not retrievable", ErrInvalidStateTransition)
