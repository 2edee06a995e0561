package workflow

import "errors"

var (
	// ErrInvalidTransition is returned when a state transition is not allowed
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrInvalidState is returned when a state is not valid
	ErrInvalidState = errors.New("invalid state")

	// ErrGuardFailed is returned when a guard condition fails
	ErrGuardFailed = errors.New("guard condition failed")

	// ErrValidation marks malformed or missing caller input. The store is never touched.
	ErrValidation = errors.New("validation error")

	// ErrUnknownStatus marks a status name that is absent from its catalog.
	ErrUnknownStatus = errors.New("unknown status")

	// ErrStateConflict means the stored state no longer matches what the
	// caller expected. Reload and retry.
	ErrStateConflict = errors.New("state conflict")

	// ErrNotFound is returned when a workflow record or resource does not exist
	ErrNotFound = errors.New("not found")
)
