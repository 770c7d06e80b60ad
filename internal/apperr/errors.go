// Package apperr defines the error taxonomy shared by the engine's
// services and handlers. Callers classify failures with errors.Is.
package apperr

import "errors"

var (
	// ErrValidation marks malformed or missing caller input.
	ErrValidation = errors.New("validation error")

	// ErrNotFound marks a lookup that matched nothing.
	ErrNotFound = errors.New("not found")

	// ErrInvalidOperation marks a structurally valid request that the
	// engine rejects, such as self-friending.
	ErrInvalidOperation = errors.New("invalid operation")

	// ErrForbidden marks an attempt to mutate state the caller does not
	// own, such as another participant's payment flag.
	ErrForbidden = errors.New("forbidden")

	// ErrStoreUnavailable marks a persistence or transport failure. It is
	// the only retryable member of the taxonomy.
	ErrStoreUnavailable = errors.New("store unavailable")
)
