// Package apperr defines the sentinel error kinds shared across memoflow
// packages. Callers branch on them with errors.Is.
package apperr

import "errors"

var (
	// ErrNotFound means no index entry or note matched the given hash.
	ErrNotFound = errors.New("not found")
	// ErrAmbiguous means a partial hash matched more than one entry; the
	// caller should retry with a longer prefix.
	ErrAmbiguous = errors.New("ambiguous hash")
	// ErrExhausted means hash generation gave up after the bounded number
	// of attempts.
	ErrExhausted = errors.New("hash generation exhausted")
	// ErrPathMismatch means the caller's expected location code is stale.
	ErrPathMismatch = errors.New("location code mismatch")
	// ErrInvalidPath means the target location code failed taxonomy validation.
	ErrInvalidPath = errors.New("invalid location code")
	// ErrAlreadyInitialized means the directory already carries memoflow state.
	ErrAlreadyInitialized = errors.New("repository already initialized")
)
