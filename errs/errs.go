// Package errs defines the error kinds the lifecycle operations return.
// Callers branch with errors.Is; the Discord layer turns each kind into a
// user-facing reply.
package errs

import "errors"

var (
	// ErrNotFound means the referenced contest, request or participant
	// does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict means a uniqueness or singleton rule was violated, such
	// as a second running contest or a duplicate submission.
	ErrConflict = errors.New("conflict")
	// ErrState means the operation is not valid for the item's current
	// lifecycle state.
	ErrState = errors.New("invalid state")
	// ErrForbidden means the actor lacks the required capability or is
	// excluded from the contest.
	ErrForbidden = errors.New("forbidden")
	// ErrExternal wraps a failure from Discord or the asset host.
	ErrExternal = errors.New("external service failure")
	// ErrTimeout means a confirmation window elapsed before the initiator
	// answered.
	ErrTimeout = errors.New("timed out")
)
