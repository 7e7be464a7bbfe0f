package errs

import "errors"

// Describe maps an error to the short text shown in an ephemeral reply.
func Describe(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "That item could not be found."
	case errors.Is(err, ErrConflict):
		return "That conflicts with something already in place."
	case errors.Is(err, ErrState):
		return "That action is not possible in the current state."
	case errors.Is(err, ErrForbidden):
		return "You are not allowed to do that."
	case errors.Is(err, ErrTimeout):
		return "That confirmation window has elapsed."
	case errors.Is(err, ErrExternal):
		return "An external service failed, staff have been notified."
	default:
		return "Something went wrong, please try again."
	}
}
