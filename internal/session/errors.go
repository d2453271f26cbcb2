package session

import "errors"

var (
	// ErrIllegalTransition is returned when a lifecycle or stage
	// transition is requested from a state that does not allow it.
	// Illegal transitions are rejected without mutating the session.
	ErrIllegalTransition = errors.New("illegal session state transition")
)
