package dispatch

import (
	"errors"

	"session-relay-backend/internal/modules"
	"session-relay-backend/internal/session"
)

var (
	ErrSessionNotFound     = errors.New("session not found")
	ErrParticipantNotFound = errors.New("participant not found, rejoin the session")
	ErrSessionEnded        = errors.New("session has ended")
	ErrInputNotOpen        = errors.New("input is not currently open for responses")
	ErrInvalidPayload      = errors.New("invalid payload")
	ErrSpotlightLimit      = errors.New("spotlight limit reached")
	ErrUnknownCommand      = errors.New("unknown command")
)

// codeFor maps an error to its wire error code. Everything unrecognized
// is an internal store/IO failure surfaced generically.
func codeFor(err error) string {
	switch {
	case errors.Is(err, ErrSessionNotFound):
		return "SESSION_NOT_FOUND"
	case errors.Is(err, ErrParticipantNotFound):
		return "PARTICIPANT_NOT_FOUND"
	case errors.Is(err, ErrSessionEnded):
		return "SESSION_ENDED"
	case errors.Is(err, ErrInputNotOpen):
		return "INPUT_NOT_OPEN"
	case errors.Is(err, ErrSpotlightLimit):
		return "SPOTLIGHT_LIMIT"
	case errors.Is(err, ErrInvalidPayload), errors.Is(err, modules.ErrInvalidInput), errors.Is(err, modules.ErrInvalidPrompt):
		return "INVALID_PAYLOAD"
	case errors.Is(err, ErrUnknownCommand):
		return "UNKNOWN_COMMAND"
	case errors.Is(err, session.ErrIllegalTransition):
		return "ILLEGAL_TRANSITION"
	case errors.Is(err, modules.ErrNotFound):
		return "MODULE_NOT_FOUND"
	default:
		return "INTERNAL_ERROR"
	}
}
