// Package session owns the canonical session lifecycle and the module
// sub-state machine. All functions validate the current state before
// mutating; an illegal call returns ErrIllegalTransition and leaves the
// session untouched.
package session

import (
	"time"

	"session-relay-backend/internal/models"
)

// statusRank orders lifecycle statuses. Transitions never decrease rank.
var statusRank = map[string]int{
	models.SessionStatusCreated:    0,
	models.SessionStatusLobby:      1,
	models.SessionStatusIntro:      2,
	models.SessionStatusInProgress: 3,
	models.SessionStatusEnded:      4,
}

// StatusRank exposes the monotonic ordering of a lifecycle status.
func StatusRank(status string) int {
	return statusRank[status]
}

// Start moves a session out of CREATED/LOBBY. Modules that carry intro
// media start into INTRO; everything else starts into LOBBY.
func Start(s *models.Session, requiresIntro bool) error {
	if s.Status != models.SessionStatusCreated && s.Status != models.SessionStatusLobby {
		return ErrIllegalTransition
	}
	if requiresIntro {
		s.Status = models.SessionStatusIntro
	} else {
		s.Status = models.SessionStatusLobby
	}
	now := time.Now()
	s.StartedAt = &now
	return nil
}

// EnterLobby promotes a CREATED session to LOBBY when the first
// participant joins. Reports whether the status changed.
func EnterLobby(s *models.Session) bool {
	if s.Status != models.SessionStatusCreated {
		return false
	}
	s.Status = models.SessionStatusLobby
	return true
}

// MarkIntroCompleted records that the intro has been played. Legal only
// from INTRO. The status itself advances on the first AdvancePrompt.
func MarkIntroCompleted(s *models.Session) error {
	if s.Status != models.SessionStatusIntro {
		return ErrIllegalTransition
	}
	s.IntroCompleted = true
	return nil
}

// AdvancePrompt begins the next round with the given prompt. Legal once
// intro handling is resolved. The round counter increments on every call
// and is deliberately not capped at NumRounds: the facilitator paces
// rounds manually.
func AdvancePrompt(s *models.Session, promptID string) error {
	switch s.Status {
	case models.SessionStatusLobby, models.SessionStatusInProgress:
	case models.SessionStatusIntro:
		if !s.IntroCompleted {
			return ErrIllegalTransition
		}
	default:
		return ErrIllegalTransition
	}
	s.Status = models.SessionStatusInProgress
	s.CurrentRound++
	s.CurrentPromptID = &promptID
	return nil
}

// End terminates a session. Legal from any non-ENDED state and terminal:
// no further mutations are accepted afterwards.
func End(s *models.Session) error {
	if s.Status == models.SessionStatusEnded {
		return ErrIllegalTransition
	}
	s.Status = models.SessionStatusEnded
	now := time.Now()
	s.EndedAt = &now
	return nil
}
