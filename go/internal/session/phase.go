package session

import (
	"time"

	"github.com/mcdev12/ctfsession/go/internal/models"
)

// DerivePhase maps a session snapshot and the current time onto a phase. It is pure;
// the first matching rule wins.
func DerivePhase(s models.GameSession, now time.Time) models.GamePhase {
	if now.After(s.EndTime) && !s.PracticeMode {
		return models.PhaseEnded
	}

	switch s.Status {
	case models.ParticipationUnauthenticated:
		return models.PhaseUnLogin
	case models.ParticipationUnregistered:
		return models.PhaseUnregistered
	case models.ParticipationPending:
		return models.PhaseWaitingApproval
	case models.ParticipationBanned:
		return models.PhaseBanned
	case models.ParticipationApproved:
		switch {
		case now.Before(s.StartTime):
			return models.PhasePending
		case now.Before(s.EndTime):
			return models.PhaseRunning
		case s.PracticeMode:
			return models.PhasePracticeMode
		default:
			return models.PhaseEnded
		}
	}

	// The client rejects unknown statuses at decode time; treat anything else as
	// not registered.
	return models.PhaseUnregistered
}
