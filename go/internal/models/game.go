package models

import "time"

// ParticipationStatus is the viewer team's standing in a game as reported by the portal.
type ParticipationStatus string

const (
	ParticipationUnauthenticated ParticipationStatus = "Unauthenticated"
	ParticipationUnregistered    ParticipationStatus = "Unregistered"
	ParticipationPending         ParticipationStatus = "PendingApproval"
	ParticipationApproved        ParticipationStatus = "Approved"
	ParticipationBanned          ParticipationStatus = "Banned"
)

// GameSession is one competition instance as seen by the viewer. It is replaced
// wholesale on every fetch.
type GameSession struct {
	GameID       int                 `json:"game_id"`
	Title        string              `json:"title"`
	StartTime    time.Time           `json:"start_time"`
	EndTime      time.Time           `json:"end_time"`
	PracticeMode bool                `json:"practice_mode"`
	Status       ParticipationStatus `json:"status"`
	TeamName     string              `json:"team_name,omitempty"`
	TeamScore    int                 `json:"team_score"`
	TeamRank     int                 `json:"team_rank"`
}

// GamePhase is the derived display/control state of a session for one viewer.
type GamePhase string

const (
	// PhaseUnknown is held by a controller before its first fetch resolves.
	PhaseUnknown         GamePhase = "Unknown"
	PhaseUnLogin         GamePhase = "UnLogin"
	PhaseUnregistered    GamePhase = "Unregistered"
	PhaseWaitingApproval GamePhase = "WaitingApproval"
	PhasePending         GamePhase = "Pending"
	PhaseRunning         GamePhase = "Running"
	PhasePracticeMode    GamePhase = "PracticeMode"
	PhaseEnded           GamePhase = "Ended"
	PhaseBanned          GamePhase = "Banned"
	PhaseNoSuchGame      GamePhase = "NoSuchGame"
)

// Active reports whether the challenge workspace and live notices are open.
func (p GamePhase) Active() bool {
	return p == PhaseRunning || p == PhasePracticeMode
}

// Terminal reports whether the phase stops every poller and the push channel.
func (p GamePhase) Terminal() bool {
	switch p {
	case PhaseBanned, PhaseEnded, PhaseNoSuchGame, PhaseUnLogin:
		return true
	}
	return false
}
