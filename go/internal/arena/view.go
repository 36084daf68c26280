package arena

import (
	"github.com/mcdev12/ctfsession/go/internal/models"
)

// View is everything the shell renders for the arena.
type View struct {
	ArenaID    string                  `json:"arena_id"`
	GameID     int                     `json:"game_id"`
	Phase      models.GamePhase        `json:"phase"`
	Session    *models.GameSession     `json:"session,omitempty"`
	Challenges *models.ChallengeList   `json:"challenges,omitempty"`
	Challenge  *models.ChallengeDetail `json:"challenge,omitempty"`
	Instance   *InstanceView           `json:"instance,omitempty"`
	Submission *SubmissionView         `json:"submission,omitempty"`
	Feed       []models.Notice         `json:"feed"`
}

// InstanceView is the instance of the open challenge with its countdown.
type InstanceView struct {
	models.ChallengeInstance
	Launching        bool   `json:"launching"`
	RemainingSeconds int64  `json:"remaining_seconds"`
	Error            string `json:"error,omitempty"`
}

// SubmissionView is the inline feedback of the last submission.
type SubmissionView struct {
	ChallengeID int                     `json:"challenge_id"`
	Result      models.SubmissionResult `json:"result"`
	Message     string                  `json:"message,omitempty"`
}

// View composes the current state of every component.
func (a *Arena) View() View {
	v := View{
		ArenaID: a.id.String(),
		GameID:  a.gameID,
		Phase:   a.controller.Phase(),
		Session: a.controller.Session(),
		Feed:    a.notices.Feed(),
	}

	a.mu.Lock()
	v.Challenges = a.challenges
	openID := a.openID
	instanceErr := a.instanceErr
	if a.detail != nil {
		d := *a.detail
		d.Instance = nil
		v.Challenge = &d
	}
	if a.lastSubmit != nil {
		s := *a.lastSubmit
		v.Submission = &s
	}
	dynamic := a.detail != nil && a.detail.Dynamic
	a.mu.Unlock()

	if openID != 0 && dynamic {
		instance := a.containers.Instance()
		if instance.ChallengeID == openID {
			v.Instance = &InstanceView{
				ChallengeInstance: instance,
				Launching:         a.containers.Launching(),
				RemainingSeconds:  int64(a.containers.Remaining().Seconds()),
				Error:             instanceErr,
			}
		}
	}
	return v
}
