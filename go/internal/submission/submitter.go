package submission

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/mcdev12/ctfsession/go/internal/apierr"
	"github.com/mcdev12/ctfsession/go/internal/models"
	"github.com/mcdev12/ctfsession/go/internal/poller"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const (
	MaxFlagLength      = 200
	ResultPollInterval = time.Second
	MaxResultPolls     = 30
)

var ErrJudgeTimeout = errors.New("submission was not judged in time")

// FlagClient defines what the submitter needs from the portal client
type FlagClient interface {
	SubmitFlag(ctx context.Context, gameID, challengeID int, flag string) (int, error)
	FetchSubmissionResult(ctx context.Context, gameID, challengeID, submissionID int) (models.SubmissionResult, error)
}

// Request is a flag submission as entered by the user.
type Request struct {
	ChallengeID int    `validate:"required,gt=0"`
	Flag        string `validate:"required,max=200,flag"`
}

var messages = map[string]map[string]string{
	"ChallengeID": {
		"required": "no challenge is open",
		"gt":       "no challenge is open",
	},
	"Flag": {
		"required": "flag is required",
		"max":      fmt.Sprintf("flag must be at most %d characters", MaxFlagLength),
		"flag":     "flag contains unprintable characters",
	},
}

// NewValidator returns a validator with the flag rule registered.
func NewValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("flag", func(fl validator.FieldLevel) bool {
		for _, r := range fl.Field().String() {
			if !unicode.IsPrint(r) {
				return false
			}
		}
		return true
	})
	return v
}

// Submitter sends flags and waits for the judge.
type Submitter struct {
	gameID   int
	client   FlagClient
	clock    poller.Clock
	validate *validator.Validate
	limiter  *rate.Limiter

	pollInterval time.Duration
	maxPolls     int
}

// NewSubmitter creates a submitter allowing limit submissions per second with the given burst.
func NewSubmitter(gameID int, client FlagClient, clock poller.Clock, limit rate.Limit, burst int) *Submitter {
	return &Submitter{
		gameID:       gameID,
		client:       client,
		clock:        clock,
		validate:     NewValidator(),
		limiter:      rate.NewLimiter(limit, burst),
		pollInterval: ResultPollInterval,
		maxPolls:     MaxResultPolls,
	}
}

// Submit validates and submits flag, then polls until the judge returns Accepted or
// Wrong. Validation and rate-limit failures are *apierr.ValidationError.
func (s *Submitter) Submit(ctx context.Context, challengeID int, flag string) (models.SubmissionResult, error) {
	req := Request{ChallengeID: challengeID, Flag: strings.TrimSpace(flag)}
	if err := s.validate.Struct(req); err != nil {
		return models.SubmissionUnknown, toValidationError(err)
	}
	if !s.limiter.Allow() {
		return models.SubmissionUnknown, apierr.NewValidationError("flag", "too many submissions, wait a moment")
	}

	id, err := s.client.SubmitFlag(ctx, s.gameID, challengeID, req.Flag)
	if err != nil {
		return models.SubmissionUnknown, fmt.Errorf("failed to submit flag: %w", err)
	}
	log.Debug().Int("game_id", s.gameID).Int("challenge_id", challengeID).Int("submission_id", id).Msg("flag submitted")

	for attempt := 0; attempt < s.maxPolls; attempt++ {
		if err := s.wait(ctx); err != nil {
			return models.SubmissionUnknown, err
		}

		result, err := s.client.FetchSubmissionResult(ctx, s.gameID, challengeID, id)
		if err != nil {
			if errors.Is(err, apierr.ErrTransient) {
				log.Debug().Err(err).Int("submission_id", id).Msg("submission poll failed, retrying")
				continue
			}
			return models.SubmissionUnknown, fmt.Errorf("failed to get submission result: %w", err)
		}
		if result != models.SubmissionUnknown {
			log.Info().
				Int("game_id", s.gameID).
				Int("challenge_id", challengeID).
				Str("result", string(result)).
				Msg("submission judged")
			return result, nil
		}
	}

	return models.SubmissionUnknown, ErrJudgeTimeout
}

func (s *Submitter) wait(ctx context.Context) error {
	timer := s.clock.NewTimer(s.pollInterval)
	defer timer.Stop()
	select {
	case <-timer.Chan():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func toValidationError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, verr := range verrs {
			if fieldMsgs, ok := messages[verr.Field()]; ok {
				if msg, ok := fieldMsgs[verr.Tag()]; ok {
					return apierr.NewValidationError(strings.ToLower(verr.Field()), msg)
				}
			}
		}
	}
	return apierr.NewValidationError("", "invalid submission")
}
