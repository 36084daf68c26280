package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mcdev12/ctfsession/go/internal/apierr"
	"github.com/mcdev12/ctfsession/go/internal/models"
	"github.com/mcdev12/ctfsession/go/internal/poller"
	"github.com/rs/zerolog/log"
)

// ApprovalPollInterval is how often the session is refetched while the team waits
// for approval.
const ApprovalPollInterval = 2 * time.Second

// SessionFetcher defines what the controller needs from the portal client
type SessionFetcher interface {
	FetchSession(ctx context.Context, gameID int) (*models.GameSession, error)
}

// PhaseListener is notified after every phase transition. It is called without the
// controller lock held, so it may call back into the controller.
type PhaseListener interface {
	OnPhaseChange(prev, next models.GamePhase, session *models.GameSession)
}

// Controller owns the phase of one game for one viewer.
type Controller struct {
	gameID   int
	fetcher  SessionFetcher
	listener PhaseListener
	clock    poller.Clock

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	phase      models.GamePhase
	session    *models.GameSession
	fetchSeq   uint64
	appliedSeq uint64
	stateSeq   uint64
	stopped    bool

	// scheduleMu serialises timer scheduling so an older state never rearms timers
	// after a newer one.
	scheduleMu sync.Mutex
	approval   poller.Slot
	boundary   poller.Slot
}

// NewController creates a controller in PhaseUnknown. Nothing is fetched until Refresh.
func NewController(gameID int, fetcher SessionFetcher, listener PhaseListener, clock poller.Clock) *Controller {
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		gameID:   gameID,
		fetcher:  fetcher,
		listener: listener,
		clock:    clock,
		ctx:      ctx,
		cancel:   cancel,
		phase:    models.PhaseUnknown,
	}
}

// Phase returns the current phase.
func (c *Controller) Phase() models.GamePhase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Session returns a copy of the latest session, or nil before the first successful fetch.
func (c *Controller) Session() *models.GameSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil
	}
	s := *c.session
	return &s
}

// Refresh fetches the session and applies it. Auth and not-found failures force
// UnLogin and NoSuchGame; other failures keep the current phase and are returned.
func (c *Controller) Refresh(ctx context.Context) error {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return nil
	}
	c.fetchSeq++
	seq := c.fetchSeq
	c.mu.Unlock()

	session, err := c.fetcher.FetchSession(ctx, c.gameID)
	if err != nil {
		if !apierr.IsPhaseAffecting(err) {
			if ctx.Err() == nil {
				log.Warn().Err(err).Int("game_id", c.gameID).Msg("session refresh failed, keeping phase")
			}
			return fmt.Errorf("failed to refresh session: %w", err)
		}
		phase := models.PhaseUnLogin
		if errors.Is(err, apierr.ErrNotFound) {
			phase = models.PhaseNoSuchGame
		}
		c.apply(seq, nil, phase)
		return fmt.Errorf("failed to refresh session: %w", err)
	}

	c.apply(seq, session, DerivePhase(*session, c.clock.Now()))
	return nil
}

// Override forces a phase until the next refresh or boundary re-derivation. Intended
// for debugging and tests.
func (c *Controller) Override(phase models.GamePhase) {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	prev := c.phase
	c.phase = phase
	session := c.sessionCopyLocked()
	stamp := c.stampLocked()
	c.mu.Unlock()

	log.Info().Int("game_id", c.gameID).Str("phase", string(phase)).Msg("phase overridden")
	c.transition(stamp, prev, phase, session)
}

// Stop cancels every timer the controller owns. It does not wait for them to exit.
func (c *Controller) Stop() {
	c.mu.Lock()
	c.stopped = true
	c.mu.Unlock()

	c.cancel()
	c.approval.Clear()
	c.boundary.Clear()
}

// apply stores a fetch result unless a newer fetch has already been applied.
func (c *Controller) apply(seq uint64, session *models.GameSession, phase models.GamePhase) {
	c.mu.Lock()
	if c.stopped || seq < c.appliedSeq {
		c.mu.Unlock()
		return
	}
	c.appliedSeq = seq
	if session != nil {
		c.session = session
	}
	prev := c.phase
	c.phase = phase
	snapshot := c.sessionCopyLocked()
	stamp := c.stampLocked()
	c.mu.Unlock()

	c.transition(stamp, prev, phase, snapshot)
}

// rederive recomputes the phase from the stored session at a time boundary.
func (c *Controller) rederive(ctx context.Context) {
	c.mu.Lock()
	if c.stopped || c.session == nil {
		c.mu.Unlock()
		return
	}
	prev := c.phase
	next := DerivePhase(*c.session, c.clock.Now())
	c.phase = next
	snapshot := c.sessionCopyLocked()
	stamp := c.stampLocked()
	c.mu.Unlock()

	log.Debug().Int("game_id", c.gameID).Str("phase", string(next)).Msg("phase re-derived at time boundary")
	c.transition(stamp, prev, next, snapshot)
}

// stampLocked marks a new phase/session state and returns its stamp.
func (c *Controller) stampLocked() uint64 {
	c.stateSeq++
	return c.stateSeq
}

// transition arranges the timers for next and notifies the listener if the phase changed.
// Timers are only arranged while stamp is still the latest state.
func (c *Controller) transition(stamp uint64, prev, next models.GamePhase, session *models.GameSession) {
	c.scheduleMu.Lock()
	c.mu.Lock()
	latest := stamp == c.stateSeq && !c.stopped
	c.mu.Unlock()
	if latest {
		c.schedule(next, session)
	} else {
		log.Debug().Int("game_id", c.gameID).Str("phase", string(next)).Msg("skipping timers for superseded phase")
	}
	c.scheduleMu.Unlock()

	if prev == next {
		return
	}
	log.Info().
		Int("game_id", c.gameID).
		Str("from", string(prev)).
		Str("to", string(next)).
		Msg("phase changed")

	if c.listener != nil {
		c.listener.OnPhaseChange(prev, next, session)
	}
}

func (c *Controller) schedule(phase models.GamePhase, session *models.GameSession) {
	if phase.Terminal() {
		c.approval.Clear()
		c.boundary.Clear()
		return
	}

	if phase == models.PhaseWaitingApproval {
		if !c.approval.Active() {
			c.approval.Replace(poller.Every(c.ctx, c.clock, "session-approval", poller.Fixed(ApprovalPollInterval), c.pollApproval))
		}
	} else {
		c.approval.Clear()
	}

	if session == nil {
		c.boundary.Clear()
		return
	}
	now := c.clock.Now()
	switch phase {
	case models.PhasePending:
		c.boundary.Replace(poller.After(c.ctx, c.clock, "session-start", session.StartTime.Sub(now), c.rederive))
	case models.PhaseRunning:
		c.boundary.Replace(poller.After(c.ctx, c.clock, "session-end", session.EndTime.Sub(now), c.rederive))
	default:
		c.boundary.Clear()
	}
}

func (c *Controller) pollApproval(ctx context.Context) bool {
	if err := c.Refresh(ctx); err != nil && ctx.Err() == nil {
		log.Debug().Err(err).Int("game_id", c.gameID).Msg("approval poll failed")
	}
	return c.Phase() == models.PhaseWaitingApproval
}

func (c *Controller) sessionCopyLocked() *models.GameSession {
	if c.session == nil {
		return nil
	}
	s := *c.session
	return &s
}
