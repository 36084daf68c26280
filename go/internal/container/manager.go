package container

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mcdev12/ctfsession/go/internal/models"
	"github.com/mcdev12/ctfsession/go/internal/poller"
	"github.com/rs/zerolog/log"
)

var (
	ErrNoChallenge      = errors.New("no challenge bound")
	ErrLaunchInProgress = errors.New("instance launch already in progress")
	ErrLaunchFailed     = errors.New("instance failed to start")
)

const (
	MinReconcileInterval = 3 * time.Second
	MaxReconcileInterval = 5 * time.Second
)

// Operation names the request a failure belongs to.
type Operation string

const (
	OpLaunch  Operation = "launch"
	OpExtend  Operation = "extend"
	OpDestroy Operation = "destroy"
	OpSync    Operation = "sync"
)

// InstanceClient defines what the manager needs from the portal client
type InstanceClient interface {
	CreateInstance(ctx context.Context, gameID, challengeID int) error
	FetchInstanceStatus(ctx context.Context, gameID, challengeID int) (models.ChallengeInstance, error)
	ExtendInstance(ctx context.Context, gameID, challengeID int) error
	DestroyInstance(ctx context.Context, gameID, challengeID int) error
}

// Listener receives instance updates for the bound challenge. Calls are made without
// the manager lock held.
type Listener interface {
	OnInstanceChange(instance models.ChallengeInstance)
	OnInstanceError(challengeID int, op Operation, err error)
}

// Manager owns the instance of the currently open challenge: its status, endpoints
// and expiry. At most one reconciliation loop and one expiry countdown exist at a time.
type Manager struct {
	gameID   int
	client   InstanceClient
	listener Listener
	clock    poller.Clock
	interval poller.Interval

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	bound      int
	instance   models.ChallengeInstance
	launching  bool
	generation uint64
	stopped    bool

	reconcile poller.Slot
	expiry    poller.Slot
}

func NewManager(gameID int, client InstanceClient, listener Listener, clock poller.Clock) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		gameID:   gameID,
		client:   client,
		listener: listener,
		clock:    clock,
		interval: poller.Jitter(MinReconcileInterval, MaxReconcileInterval),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Bind switches the manager to challengeID. Any loop or countdown of the previous
// challenge is stopped before the new instance is evaluated. initial is the instance
// embedded in the challenge detail, if any.
func (m *Manager) Bind(challengeID int, initial *models.ChallengeInstance) {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.generation++
	m.reconcile.Clear()
	m.expiry.Clear()

	m.bound = challengeID
	m.launching = false
	if initial != nil {
		m.instance = initial.Clone()
		m.instance.ChallengeID = challengeID
	} else {
		m.instance = models.StoppedInstance(challengeID)
	}

	if m.instance.Status.Transitional() {
		m.launching = true
		m.startReconcileLocked()
	}
	m.scheduleExpiryLocked()
	snapshot := m.instance.Clone()
	m.mu.Unlock()

	log.Debug().Int("game_id", m.gameID).Int("challenge_id", challengeID).Str("status", string(snapshot.Status)).Msg("instance bound")
	m.notifyChange(snapshot)
}

// Unbind stops everything tied to the current challenge and forgets it.
func (m *Manager) Unbind() {
	m.mu.Lock()
	m.generation++
	m.reconcile.Clear()
	m.expiry.Clear()
	m.bound = 0
	m.launching = false
	m.instance = models.ChallengeInstance{}
	m.mu.Unlock()
}

// Launch asks the portal for an instance and starts reconciling. The local status is
// left untouched until the first status read.
func (m *Manager) Launch(ctx context.Context) error {
	m.mu.Lock()
	if m.stopped || m.bound == 0 {
		m.mu.Unlock()
		return ErrNoChallenge
	}
	if m.launching || m.reconcile.Active() {
		m.mu.Unlock()
		return ErrLaunchInProgress
	}
	m.launching = true
	gen, challengeID := m.generation, m.bound
	m.mu.Unlock()

	if err := m.client.CreateInstance(ctx, m.gameID, challengeID); err != nil {
		m.mu.Lock()
		if gen == m.generation {
			m.launching = false
		}
		m.mu.Unlock()
		m.notifyError(challengeID, OpLaunch, err)
		return fmt.Errorf("failed to launch instance: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.generation || m.stopped {
		log.Debug().Int("challenge_id", challengeID).Msg("launch accepted after challenge switch, not reconciling")
		return nil
	}
	m.startReconcileLocked()
	log.Info().Int("game_id", m.gameID).Int("challenge_id", challengeID).Msg("instance launch requested")
	return nil
}

// Extend asks the portal to push out the expiry. Local state is not changed; the next
// status read picks up the new expiry.
func (m *Manager) Extend(ctx context.Context) error {
	challengeID, err := m.boundChallenge()
	if err != nil {
		return err
	}
	if err := m.client.ExtendInstance(ctx, m.gameID, challengeID); err != nil {
		m.notifyError(challengeID, OpExtend, err)
		return fmt.Errorf("failed to extend instance: %w", err)
	}
	return nil
}

// Destroy tears the instance down. Once the portal accepts, endpoints and expiry are
// cleared and the status is Stopped without waiting for a status read.
func (m *Manager) Destroy(ctx context.Context) error {
	m.mu.Lock()
	if m.stopped || m.bound == 0 {
		m.mu.Unlock()
		return ErrNoChallenge
	}
	gen, challengeID := m.generation, m.bound
	m.mu.Unlock()

	if err := m.client.DestroyInstance(ctx, m.gameID, challengeID); err != nil {
		m.notifyError(challengeID, OpDestroy, err)
		return fmt.Errorf("failed to destroy instance: %w", err)
	}

	m.mu.Lock()
	if gen != m.generation {
		m.mu.Unlock()
		return nil
	}
	m.markStoppedLocked()
	snapshot := m.instance.Clone()
	m.mu.Unlock()

	log.Info().Int("game_id", m.gameID).Int("challenge_id", challengeID).Msg("instance destroyed")
	m.notifyChange(snapshot)
	return nil
}

// Sync reads the instance status once and adopts it.
func (m *Manager) Sync(ctx context.Context) error {
	m.mu.Lock()
	if m.stopped || m.bound == 0 {
		m.mu.Unlock()
		return ErrNoChallenge
	}
	gen, challengeID := m.generation, m.bound
	m.mu.Unlock()

	instance, err := m.client.FetchInstanceStatus(ctx, m.gameID, challengeID)
	if err != nil {
		m.notifyError(challengeID, OpSync, err)
		return fmt.Errorf("failed to sync instance: %w", err)
	}

	m.mu.Lock()
	if gen != m.generation || m.stopped {
		m.mu.Unlock()
		return nil
	}
	instance.ChallengeID = challengeID
	m.instance = instance.Clone()
	if instance.Status.Transitional() {
		if !m.reconcile.Active() {
			m.launching = true
			m.startReconcileLocked()
		}
	} else {
		m.launching = false
		m.reconcile.Clear()
	}
	m.scheduleExpiryLocked()
	snapshot := m.instance.Clone()
	m.mu.Unlock()

	m.notifyChange(snapshot)
	return nil
}

// Instance returns a copy of the bound instance.
func (m *Manager) Instance() models.ChallengeInstance {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.instance.Clone()
}

// Launching reports whether a launch is waiting for the instance to come up.
func (m *Manager) Launching() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.launching
}

// Remaining returns the time left before the bound instance expires, or zero.
func (m *Manager) Remaining() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.instance.Status != models.InstanceRunning || m.instance.ExpiresAt == nil {
		return 0
	}
	if d := m.instance.ExpiresAt.Sub(m.clock.Now()); d > 0 {
		return d
	}
	return 0
}

// Stop cancels all loops and countdowns. The manager cannot be reused.
func (m *Manager) Stop() {
	m.mu.Lock()
	m.stopped = true
	m.generation++
	m.mu.Unlock()

	m.cancel()
	m.reconcile.Clear()
	m.expiry.Clear()
}

func (m *Manager) boundChallenge() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped || m.bound == 0 {
		return 0, ErrNoChallenge
	}
	return m.bound, nil
}

// startReconcileLocked starts the status loop for the bound challenge. Results from a
// loop whose generation is no longer current are discarded.
func (m *Manager) startReconcileLocked() {
	gen, challengeID := m.generation, m.bound
	m.reconcile.Replace(poller.Every(m.ctx, m.clock, "instance-reconcile", m.interval, func(ctx context.Context) bool {
		return m.reconcileOnce(ctx, gen, challengeID)
	}))
}

func (m *Manager) reconcileOnce(ctx context.Context, gen uint64, challengeID int) bool {
	instance, err := m.client.FetchInstanceStatus(ctx, m.gameID, challengeID)

	m.mu.Lock()
	if gen != m.generation || m.stopped || ctx.Err() != nil {
		m.mu.Unlock()
		return false
	}

	if err == nil && instance.Status.Transitional() {
		m.instance.Status = instance.Status
		snapshot := m.instance.Clone()
		m.mu.Unlock()
		m.notifyChange(snapshot)
		return true
	}

	m.launching = false
	if err == nil && instance.Status == models.InstanceRunning {
		instance.ChallengeID = challengeID
		m.instance = instance.Clone()
		m.scheduleExpiryLocked()
		snapshot := m.instance.Clone()
		m.mu.Unlock()

		log.Info().Int("game_id", m.gameID).Int("challenge_id", challengeID).Int("endpoints", len(snapshot.Endpoints)).Msg("instance running")
		m.notifyChange(snapshot)
		return false
	}

	m.instance = models.StoppedInstance(challengeID)
	m.expiry.Clear()
	snapshot := m.instance.Clone()
	m.mu.Unlock()

	if err == nil {
		err = fmt.Errorf("instance reported %q: %w", instance.Status, ErrLaunchFailed)
	}
	log.Warn().Err(err).Int("game_id", m.gameID).Int("challenge_id", challengeID).Msg("instance launch failed")
	m.notifyChange(snapshot)
	m.notifyError(challengeID, OpLaunch, err)
	return false
}

func (m *Manager) scheduleExpiryLocked() {
	if m.instance.Status != models.InstanceRunning || m.instance.ExpiresAt == nil {
		m.expiry.Clear()
		return
	}
	gen := m.generation
	expiresAt := *m.instance.ExpiresAt
	d := expiresAt.Sub(m.clock.Now())
	m.expiry.Replace(poller.After(m.ctx, m.clock, "instance-expiry", d, func(ctx context.Context) {
		m.onExpiryReached(ctx, gen, expiresAt)
	}))
}

// onExpiryReached mirrors Destroy's local effect without a request; the portal reaps
// expired instances on its own. A countdown that was replaced, or whose deadline was
// superseded by a newer expiry, does nothing.
func (m *Manager) onExpiryReached(ctx context.Context, gen uint64, expiresAt time.Time) {
	m.mu.Lock()
	if ctx.Err() != nil || gen != m.generation || m.stopped || m.instance.Status != models.InstanceRunning ||
		m.instance.ExpiresAt == nil || !m.instance.ExpiresAt.Equal(expiresAt) {
		m.mu.Unlock()
		return
	}
	m.markStoppedLocked()
	snapshot := m.instance.Clone()
	m.mu.Unlock()

	log.Info().Int("game_id", m.gameID).Int("challenge_id", snapshot.ChallengeID).Msg("instance expired")
	m.notifyChange(snapshot)
}

func (m *Manager) markStoppedLocked() {
	m.reconcile.Clear()
	m.expiry.Clear()
	m.launching = false
	m.instance = models.StoppedInstance(m.bound)
}

func (m *Manager) notifyChange(instance models.ChallengeInstance) {
	if m.listener != nil {
		m.listener.OnInstanceChange(instance)
	}
}

func (m *Manager) notifyError(challengeID int, op Operation, err error) {
	if errors.Is(err, context.Canceled) {
		return
	}
	if m.listener != nil {
		m.listener.OnInstanceError(challengeID, op, err)
	}
}
