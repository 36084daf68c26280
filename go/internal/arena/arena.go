package arena

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/ctfsession/go/internal/apierr"
	"github.com/mcdev12/ctfsession/go/internal/container"
	"github.com/mcdev12/ctfsession/go/internal/models"
	"github.com/mcdev12/ctfsession/go/internal/notice"
	"github.com/mcdev12/ctfsession/go/internal/poller"
	"github.com/mcdev12/ctfsession/go/internal/scoreboard"
	"github.com/mcdev12/ctfsession/go/internal/session"
	"github.com/mcdev12/ctfsession/go/internal/submission"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

var (
	ErrGameNotOpen    = apierr.NewValidationError("game", "the challenge workspace is not open")
	ErrNoChallenge    = apierr.NewValidationError("challenge", "no challenge is open")
	ErrNoInstanceType = apierr.NewValidationError("challenge", "this challenge has no instance")
)

// Client is the portal API the arena drives.
type Client interface {
	session.SessionFetcher
	container.InstanceClient
	notice.NoticeFetcher
	scoreboard.ScoreboardFetcher
	submission.FlagClient
	FetchChallengeList(ctx context.Context, gameID int) (*models.ChallengeList, error)
	FetchChallengeDetail(ctx context.Context, gameID, challengeID int) (*models.ChallengeDetail, error)
}

// Recorder persists what the arena observes. Failures never affect the live view.
type Recorder interface {
	RecordSnapshot(ctx context.Context, gameID int, snapshot *models.ScoreboardSnapshot) error
	RecordNotice(ctx context.Context, gameID int, n models.Notice) error
}

// Options configures an Arena.
type Options struct {
	GameID      int
	Clock       poller.Clock
	Channel     notice.Channel
	Shell       Shell
	Recorder    Recorder
	SubmitLimit rate.Limit
	SubmitBurst int
}

// Arena is the live session of one viewer in one game. It owns the phase
// controller, the instance manager, the notice processor, the scoreboard and the
// flag submitter, and composes their state into a View.
type Arena struct {
	id       uuid.UUID
	gameID   int
	client   Client
	clock    poller.Clock
	shell    Shell
	recorder Recorder

	controller *session.Controller
	containers *container.Manager
	notices    *notice.Processor
	scoreboard *scoreboard.Aggregator
	submitter  *submission.Submitter

	ctx    context.Context
	cancel context.CancelFunc

	// bindMu orders container binds with the open challenge they belong to.
	bindMu sync.Mutex

	mu          sync.Mutex
	challenges  *models.ChallengeList
	openID      int
	detail      *models.ChallengeDetail
	detailSeq   uint64
	instanceErr string
	lastSubmit  *SubmissionView
}

func New(client Client, opts Options) *Arena {
	ctx, cancel := context.WithCancel(context.Background())
	a := &Arena{
		id:       uuid.New(),
		gameID:   opts.GameID,
		client:   client,
		clock:    opts.Clock,
		shell:    opts.Shell,
		recorder: opts.Recorder,
		ctx:      ctx,
		cancel:   cancel,
	}
	if a.shell == nil {
		a.shell = nopShell{}
	}
	limit, burst := opts.SubmitLimit, opts.SubmitBurst
	if limit == 0 {
		limit = rate.Every(3 * time.Second)
	}
	if burst == 0 {
		burst = 3
	}

	a.controller = session.NewController(opts.GameID, client, a, opts.Clock)
	a.containers = container.NewManager(opts.GameID, client, containerEvents{a}, opts.Clock)
	a.notices = notice.NewProcessor(opts.GameID, client, opts.Channel, noticeEvents{a}, opts.Clock)
	a.scoreboard = scoreboard.NewAggregator(opts.GameID, client, scoreboardEvents{a}, opts.Clock)
	a.submitter = submission.NewSubmitter(opts.GameID, client, opts.Clock, limit, burst)
	return a
}

// ID identifies this arena instance in logs.
func (a *Arena) ID() string {
	return a.id.String()
}

// Start performs the entry fetch. The phase listener does the rest.
func (a *Arena) Start(ctx context.Context) error {
	log.Info().Str("arena_id", a.id.String()).Int("game_id", a.gameID).Msg("arena starting")
	return a.controller.Refresh(ctx)
}

// Stop tears every component down.
func (a *Arena) Stop() {
	a.cancel()
	a.controller.Stop()
	a.notices.Stop()
	a.containers.Stop()
	a.scoreboard.Close()
	log.Info().Str("arena_id", a.id.String()).Int("game_id", a.gameID).Msg("arena stopped")
}

// Override forces a phase; intended for debugging.
func (a *Arena) Override(phase models.GamePhase) {
	a.controller.Override(phase)
}

// OnPhaseChange implements session.PhaseListener.
func (a *Arena) OnPhaseChange(prev, next models.GamePhase, s *models.GameSession) {
	if s != nil {
		a.notices.SetTeamName(s.TeamName)
		a.scoreboard.SetWindow(s.StartTime, s.EndTime)
	}

	switch {
	case next.Active() && !prev.Active():
		a.activate()
	case !next.Active() && prev.Active():
		a.deactivate()
	}
	if next.Terminal() {
		a.scoreboard.Close()
	}
	a.shell.ViewChanged()
}

func (a *Arena) activate() {
	if err := a.loadChallenges(a.ctx); err != nil {
		a.shell.Toast(ToastError, apierr.Message(err))
	}
	if err := a.notices.Start(a.ctx); err != nil {
		log.Warn().Err(err).Int("game_id", a.gameID).Msg("live notices unavailable")
	}
}

func (a *Arena) deactivate() {
	a.notices.Stop()

	a.bindMu.Lock()
	defer a.bindMu.Unlock()
	a.containers.Unbind()

	a.mu.Lock()
	a.openID = 0
	a.detail = nil
	a.detailSeq++
	a.instanceErr = ""
	a.lastSubmit = nil
	a.mu.Unlock()
}

func (a *Arena) loadChallenges(ctx context.Context) error {
	list, err := a.client.FetchChallengeList(ctx, a.gameID)
	if err != nil {
		return fmt.Errorf("failed to load challenges: %w", err)
	}
	a.mu.Lock()
	a.challenges = list
	a.mu.Unlock()
	return nil
}

// OpenChallenge makes challengeID the current challenge and binds its instance.
func (a *Arena) OpenChallenge(ctx context.Context, challengeID int) error {
	if !a.controller.Phase().Active() {
		return ErrGameNotOpen
	}

	a.mu.Lock()
	a.detailSeq++
	seq := a.detailSeq
	a.mu.Unlock()

	detail, err := a.client.FetchChallengeDetail(ctx, a.gameID, challengeID)
	if err != nil {
		return fmt.Errorf("failed to open challenge: %w", err)
	}

	a.bindMu.Lock()
	defer a.bindMu.Unlock()

	a.mu.Lock()
	if seq != a.detailSeq {
		a.mu.Unlock()
		return nil
	}
	a.openID = challengeID
	a.detail = detail
	a.instanceErr = ""
	a.lastSubmit = nil
	a.mu.Unlock()

	if detail.Dynamic {
		a.containers.Bind(challengeID, detail.Instance)
	} else {
		a.containers.Unbind()
	}
	a.shell.ViewChanged()
	return nil
}

// refreshDetail reloads the open challenge's detail. The instance fields stay with
// the container manager.
func (a *Arena) refreshDetail(ctx context.Context) error {
	a.mu.Lock()
	challengeID, seq := a.openID, a.detailSeq
	a.mu.Unlock()
	if challengeID == 0 {
		return nil
	}

	detail, err := a.client.FetchChallengeDetail(ctx, a.gameID, challengeID)
	if err != nil {
		return fmt.Errorf("failed to refresh challenge: %w", err)
	}

	a.mu.Lock()
	if seq == a.detailSeq && challengeID == a.openID {
		a.detail = detail
	}
	a.mu.Unlock()
	a.shell.ViewChanged()
	return nil
}

func (a *Arena) requireDynamic() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.openID == 0 || a.detail == nil {
		return ErrNoChallenge
	}
	if !a.detail.Dynamic {
		return ErrNoInstanceType
	}
	a.instanceErr = ""
	return nil
}

// RequestLaunch starts the open challenge's instance.
func (a *Arena) RequestLaunch(ctx context.Context) error {
	if err := a.requireDynamic(); err != nil {
		return err
	}
	return a.containers.Launch(ctx)
}

// RequestExtend extends the open challenge's instance and rereads its status so the
// new expiry shows up.
func (a *Arena) RequestExtend(ctx context.Context) error {
	if err := a.requireDynamic(); err != nil {
		return err
	}
	if err := a.containers.Extend(ctx); err != nil {
		return err
	}
	if err := a.containers.Sync(ctx); err != nil {
		log.Debug().Err(err).Int("game_id", a.gameID).Msg("status read after extend failed")
	}
	return nil
}

// RequestDestroy destroys the open challenge's instance.
func (a *Arena) RequestDestroy(ctx context.Context) error {
	if err := a.requireDynamic(); err != nil {
		return err
	}
	return a.containers.Destroy(ctx)
}

// RequestSubmit submits a flag for the open challenge and waits for the verdict.
func (a *Arena) RequestSubmit(ctx context.Context, flag string) (models.SubmissionResult, error) {
	a.mu.Lock()
	challengeID := a.openID
	a.mu.Unlock()
	if challengeID == 0 {
		return models.SubmissionUnknown, ErrNoChallenge
	}

	result, err := a.submitter.Submit(ctx, challengeID, flag)
	view := &SubmissionView{ChallengeID: challengeID, Result: result}
	switch {
	case err != nil:
		view.Message = apierr.Message(err)
		if errors.Is(err, submission.ErrJudgeTimeout) {
			view.Message = "the judge is busy, check back later"
		}
	case result == models.SubmissionAccepted:
		view.Message = "correct"
	case result == models.SubmissionWrong:
		view.Message = "wrong answer"
	}

	a.mu.Lock()
	if a.openID == challengeID {
		a.lastSubmit = view
	}
	a.mu.Unlock()

	if result == models.SubmissionAccepted {
		a.shell.Toast(ToastSuccess, "flag accepted")
		if err := a.loadChallenges(ctx); err != nil {
			log.Warn().Err(err).Int("game_id", a.gameID).Msg("challenge list refresh after solve failed")
		}
		if err := a.refreshDetail(ctx); err != nil {
			log.Warn().Err(err).Int("game_id", a.gameID).Msg("challenge refresh after solve failed")
		}
	}
	a.shell.ViewChanged()
	return result, err
}

func (a *Arena) OpenScoreboard(ctx context.Context) error {
	return a.scoreboard.Open(ctx)
}

func (a *Arena) CloseScoreboard() {
	a.scoreboard.Close()
}

func (a *Arena) ChangeScoreboardPage(ctx context.Context, page int) error {
	return a.scoreboard.ChangePage(ctx, page)
}

func (a *Arena) ChangeScoreboardPageSize(ctx context.Context, size int) error {
	return a.scoreboard.ChangePageSize(ctx, size)
}

func (a *Arena) ChangeScoreboardGroup(ctx context.Context, group *string) error {
	return a.scoreboard.ChangeGroup(ctx, group)
}

// ResyncNotices rebuilds the feed from the portal's history.
func (a *Arena) ResyncNotices(ctx context.Context) error {
	return a.notices.Resync(ctx)
}

// Feed returns the notice feed in display order.
func (a *Arena) Feed() []models.Notice {
	return a.notices.Feed()
}

// Scoreboard returns the scoreboard view.
func (a *Arena) Scoreboard() scoreboard.View {
	return a.scoreboard.View()
}

type containerEvents struct{ a *Arena }

func (e containerEvents) OnInstanceChange(instance models.ChallengeInstance) {
	e.a.shell.ViewChanged()
}

func (e containerEvents) OnInstanceError(challengeID int, op container.Operation, err error) {
	msg := apierr.Message(err)
	if errors.Is(err, container.ErrLaunchFailed) {
		msg = "instance failed to start"
	}
	e.a.mu.Lock()
	if e.a.openID == challengeID {
		e.a.instanceErr = msg
	}
	e.a.mu.Unlock()

	log.Warn().Err(err).Int("challenge_id", challengeID).Str("op", string(op)).Msg("instance operation failed")
	e.a.shell.Toast(ToastError, msg)
	e.a.shell.ViewChanged()
}

type noticeEvents struct{ a *Arena }

func (e noticeEvents) OnFeedChanged(entries []models.Notice) {
	e.a.shell.ViewChanged()
}

func (e noticeEvents) OnNoticeReceived(n models.Notice) {
	if e.a.recorder == nil {
		return
	}
	if err := e.a.recorder.RecordNotice(e.a.ctx, e.a.gameID, n); err != nil {
		log.Warn().Err(err).Int("game_id", e.a.gameID).Msg("failed to archive notice")
	}
}

func (e noticeEvents) OnAnnouncement(n models.Notice) {
	e.a.shell.Toast(ToastInfo, n.Announcement.Content)
}

func (e noticeEvents) OnOwnBlood(rank int, n models.Notice) {
	e.a.shell.Celebrate(rank, n)
}

func (e noticeEvents) OnHintReady(ctx context.Context) {
	if err := e.a.refreshDetail(ctx); err != nil && ctx.Err() == nil {
		log.Warn().Err(err).Int("game_id", e.a.gameID).Msg("hint refresh failed")
	}
}

type scoreboardEvents struct{ a *Arena }

func (e scoreboardEvents) OnSnapshot(view scoreboard.View) {
	if e.a.recorder != nil && view.Snapshot != nil {
		if err := e.a.recorder.RecordSnapshot(e.a.ctx, e.a.gameID, view.Snapshot); err != nil {
			log.Warn().Err(err).Int("game_id", e.a.gameID).Msg("failed to archive scoreboard snapshot")
		}
	}
	e.a.shell.ViewChanged()
}
