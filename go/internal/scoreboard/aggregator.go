package scoreboard

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mcdev12/ctfsession/go/internal/apierr"
	"github.com/mcdev12/ctfsession/go/internal/models"
	"github.com/mcdev12/ctfsession/go/internal/poller"
	"github.com/rs/zerolog/log"
)

const (
	MinPollInterval = 4 * time.Second
	MaxPollInterval = 5 * time.Second
	DefaultPageSize = 20
)

// ScoreboardFetcher defines what the aggregator needs from the portal client
type ScoreboardFetcher interface {
	FetchScoreboard(ctx context.Context, query models.ScoreboardQuery) (*models.ScoreboardSnapshot, error)
}

// Listener is notified after every accepted snapshot.
type Listener interface {
	OnSnapshot(view View)
}

// View is what the scoreboard shows: the latest snapshot, its chart series and the
// parameters it was fetched with.
type View struct {
	Snapshot  *models.ScoreboardSnapshot `json:"snapshot,omitempty"`
	Series    []Series                   `json:"series"`
	Query     models.ScoreboardQuery     `json:"query"`
	Open      bool                       `json:"open"`
	LastError string                     `json:"last_error,omitempty"`
}

// Aggregator polls the scoreboard while it is open. Each accepted snapshot replaces
// the previous one wholesale; a failed poll leaves the previous one in place.
type Aggregator struct {
	fetcher  ScoreboardFetcher
	listener Listener
	clock    poller.Clock
	interval poller.Interval

	mu         sync.Mutex
	query      models.ScoreboardQuery
	start      time.Time
	end        time.Time
	snapshot   *models.ScoreboardSnapshot
	series     []Series
	lastErr    error
	open       bool
	fetchSeq   uint64
	appliedSeq uint64

	poll poller.Slot
}

func NewAggregator(gameID int, fetcher ScoreboardFetcher, listener Listener, clock poller.Clock) *Aggregator {
	return &Aggregator{
		fetcher:  fetcher,
		listener: listener,
		clock:    clock,
		interval: poller.Jitter(MinPollInterval, MaxPollInterval),
		query:    models.ScoreboardQuery{GameID: gameID, Page: 1, PageSize: DefaultPageSize},
	}
}

// SetWindow sets the game window used to build chart series.
func (a *Aggregator) SetWindow(start, end time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.start, a.end = start, end
}

// Open refreshes immediately and then polls until Close.
func (a *Aggregator) Open(ctx context.Context) error {
	a.mu.Lock()
	if a.open {
		a.mu.Unlock()
		return nil
	}
	a.open = true
	a.mu.Unlock()

	a.poll.Replace(poller.Every(context.Background(), a.clock, "scoreboard-poll", a.interval, func(ctx context.Context) bool {
		if err := a.Refresh(ctx); err != nil && ctx.Err() == nil {
			log.Debug().Err(err).Msg("scoreboard poll failed")
		}
		return true
	}))
	log.Info().Int("game_id", a.query.GameID).Msg("scoreboard opened")

	return a.Refresh(ctx)
}

// Close stops polling. The last snapshot stays available.
func (a *Aggregator) Close() {
	a.mu.Lock()
	a.open = false
	a.mu.Unlock()
	a.poll.Clear()
}

// Refresh fetches the current query. Results of a request overtaken by a newer one
// are discarded.
func (a *Aggregator) Refresh(ctx context.Context) error {
	a.mu.Lock()
	a.fetchSeq++
	seq := a.fetchSeq
	query := a.query
	a.mu.Unlock()

	snapshot, err := a.fetcher.FetchScoreboard(ctx, query)

	a.mu.Lock()
	if seq < a.appliedSeq || query != a.query {
		a.mu.Unlock()
		return nil
	}
	a.appliedSeq = seq
	if err != nil {
		a.lastErr = err
		a.mu.Unlock()
		log.Warn().Err(err).Int("game_id", query.GameID).Msg("scoreboard refresh failed, keeping previous snapshot")
		return fmt.Errorf("failed to refresh scoreboard: %w", err)
	}
	a.snapshot = snapshot
	a.series = BuildSeries(snapshot.Timelines, a.start, a.end, a.clock.Now())
	a.lastErr = nil
	view := a.viewLocked()
	a.mu.Unlock()

	if a.listener != nil {
		a.listener.OnSnapshot(view)
	}
	return nil
}

// ChangePage selects page n and refreshes.
func (a *Aggregator) ChangePage(ctx context.Context, n int) error {
	if n < 1 {
		return apierr.NewValidationError("page", "page must be at least 1")
	}
	a.mu.Lock()
	a.query.Page = n
	a.mu.Unlock()
	return a.Refresh(ctx)
}

// ChangePageSize sets the page size, returns to page 1 and refreshes.
func (a *Aggregator) ChangePageSize(ctx context.Context, size int) error {
	if size < 1 {
		return apierr.NewValidationError("page_size", "page size must be at least 1")
	}
	a.mu.Lock()
	a.query.PageSize = size
	a.query.Page = 1
	a.mu.Unlock()
	return a.Refresh(ctx)
}

// ChangeGroup selects a team group (nil for all teams), returns to page 1 and refreshes.
func (a *Aggregator) ChangeGroup(ctx context.Context, group *string) error {
	a.mu.Lock()
	if group != nil {
		g := *group
		group = &g
	}
	a.query.GroupID = group
	a.query.Page = 1
	a.mu.Unlock()
	return a.Refresh(ctx)
}

// View returns the current scoreboard view.
func (a *Aggregator) View() View {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.viewLocked()
}

func (a *Aggregator) viewLocked() View {
	v := View{
		Snapshot: a.snapshot,
		Series:   a.series,
		Query:    a.query,
		Open:     a.open,
	}
	if a.lastErr != nil {
		v.LastError = apierr.Message(a.lastErr)
	}
	return v
}
