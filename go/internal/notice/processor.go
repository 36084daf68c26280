package notice

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mcdev12/ctfsession/go/internal/models"
	"github.com/mcdev12/ctfsession/go/internal/poller"
	"github.com/rs/zerolog/log"
)

const (
	MinHintDebounce = 200 * time.Millisecond
	MaxHintDebounce = 600 * time.Millisecond
)

// Channel is a push transport for one game's notices.
type Channel interface {
	// Open connects and delivers frames to handler until Close is called or the
	// transport drops. It returns once the connection is established.
	Open(ctx context.Context, handler FrameHandler) error
	Close() error
}

// NoticeFetcher defines what the processor needs from the portal client
type NoticeFetcher interface {
	FetchNotices(ctx context.Context, gameID int) ([]models.Notice, error)
}

// Listener receives feed updates and notice effects. Calls are made without the
// processor lock held.
type Listener interface {
	OnFeedChanged(entries []models.Notice)
	// OnNoticeReceived is called once for every pushed notice accepted into the feed.
	OnNoticeReceived(n models.Notice)
	OnAnnouncement(n models.Notice)
	OnOwnBlood(rank int, n models.Notice)
	// OnHintReady asks for the open challenge to be refreshed.
	OnHintReady(ctx context.Context)
}

// Processor merges the pulled notice history and the push channel into one Feed.
type Processor struct {
	gameID   int
	fetcher  NoticeFetcher
	channel  Channel
	listener Listener
	clock    poller.Clock
	debounce poller.Interval

	mu         sync.Mutex
	feed       *Feed
	ownTeam    string
	running    bool
	generation uint64
	ctx        context.Context
	cancel     context.CancelFunc

	hint        poller.Slot
	hintArmed   bool
	hintRunning bool
	hintAgain   bool
}

func NewProcessor(gameID int, fetcher NoticeFetcher, channel Channel, listener Listener, clock poller.Clock) *Processor {
	return &Processor{
		gameID:   gameID,
		fetcher:  fetcher,
		channel:  channel,
		listener: listener,
		clock:    clock,
		debounce: poller.Jitter(MinHintDebounce, MaxHintDebounce),
		feed:     NewFeed(),
	}
}

// SetTeamName sets the viewer's team name used to recognise its own bloods.
func (p *Processor) SetTeamName(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ownTeam = name
}

// Start pulls the notice history, rebuilds the feed and opens the push channel. It
// is a no-op while already running. A failed pull leaves an empty feed; the channel
// is still opened.
func (p *Processor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = true
	p.generation++
	gen := p.generation
	p.hintArmed, p.hintRunning, p.hintAgain = false, false, false
	p.ctx, p.cancel = context.WithCancel(context.Background())
	p.mu.Unlock()

	if err := p.resync(ctx, gen); err != nil {
		log.Warn().Err(err).Int("game_id", p.gameID).Msg("notice history unavailable, continuing with live notices")
	}

	if p.channel == nil {
		return nil
	}
	if err := p.channel.Open(ctx, func(data []byte) { p.handleFrame(gen, data) }); err != nil {
		log.Warn().Err(err).Int("game_id", p.gameID).Msg("push channel unavailable, live notices disabled")
		return fmt.Errorf("failed to open notice channel: %w", err)
	}

	log.Info().Int("game_id", p.gameID).Msg("notice stream started")
	return nil
}

// Resync pulls the history again and rebuilds the feed. The push channel stays open.
func (p *Processor) Resync(ctx context.Context) error {
	p.mu.Lock()
	gen := p.generation
	p.mu.Unlock()
	return p.resync(ctx, gen)
}

func (p *Processor) resync(ctx context.Context, gen uint64) error {
	history, err := p.fetcher.FetchNotices(ctx, p.gameID)
	if err != nil {
		return fmt.Errorf("failed to resync notices: %w", err)
	}

	p.mu.Lock()
	if gen != p.generation {
		p.mu.Unlock()
		return nil
	}
	p.feed.Rebuild(history)
	entries := p.feed.Entries()
	p.mu.Unlock()

	log.Debug().Int("game_id", p.gameID).Int("entries", len(entries)).Msg("notice feed rebuilt")
	if p.listener != nil {
		p.listener.OnFeedChanged(entries)
	}
	return nil
}

// Stop closes the push channel and cancels a pending hint refresh. The feed is kept
// until the next Start rebuilds it.
func (p *Processor) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	p.generation++
	cancel := p.cancel
	p.mu.Unlock()

	cancel()
	p.hint.Clear()
	if p.channel != nil {
		if err := p.channel.Close(); err != nil {
			log.Debug().Err(err).Int("game_id", p.gameID).Msg("closing notice channel")
		}
	}
	log.Info().Int("game_id", p.gameID).Msg("notice stream stopped")
}

// Running reports whether the processor is between Start and Stop.
func (p *Processor) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Feed returns the current entries in display order.
func (p *Processor) Feed() []models.Notice {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.feed.Entries()
}

func (p *Processor) handleFrame(gen uint64, data []byte) {
	n, ok, err := DecodeFrame(data)
	if err != nil {
		log.Warn().Err(err).Int("game_id", p.gameID).Int("bytes", len(data)).Msg("dropping malformed push payload")
		return
	}
	if !ok {
		log.Debug().Int("game_id", p.gameID).Msg("ignoring non-notice push message")
		return
	}
	p.handle(gen, n)
}

// handle applies one pushed notice from the channel opened for generation gen.
func (p *Processor) handle(gen uint64, n models.Notice) {
	p.mu.Lock()
	if gen != p.generation || !p.running {
		p.mu.Unlock()
		return
	}

	if n.Kind == models.NoticeHint {
		p.scheduleHintLocked()
		p.mu.Unlock()
		return
	}

	if !p.feed.Push(n) {
		p.mu.Unlock()
		log.Debug().Int("game_id", p.gameID).Str("kind", string(n.Kind)).Msg("duplicate notice ignored")
		return
	}
	entries := p.feed.Entries()
	own := n.Blood != nil && p.ownTeam != "" && strings.TrimSpace(n.Blood.Team) == strings.TrimSpace(p.ownTeam)
	p.mu.Unlock()

	if p.listener == nil {
		return
	}
	p.listener.OnNoticeReceived(n)
	p.listener.OnFeedChanged(entries)
	switch {
	case n.Kind == models.NoticeAnnouncement:
		p.listener.OnAnnouncement(n)
	case own:
		log.Info().Int("game_id", p.gameID).Int("rank", n.Blood.Rank).Str("challenge", n.Blood.Challenge).Msg("own team blood")
		p.listener.OnOwnBlood(n.Blood.Rank, n)
	}
}

// scheduleHintLocked arms the debounce unless one is already armed; bursts collapse
// into a single refresh. A hint arriving while a refresh runs queues one more.
func (p *Processor) scheduleHintLocked() {
	switch {
	case p.hintArmed:
		return
	case p.hintRunning:
		p.hintAgain = true
		return
	}
	p.hintArmed = true
	gen := p.generation
	p.hint.Replace(poller.After(p.ctx, p.clock, "hint-refresh", p.debounce(), func(ctx context.Context) {
		p.runHintRefresh(ctx, gen)
	}))
}

func (p *Processor) runHintRefresh(ctx context.Context, gen uint64) {
	p.mu.Lock()
	if gen != p.generation {
		p.mu.Unlock()
		return
	}
	p.hintArmed = false
	p.hintRunning = true
	p.mu.Unlock()

	if p.listener != nil {
		p.listener.OnHintReady(ctx)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if gen != p.generation {
		return
	}
	p.hintRunning = false
	if p.hintAgain && p.running {
		p.hintAgain = false
		p.scheduleHintLocked()
	}
}
