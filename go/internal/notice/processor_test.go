package notice

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/ctfsession/go/internal/apierr"
	"github.com/mcdev12/ctfsession/go/internal/models"
)

type fakeFetcher struct {
	mu      sync.Mutex
	history []models.Notice
	err     error
	calls   int
}

func (f *fakeFetcher) FetchNotices(ctx context.Context, gameID int) ([]models.Notice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return append([]models.Notice(nil), f.history...), f.err
}

type fakeChannel struct {
	mu      sync.Mutex
	handler FrameHandler
	opens   int
	closes  int
}

func (c *fakeChannel) Open(ctx context.Context, handler FrameHandler) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handler = handler
	c.opens++
	return nil
}

func (c *fakeChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closes++
	return nil
}

func (c *fakeChannel) send(t *testing.T, n models.Notice) {
	t.Helper()
	data, err := EncodeFrame(n)
	if err != nil {
		t.Fatalf("EncodeFrame: %v", err)
	}
	c.sendRaw(data)
}

func (c *fakeChannel) sendRaw(data []byte) {
	c.mu.Lock()
	h := c.handler
	c.mu.Unlock()
	h(data)
}

type recordingListener struct {
	mu            sync.Mutex
	feed          []models.Notice
	received      []models.Notice
	announcements []models.Notice
	celebrations  []int
	hints         int
}

func (l *recordingListener) OnFeedChanged(entries []models.Notice) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.feed = entries
}

func (l *recordingListener) OnNoticeReceived(n models.Notice) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.received = append(l.received, n)
}

func (l *recordingListener) OnAnnouncement(n models.Notice) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.announcements = append(l.announcements, n)
}

func (l *recordingListener) OnOwnBlood(rank int, n models.Notice) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.celebrations = append(l.celebrations, rank)
}

func (l *recordingListener) OnHintReady(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.hints++
}

func (l *recordingListener) Hints() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.hints
}

func newTestProcessor(t *testing.T, history []models.Notice) (*Processor, *fakeChannel, *recordingListener, *clockwork.FakeClock) {
	t.Helper()
	fc := clockwork.NewFakeClock()
	ch := &fakeChannel{}
	l := &recordingListener{}
	p := NewProcessor(1, &fakeFetcher{history: history}, ch, l, fc)
	p.SetTeamName("  alpha ")
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(p.Stop)
	return p, ch, l, fc
}

func TestOwnBloodCelebratesOnce(t *testing.T) {
	p, ch, l, _ := newTestProcessor(t, nil)

	own := mustNotice(t, models.NoticeFirstBlood, time.Minute, "alpha", "web")
	other := mustNotice(t, models.NoticeFirstBlood, 2*time.Minute, "beta", "web")

	ch.send(t, own)
	ch.send(t, own)
	ch.send(t, other)

	if len(l.celebrations) != 1 || l.celebrations[0] != 1 {
		t.Fatalf("expected one first-blood celebration, got %v", l.celebrations)
	}
	if len(p.Feed()) != 2 {
		t.Fatalf("both bloods belong in the feed, got %d", len(p.Feed()))
	}
}

func TestPushedAnnouncementPrependsAndToasts(t *testing.T) {
	p, ch, l, _ := newTestProcessor(t, []models.Notice{
		mustNotice(t, models.NoticeAnnouncement, 0, "a1"),
		mustNotice(t, models.NoticeSecondBlood, time.Minute, "beta", "web"),
	})

	ch.send(t, mustNotice(t, models.NoticeAnnouncement, 5*time.Minute, "a2"))
	ch.send(t, mustNotice(t, models.NoticeThirdBlood, 6*time.Minute, "gamma", "web"))

	got := kinds(p.Feed())
	want := []string{"a2", "a1", "beta", "gamma"}
	if !equal(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	if len(l.announcements) != 1 || len(l.received) != 2 || len(l.feed) != 4 {
		t.Fatalf("unexpected listener calls: %d toasts, %d received, feed %d", len(l.announcements), len(l.received), len(l.feed))
	}
}

func TestMalformedPushIsDropped(t *testing.T) {
	p, ch, l, _ := newTestProcessor(t, []models.Notice{mustNotice(t, models.NoticeAnnouncement, 0, "a1")})

	ch.sendRaw([]byte(`{"type":"ReceivedGameNotice","message":{"type":"FirstBlood"}}`))
	ch.sendRaw([]byte(`garbage`))
	ch.send(t, mustNotice(t, models.NoticeAnnouncement, time.Minute, "a2"))

	if got := kinds(p.Feed()); !equal(got, []string{"a2", "a1"}) {
		t.Fatalf("feed affected by malformed payload: %v", got)
	}
	if len(l.received) != 1 {
		t.Fatalf("only the valid notice should be received, got %d", len(l.received))
	}
}

func TestHintBurstTriggersOneRefresh(t *testing.T) {
	p, ch, l, fc := newTestProcessor(t, []models.Notice{mustNotice(t, models.NoticeHint, 0, "web")})
	if len(p.Feed()) != 0 {
		t.Fatalf("historical hints must not be retained")
	}

	for i := 0; i < 5; i++ {
		ch.send(t, mustNotice(t, models.NoticeHint, time.Duration(i)*time.Second, "web"))
	}
	if len(p.Feed()) != 0 {
		t.Fatalf("hints must not enter the feed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := fc.BlockUntilContext(ctx, 1); err != nil {
		t.Fatalf("debounce timer not armed: %v", err)
	}
	fc.Advance(MaxHintDebounce)

	deadline := time.Now().Add(2 * time.Second)
	for l.Hints() != 1 {
		if time.Now().After(deadline) {
			t.Fatalf("hint refresh never fired")
		}
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(20 * time.Millisecond)
	if l.Hints() != 1 {
		t.Fatalf("burst should collapse into one refresh, got %d", l.Hints())
	}
}

// gatedListener holds the first hint refresh open until release is closed.
type gatedListener struct {
	*recordingListener
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (l *gatedListener) OnHintReady(ctx context.Context) {
	l.recordingListener.OnHintReady(ctx)
	first := false
	l.once.Do(func() { first = true })
	if first {
		close(l.entered)
		<-l.release
	}
}

func waitForHints(t *testing.T, l *recordingListener, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for l.Hints() != want {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d hint refreshes, got %d", want, l.Hints())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHintDuringRefreshQueuesAnotherRefresh(t *testing.T) {
	fc := clockwork.NewFakeClock()
	ch := &fakeChannel{}
	l := &gatedListener{
		recordingListener: &recordingListener{},
		entered:           make(chan struct{}),
		release:           make(chan struct{}),
	}
	p := NewProcessor(1, &fakeFetcher{}, ch, l, fc)
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(p.Stop)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	ch.send(t, mustNotice(t, models.NoticeHint, 0, "web"))
	if err := fc.BlockUntilContext(ctx, 1); err != nil {
		t.Fatalf("debounce timer not armed: %v", err)
	}
	fc.Advance(MaxHintDebounce)

	select {
	case <-l.entered:
	case <-ctx.Done():
		t.Fatalf("first hint refresh never started")
	}

	// Arrives while the first refresh is still fetching.
	ch.send(t, mustNotice(t, models.NoticeHint, time.Second, "web"))
	close(l.release)

	if err := fc.BlockUntilContext(ctx, 1); err != nil {
		t.Fatalf("trailing debounce not armed: %v", err)
	}
	fc.Advance(MaxHintDebounce)
	waitForHints(t, l.recordingListener, 2)

	time.Sleep(20 * time.Millisecond)
	if got := l.Hints(); got != 2 {
		t.Fatalf("expected exactly one trailing refresh, got %d refreshes", got)
	}
}

func TestStopClosesChannelAndIgnoresLateFrames(t *testing.T) {
	fetcher := &fakeFetcher{}
	ch := &fakeChannel{}
	l := &recordingListener{}
	p := NewProcessor(1, fetcher, ch, l, clockwork.NewFakeClock())

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := p.Start(context.Background()); err != nil || ch.opens != 1 {
		t.Fatalf("channel must be opened once per start, opens=%d", ch.opens)
	}

	p.Stop()
	p.Stop()
	if ch.closes != 1 || p.Running() {
		t.Fatalf("stop should close the channel once, closes=%d", ch.closes)
	}

	ch.send(t, mustNotice(t, models.NoticeAnnouncement, 0, "late"))
	if len(p.Feed()) != 0 {
		t.Fatalf("frames after stop must be ignored")
	}
}

func TestStartToleratesHistoryFailureAndResyncRebuilds(t *testing.T) {
	fetcher := &fakeFetcher{err: fmt.Errorf("get: %w", apierr.ErrTransient)}
	ch := &fakeChannel{}
	p := NewProcessor(1, fetcher, ch, nil, clockwork.NewFakeClock())
	defer p.Stop()

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start should tolerate a failed history pull: %v", err)
	}
	if ch.opens != 1 {
		t.Fatalf("channel should still open")
	}

	ch.send(t, mustNotice(t, models.NoticeAnnouncement, time.Minute, "pushed"))

	fetcher.mu.Lock()
	fetcher.err = nil
	fetcher.history = []models.Notice{
		mustNotice(t, models.NoticeAnnouncement, 0, "old"),
		mustNotice(t, models.NoticeAnnouncement, time.Minute, "pushed"),
	}
	fetcher.mu.Unlock()

	if err := p.Resync(context.Background()); err != nil {
		t.Fatalf("Resync: %v", err)
	}
	if got := kinds(p.Feed()); !equal(got, []string{"pushed", "old"}) {
		t.Fatalf("resync should rebuild from history, got %v", got)
	}
}
