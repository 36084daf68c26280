package poller

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Clock is the interface we use for time operations.
// In production, use clockwork.NewRealClock(). In tests, a FakeClock.
type Clock interface {
	Now() time.Time
	NewTimer(d time.Duration) clockwork.Timer
}

// Interval returns the wait before the next tick of a loop.
type Interval func() time.Duration

// Fixed returns an Interval that always waits d.
func Fixed(d time.Duration) Interval {
	return func() time.Duration { return d }
}

// Jitter returns an Interval drawn uniformly from [min, max) so that many clients
// polling the same server do not line up.
func Jitter(lo, hi time.Duration) Interval {
	if hi <= lo {
		return Fixed(lo)
	}
	span := int64(hi - lo)
	return func() time.Duration {
		return lo + time.Duration(rand.Int64N(span))
	}
}

// Task is a handle to a running loop or one-shot timer.
type Task struct {
	name   string
	cancel context.CancelFunc
	done   chan struct{}
}

// Stop cancels the task. It is idempotent, safe on a nil task and does not wait
// for the goroutine to exit; use Done for that.
func (t *Task) Stop() {
	if t == nil {
		return
	}
	t.cancel()
}

// Done is closed once the task's goroutine has returned.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Finished reports whether the task's goroutine has returned.
func (t *Task) Finished() bool {
	if t == nil {
		return true
	}
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// Name returns the label the task was created with.
func (t *Task) Name() string {
	return t.name
}

func newTask(ctx context.Context, name string) (*Task, context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	return &Task{name: name, cancel: cancel, done: make(chan struct{})}, ctx
}

// Every starts a sequential loop: wait interval(), run fn, repeat. The next wait only
// starts after fn returns, so ticks never overlap. The loop ends when fn returns false,
// ctx is cancelled or Stop is called.
func Every(ctx context.Context, clock Clock, name string, interval Interval, fn func(ctx context.Context) bool) *Task {
	task, taskCtx := newTask(ctx, name)

	go func() {
		defer close(task.done)
		defer task.cancel()

		for {
			if !wait(taskCtx, clock, interval()) {
				log.Debug().Str("task", name).Msg("loop cancelled")
				return
			}
			if !fn(taskCtx) {
				log.Debug().Str("task", name).Msg("loop finished")
				return
			}
			if taskCtx.Err() != nil {
				return
			}
		}
	}()

	return task
}

// After runs fn once when d has elapsed on clock, unless the task is stopped first.
func After(ctx context.Context, clock Clock, name string, d time.Duration, fn func(ctx context.Context)) *Task {
	task, taskCtx := newTask(ctx, name)

	go func() {
		defer close(task.done)
		defer task.cancel()

		if d > 0 && !wait(taskCtx, clock, d) {
			log.Debug().Str("task", name).Msg("timer cancelled")
			return
		}
		if taskCtx.Err() != nil {
			return
		}
		fn(taskCtx)
	}()

	return task
}

// wait blocks until d elapses on clock or ctx ends. It reports whether the timer fired.
func wait(ctx context.Context, clock Clock, d time.Duration) bool {
	timer := clock.NewTimer(d)
	select {
	case <-timer.Chan():
		return true
	case <-ctx.Done():
		stopAndDrainTimer(timer)
		return false
	}
}

// stopAndDrainTimer safely stops a timer and drains its channel to prevent goroutine leaks.
// This follows the pattern recommended in the time.Timer.Stop() documentation.
func stopAndDrainTimer(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}

// Slot holds at most one task for a concern. Replacing the task always stops the
// previous one first.
type Slot struct {
	mu   sync.Mutex
	task *Task
}

// Replace stops any existing task and stores t (which may be nil).
func (s *Slot) Replace(t *Task) {
	s.mu.Lock()
	old := s.task
	s.task = t
	s.mu.Unlock()

	if old != nil && old != t {
		old.Stop()
		log.Debug().Str("task", old.name).Msg("replaced existing task")
	}
}

// Clear stops and forgets the current task.
func (s *Slot) Clear() {
	s.Replace(nil)
}

// Active reports whether the slot holds a task that is still running.
func (s *Slot) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.task != nil && !s.task.Finished()
}

// Current returns the stored task, or nil.
func (s *Slot) Current() *Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.task
}
