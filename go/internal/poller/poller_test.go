package poller

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

func blockUntilWaiting(t *testing.T, fc *clockwork.FakeClock, n int) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := fc.BlockUntilContext(ctx, n); err != nil {
		t.Fatalf("timed out waiting for %d timers: %v", n, err)
	}
}

func waitDone(t *testing.T, task *Task) {
	t.Helper()
	select {
	case <-task.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("task %s did not finish", task.Name())
	}
}

func TestEveryRunsSequentiallyUntilFnStops(t *testing.T) {
	fc := clockwork.NewFakeClock()
	var runs atomic.Int32

	task := Every(context.Background(), fc, "test", Fixed(time.Second), func(ctx context.Context) bool {
		return runs.Add(1) < 3
	})

	for i := 0; i < 3; i++ {
		blockUntilWaiting(t, fc, 1)
		fc.Advance(time.Second)
	}
	waitDone(t, task)

	if got := runs.Load(); got != 3 {
		t.Fatalf("expected 3 runs, got %d", got)
	}
	if !task.Finished() {
		t.Fatalf("task should report finished")
	}
}

func TestEveryStopIsIdempotent(t *testing.T) {
	fc := clockwork.NewFakeClock()
	var runs atomic.Int32

	task := Every(context.Background(), fc, "stop", Fixed(time.Second), func(ctx context.Context) bool {
		runs.Add(1)
		return true
	})
	blockUntilWaiting(t, fc, 1)

	task.Stop()
	task.Stop()
	waitDone(t, task)

	fc.Advance(10 * time.Second)
	if got := runs.Load(); got != 0 {
		t.Fatalf("stopped task ran %d times", got)
	}

	var nilTask *Task
	nilTask.Stop()
	if !nilTask.Finished() {
		t.Fatalf("nil task should report finished")
	}
}

func TestAfterFiresOnce(t *testing.T) {
	fc := clockwork.NewFakeClock()
	fired := make(chan struct{}, 2)

	task := After(context.Background(), fc, "once", 5*time.Second, func(ctx context.Context) {
		fired <- struct{}{}
	})
	blockUntilWaiting(t, fc, 1)
	fc.Advance(4 * time.Second)

	select {
	case <-fired:
		t.Fatalf("timer fired early")
	default:
	}

	fc.Advance(time.Second)
	waitDone(t, task)
	if len(fired) != 1 {
		t.Fatalf("expected exactly one firing, got %d", len(fired))
	}
}

func TestAfterWithElapsedDeadlineRunsImmediately(t *testing.T) {
	fc := clockwork.NewFakeClock()
	fired := make(chan struct{}, 1)

	task := After(context.Background(), fc, "past", -time.Second, func(ctx context.Context) {
		fired <- struct{}{}
	})
	waitDone(t, task)
	if len(fired) != 1 {
		t.Fatalf("expected immediate firing")
	}
}

func TestSlotReplaceStopsPrevious(t *testing.T) {
	fc := clockwork.NewFakeClock()
	var slot Slot

	first := Every(context.Background(), fc, "first", Fixed(time.Second), func(ctx context.Context) bool { return true })
	slot.Replace(first)
	if !slot.Active() {
		t.Fatalf("slot should be active")
	}

	second := Every(context.Background(), fc, "second", Fixed(time.Second), func(ctx context.Context) bool { return true })
	slot.Replace(second)
	waitDone(t, first)

	if slot.Current() != second {
		t.Fatalf("slot should hold the second task")
	}

	slot.Clear()
	waitDone(t, second)
	if slot.Active() || slot.Current() != nil {
		t.Fatalf("slot should be empty after Clear")
	}
}

func TestJitterStaysInRange(t *testing.T) {
	interval := Jitter(3*time.Second, 5*time.Second)
	for i := 0; i < 500; i++ {
		d := interval()
		if d < 3*time.Second || d >= 5*time.Second {
			t.Fatalf("jittered interval %s out of range", d)
		}
	}
	if got := Jitter(2*time.Second, time.Second)(); got != 2*time.Second {
		t.Fatalf("degenerate jitter should return the lower bound, got %s", got)
	}
}
