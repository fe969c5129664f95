package daemon

import (
	"testing"
	"time"

	"github.com/charlie0129/batthud/pkg/clock"
)

type queue struct {
	pending []func()
}

func (q *queue) post(f func()) bool {
	q.pending = append(q.pending, f)
	return true
}

func (q *queue) drain() {
	for len(q.pending) > 0 {
		f := q.pending[0]
		q.pending = q.pending[1:]
		f()
	}
}

func TestLoopClockRunsCallbacksOnLoop(t *testing.T) {
	base := clock.NewFake(time.Unix(1700000000, 0))
	q := &queue{}
	c := &loopClock{base: base, post: q.post}

	fired := 0
	c.AfterFunc(time.Second, func() { fired++ })

	base.Advance(time.Second)
	if fired != 0 {
		t.Fatalf("callback ran on the timer goroutine")
	}
	if len(q.pending) != 1 {
		t.Fatalf("expected 1 posted callback, got %d", len(q.pending))
	}

	q.drain()
	if fired != 1 {
		t.Fatalf("expected callback to run once, ran %d times", fired)
	}
}

func TestLoopClockStopDropsPostedCallback(t *testing.T) {
	base := clock.NewFake(time.Unix(1700000000, 0))
	q := &queue{}
	c := &loopClock{base: base, post: q.post}

	fired := false
	timer := c.AfterFunc(time.Second, func() { fired = true })

	// The base timer fired and queued the callback, then the loop stopped
	// the timer before getting to it.
	base.Advance(time.Second)
	if !timer.Stop() {
		t.Fatalf("Stop() of a timer whose callback has not run should report true")
	}
	q.drain()

	if fired {
		t.Fatalf("superseded callback ran")
	}
	if timer.Stop() {
		t.Fatalf("second Stop() should be a no-op")
	}
}

func TestLoopClockStopAfterFire(t *testing.T) {
	base := clock.NewFake(time.Unix(1700000000, 0))
	q := &queue{}
	c := &loopClock{base: base, post: q.post}

	timer := c.AfterFunc(time.Second, func() {})
	base.Advance(time.Second)
	q.drain()

	if timer.Stop() {
		t.Fatalf("Stop() after fire should report false")
	}
	if base.Pending() != 0 {
		t.Fatalf("expected no pending base timers, got %d", base.Pending())
	}
}

func TestLoopClockNow(t *testing.T) {
	start := time.Unix(1700000000, 0)
	base := clock.NewFake(start)
	c := &loopClock{base: base, post: (&queue{}).post}

	base.Advance(time.Minute)
	if !c.Now().Equal(start.Add(time.Minute)) {
		t.Fatalf("Now() = %s, want %s", c.Now(), start.Add(time.Minute))
	}
}
