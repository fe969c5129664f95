package clock

import (
	"testing"
	"time"
)

func TestFakeAdvanceFiresInOrder(t *testing.T) {
	c := NewFake(time.Unix(0, 0))

	var fired []int
	c.AfterFunc(3*time.Second, func() { fired = append(fired, 3) })
	c.AfterFunc(1*time.Second, func() { fired = append(fired, 1) })
	c.AfterFunc(2*time.Second, func() { fired = append(fired, 2) })

	c.Advance(2 * time.Second)
	if len(fired) != 2 || fired[0] != 1 || fired[1] != 2 {
		t.Fatalf("unexpected fire order after 2s: %v", fired)
	}

	c.Advance(time.Second)
	if len(fired) != 3 || fired[2] != 3 {
		t.Fatalf("unexpected fire order after 3s: %v", fired)
	}
	if c.Pending() != 0 {
		t.Fatalf("expected no pending timers, got %d", c.Pending())
	}
}

func TestFakeStopIsIdempotent(t *testing.T) {
	c := NewFake(time.Unix(0, 0))

	called := false
	tm := c.AfterFunc(time.Second, func() { called = true })

	if !tm.Stop() {
		t.Fatalf("first Stop should report true")
	}
	if tm.Stop() {
		t.Fatalf("second Stop should report false")
	}

	c.Advance(2 * time.Second)
	if called {
		t.Fatalf("stopped timer fired")
	}
}

func TestFakeStopAfterFire(t *testing.T) {
	c := NewFake(time.Unix(0, 0))

	tm := c.AfterFunc(time.Second, func() {})
	c.Advance(time.Second)

	if tm.Stop() {
		t.Fatalf("Stop after fire should report false")
	}
}

func TestFakeNestedTimer(t *testing.T) {
	c := NewFake(time.Unix(0, 0))

	var at time.Time
	c.AfterFunc(time.Second, func() {
		c.AfterFunc(time.Second, func() { at = c.Now() })
	})

	c.Advance(5 * time.Second)
	if want := time.Unix(2, 0); !at.Equal(want) {
		t.Fatalf("nested timer fired at %v, want %v", at, want)
	}
	if want := time.Unix(5, 0); !c.Now().Equal(want) {
		t.Fatalf("clock at %v, want %v", c.Now(), want)
	}
}
