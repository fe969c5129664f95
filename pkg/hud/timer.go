package hud

import (
	"time"

	"github.com/charlie0129/batthud/pkg/clock"
)

// pausableTimer is a one-shot timer that can be paused and later resumed
// with the time that was left when it was paused.
type pausableTimer struct {
	clock clock.Clock
	f     func()

	remaining time.Duration
	deadline  time.Time
	t         clock.Timer
	paused    bool
	done      bool
	gen       uint64
}

// newPausableTimer arms a timer for d. If paused is true the timer starts
// paused and d is kept as the remaining duration.
func newPausableTimer(c clock.Clock, d time.Duration, paused bool, f func()) *pausableTimer {
	p := &pausableTimer{
		clock:     c,
		f:         f,
		remaining: d,
		paused:    paused,
	}
	if !paused {
		p.start()
	}
	return p
}

func (p *pausableTimer) start() {
	p.gen++
	gen := p.gen
	p.deadline = p.clock.Now().Add(p.remaining)
	p.t = p.clock.AfterFunc(p.remaining, func() {
		if p.done || gen != p.gen {
			return
		}
		p.done = true
		p.t = nil
		p.f()
	})
}

// Pause suspends the countdown. It is a no-op if the timer is already
// paused, fired or stopped.
func (p *pausableTimer) Pause() {
	if p.done || p.paused {
		return
	}
	p.remaining = p.deadline.Sub(p.clock.Now())
	if p.remaining < 0 {
		p.remaining = 0
	}
	if p.t != nil {
		p.t.Stop()
		p.t = nil
	}
	p.gen++
	p.paused = true
}

// Resume restarts the countdown with the remaining duration.
func (p *pausableTimer) Resume() {
	if p.done || !p.paused {
		return
	}
	p.paused = false
	p.start()
}

// Stop cancels the timer. Stopping a fired or stopped timer is a no-op.
func (p *pausableTimer) Stop() {
	if p.done {
		return
	}
	p.done = true
	if p.t != nil {
		p.t.Stop()
		p.t = nil
	}
	p.gen++
}

// Remaining returns the time left before the timer fires.
func (p *pausableTimer) Remaining() time.Duration {
	switch {
	case p.done:
		return 0
	case p.paused:
		return p.remaining
	default:
		r := p.deadline.Sub(p.clock.Now())
		if r < 0 {
			return 0
		}
		return r
	}
}

// Active reports whether the timer has neither fired nor been stopped.
func (p *pausableTimer) Active() bool {
	return !p.done
}
