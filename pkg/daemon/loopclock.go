package daemon

import (
	"time"

	"github.com/charlie0129/batthud/pkg/clock"
)

// loopClock arms timers on a base clock but runs their callbacks on the
// engine loop. Stop and the callbacks both run on the loop, so the stopped
// flag needs no lock. post must not drop callbacks, or the timer's owner
// would wait forever for an expiry that never runs.
type loopClock struct {
	base clock.Clock
	post func(func()) bool
}

type loopTimer struct {
	inner   clock.Timer
	stopped bool
	fired   bool
}

func (c *loopClock) Now() time.Time {
	return c.base.Now()
}

func (c *loopClock) AfterFunc(d time.Duration, f func()) clock.Timer {
	t := &loopTimer{}
	t.inner = c.base.AfterFunc(d, func() {
		c.post(func() {
			if t.stopped || t.fired {
				return
			}
			t.fired = true
			f()
		})
	})
	return t
}

// Stop must be called on the loop.
func (t *loopTimer) Stop() bool {
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	t.inner.Stop()
	return true
}
