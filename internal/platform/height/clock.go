// Package height supplies the logical clock the registry stamps writes with when the
// caller does not pass its own height.
package height

import (
	"sync/atomic"
	"time"

	id "citadel/pkg/domain"
)

// Clock derives height from wall time: one tick per interval since genesis. The
// reported height never decreases, even if the wall clock steps backwards.
type Clock struct {
	genesis  time.Time
	interval time.Duration
	now      func() time.Time
	last     atomic.Uint64
}

func NewClock(genesis time.Time, interval time.Duration) *Clock {
	if interval <= 0 {
		interval = time.Second
	}
	return &Clock{genesis: genesis, interval: interval, now: time.Now}
}

func (c *Clock) Current() id.Height {
	var h uint64
	if elapsed := c.now().Sub(c.genesis); elapsed > 0 {
		h = uint64(elapsed / c.interval)
	}
	for {
		last := c.last.Load()
		if h <= last {
			return id.Height(last)
		}
		if c.last.CompareAndSwap(last, h) {
			return id.Height(h)
		}
	}
}

// Observe raises the clock to at least h, e.g. when a request supplied a higher
// height than the local estimate.
func (c *Clock) Observe(h id.Height) {
	for {
		last := c.last.Load()
		if uint64(h) <= last || c.last.CompareAndSwap(last, uint64(h)) {
			return
		}
	}
}
