// Package sink holds wrappers shared by audit sinks.
package sink

import (
	"context"
	"errors"
	"sync"
	"time"

	audit "citadel/pkg/platform/audit"
)

// ErrCircuitOpen is returned while a guarded sink is skipping publishes.
var ErrCircuitOpen = errors.New("audit sink circuit open")

// Guarded stops calling a failing sink for a cooldown after threshold consecutive
// failures, so a broker outage does not add latency to every registry write.
type Guarded struct {
	next audit.Sink

	mu        sync.Mutex
	threshold int
	cooldown  time.Duration
	failures  int
	openUntil time.Time
	now       func() time.Time
}

func NewGuarded(next audit.Sink, threshold int, cooldown time.Duration) *Guarded {
	if threshold <= 0 {
		threshold = 5
	}
	if cooldown <= 0 {
		cooldown = time.Minute
	}
	return &Guarded{next: next, threshold: threshold, cooldown: cooldown, now: time.Now}
}

func (g *Guarded) Publish(ctx context.Context, event audit.Event) error {
	if !g.allow() {
		return ErrCircuitOpen
	}
	err := g.next.Publish(ctx, event)

	g.mu.Lock()
	defer g.mu.Unlock()
	if err != nil {
		g.failures++
		if g.failures >= g.threshold {
			g.openUntil = g.now().Add(g.cooldown)
		}
		return err
	}
	g.failures = 0
	g.openUntil = time.Time{}
	return nil
}

// IsOpen reports whether publishes are currently being skipped.
func (g *Guarded) IsOpen() bool {
	return !g.allow()
}

// allow lets one trial call through once the cooldown has passed (half-open).
func (g *Guarded) allow() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.openUntil.IsZero() {
		return true
	}
	if g.now().After(g.openUntil) {
		g.openUntil = time.Time{}
		g.failures = g.threshold - 1
		return true
	}
	return false
}
