package syncer

import (
	"sync"
	"time"

	"github.com/facebookgo/clock"
)

// DefaultCooldown is how long household writes stay blocked after a
// permission failure.
const DefaultCooldown = 30 * time.Second

// WriteGate blocks household scoped writes for a cooldown after a permission
// failure. One gate is shared by all synchronizers of a session.
type WriteGate struct {
	mu       sync.Mutex
	clock    clock.Clock
	cooldown time.Duration
	until    time.Time
}

// NewWriteGate creates a gate. A nil clock uses the wall clock.
func NewWriteGate(cooldown time.Duration, clk clock.Clock) *WriteGate {
	if clk == nil {
		clk = clock.New()
	}
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &WriteGate{clock: clk, cooldown: cooldown}
}

// Blocked reports whether writes are currently blocked.
func (g *WriteGate) Blocked() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.clock.Now().Before(g.until)
}

// Block starts a cooldown. It reports false if one was already running, in
// which case the running cooldown is not extended.
func (g *WriteGate) Block() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.clock.Now()
	if now.Before(g.until) {
		return false
	}
	g.until = now.Add(g.cooldown)
	return true
}

// Until returns the end of the current or last cooldown.
func (g *WriteGate) Until() time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.until
}
