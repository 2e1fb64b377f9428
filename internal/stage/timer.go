package stage

import (
	"time"

	"github.com/l1jgo/wavecore/internal/core/clock"
	"github.com/l1jgo/wavecore/internal/core/event"
	coresys "github.com/l1jgo/wavecore/internal/core/system"
)

// Timer counts the campaign time limit down on the game clock and emits
// TimeExpired once. A zero limit never expires. Phase 2 (Update).
type Timer struct {
	clock   *clock.Clock
	bus     *event.Bus
	limit   time.Duration
	start   time.Duration
	running bool
	fired   bool
}

func NewTimer(clk *clock.Clock, bus *event.Bus, limit time.Duration) *Timer {
	return &Timer{clock: clk, bus: bus, limit: limit}
}

func (t *Timer) Phase() coresys.Phase { return coresys.PhaseUpdate }

// Start begins the countdown from the current game time.
func (t *Timer) Start() {
	t.start = t.clock.Now()
	t.running = true
	t.fired = false
}

// Stop halts the countdown without firing.
func (t *Timer) Stop() { t.running = false }

// SetLimit changes the limit of the next countdown.
func (t *Timer) SetLimit(limit time.Duration) { t.limit = limit }

func (t *Timer) Limit() time.Duration { return t.limit }
func (t *Timer) Expired() bool        { return t.fired }

// Elapsed returns game time since Start.
func (t *Timer) Elapsed() time.Duration {
	if !t.running && !t.fired {
		return 0
	}
	return t.clock.Now() - t.start
}

// Remaining returns the time left, never negative.
func (t *Timer) Remaining() time.Duration {
	if t.limit <= 0 {
		return 0
	}
	left := t.limit - t.Elapsed()
	if left < 0 {
		return 0
	}
	return left
}

func (t *Timer) Update(_ time.Duration) {
	if !t.running || t.fired || t.limit <= 0 {
		return
	}
	if t.clock.Now()-t.start >= t.limit {
		t.fired = true
		t.running = false
		event.Emit(t.bus, event.TimeExpired{})
	}
}
