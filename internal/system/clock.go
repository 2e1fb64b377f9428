package system

import (
	"time"

	"github.com/l1jgo/wavecore/internal/core/clock"
	coresys "github.com/l1jgo/wavecore/internal/core/system"
)

// ClockSystem advances game time by the tick's wall time scaled by the
// clock's current scale. Phase 0 (Input).
type ClockSystem struct {
	clock *clock.Clock
	step  time.Duration
}

func NewClockSystem(clk *clock.Clock) *ClockSystem {
	return &ClockSystem{clock: clk}
}

func (s *ClockSystem) Phase() coresys.Phase { return coresys.PhaseInput }

func (s *ClockSystem) Update(dt time.Duration) {
	s.step = s.clock.Advance(dt)
}

// Step returns the game time added by the current tick.
func (s *ClockSystem) Step() time.Duration { return s.step }
