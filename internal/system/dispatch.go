package system

import (
	"time"

	"github.com/l1jgo/wavecore/internal/core/event"
	coresys "github.com/l1jgo/wavecore/internal/core/system"
)

// EventDispatchSystem delivers last tick's events, including template loads
// posted from loader goroutines, on the game loop. Phase 1 (PreUpdate).
type EventDispatchSystem struct {
	bus *event.Bus
}

func NewEventDispatchSystem(bus *event.Bus) *EventDispatchSystem {
	return &EventDispatchSystem{bus: bus}
}

func (s *EventDispatchSystem) Phase() coresys.Phase { return coresys.PhasePreUpdate }

func (s *EventDispatchSystem) Update(_ time.Duration) {
	s.bus.SwapBuffers()
	s.bus.DispatchAll()
}
