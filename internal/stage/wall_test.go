package stage

import (
	"testing"

	"github.com/l1jgo/wavecore/internal/core/event"
)

func TestWallDestroyedOnce(t *testing.T) {
	bus := event.NewBus()
	destroyed := 0
	event.Subscribe(bus, func(event.DefenseDestroyed) { destroyed++ })

	w := NewWall(bus, 100, nil)
	if w.TakeDamage(60) {
		t.Fatalf("Expected wall to survive 60 damage")
	}
	if w.Ratio() != 0.4 {
		t.Errorf("Expected ratio 0.4, got %v", w.Ratio())
	}
	if !w.TakeDamage(50) {
		t.Fatalf("Expected second hit to destroy the wall")
	}
	w.TakeDamage(10)
	bus.SwapBuffers()
	bus.DispatchAll()
	if destroyed != 1 || w.HP() != 0 {
		t.Errorf("Expected one DefenseDestroyed and 0 HP, got %d/%v", destroyed, w.HP())
	}

	w.Reset()
	if w.Destroyed() || w.Ratio() != 1 {
		t.Errorf("Expected a full wall after reset")
	}
}
