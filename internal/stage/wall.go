package stage

import (
	"github.com/l1jgo/wavecore/internal/core/event"
	"go.uber.org/zap"
)

// Wall is the defense target the monsters walk to. It emits
// DefenseDestroyed once when its HP reaches zero.
type Wall struct {
	log       *zap.Logger
	bus       *event.Bus
	maxHP     float64
	hp        float64
	destroyed bool
}

func NewWall(bus *event.Bus, hp float64, log *zap.Logger) *Wall {
	if log == nil {
		log = zap.NewNop()
	}
	return &Wall{log: log, bus: bus, maxHP: hp, hp: hp}
}

func (w *Wall) HP() float64     { return w.hp }
func (w *Wall) MaxHP() float64  { return w.maxHP }
func (w *Wall) Destroyed() bool { return w.destroyed }

// Ratio returns remaining HP as a fraction of maximum.
func (w *Wall) Ratio() float64 {
	if w.maxHP <= 0 {
		return 0
	}
	return w.hp / w.maxHP
}

// TakeDamage lowers HP. It reports whether this hit destroyed the wall.
func (w *Wall) TakeDamage(amount float64) bool {
	if w.destroyed || amount <= 0 {
		return false
	}
	w.hp -= amount
	if w.hp > 0 {
		return false
	}
	w.hp = 0
	w.destroyed = true
	w.log.Info("defense target destroyed")
	if w.bus != nil {
		event.Emit(w.bus, event.DefenseDestroyed{})
	}
	return true
}

// Rebuild gives the wall a new maximum HP at full health.
func (w *Wall) Rebuild(hp float64) {
	w.maxHP = hp
	w.Reset()
}

// Reset restores full HP.
func (w *Wall) Reset() {
	w.hp = w.maxHP
	w.destroyed = false
}
