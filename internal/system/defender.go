package system

import (
	"math"
	"time"

	"github.com/l1jgo/wavecore/internal/component"
	"github.com/l1jgo/wavecore/internal/core/clock"
	"github.com/l1jgo/wavecore/internal/core/ecs"
	coresys "github.com/l1jgo/wavecore/internal/core/system"
)

// DamageCalc turns defender dps into damage for one tick. The scripting
// engine implements it.
type DamageCalc interface {
	CalcDefenseDamage(dps, seconds float64, boss bool) float64
}

// DefenderSystem stands in for the towers: each tick it deals dps damage to
// the monster closest to its destination and kills it at zero HP.
// Phase 3 (PostUpdate), after movement.
type DefenderSystem struct {
	actors *Actors
	clock  *clock.Clock
	dps    float64
	calc   DamageCalc
}

func NewDefenderSystem(actors *Actors, clk *clock.Clock, dps float64, calc DamageCalc) *DefenderSystem {
	return &DefenderSystem{actors: actors, clock: clk, dps: dps, calc: calc}
}

func (s *DefenderSystem) Phase() coresys.Phase { return coresys.PhasePostUpdate }

func (s *DefenderSystem) Update(dt time.Duration) {
	step := time.Duration(float64(dt) * s.clock.Scale())
	if step <= 0 || s.dps <= 0 {
		return
	}

	var (
		target ecs.EntityID
		mon    *component.Monster
		best   = math.Inf(1)
	)
	s.actors.Each(func(id ecs.EntityID, mo *component.Motion, m *component.Monster) {
		d := mo.Inst.Position().Dist(mo.Inst.Destination())
		if d < best {
			best, target, mon = d, id, m
		}
	})
	if mon == nil {
		return
	}

	dmg := s.dps * step.Seconds()
	if s.calc != nil {
		dmg = s.calc.CalcDefenseDamage(s.dps, step.Seconds(), mon.Boss)
	}
	mon.HP -= dmg
	if mon.HP <= 0 {
		s.actors.Kill(target)
	}
}
