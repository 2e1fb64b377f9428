package system

import (
	"time"

	"github.com/l1jgo/wavecore/internal/component"
	"github.com/l1jgo/wavecore/internal/core/clock"
	"github.com/l1jgo/wavecore/internal/core/ecs"
	coresys "github.com/l1jgo/wavecore/internal/core/system"
)

// DefenseTarget is what monsters attack once they reach their destination.
type DefenseTarget interface {
	TakeDamage(amount float64) bool
	Destroyed() bool
}

// MovementSystem walks monsters to their destination in game time and lets
// the ones that arrived attack the defense target. Phase 3 (PostUpdate).
type MovementSystem struct {
	actors *Actors
	clock  *clock.Clock
	target DefenseTarget
}

func NewMovementSystem(actors *Actors, clk *clock.Clock, target DefenseTarget) *MovementSystem {
	return &MovementSystem{actors: actors, clock: clk, target: target}
}

func (s *MovementSystem) Phase() coresys.Phase { return coresys.PhasePostUpdate }

func (s *MovementSystem) Update(dt time.Duration) {
	step := time.Duration(float64(dt) * s.clock.Scale())
	if step <= 0 {
		return
	}
	s.actors.Each(func(_ ecs.EntityID, mo *component.Motion, m *component.Monster) {
		if !mo.Arrived {
			s.walk(mo, step)
			return
		}
		s.attack(m, step)
	})
}

func (s *MovementSystem) walk(mo *component.Motion, step time.Duration) {
	inst := mo.Inst
	pos, dest := inst.Position(), inst.Destination()
	d := dest.Sub(pos)
	dist := d.Len()
	move := mo.Speed * step.Seconds()
	if move >= dist {
		inst.SetPosition(dest)
		mo.Arrived = true
		return
	}
	if move <= 0 {
		return
	}
	inst.SetPosition(pos.Add(d.Scale(move / dist)))
}

func (s *MovementSystem) attack(m *component.Monster, step time.Duration) {
	if s.target == nil || s.target.Destroyed() {
		return
	}
	m.AttackTimer -= step
	if m.AttackTimer > 0 {
		return
	}
	s.target.TakeDamage(m.Damage)
	m.AttackTimer += m.AttackInterval
	if m.AttackTimer < 0 {
		m.AttackTimer = 0
	}
}
