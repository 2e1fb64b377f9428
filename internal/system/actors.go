package system

import (
	"time"

	"github.com/l1jgo/wavecore/internal/component"
	"github.com/l1jgo/wavecore/internal/core/ecs"
	"github.com/l1jgo/wavecore/internal/core/event"
	"github.com/l1jgo/wavecore/internal/pool"
	"github.com/l1jgo/wavecore/internal/template"
	"go.uber.org/zap"
)

const defaultAttackInterval = time.Second

// Despawner returns instances to their pools.
type Despawner interface {
	Despawn(inst *pool.Instance) bool
}

// Actors attaches gameplay components to pooled monsters. It is the
// activation/deactivation hook of every monster pool: activation adds the
// Motion and Monster components, deactivation strips them.
//
// Stats are resolved on the first update after activation, once the spawner
// has assigned destination and tier.
type Actors struct {
	log       *zap.Logger
	bus       *event.Bus
	motion    *ecs.Store[component.Motion]
	monsters  *ecs.Store[component.Monster]
	despawner Despawner
	expCalc   func(base, level int) int

	kills int
	exp   int
}

func NewActors(world *ecs.World, bus *event.Bus, log *zap.Logger) *Actors {
	if log == nil {
		log = zap.NewNop()
	}
	a := &Actors{
		log:      log,
		bus:      bus,
		motion:   ecs.NewStore[component.Motion](),
		monsters: ecs.NewStore[component.Monster](),
	}
	world.Registry().Register(a.motion)
	world.Registry().Register(a.monsters)
	return a
}

// Bind sets where killed monsters are returned. The registry is built with
// Actors as its behavior, so binding happens after both exist.
func (a *Actors) Bind(d Despawner) { a.despawner = d }

// SetExpCalc overrides the exp a killed monster is worth. fn receives the
// tier-adjusted base exp and the monster's level.
func (a *Actors) SetExpCalc(fn func(base, level int) int) { a.expCalc = fn }

func (a *Actors) Activate(inst *pool.Instance) {
	a.motion.Set(inst.ID(), &component.Motion{Inst: inst})
	a.monsters.Set(inst.ID(), &component.Monster{Key: inst.Key().String()})
}

func (a *Actors) Deactivate(inst *pool.Instance) {
	a.motion.Remove(inst.ID())
	a.monsters.Remove(inst.ID())
}

// Alive returns the number of active monsters.
func (a *Actors) Alive() int { return a.monsters.Len() }

// Kills returns monsters killed so far and the exp they were worth.
func (a *Actors) Kills() (count, exp int) { return a.kills, a.exp }

// Monster returns the components of an active monster.
func (a *Actors) Monster(id ecs.EntityID) (*component.Motion, *component.Monster, bool) {
	mo, ok := a.motion.Get(id)
	if !ok {
		return nil, nil, false
	}
	m, ok := a.monsters.Get(id)
	if !ok {
		return nil, nil, false
	}
	if !m.Ready {
		a.prepare(mo, m)
	}
	return mo, m, true
}

// Each visits living monsters in ID order with their stats resolved.
func (a *Actors) Each(fn func(ecs.EntityID, *component.Motion, *component.Monster)) {
	ecs.Each2(a.motion, a.monsters, func(id ecs.EntityID, mo *component.Motion, m *component.Monster) {
		if !m.Ready {
			a.prepare(mo, m)
		}
		if m.Dead {
			return
		}
		fn(id, mo, m)
	})
}

func (a *Actors) prepare(mo *component.Motion, m *component.Monster) {
	tpl := mo.Inst.Template()
	tier := mo.Inst.Tier()
	if tier.HP == 0 && tier.Speed == 0 && tier.Damage == 0 {
		tier = pool.BaseTier(tier.Level)
	}
	var stats template.Stats
	if tpl != nil {
		stats = tpl.Stats
		m.Boss = tpl.Class == template.ClassBoss
	}
	m.Level = tier.Level
	m.MaxHP = stats.HP * tier.HP
	m.HP = m.MaxHP
	m.Damage = stats.Damage * tier.Damage
	m.Exp = stats.Exp + tier.Exp
	if a.expCalc != nil {
		m.Exp = a.expCalc(m.Exp, tier.Level)
	}
	m.AttackInterval = stats.AttackInterval
	if m.AttackInterval <= 0 {
		m.AttackInterval = defaultAttackInterval
	}
	m.AttackTimer = 0
	mo.Speed = stats.Speed * tier.Speed
	mo.Arrived = false
	m.Ready = true
}

// Kill reports a monster's death to its removal subscribers, announces it on
// the bus and returns it to its pool.
func (a *Actors) Kill(id ecs.EntityID) bool {
	mo, m, ok := a.Monster(id)
	if !ok || m.Dead {
		return false
	}
	m.Dead = true
	a.kills++
	a.exp += m.Exp

	inst := mo.Inst
	inst.ReportRemoved()
	if a.bus != nil {
		event.Emit(a.bus, event.EntityRemoved{
			EntityID: id,
			Key:      m.Key,
			Boss:     m.Boss,
		})
	}
	if a.despawner != nil {
		a.despawner.Despawn(inst)
	} else {
		a.log.Warn("killed monster has no pool to return to", zap.Uint64("entity", uint64(id)))
	}
	return true
}
