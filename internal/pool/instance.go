package pool

import (
	"math"

	"github.com/l1jgo/wavecore/internal/core/ecs"
	"github.com/l1jgo/wavecore/internal/template"
)

// Vec3 is a world position.
type Vec3 struct {
	X, Y, Z float64
}

func (v Vec3) Sub(o Vec3) Vec3      { return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }
func (v Vec3) Add(o Vec3) Vec3      { return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }
func (v Vec3) Scale(f float64) Vec3 { return Vec3{v.X * f, v.Y * f, v.Z * f} }
func (v Vec3) Len() float64         { return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z) }
func (v Vec3) Dist(o Vec3) float64  { return v.Sub(o).Len() }

// Tier is the level scaling applied to a spawn's base stats.
type Tier struct {
	Level  int
	HP     float64
	Speed  float64
	Damage float64
	Exp    int
}

// BaseTier leaves template stats unchanged.
func BaseTier(level int) Tier {
	return Tier{Level: level, HP: 1, Speed: 1, Damage: 1}
}

// Behavior receives the activation and deactivation hooks of every pooled
// instance.
type Behavior interface {
	Activate(inst *Instance)
	Deactivate(inst *Instance)
}

type instanceState uint8

const (
	stateFree instanceState = iota
	stateActive
	stateDestroyed
)

// Instance is one pooled entity.
type Instance struct {
	id          ecs.EntityID
	key         Key
	handle      *template.Handle
	owner       *ResourcePool
	state       instanceState
	position    Vec3
	orientation float64 // heading in radians
	destination Vec3
	tier        Tier
	spawns      int
	cycle       int

	nextListener int
	listeners    []removalListener
}

type removalListener struct {
	id int
	fn func(*Instance)
}

func (i *Instance) ID() ecs.EntityID { return i.id }
func (i *Instance) Key() Key         { return i.key }
func (i *Instance) Active() bool     { return i.state == stateActive }

// Template returns the blueprint the instance was built from.
func (i *Instance) Template() *template.Template { return i.handle.Template() }

func (i *Instance) Position() Vec3       { return i.position }
func (i *Instance) Orientation() float64 { return i.orientation }
func (i *Instance) Destination() Vec3    { return i.destination }
func (i *Instance) Tier() Tier           { return i.tier }

// Spawns counts how many times the instance has been handed out.
func (i *Instance) Spawns() int { return i.spawns }

// Cycle counts returns to the free list. Two handouts sharing a cycle mean
// the instance stayed active in between, which only overflow reuse does.
func (i *Instance) Cycle() int { return i.cycle }

func (i *Instance) SetPosition(p Vec3)       { i.position = p }
func (i *Instance) SetOrientation(o float64) { i.orientation = o }
func (i *Instance) SetDestination(d Vec3)    { i.destination = d }
func (i *Instance) SetTier(t Tier)           { i.tier = t }

// OnRemoved subscribes to the instance's death/removal event. The returned
// function unsubscribes. Listeners are cleared when the instance is checked
// back into its pool so a recycled instance never notifies a previous owner.
func (i *Instance) OnRemoved(fn func(*Instance)) (cancel func()) {
	i.nextListener++
	id := i.nextListener
	i.listeners = append(i.listeners, removalListener{id: id, fn: fn})
	return func() {
		for n, l := range i.listeners {
			if l.id == id {
				i.listeners = append(i.listeners[:n:n], i.listeners[n+1:]...)
				return
			}
		}
	}
}

// Listeners returns the number of removal subscribers.
func (i *Instance) Listeners() int { return len(i.listeners) }

// ReportRemoved raises the removal event. Inactive instances have nothing to
// report.
func (i *Instance) ReportRemoved() bool {
	if i.state != stateActive {
		return false
	}
	ls := append([]removalListener(nil), i.listeners...)
	for _, l := range ls {
		l.fn(i)
	}
	return true
}

func (i *Instance) reset() {
	i.cycle++
	i.listeners = i.listeners[:0]
	i.position = Vec3{}
	i.orientation = 0
	i.destination = Vec3{}
	i.tier = Tier{}
}
