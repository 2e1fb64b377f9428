package pool

import (
	"errors"
	"fmt"

	"github.com/l1jgo/wavecore/internal/core/ecs"
	"github.com/l1jgo/wavecore/internal/template"
	"go.uber.org/zap"
)

var (
	ErrTemplateNotLoaded = errors.New("template not loaded")
	ErrPoolTornDown      = errors.New("pool torn down")
)

// ResourcePool recycles instances of a single key built from one template
// handle.
//
// Every instance is in exactly one of the free list or the active set.
// The active set is kept in checkout order; its first element is the
// overflow instance handed out again when the pool is at maximum capacity.
type ResourcePool struct {
	key        Key
	handle     *template.Handle
	world      *ecs.World
	behavior   Behavior
	log        *zap.Logger
	defaultCap int
	maxCap     int

	free        []*Instance
	active      []*Instance
	constructed int
	overflows   int
	tornDown    bool
}

func newResourcePool(key Key, h *template.Handle, world *ecs.World, b Behavior, defaultCap, maxCap int, log *zap.Logger) *ResourcePool {
	return &ResourcePool{
		key:        key,
		handle:     h,
		world:      world,
		behavior:   b,
		log:        log.With(zap.String("pool", key.String())),
		defaultCap: defaultCap,
		maxCap:     maxCap,
		free:       make([]*Instance, 0, defaultCap),
		active:     make([]*Instance, 0, defaultCap),
	}
}

func (p *ResourcePool) Key() Key                 { return p.key }
func (p *ResourcePool) Handle() *template.Handle { return p.handle }
func (p *ResourcePool) DefaultCapacity() int     { return p.defaultCap }
func (p *ResourcePool) MaxCapacity() int         { return p.maxCap }
func (p *ResourcePool) ActiveCount() int         { return len(p.active) }
func (p *ResourcePool) FreeCount() int           { return len(p.free) }
func (p *ResourcePool) Constructed() int         { return p.constructed }
func (p *ResourcePool) Overflows() int           { return p.overflows }
func (p *ResourcePool) TornDown() bool           { return p.tornDown }

// Size returns the number of live instances owned by the pool.
func (p *ResourcePool) Size() int { return len(p.free) + len(p.active) }

// Active returns a snapshot of the active set in checkout order.
func (p *ResourcePool) Active() []*Instance {
	return append([]*Instance(nil), p.active...)
}

func (p *ResourcePool) usable() error {
	if p.tornDown {
		return fmt.Errorf("%s: %w", p.key, ErrPoolTornDown)
	}
	if !p.handle.Loaded() {
		return fmt.Errorf("%s: %w (status %s)", p.key, ErrTemplateNotLoaded, p.handle.Status())
	}
	return nil
}

// create constructs one instance from the template. The caller places it.
func (p *ResourcePool) create() (*Instance, error) {
	if err := p.usable(); err != nil {
		return nil, err
	}
	inst := &Instance{
		id:     p.world.CreateEntity(),
		key:    p.key,
		handle: p.handle,
		owner:  p,
		state:  stateFree,
	}
	p.handle.Retain()
	p.constructed++
	return inst, nil
}

// Checkout hands out an instance. At maximum capacity it returns the first
// active instance instead of failing, so callers always receive an instance
// once the template is loaded.
func (p *ResourcePool) Checkout() (*Instance, error) {
	if err := p.usable(); err != nil {
		return nil, err
	}

	var inst *Instance
	switch {
	case len(p.free) > 0:
		n := len(p.free) - 1
		inst = p.free[n]
		p.free[n] = nil
		p.free = p.free[:n]
	case p.Size() < p.maxCap:
		var err error
		if inst, err = p.create(); err != nil {
			return nil, err
		}
		p.log.Debug("pool grew past warm-up",
			zap.Int("active", len(p.active)),
			zap.Int("constructed", p.constructed))
	default:
		p.overflows++
		inst = p.active[0]
		p.log.Warn("pool at capacity, reusing first active instance",
			zap.Int("max", p.maxCap),
			zap.Uint64("entity", uint64(inst.id)))
		inst.spawns++
		return inst, nil
	}

	inst.state = stateActive
	inst.spawns++
	p.active = append(p.active, inst)
	return inst, nil
}

// Checkin returns an active instance to the free list after running its
// deactivation hook. Foreign or already inactive instances are ignored.
func (p *ResourcePool) Checkin(inst *Instance) bool {
	if inst == nil || inst.owner != p {
		p.log.Warn("checkin of foreign instance ignored")
		return false
	}
	if inst.state != stateActive {
		p.log.Warn("checkin of inactive instance ignored",
			zap.Uint64("entity", uint64(inst.id)))
		return false
	}
	idx := -1
	for n, a := range p.active {
		if a == inst {
			idx = n
			break
		}
	}
	if idx < 0 {
		p.log.Warn("active instance missing from active set",
			zap.Uint64("entity", uint64(inst.id)))
		return false
	}

	if p.behavior != nil {
		p.behavior.Deactivate(inst)
	}
	p.active = append(p.active[:idx], p.active[idx+1:]...)
	inst.state = stateFree
	inst.reset()
	p.free = append(p.free, inst)
	return true
}

// WarmUp constructs instances until at least n sit in the free list,
// bounded by maximum capacity. It returns how many were constructed.
func (p *ResourcePool) WarmUp(n int) (int, error) {
	if err := p.usable(); err != nil {
		return 0, err
	}
	target := n
	if room := p.maxCap - len(p.active); target > room {
		p.log.Warn("warm-up clamped to capacity",
			zap.Int("requested", n),
			zap.Int("max", p.maxCap))
		target = room
	}
	made := 0
	for len(p.free) < target {
		inst, err := p.create()
		if err != nil {
			return made, err
		}
		p.free = append(p.free, inst)
		made++
	}
	return made, nil
}

// TeardownAll force-checks-in every active instance, destroys all
// instances, and drops the pool's template reference. The template is
// released once the last instance reference is gone.
func (p *ResourcePool) TeardownAll() {
	if p.tornDown {
		return
	}
	for len(p.active) > 0 {
		if !p.Checkin(p.active[0]) {
			// Never loop forever on a corrupted active set.
			p.active = p.active[1:]
		}
	}
	for _, inst := range p.free {
		p.destroy(inst)
	}
	destroyed := len(p.free)
	p.free = nil
	p.tornDown = true
	p.handle.Drop()
	p.log.Debug("pool torn down", zap.Int("destroyed", destroyed))
}

func (p *ResourcePool) destroy(inst *Instance) {
	inst.state = stateDestroyed
	p.world.MarkForDestruction(inst.id)
	p.handle.Drop()
}
