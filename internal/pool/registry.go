package pool

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/l1jgo/wavecore/internal/core/ecs"
	"github.com/l1jgo/wavecore/internal/core/event"
	"github.com/l1jgo/wavecore/internal/template"
	"go.uber.org/zap"
)

var (
	ErrPoolNotFound   = errors.New("pool not registered")
	ErrPoolExists     = errors.New("pool already registered")
	ErrInvalidKey     = errors.New("invalid pool key")
	ErrInvalidCap     = errors.New("invalid pool capacity")
	ErrRegistryClosed = errors.New("registry cleared while loading")
)

// templateLoaded carries a finished load from a loader goroutine back onto
// the game loop.
type templateLoaded struct {
	key    Key
	handle *template.Handle
	tpl    *template.Template
	err    error
}

type pendingLoad struct {
	handle     *template.Handle
	future     *Future
	defaultCap int
	maxCap     int
}

// Registry owns every ResourcePool, in both keyspaces, and is the sole
// owner of template handles. All methods run on the game loop.
type Registry struct {
	log      *zap.Logger
	bus      *event.Bus
	world    *ecs.World
	loader   template.Loader
	behavior Behavior

	pools   map[Key]*ResourcePool
	pending map[Key]*pendingLoad
	sub     event.Subscription
}

// Option configures a Registry.
type Option func(*Registry)

// WithBehavior installs the activation/deactivation hooks for every
// instance the registry constructs.
func WithBehavior(b Behavior) Option {
	return func(r *Registry) { r.behavior = b }
}

func NewRegistry(bus *event.Bus, world *ecs.World, loader template.Loader, log *zap.Logger, opts ...Option) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	r := &Registry{
		log:     log,
		bus:     bus,
		world:   world,
		loader:  loader,
		pools:   make(map[Key]*ResourcePool),
		pending: make(map[Key]*pendingLoad),
	}
	for _, o := range opts {
		o(r)
	}
	r.sub = event.Subscribe(bus, r.onTemplateLoaded)
	return r
}

// Close detaches the registry from the bus after clearing every pool.
func (r *Registry) Close() {
	r.ClearAll()
	r.sub.Cancel()
}

func checkCaps(defaultCap, maxCap int) (int, error) {
	if maxCap <= 0 {
		return 0, fmt.Errorf("%w: max %d", ErrInvalidCap, maxCap)
	}
	if defaultCap < 0 {
		defaultCap = 0
	}
	if defaultCap > maxCap {
		defaultCap = maxCap
	}
	return defaultCap, nil
}

// CreatePoolAsync registers a pool for key and starts loading its template.
// The future resolves on the game loop once the template is loaded and the
// pool is usable, or with the load error.
//
// Creating a pool for a key that already has one, or one still loading,
// logs a warning and returns a future for the existing pool.
func (r *Registry) CreatePoolAsync(ctx context.Context, key Key, source string, defaultCap, maxCap int) *Future {
	if !key.Valid() {
		r.log.Error("create pool with invalid key", zap.String("key", key.String()))
		return resolvedFuture(key, ErrInvalidKey)
	}
	if _, ok := r.pools[key]; ok {
		r.log.Warn("create pool ignored", zap.String("key", key.String()), zap.Error(ErrPoolExists))
		return resolvedFuture(key, nil)
	}
	if p, ok := r.pending[key]; ok {
		r.log.Warn("create pool ignored, still loading", zap.String("key", key.String()), zap.Error(ErrPoolExists))
		return p.future
	}
	defaultCap, err := checkCaps(defaultCap, maxCap)
	if err != nil {
		r.log.Error("create pool", zap.String("key", key.String()), zap.Error(err))
		return resolvedFuture(key, err)
	}

	h := template.NewHandle(key.String(), source, r.loader, r.log)
	fut := newFuture(key)
	r.pending[key] = &pendingLoad{handle: h, future: fut, defaultCap: defaultCap, maxCap: maxCap}

	bus, loader := r.bus, r.loader
	go func() {
		tpl, err := loader.Load(ctx, source)
		event.Post(bus, templateLoaded{key: key, handle: h, tpl: tpl, err: err})
	}()
	return fut
}

// onTemplateLoaded runs on the game loop when a posted load result is
// dispatched.
func (r *Registry) onTemplateLoaded(ev templateLoaded) {
	p, ok := r.pending[ev.key]
	if !ok || p.handle != ev.handle {
		// The registry was cleared while this load was in flight.
		if ev.tpl != nil {
			r.loader.Release(ev.tpl)
		}
		r.log.Debug("discarding stale template load", zap.String("key", ev.key.String()))
		return
	}
	delete(r.pending, ev.key)

	if ev.err != nil {
		_ = p.handle.Fail(ev.err)
		p.handle.Drop()
		r.log.Error("template load failed",
			zap.String("key", ev.key.String()),
			zap.String("source", p.handle.Source()),
			zap.Error(ev.err))
		p.future.resolve(fmt.Errorf("load %s: %w", ev.key, ev.err))
		return
	}
	if err := p.handle.Resolve(ev.tpl); err != nil {
		p.handle.Drop()
		r.log.Error("template resolve failed", zap.String("key", ev.key.String()), zap.Error(err))
		p.future.resolve(err)
		return
	}
	r.pools[ev.key] = newResourcePool(ev.key, p.handle, r.world, r.behavior, p.defaultCap, p.maxCap, r.log)
	r.log.Info("pool created",
		zap.String("key", ev.key.String()),
		zap.String("template", ev.tpl.Name),
		zap.Int("default", p.defaultCap),
		zap.Int("max", p.maxCap))
	p.future.resolve(nil)
}

// CreatePool registers a pool for an already loaded template. The template
// is not returned to the loader on teardown.
func (r *Registry) CreatePool(key Key, tpl *template.Template, defaultCap, maxCap int) error {
	if !key.Valid() {
		return ErrInvalidKey
	}
	if tpl == nil {
		r.log.Error("create pool without template", zap.String("key", key.String()))
		return fmt.Errorf("%s: %w", key, template.ErrNotPending)
	}
	if _, ok := r.pools[key]; ok {
		r.log.Warn("create pool ignored", zap.String("key", key.String()), zap.Error(ErrPoolExists))
		return nil
	}
	if _, ok := r.pending[key]; ok {
		r.log.Warn("create pool ignored, still loading", zap.String("key", key.String()), zap.Error(ErrPoolExists))
		return nil
	}
	defaultCap, err := checkCaps(defaultCap, maxCap)
	if err != nil {
		return err
	}
	h := template.NewHandle(key.String(), tpl.Source, nil, r.log)
	if err := h.Resolve(tpl); err != nil {
		return err
	}
	r.pools[key] = newResourcePool(key, h, r.world, r.behavior, defaultCap, maxCap, r.log)
	return nil
}

func (r *Registry) HasPool(key Key) bool {
	_, ok := r.pools[key]
	return ok
}

// Loading reports whether key has a template load in flight.
func (r *Registry) Loading(key Key) bool {
	_, ok := r.pending[key]
	return ok
}

// Pool returns the pool for key, or nil.
func (r *Registry) Pool(key Key) *ResourcePool {
	return r.pools[key]
}

// Keys returns registered keys in a stable order.
func (r *Registry) Keys() []Key {
	keys := make([]Key, 0, len(r.pools))
	for k := range r.pools {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Space != keys[j].Space {
			return keys[i].Space < keys[j].Space
		}
		return keys[i].Name < keys[j].Name
	})
	return keys
}

// WarmUp pre-constructs n instances of key.
func (r *Registry) WarmUp(key Key, n int) error {
	p, ok := r.pools[key]
	if !ok {
		r.log.Warn("warm-up for unregistered pool", zap.String("key", key.String()))
		return fmt.Errorf("%s: %w", key, ErrPoolNotFound)
	}
	made, err := p.WarmUp(n)
	if err != nil {
		r.log.Error("warm-up failed", zap.String("key", key.String()), zap.Error(err))
		return err
	}
	r.log.Debug("pool warmed",
		zap.String("key", key.String()),
		zap.Int("requested", n),
		zap.Int("constructed", made))
	return nil
}

// Spawn checks out an instance of key, places it and runs its activation
// hook. An unregistered key is a configuration error: it is logged and nil
// is returned.
func (r *Registry) Spawn(key Key, position Vec3, orientation float64) *Instance {
	p, ok := r.pools[key]
	if !ok {
		r.log.Error("spawn from unregistered pool", zap.String("key", key.String()))
		return nil
	}
	inst, err := p.Checkout()
	if err != nil {
		r.log.Error("spawn failed", zap.String("key", key.String()), zap.Error(err))
		return nil
	}
	inst.position = position
	inst.orientation = orientation
	if r.behavior != nil {
		r.behavior.Activate(inst)
	}
	return inst
}

// Despawn checks inst back into the pool recorded on it.
func (r *Registry) Despawn(inst *Instance) bool {
	if inst == nil {
		return false
	}
	p, ok := r.pools[inst.key]
	if !ok || p != inst.owner {
		r.log.Warn("despawn of instance without a live pool",
			zap.String("key", inst.key.String()),
			zap.Uint64("entity", uint64(inst.id)))
		return false
	}
	return p.Checkin(inst)
}

// DespawnAll checks in every active instance of key and returns the count.
func (r *Registry) DespawnAll(key Key) int {
	p, ok := r.pools[key]
	if !ok {
		r.log.Warn("despawn all for unregistered pool", zap.String("key", key.String()))
		return 0
	}
	n := 0
	for _, inst := range p.Active() {
		if p.Checkin(inst) {
			n++
		}
	}
	return n
}

// ActiveCount returns the number of active instances of key.
func (r *Registry) ActiveCount(key Key) int {
	if p, ok := r.pools[key]; ok {
		return p.ActiveCount()
	}
	return 0
}

// ClearPool tears down the pool for key: active instances are checked in,
// every instance is destroyed and the template reference dropped. A load
// still in flight for key is abandoned. It reports whether key had a pool or
// a pending load.
func (r *Registry) ClearPool(key Key) bool {
	if !r.clear(key) {
		r.log.Warn("clear of unregistered pool", zap.String("key", key.String()))
		return false
	}
	r.log.Info("pool cleared", zap.String("key", key.String()))
	return true
}

// ClearSpace tears down every pool and pending load in one keyspace and
// returns how many keys were cleared. Pools of the other keyspace are
// untouched.
func (r *Registry) ClearSpace(space Space) int {
	keys := make([]Key, 0, len(r.pools)+len(r.pending))
	for _, k := range r.Keys() {
		if k.Space == space {
			keys = append(keys, k)
		}
	}
	for k := range r.pending {
		if k.Space == space {
			keys = append(keys, k)
		}
	}
	n := 0
	for _, k := range keys {
		if r.clear(k) {
			n++
		}
	}
	r.log.Info("keyspace cleared", zap.Stringer("space", space), zap.Int("keys", n))
	return n
}

// ClearAll tears down every pool in both keyspaces. Loads still in flight
// are abandoned; their futures fail and their templates are released when
// they arrive.
func (r *Registry) ClearAll() {
	n := r.ClearSpace(SpaceType) + r.ClearSpace(SpaceContent)
	r.log.Info("all pools cleared", zap.Int("keys", n))
}

func (r *Registry) clear(key Key) bool {
	cleared := false
	if p, ok := r.pools[key]; ok {
		p.TeardownAll()
		delete(r.pools, key)
		cleared = true
	}
	if p, ok := r.pending[key]; ok {
		p.future.resolve(fmt.Errorf("%s: %w", key, ErrRegistryClosed))
		delete(r.pending, key)
		cleared = true
	}
	return cleared
}
