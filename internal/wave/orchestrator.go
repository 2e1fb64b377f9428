package wave

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/l1jgo/wavecore/internal/core/clock"
	"github.com/l1jgo/wavecore/internal/core/ecs"
	"github.com/l1jgo/wavecore/internal/core/event"
	coresys "github.com/l1jgo/wavecore/internal/core/system"
	"github.com/l1jgo/wavecore/internal/pool"
	"github.com/l1jgo/wavecore/internal/template"
	"go.uber.org/zap"
)

var ErrNotIdle = errors.New("orchestrator already started")

// Spawner is the part of the pool registry the orchestrator drives.
type Spawner interface {
	CreatePoolAsync(ctx context.Context, key pool.Key, source string, defaultCap, maxCap int) *pool.Future
	WarmUp(key pool.Key, n int) error
	Spawn(key pool.Key, position pool.Vec3, orientation float64) *pool.Instance
}

// State is the orchestrator's progress through one campaign.
type State uint8

const (
	StateIdle State = iota
	StatePreloading
	StateReady
	StateRunning
	StateComplete
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePreloading:
		return "preloading"
	case StateReady:
		return "ready"
	case StateRunning:
		return "running"
	case StateComplete:
		return "complete"
	case StateCancelled:
		return "cancelled"
	}
	return "unknown"
}

// SpawnRecord is one spawn the orchestrator made.
type SpawnRecord struct {
	WaveID int
	Index  int
	Key    pool.Key
	Boss   bool
	Entity ecs.EntityID
	Due    time.Duration // scheduled, from campaign start
	At     time.Duration // game time of the tick that fired it, from campaign start
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

func WithPlacement(p Placement) Option { return func(o *Orchestrator) { o.placement = p } }
func WithTiers(t TierSource) Option    { return func(o *Orchestrator) { o.tiers = t } }

// WithCapacity sets the pool capacities requested for every key. A key
// whose warm-up count exceeds maxCap gets a pool sized to the warm-up.
func WithCapacity(defaultCap, maxCap int) Option {
	return func(o *Orchestrator) {
		o.defaultCap = defaultCap
		o.maxCap = maxCap
	}
}

func WithWarmUpPolicy(p WarmUpPolicy) Option { return func(o *Orchestrator) { o.policy = p } }

// Orchestrator preloads the pools a Plan needs, then fires its spawns on
// schedule against the game clock. Phase 2 (Update).
//
// Suspension points are ticks: the orchestrator returns from Update while
// loads are pending or the next spawn is not yet due, and re-checks the
// campaign context on every resume and before every spawn.
type Orchestrator struct {
	log       *zap.Logger
	bus       *event.Bus
	clock     *clock.Clock
	spawner   Spawner
	tracker   *Tracker
	placement Placement
	tiers     TierSource

	defaultCap int
	maxCap     int
	policy     WarmUpPolicy

	state   State
	ctx     context.Context
	plan    *Plan
	warm    map[pool.Key]int
	futures map[pool.Key]*pool.Future
	failed  map[pool.Key]error
	slots   []Slot
	next    int
	start   time.Duration
	records []SpawnRecord
	done    chan struct{}
}

func NewOrchestrator(spawner Spawner, tracker *Tracker, clk *clock.Clock, bus *event.Bus, log *zap.Logger, opts ...Option) *Orchestrator {
	if log == nil {
		log = zap.NewNop()
	}
	o := &Orchestrator{
		log:        log,
		bus:        bus,
		clock:      clk,
		spawner:    spawner,
		tracker:    tracker,
		placement:  NewAreaPlacement(Rect{}, Rect{}, pool.Vec3{}, 1),
		tiers:      BaseTiers,
		defaultCap: 10,
		maxCap:     100,
		policy:     WarmUpMax,
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *Orchestrator) Phase() coresys.Phase { return coresys.PhaseUpdate }

func (o *Orchestrator) State() State { return o.state }

// IsReady reports whether every pool has settled and been warmed.
func (o *Orchestrator) IsReady() bool {
	return o.state == StateReady || o.state == StateRunning || o.state == StateComplete
}

// Done is closed when the campaign completes or is cancelled.
func (o *Orchestrator) Done() <-chan struct{} { return o.done }

// Records returns the spawns made so far in firing order.
func (o *Orchestrator) Records() []SpawnRecord {
	return append([]SpawnRecord(nil), o.records...)
}

// Failed returns the keys whose pools could not be created.
func (o *Orchestrator) Failed() map[pool.Key]error {
	out := make(map[pool.Key]error, len(o.failed))
	for k, err := range o.failed {
		out[k] = err
	}
	return out
}

// Remaining returns the number of scheduled spawns not yet fired.
func (o *Orchestrator) Remaining() int { return len(o.slots) - o.next }

// StartedAt returns the game time the first wave was timed from.
func (o *Orchestrator) StartedAt() time.Duration { return o.start }

// Start begins preloading pools for plan. ctx is the campaign's
// cancellation token.
func (o *Orchestrator) Start(ctx context.Context, plan *Plan) error {
	if o.state != StateIdle {
		return fmt.Errorf("%w (state %s)", ErrNotIdle, o.state)
	}
	if plan == nil {
		return ErrEmptyPlan
	}
	o.ctx = ctx
	o.plan = plan
	o.warm = plan.WarmUpCounts(o.policy)
	o.futures = make(map[pool.Key]*pool.Future)
	o.failed = make(map[pool.Key]error)

	standard, boss := plan.TotalCount()
	o.tracker.Reset(standard, boss)

	sources := plan.Sources()
	for _, key := range plan.DistinctKeys() {
		n := o.warm[key]
		maxCap := o.maxCap
		if n > maxCap {
			maxCap = n
		}
		defaultCap := o.defaultCap
		if n > defaultCap {
			defaultCap = n
		}
		o.futures[key] = o.spawner.CreatePoolAsync(ctx, key, sources[key], defaultCap, maxCap)
	}
	o.state = StatePreloading
	o.log.Info("campaign preloading",
		zap.Int("waves", len(plan.waves)),
		zap.Int("keys", len(o.futures)),
		zap.Int("standard", standard),
		zap.Int("boss", boss),
		zap.String("warm_up", string(o.policy)))
	return nil
}

func (o *Orchestrator) Update(_ time.Duration) {
	switch o.state {
	case StatePreloading:
		o.preload()
	case StateReady:
		o.begin()
		o.run()
	case StateRunning:
		o.run()
	}
}

func (o *Orchestrator) preload() {
	if err := o.ctx.Err(); err != nil {
		o.cancel(err)
		return
	}
	for _, f := range o.futures {
		if !f.Resolved() {
			return
		}
	}

	for _, key := range o.plan.DistinctKeys() {
		if err := o.futures[key].Err(); err != nil {
			o.failed[key] = err
			o.log.Error("pool unavailable, its waves will be skipped",
				zap.String("key", key.String()), zap.Error(err))
			continue
		}
		if err := o.spawner.WarmUp(key, o.warm[key]); err != nil {
			o.failed[key] = err
			o.log.Error("warm-up failed, its waves will be skipped",
				zap.String("key", key.String()), zap.Error(err))
		}
	}
	o.writeOffFailed()
	o.slots = Schedule(o.plan, func(k pool.Key) bool { return o.failed[k] != nil })
	o.state = StateReady
	o.log.Info("campaign ready",
		zap.Int("spawns", len(o.slots)),
		zap.Int("failed_keys", len(o.failed)))
}

// writeOffFailed removes the spawns of failed keys from the completion
// count so the stage can still clear.
func (o *Orchestrator) writeOffFailed() {
	if len(o.failed) == 0 {
		return
	}
	for _, w := range o.plan.waves {
		if o.failed[w.Key] == nil || w.Count == 0 {
			continue
		}
		o.log.Error("skipping wave",
			zap.Int("wave", w.ID),
			zap.String("key", w.Key.String()),
			zap.Int("count", w.Count))
		o.tracker.Skipped(classOf(w.Boss), w.Count)
	}
	if b := o.plan.boss; b != nil && o.failed[b.Key] != nil {
		o.log.Error("skipping boss", zap.String("key", b.Key.String()))
		o.tracker.Skipped(template.ClassBoss, 1)
	}
}

func (o *Orchestrator) begin() {
	if err := o.ctx.Err(); err != nil {
		o.cancel(err)
		return
	}
	o.start = o.clock.Now()
	o.state = StateRunning
	o.log.Info("campaign started", zap.Duration("at", o.start))
}

func (o *Orchestrator) run() {
	if o.state != StateRunning {
		return
	}
	now := o.clock.Now() - o.start
	for o.next < len(o.slots) {
		if err := o.ctx.Err(); err != nil {
			o.cancel(err)
			return
		}
		s := o.slots[o.next]
		if s.Due > now {
			return
		}
		o.spawn(s, now)
		o.next++
	}
	o.state = StateComplete
	close(o.done)
	o.log.Info("campaign spawning complete", zap.Int("spawned", len(o.records)))
	o.tracker.Settle()
}

func (o *Orchestrator) spawn(s Slot, now time.Duration) {
	class := classOf(s.Boss)
	pos, orientation, dest := o.placement.Place(s)
	inst := o.spawner.Spawn(s.Key, pos, orientation)
	if inst == nil {
		o.log.Error("spawn produced no instance",
			zap.Int("wave", s.WaveID),
			zap.Int("index", s.Index),
			zap.String("key", s.Key.String()))
		o.tracker.Skipped(class, 1)
		return
	}
	inst.SetDestination(dest)
	inst.SetTier(o.tiers.Tier(s.Tier))
	o.tracker.Watch(inst, class)

	o.records = append(o.records, SpawnRecord{
		WaveID: s.WaveID,
		Index:  s.Index,
		Key:    s.Key,
		Boss:   s.Boss,
		Entity: inst.ID(),
		Due:    s.Due,
		At:     now,
	})
	if o.bus != nil {
		event.Emit(o.bus, event.EntitySpawned{
			EntityID: inst.ID(),
			Key:      s.Key.String(),
			WaveID:   s.WaveID,
			Index:    s.Index,
			Boss:     s.Boss,
		})
	}
	o.log.Debug("spawned",
		zap.Int("wave", s.WaveID),
		zap.Int("index", s.Index),
		zap.String("key", s.Key.String()),
		zap.Duration("due", s.Due),
		zap.Duration("at", now))
}

func (o *Orchestrator) cancel(err error) {
	o.state = StateCancelled
	close(o.done)
	o.log.Info("campaign cancelled",
		zap.Int("spawned", len(o.records)),
		zap.Int("unspawned", len(o.slots)-o.next),
		zap.Error(err))
}

// Reset returns the orchestrator to Idle for the next campaign. Spawned
// instances are left to the caller.
func (o *Orchestrator) Reset() {
	select {
	case <-o.done:
	default:
		close(o.done)
	}
	o.state = StateIdle
	o.ctx = nil
	o.plan = nil
	o.warm = nil
	o.futures = nil
	o.failed = nil
	o.slots = nil
	o.next = 0
	o.start = 0
	o.records = nil
	o.done = make(chan struct{})
}

func classOf(boss bool) template.Class {
	if boss {
		return template.ClassBoss
	}
	return template.ClassStandard
}
