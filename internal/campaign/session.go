// Package campaign wires one playable stage together: the pool registry, the
// wave orchestrator, completion tracking, the stage state machine and the
// per-tick systems, all sharing one bus and one game clock.
package campaign

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/l1jgo/wavecore/internal/config"
	"github.com/l1jgo/wavecore/internal/core/clock"
	"github.com/l1jgo/wavecore/internal/core/ecs"
	"github.com/l1jgo/wavecore/internal/core/event"
	coresys "github.com/l1jgo/wavecore/internal/core/system"
	"github.com/l1jgo/wavecore/internal/data"
	"github.com/l1jgo/wavecore/internal/pool"
	"github.com/l1jgo/wavecore/internal/scripting"
	"github.com/l1jgo/wavecore/internal/stage"
	"github.com/l1jgo/wavecore/internal/system"
	"github.com/l1jgo/wavecore/internal/template"
	"github.com/l1jgo/wavecore/internal/wave"
	"go.uber.org/zap"
)

// defaultDefenseHP is used when neither the stage nor the config gives the
// defense target any HP.
const defaultDefenseHP = 1000

// drainPasses bounds the dispatch rounds Teardown spends emptying the bus.
const drainPasses = 4

var (
	ErrSessionActive = errors.New("campaign already running")
	ErrNoStage       = errors.New("no stage given")
)

// Journal records a campaign run. persist.RunJournal implements it.
type Journal interface {
	Begin(ctx context.Context, stageID int) error
	Spawned(rec wave.SpawnRecord)
	Removed(at time.Duration, ev event.EntityRemoved)
	StateChanged(at time.Duration, ev stage.StateChanged)
	Due() bool
	Flush(ctx context.Context) error
	RecordOutcome(ctx context.Context, res stage.Result) error
}

// Deps are the collaborators a Session does not build itself. Only Loader is
// required.
type Deps struct {
	Loader    template.Loader
	Scripting *scripting.Engine
	Tiers     wave.TierSource
	Journal   Journal
	Log       *zap.Logger
}

// Session owns everything one campaign needs. A Session plays one stage at a
// time; Teardown makes it ready for the next Start.
type Session struct {
	cfg     *config.Config
	log     *zap.Logger
	journal Journal

	bus      *event.Bus
	clock    *clock.Clock
	world    *ecs.World
	runner   *coresys.Runner
	registry *pool.Registry
	actors   *system.Actors
	tracker  *wave.Tracker
	orch     *wave.Orchestrator
	machine  *stage.Machine
	timer    *stage.Timer
	wall     *stage.Wall
	subs     []event.Subscription
	unlisten func()

	ctx       context.Context
	cancel    context.CancelFunc
	stageID   int
	active    bool
	timing    bool
	journaled int
	journalOn bool
	finished  bool
	result    stage.Result
}

func NewSession(cfg *config.Config, deps Deps) (*Session, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if deps.Loader == nil {
		return nil, fmt.Errorf("new session: template loader is required")
	}
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}
	policy, err := wave.ParseWarmUpPolicy(cfg.Pool.WarmUpPolicy)
	if err != nil {
		return nil, fmt.Errorf("new session: %w", err)
	}

	s := &Session{
		cfg:     cfg,
		log:     log,
		journal: deps.Journal,
		bus:     event.NewBus(),
		clock:   clock.New(),
		world:   ecs.NewWorld(),
		runner:  coresys.NewRunner(),
	}
	s.clock.Set(cfg.Campaign.TimeScale)

	s.actors = system.NewActors(s.world, s.bus, log)
	s.registry = pool.NewRegistry(s.bus, s.world, deps.Loader, log, pool.WithBehavior(s.actors))
	s.actors.Bind(s.registry)
	s.tracker = wave.NewTracker(s.bus, log)

	area := cfg.SpawnArea
	dest := pool.Vec3{X: area.Destination[0], Y: area.Destination[1], Z: area.Destination[2]}
	seed := cfg.Campaign.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	var placement wave.Placement = wave.NewAreaPlacement(rect(area.Normal), rect(area.Boss), dest, seed)
	var tiers wave.TierSource = wave.BaseTiers
	var calc system.DamageCalc
	if eng := deps.Scripting; eng != nil {
		if eng.Has("spawn_position") {
			placement = &scriptPlacement{engine: eng, fallback: placement, dest: dest}
		}
		if eng.Has("tier_stats") {
			tiers = scriptTiers{engine: eng}
		}
		if eng.Has("calc_kill_exp") {
			s.actors.SetExpCalc(eng.CalcKillExp)
		}
		calc = eng
	}
	if deps.Tiers != nil {
		tiers = deps.Tiers
	}

	s.orch = wave.NewOrchestrator(s.registry, s.tracker, s.clock, s.bus, log,
		wave.WithPlacement(placement),
		wave.WithTiers(tiers),
		wave.WithCapacity(cfg.Pool.DefaultCapacity, cfg.Pool.MaxCapacity),
		wave.WithWarmUpPolicy(policy),
	)
	s.wall = stage.NewWall(s.bus, defaultDefenseHP, log)
	s.timer = stage.NewTimer(s.clock, s.bus, 0)
	s.machine = stage.NewMachine(s.bus, s.tracker, s.clock, log)
	s.machine.Attach()

	s.runner.Register(system.NewClockSystem(s.clock))
	s.runner.Register(system.NewEventDispatchSystem(s.bus))
	s.runner.Register(s.orch)
	s.runner.Register(s.timer)
	s.runner.Register(system.NewMovementSystem(s.actors, s.clock, s.wall))
	s.runner.Register(system.NewDefenderSystem(s.actors, s.clock, cfg.Defense.DPS, calc))
	s.runner.Register(system.NewCleanupSystem(s.world, log))

	if s.journal != nil {
		s.subs = append(s.subs,
			event.Subscribe(s.bus, func(ev event.EntityRemoved) {
				if s.journalOn {
					s.journal.Removed(s.elapsed(), ev)
				}
			}),
		)
		s.unlisten = s.machine.OnStateChanged(func(ev stage.StateChanged) {
			if s.journalOn {
				s.journal.StateChanged(s.elapsed(), ev)
			}
		})
	}
	return s, nil
}

func rect(a config.AreaConfig) wave.Rect {
	return wave.Rect{MinX: a.MinX, MinZ: a.MinZ, MaxX: a.MaxX, MaxZ: a.MaxZ, Y: a.Y}
}

func (s *Session) Registry() *pool.Registry         { return s.registry }
func (s *Session) Orchestrator() *wave.Orchestrator { return s.orch }
func (s *Session) Tracker() *wave.Tracker           { return s.tracker }
func (s *Session) Machine() *stage.Machine          { return s.machine }
func (s *Session) Timer() *stage.Timer              { return s.timer }
func (s *Session) Wall() *stage.Wall                { return s.wall }
func (s *Session) Clock() *clock.Clock              { return s.clock }
func (s *Session) Bus() *event.Bus                  { return s.bus }
func (s *Session) Actors() *system.Actors           { return s.actors }

// Finished reports whether the current stage reached Cleared or Failed.
func (s *Session) Finished() bool { return s.finished }

// Start begins a stage with the given waves. ctx cancels the campaign.
func (s *Session) Start(ctx context.Context, st *data.StageEntry, waves []wave.Descriptor) error {
	if st == nil {
		return ErrNoStage
	}
	if s.active {
		return fmt.Errorf("start stage %d: %w", st.StageID, ErrSessionActive)
	}
	plan, err := wave.NewPlan(waves, st.BossSpec())
	if err != nil {
		return fmt.Errorf("start stage %d: %w", st.StageID, err)
	}

	limit := st.Limit()
	if s.cfg.Campaign.TimeLimit > 0 {
		limit = s.cfg.Campaign.TimeLimit
	}
	hp := st.BarrierHP
	if s.cfg.Defense.HP > 0 {
		hp = s.cfg.Defense.HP
	}
	if hp <= 0 {
		hp = defaultDefenseHP
	}
	s.timer.SetLimit(limit)
	s.wall.Rebuild(hp)

	s.ctx, s.cancel = context.WithCancel(ctx)
	if err := s.orch.Start(s.ctx, plan); err != nil {
		s.cancel()
		return fmt.Errorf("start stage %d: %w", st.StageID, err)
	}
	s.stageID = st.StageID
	s.active = true
	s.finished = false
	s.timing = false
	s.journaled = 0
	s.result = stage.Result{}

	s.journalOn = false
	if s.journal != nil {
		if err := s.journal.Begin(ctx, st.StageID); err != nil {
			s.log.Error("campaign journal unavailable, run will not be recorded",
				zap.Int("stage", st.StageID), zap.Error(err))
		} else {
			s.journalOn = true
		}
	}

	s.log.Info("stage started",
		zap.Int("stage", st.StageID),
		zap.String("name", st.Name),
		zap.Duration("time_limit", limit),
		zap.Float64("defense_hp", hp))
	return nil
}

// Tick advances the campaign by one runner tick of wall time dt.
func (s *Session) Tick(dt time.Duration) {
	s.runner.Tick(dt)
	if !s.active {
		return
	}

	if !s.timing {
		switch s.orch.State() {
		case wave.StateRunning, wave.StateComplete:
			s.timer.Start()
			s.timing = true
		}
	}

	if s.journalOn {
		recs := s.orch.Records()
		for _, rec := range recs[s.journaled:] {
			s.journal.Spawned(rec)
		}
		s.journaled = len(recs)
		if s.journal.Due() {
			if err := s.journal.Flush(s.ctx); err != nil {
				s.log.Warn("journal flush failed", zap.Error(err))
			}
		}
	}

	if !s.finished && s.machine.State().Terminal() {
		s.finish()
	}
}

func (s *Session) finish() {
	s.finished = true
	s.result = s.snapshot()
	s.timer.Stop()
	s.cancel()
	s.log.Info("stage finished",
		zap.Int("stage", s.result.StageID),
		zap.Stringer("state", s.result.State),
		zap.Stringer("cause", s.result.Cause),
		zap.Duration("elapsed", s.result.Elapsed),
		zap.Int("kills", s.result.Kills),
		zap.Int("remaining", s.result.Remaining),
		zap.Float64("defense", s.result.DefenseRatio))
	if s.journalOn {
		// Campaign ctx is already cancelled.
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.journal.RecordOutcome(ctx, s.result); err != nil {
			s.log.Error("record campaign outcome", zap.Error(err))
		}
	}
}

// Run ticks the session on a wall-clock ticker until the stage ends or ctx
// is done.
func (s *Session) Run(ctx context.Context) (stage.Result, error) {
	if !s.active {
		return stage.Result{}, fmt.Errorf("run: no stage started")
	}
	rate := s.cfg.Campaign.TickRate
	ticker := time.NewTicker(rate)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Tick(rate)
			if s.finished {
				return s.result, nil
			}
		case <-ctx.Done():
			return s.Result(), ctx.Err()
		}
	}
}

// Result returns the final result once the stage has ended, or the current
// progress while it is playing.
func (s *Session) Result() stage.Result {
	if s.finished {
		return s.result
	}
	return s.snapshot()
}

func (s *Session) snapshot() stage.Result {
	_, exp := s.actors.Kills()
	return stage.Result{
		StageID:      s.stageID,
		State:        s.machine.State(),
		Cause:        s.machine.Cause(),
		Elapsed:      s.timer.Elapsed(),
		Kills:        s.tracker.KillCount(),
		Exp:          exp,
		Remaining:    s.tracker.Remaining(),
		Spawned:      len(s.orch.Records()),
		DefenseRatio: s.wall.Ratio(),
	}
}

// elapsed is game time since spawning began.
func (s *Session) elapsed() time.Duration {
	return s.clock.Now() - s.orch.StartedAt()
}

// Teardown cancels the campaign, returns every instance to its pool and
// releases every pool, leaving the session ready for another Start.
func (s *Session) Teardown() {
	if s.cancel != nil {
		s.cancel()
	}
	s.tracker.Detach()
	despawned := 0
	for _, key := range s.registry.Keys() {
		despawned += s.registry.DespawnAll(key)
	}
	s.registry.ClearAll()
	s.runner.TickPhase(coresys.PhaseCleanup, 0)

	s.orch.Reset()
	s.timer.Stop()
	s.journalOn = false
	// Stage signals still buffered from this campaign must land on the old
	// machine state, never on the reset one.
	s.drain()
	s.machine.Reset()
	s.drain()
	s.wall.Reset()
	s.clock.Reset()
	s.clock.Set(s.cfg.Campaign.TimeScale)
	s.active = false
	s.timing = false
	s.log.Info("campaign torn down", zap.Int("stage", s.stageID), zap.Int("despawned", despawned))
}

// drain dispatches buffered events until the bus is quiet.
func (s *Session) drain() {
	settled := func() bool { return s.bus.Pending() == 0 }
	if n := s.runner.Drain(coresys.PhasePreUpdate, settled, drainPasses); !settled() {
		s.log.Warn("events still pending after teardown drain", zap.Int("passes", n), zap.Int("pending", s.bus.Pending()))
	}
}

// Close tears the session down and drops its bus subscriptions.
func (s *Session) Close() {
	s.Teardown()
	for _, sub := range s.subs {
		sub.Cancel()
	}
	s.subs = nil
	if s.unlisten != nil {
		s.unlisten()
	}
	s.machine.Detach()
	s.registry.Close()
}
