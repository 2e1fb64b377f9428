package wave

import (
	"context"
	"testing"
	"time"

	"github.com/l1jgo/wavecore/internal/core/clock"
	"github.com/l1jgo/wavecore/internal/core/ecs"
	"github.com/l1jgo/wavecore/internal/core/event"
	"github.com/l1jgo/wavecore/internal/pool"
	"github.com/l1jgo/wavecore/internal/template"
	"go.uber.org/zap/zaptest"
)

type harness struct {
	bus     *event.Bus
	clock   *clock.Clock
	loader  *template.StaticLoader
	reg     *pool.Registry
	tracker *Tracker
	orch    *Orchestrator
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	log := zaptest.NewLogger(t)
	h := &harness{
		bus:   event.NewBus(),
		clock: clock.New(),
		loader: template.NewStaticLoader(
			template.Template{Source: "goblin", Name: "Goblin"},
			template.Template{Source: "orc", Name: "Orc"},
			template.Template{Source: "dragon", Name: "Dragon", Class: template.ClassBoss},
		),
	}
	h.reg = pool.NewRegistry(h.bus, ecs.NewWorld(), h.loader, log)
	h.tracker = NewTracker(h.bus, log)
	h.orch = NewOrchestrator(h.reg, h.tracker, h.clock, h.bus, log, opts...)
	return h
}

// tick runs one frame in runner phase order.
func (h *harness) tick(dt time.Duration) {
	h.clock.Advance(dt)
	h.bus.SwapBuffers()
	h.bus.DispatchAll()
	h.orch.Update(dt)
}

func (h *harness) waitReady(t *testing.T) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !h.orch.IsReady() {
		if h.orch.State() == StateCancelled {
			t.Fatalf("cancelled while preloading")
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out preloading (state %s)", h.orch.State())
		}
		h.tick(0)
		time.Sleep(time.Millisecond)
	}
}

// runFor ticks fixed steps for d of game time.
func (h *harness) runFor(d, step time.Duration) {
	for elapsed := time.Duration(0); elapsed < d; elapsed += step {
		h.tick(step)
	}
}

func mustPlan(t *testing.T, waves []Descriptor, boss *BossSpec) *Plan {
	t.Helper()
	p, err := NewPlan(waves, boss)
	if err != nil {
		t.Fatalf("NewPlan: %v", err)
	}
	return p
}

func TestOrchestratorAbsoluteOffsets(t *testing.T) {
	h := newHarness(t)
	plan := mustPlan(t, []Descriptor{
		{ID: 1, Key: goblin, Count: 3, Interval: time.Second},
		{ID: 2, Key: goblin, Count: 1, Offset: 2 * time.Second},
	}, nil)
	if err := h.orch.Start(context.Background(), plan); err != nil {
		t.Fatalf("Start: %v", err)
	}
	h.waitReady(t)
	h.runFor(3*time.Second, 100*time.Millisecond)

	if h.orch.State() != StateComplete {
		t.Fatalf("Expected complete, got %s", h.orch.State())
	}
	recs := h.orch.Records()
	want := []struct {
		wave int
		due  time.Duration
	}{{1, 0}, {1, time.Second}, {1, 2 * time.Second}, {2, 2 * time.Second}}
	if len(recs) != len(want) {
		t.Fatalf("Expected %d spawns, got %d", len(want), len(recs))
	}
	for n, w := range want {
		r := recs[n]
		if r.WaveID != w.wave || r.Due != w.due {
			t.Errorf("spawn %d: Expected wave %d due %s, got wave %d due %s", n, w.wave, w.due, r.WaveID, r.Due)
		}
		if r.At < r.Due || r.At-r.Due >= 100*time.Millisecond {
			t.Errorf("spawn %d: fired at %s for due %s", n, r.At, r.Due)
		}
	}
	select {
	case <-h.orch.Done():
	default:
		t.Errorf("Expected Done to be closed")
	}
}

func TestOrchestratorLongTickFiresEverythingInOrder(t *testing.T) {
	h := newHarness(t)
	plan := mustPlan(t, []Descriptor{
		{ID: 1, Key: goblin, Count: 2, Interval: 500 * time.Millisecond},
		{ID: 2, Key: orc, Count: 2, Offset: time.Second, Interval: 500 * time.Millisecond},
	}, nil)
	h.orch.Start(context.Background(), plan)
	h.waitReady(t)
	h.tick(0)
	h.tick(10 * time.Second)

	recs := h.orch.Records()
	if len(recs) != 4 {
		t.Fatalf("Expected 4 spawns, got %d", len(recs))
	}
	wantDue := []time.Duration{0, 500 * time.Millisecond, time.Second, 1500 * time.Millisecond}
	for n, r := range recs {
		if r.Due != wantDue[n] {
			t.Errorf("spawn %d: Expected due %s, got %s", n, wantDue[n], r.Due)
		}
	}
}

func TestOrchestratorWarmsBeforeSpawning(t *testing.T) {
	h := newHarness(t)
	release := h.loader.Hold()
	plan := mustPlan(t, []Descriptor{
		{ID: 1, Key: goblin, Count: 3},
		{ID: 2, Key: goblin, Count: 2, Offset: time.Second},
	}, nil)
	h.orch.Start(context.Background(), plan)

	h.runFor(5*time.Second, 100*time.Millisecond)
	if h.orch.State() != StatePreloading || len(h.orch.Records()) != 0 {
		t.Fatalf("Expected no spawns while loading, got state %s and %d spawns", h.orch.State(), len(h.orch.Records()))
	}

	release()
	h.waitReady(t)
	p := h.reg.Pool(goblin)
	if p.FreeCount() != 3 || p.Constructed() != 3 {
		t.Fatalf("Expected 3 warmed instances, got free=%d constructed=%d", p.FreeCount(), p.Constructed())
	}
	h.tick(0)
	if p.Constructed() != 3 || p.ActiveCount() != 3 {
		t.Errorf("Expected first wave served from warm instances, got constructed=%d active=%d",
			p.Constructed(), p.ActiveCount())
	}
}

func TestOrchestratorSumPolicyNeverGrows(t *testing.T) {
	h := newHarness(t, WithWarmUpPolicy(WarmUpSum))
	plan := mustPlan(t, []Descriptor{
		{ID: 1, Key: goblin, Count: 3},
		{ID: 2, Key: goblin, Count: 2, Offset: time.Second},
	}, nil)
	h.orch.Start(context.Background(), plan)
	h.waitReady(t)
	h.runFor(2*time.Second, 100*time.Millisecond)

	p := h.reg.Pool(goblin)
	if p.Constructed() != 5 || p.ActiveCount() != 5 {
		t.Errorf("Expected constructed=5 active=5, got %d/%d", p.Constructed(), p.ActiveCount())
	}
}

func TestOrchestratorCancelBetweenWaves(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	plan := mustPlan(t, []Descriptor{
		{ID: 1, Key: goblin, Count: 2, Interval: time.Second},
		{ID: 2, Key: orc, Count: 3, Offset: 5 * time.Second},
	}, &BossSpec{Key: dragon, Source: "dragon"})
	h.orch.Start(ctx, plan)
	h.waitReady(t)
	h.runFor(2*time.Second, 100*time.Millisecond)
	if n := len(h.orch.Records()); n != 2 {
		t.Fatalf("Expected wave 1 spawned, got %d spawns", n)
	}

	cancel()
	h.runFor(10*time.Second, 100*time.Millisecond)

	if h.orch.State() != StateCancelled {
		t.Errorf("Expected cancelled, got %s", h.orch.State())
	}
	if n := len(h.orch.Records()); n != 2 {
		t.Errorf("Expected no spawns after cancel, got %d", n)
	}
	if h.reg.ActiveCount(goblin) != 2 || h.reg.ActiveCount(orc) != 0 {
		t.Errorf("Expected wave 1 instances left active, got goblin=%d orc=%d",
			h.reg.ActiveCount(goblin), h.reg.ActiveCount(orc))
	}
	if h.orch.Remaining() != 4 {
		t.Errorf("Expected 4 unspawned slots, got %d", h.orch.Remaining())
	}
	select {
	case <-h.orch.Done():
	default:
		t.Errorf("Expected Done to be closed on cancel")
	}
}

func TestOrchestratorCancelWhilePreloading(t *testing.T) {
	h := newHarness(t)
	release := h.loader.Hold()
	defer release()
	ctx, cancel := context.WithCancel(context.Background())
	h.orch.Start(ctx, mustPlan(t, []Descriptor{{ID: 1, Key: goblin, Count: 1}}, nil))
	cancel()
	h.tick(0)
	if h.orch.State() != StateCancelled {
		t.Errorf("Expected cancelled, got %s", h.orch.State())
	}
}

func TestOrchestratorSkipsFailedKeys(t *testing.T) {
	h := newHarness(t)
	ghost := pool.ContentKey("ghost")
	plan := mustPlan(t, []Descriptor{
		{ID: 1, Key: ghost, Count: 4, Interval: time.Second},
		{ID: 2, Key: goblin, Count: 2, Offset: time.Second},
	}, nil)
	h.orch.Start(context.Background(), plan)
	h.waitReady(t)
	h.runFor(2*time.Second, 100*time.Millisecond)

	if h.orch.State() != StateComplete {
		t.Fatalf("Expected complete, got %s", h.orch.State())
	}
	if _, ok := h.orch.Failed()[ghost]; !ok {
		t.Errorf("Expected ghost key to be reported failed")
	}
	recs := h.orch.Records()
	if len(recs) != 2 || recs[0].Key != goblin || recs[0].Due != time.Second {
		t.Errorf("Expected only wave 2 spawned at its offset, got %+v", recs)
	}
	if h.tracker.RemainingStandard() != 2 {
		t.Errorf("Expected skipped spawns written off, got remaining %d", h.tracker.RemainingStandard())
	}
}

func TestOrchestratorBossAfterLastWave(t *testing.T) {
	h := newHarness(t)
	plan := mustPlan(t, []Descriptor{
		{ID: 1, Key: goblin, Count: 2, Interval: time.Second, Tier: 3},
	}, &BossSpec{Key: dragon, Source: "dragon", Tier: 5})
	h.orch.Start(context.Background(), plan)
	h.waitReady(t)
	h.runFor(2*time.Second, 100*time.Millisecond)

	recs := h.orch.Records()
	if len(recs) != 3 {
		t.Fatalf("Expected 3 spawns, got %d", len(recs))
	}
	boss := recs[2]
	if !boss.Boss || boss.Key != dragon || boss.Due != time.Second {
		t.Errorf("Unexpected boss record %+v", boss)
	}
	if h.tracker.RemainingStandard() != 2 || h.tracker.RemainingBoss() != 1 {
		t.Errorf("Expected counters 2/1, got %d/%d", h.tracker.RemainingStandard(), h.tracker.RemainingBoss())
	}
	inst := h.reg.Pool(goblin).Active()[0]
	if inst.Tier().Level != 3 {
		t.Errorf("Expected tier 3 applied, got %+v", inst.Tier())
	}
}

func TestOrchestratorDefeatClearsTracker(t *testing.T) {
	h := newHarness(t)
	plan := mustPlan(t, []Descriptor{{ID: 1, Key: goblin, Count: 3}}, nil)
	h.orch.Start(context.Background(), plan)
	h.waitReady(t)
	h.tick(0)

	fired := 0
	h.tracker.OnAllDefeated(func() { fired++ })
	for _, inst := range h.reg.Pool(goblin).Active() {
		inst.ReportRemoved()
		h.reg.Despawn(inst)
	}
	if fired != 1 || h.tracker.KillCount() != 3 {
		t.Errorf("Expected one signal after 3 kills, got fired=%d kills=%d", fired, h.tracker.KillCount())
	}
}

func TestOrchestratorEmptyWavesSignalDefeat(t *testing.T) {
	h := newHarness(t)
	plan := mustPlan(t, []Descriptor{
		{ID: 1, Key: goblin, Count: 0},
		{ID: 2, Key: goblin, Count: 0, Offset: time.Second},
	}, nil)
	fired := 0
	h.tracker.OnAllDefeated(func() { fired++ })
	if err := h.orch.Start(context.Background(), plan); err != nil {
		t.Fatalf("Start: %v", err)
	}
	h.waitReady(t)
	h.tick(0)

	if h.orch.State() != StateComplete {
		t.Fatalf("Expected complete with nothing to spawn, got %s", h.orch.State())
	}
	if fired != 1 || !h.tracker.Signalled() {
		t.Errorf("Expected all-defeated once spawning ended, got fired=%d", fired)
	}
	h.tick(time.Second)
	if fired != 1 {
		t.Errorf("Expected no second signal, got %d", fired)
	}
}

func TestOrchestratorRejectsSecondStart(t *testing.T) {
	h := newHarness(t)
	plan := mustPlan(t, []Descriptor{{ID: 1, Key: goblin, Count: 1}}, nil)
	if err := h.orch.Start(context.Background(), plan); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := h.orch.Start(context.Background(), plan); err == nil {
		t.Errorf("Expected second Start to fail")
	}
	h.waitReady(t)
	h.orch.Reset()
	if h.orch.State() != StateIdle || len(h.orch.Records()) != 0 {
		t.Errorf("Expected idle after reset")
	}
}
