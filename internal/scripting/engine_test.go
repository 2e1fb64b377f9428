package scripting

import (
	"math"
	"path/filepath"
	"runtime"
	"testing"

	"go.uber.org/zap"
)

func repoScripts(t *testing.T) string {
	t.Helper()
	_, file, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(file), "..", "..", "scripts")
}

func TestEngineLoadsRepoScripts(t *testing.T) {
	e, err := NewEngine(repoScripts(t), zap.NewNop())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	defer e.Close()

	for _, fn := range []string{"tier_stats", "spawn_position", "calc_defense_damage", "calc_kill_exp"} {
		if !e.Has(fn) {
			t.Errorf("Expected %s to be defined", fn)
		}
	}

	ts := e.GetTierStats(3)
	if ts == nil || math.Abs(ts.HP-1.3) > 1e-9 || ts.Exp != 10 {
		t.Errorf("Unexpected tier 3 stats %+v", ts)
	}
	p := e.SpawnPosition(SpawnContext{WaveID: 1, Index: 6})
	if p == nil || p.X != -4 || p.Z != 41 {
		t.Errorf("Unexpected spawn point %+v", p)
	}
	if d := e.CalcDefenseDamage(10, 0.5, true); d != 2.5 {
		t.Errorf("Expected boss damage 2.5, got %v", d)
	}
	if exp := e.CalcKillExp(20, 4); exp != 35 {
		t.Errorf("Expected 35 exp, got %d", exp)
	}
}

func TestEngineMissingDirIsEmpty(t *testing.T) {
	e, err := NewEngine(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	defer e.Close()

	if e.SpawnPosition(SpawnContext{}) != nil {
		t.Errorf("Expected nil spawn point without a script")
	}
	if e.GetTierStats(1) != nil {
		t.Errorf("Expected nil tier stats without a script")
	}
	if d := e.CalcDefenseDamage(4, 0.25, false); d != 1 {
		t.Errorf("Expected plain dps fallback 1, got %v", d)
	}
	if exp := e.CalcKillExp(7, 9); exp != 7 {
		t.Errorf("Expected base exp fallback, got %d", exp)
	}
}

func TestEngineScriptErrorsFallBack(t *testing.T) {
	e, err := NewEngineFromString(`
function spawn_position(ctx) error("boom") end
function tier_stats(level) return 42 end
`, nil)
	if err != nil {
		t.Fatalf("NewEngineFromString: %v", err)
	}
	defer e.Close()

	if e.SpawnPosition(SpawnContext{}) != nil {
		t.Errorf("Expected nil spawn point from a failing script")
	}
	if e.GetTierStats(2) != nil {
		t.Errorf("Expected nil tier stats from a non-table result")
	}
}

func TestSpawnPositionHeading(t *testing.T) {
	e, err := NewEngineFromString(`
function spawn_position(ctx) return { x = 1, y = 2, z = 3, heading = 0.5 } end
function tier_stats(level) return { hp = 2 } end
`, nil)
	if err != nil {
		t.Fatalf("NewEngineFromString: %v", err)
	}
	defer e.Close()

	p := e.SpawnPosition(SpawnContext{})
	if p == nil || !p.HasHead || p.Heading != 0.5 || p.Y != 2 {
		t.Errorf("Unexpected spawn point %+v", p)
	}
	ts := e.GetTierStats(1)
	if ts.HP != 2 || ts.Speed != 1 || ts.Damage != 1 {
		t.Errorf("Expected defaults for missing fields, got %+v", ts)
	}
}

func TestBadSourceFails(t *testing.T) {
	if _, err := NewEngineFromString("function (", nil); err == nil {
		t.Errorf("Expected syntax error")
	}
}
