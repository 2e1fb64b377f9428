package data

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/l1jgo/wavecore/internal/pool"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/transform"
)

func writeFile(t *testing.T, name string, body []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, body, 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

const waveYAML = `waves:
  - wave_id: 2
    entity: orc
    count: 4
    tier: 2
    offset: 10
    interval: 0.5
  - wave_id: 1
    entity: goblin
    template: goblin_archer
    count: 3
    offset: 0
    interval: 1.25
  - wave_id: 3
    entity: troll
    count: 1
    offset: 30
    boss: true
`

func TestLoadWaveTable(t *testing.T) {
	tbl, err := LoadWaveTable(writeFile(t, "waves.yaml", []byte(waveYAML)), "")
	if err != nil {
		t.Fatalf("LoadWaveTable: %v", err)
	}
	if tbl.Count() != 3 {
		t.Fatalf("Expected 3 waves, got %d", tbl.Count())
	}
	ids := tbl.IDs()
	if len(ids) != 3 || ids[0] != 1 || ids[2] != 3 {
		t.Errorf("Expected sorted ids [1 2 3], got %v", ids)
	}
	d := tbl.Get(1).Descriptor()
	if d.Key != pool.ContentKey("goblin") || d.Source != "goblin_archer" {
		t.Errorf("Unexpected key/source %v %q", d.Key, d.Source)
	}
	if d.Interval != 1250*time.Millisecond {
		t.Errorf("Expected interval 1.25s, got %s", d.Interval)
	}
	if got := tbl.Get(2).Descriptor().Offset; got != 10*time.Second {
		t.Errorf("Expected offset 10s, got %s", got)
	}
	if !tbl.Get(3).Descriptor().Boss {
		t.Error("Expected wave 3 to be a boss wave")
	}
	if tbl.Get(99) != nil {
		t.Error("Expected nil for unknown wave")
	}
}

func TestWaveDescriptorsOrder(t *testing.T) {
	tbl, err := LoadWaveTable(writeFile(t, "waves.yaml", []byte(waveYAML)), "utf-8")
	if err != nil {
		t.Fatalf("LoadWaveTable: %v", err)
	}
	ds, err := tbl.Descriptors([]int{3, 1})
	if err != nil {
		t.Fatalf("Descriptors: %v", err)
	}
	if len(ds) != 2 || ds[0].ID != 3 || ds[1].ID != 1 {
		t.Errorf("Expected requested order [3 1], got %+v", ds)
	}
	if _, err := tbl.Descriptors([]int{1, 42}); err == nil {
		t.Error("Expected error for unknown wave id")
	}
}

func TestLoadWaveTableRejects(t *testing.T) {
	dup := "waves:\n  - wave_id: 1\n    entity: a\n  - wave_id: 1\n    entity: b\n"
	if _, err := LoadWaveTable(writeFile(t, "dup.yaml", []byte(dup)), ""); err == nil {
		t.Error("Expected duplicate wave_id error")
	}
	if _, err := LoadWaveTable(writeFile(t, "bad.yaml", []byte("waves: [")), ""); err == nil {
		t.Error("Expected parse error")
	}
	if _, err := LoadWaveTable(writeFile(t, "ok.yaml", []byte(waveYAML)), "shift-jis"); err == nil {
		t.Error("Expected unsupported encoding error")
	}
	if _, err := LoadWaveTable(filepath.Join(t.TempDir(), "missing.yaml"), ""); err == nil {
		t.Error("Expected read error")
	}
}

func TestLoadWaveTableEUCKR(t *testing.T) {
	src := "waves:\n  - wave_id: 1\n    entity: 고블린\n    count: 2\n"
	raw, _, err := transform.Bytes(korean.EUCKR.NewEncoder(), []byte(src))
	if err != nil {
		t.Fatalf("encode fixture: %v", err)
	}
	tbl, err := LoadWaveTable(writeFile(t, "waves_kr.yaml", raw), "euc-kr")
	if err != nil {
		t.Fatalf("LoadWaveTable: %v", err)
	}
	if got := tbl.Get(1).Entity; got != "고블린" {
		t.Errorf("Expected entity 고블린, got %q", got)
	}
}

func TestLoadStageTable(t *testing.T) {
	body := `stages:
  - stage_id: 1
    name: Outskirts
    chapter: 1
    waves: [1, 2]
    time_limit: 90
    barrier_hp: 500
    boss: troll
    boss_template: troll_king
    boss_tier: 3
  - stage_id: 2
    name: Practice
    waves: [1]
`
	tbl, err := LoadStageTable(writeFile(t, "stages.yaml", []byte(body)))
	if err != nil {
		t.Fatalf("LoadStageTable: %v", err)
	}
	if tbl.Count() != 2 {
		t.Fatalf("Expected 2 stages, got %d", tbl.Count())
	}
	s := tbl.Get(1)
	if s.Limit() != 90*time.Second {
		t.Errorf("Expected limit 90s, got %s", s.Limit())
	}
	boss := s.BossSpec()
	if boss == nil || boss.Key != pool.ContentKey("troll") || boss.Source != "troll_king" || boss.Tier != 3 {
		t.Errorf("Unexpected boss %+v", boss)
	}
	if ids := tbl.IDs(); len(ids) != 2 || ids[0] != 1 || ids[1] != 2 {
		t.Errorf("Expected ids [1 2], got %v", ids)
	}
	if tbl.Get(2).BossSpec() != nil {
		t.Error("Expected no boss for stage 2")
	}
	if tbl.Get(2).Limit() != 0 {
		t.Error("Expected unlimited stage 2")
	}
}

func TestLoadTierTable(t *testing.T) {
	body := `tiers:
  - level: 2
    hp: 1.5
    move_speed: 1.1
    exp: 20
  - level: 3
    hp: 2
    atk: 1.8
`
	tbl, err := LoadTierTable(writeFile(t, "tiers.yaml", []byte(body)))
	if err != nil {
		t.Fatalf("LoadTierTable: %v", err)
	}
	if tbl.Count() != 2 {
		t.Fatalf("Expected 2 tiers, got %d", tbl.Count())
	}
	two := tbl.Tier(2)
	if two.HP != 1.5 || two.Speed != 1.1 || two.Damage != 1 || two.Exp != 20 {
		t.Errorf("Unexpected tier 2 %+v", two)
	}
	if got := tbl.Tier(3).Speed; got != 1 {
		t.Errorf("Expected omitted speed to default to 1, got %v", got)
	}
	if got := tbl.Tier(7); got != pool.BaseTier(7) {
		t.Errorf("Expected base tier for unknown level, got %+v", got)
	}
}
