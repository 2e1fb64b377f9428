package template

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

func writeBlueprint(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestYAMLLoaderLoad(t *testing.T) {
	dir := t.TempDir()
	writeBlueprint(t, dir, "orc.yaml", `
name: Orc Warrior
class: mid_boss
stats:
  hp: 120
  speed: 1.5
  damage: 8
  attack_interval: 1500ms
  exp: 40
`)
	l := NewYAMLLoader(dir, zap.NewNop())

	tpl, err := l.Load(context.Background(), "orc")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if tpl.Name != "Orc Warrior" || tpl.Class != ClassBoss {
		t.Errorf("Expected Orc Warrior boss, got %q %s", tpl.Name, tpl.Class)
	}
	if tpl.Stats.HP != 120 || tpl.Stats.AttackInterval != 1500*time.Millisecond {
		t.Errorf("Unexpected stats %+v", tpl.Stats)
	}
	if len(tpl.Digest) != 16 {
		t.Errorf("Expected 16 hex digest chars, got %q", tpl.Digest)
	}

	again, _ := l.Load(context.Background(), "orc.yaml")
	if again == tpl {
		t.Errorf("Expected a separate copy per load")
	}
	if again.Digest != tpl.Digest {
		t.Errorf("Expected stable digest")
	}
	if l.Outstanding() != 2 {
		t.Errorf("Expected 2 outstanding, got %d", l.Outstanding())
	}
	l.Release(tpl)
	l.Release(again)
	if l.Outstanding() != 0 {
		t.Errorf("Expected 0 outstanding, got %d", l.Outstanding())
	}
}

func TestYAMLLoaderErrors(t *testing.T) {
	dir := t.TempDir()
	writeBlueprint(t, dir, "bad.yaml", "name: [unterminated")
	writeBlueprint(t, dir, "odd.yaml", "class: dragonlord")
	l := NewYAMLLoader(dir, zap.NewNop())

	for _, src := range []string{"missing", "bad", "odd", "../escape", ""} {
		if _, err := l.Load(context.Background(), src); err == nil {
			t.Errorf("Load(%q): expected error", src)
		}
	}
}

func TestYAMLLoaderDefaultsName(t *testing.T) {
	dir := t.TempDir()
	writeBlueprint(t, dir, "bat.yaml", "stats:\n  hp: 3\n")
	tpl, err := NewYAMLLoader(dir, nil).Load(context.Background(), "bat")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if tpl.Name != "bat" || tpl.Class != ClassStandard {
		t.Errorf("Expected bat/standard, got %q/%s", tpl.Name, tpl.Class)
	}
}

func TestYAMLLoaderConcurrent(t *testing.T) {
	dir := t.TempDir()
	writeBlueprint(t, dir, "wolf.yaml", "name: Wolf\n")
	l := NewYAMLLoader(dir, zap.NewNop())

	var wg sync.WaitGroup
	for n := 0; n < 8; n++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := l.Load(context.Background(), "wolf"); err != nil {
				t.Errorf("load: %v", err)
			}
		}()
	}
	wg.Wait()
	if l.Outstanding() != 8 {
		t.Errorf("Expected 8 outstanding, got %d", l.Outstanding())
	}
}

func TestStaticLoaderHold(t *testing.T) {
	l := NewStaticLoader(Template{Source: "imp", Name: "Imp"})
	release := l.Hold()

	done := make(chan *Template, 1)
	go func() {
		tpl, _ := l.Load(context.Background(), "imp")
		done <- tpl
	}()

	select {
	case <-done:
		t.Fatalf("Expected load to block while held")
	case <-time.After(20 * time.Millisecond):
	}
	release()
	select {
	case tpl := <-done:
		if tpl == nil || tpl.Name != "Imp" {
			t.Errorf("Expected Imp, got %+v", tpl)
		}
	case <-time.After(time.Second):
		t.Fatalf("Expected load to finish after release")
	}
	if l.Loads("imp") != 1 {
		t.Errorf("Expected 1 load, got %d", l.Loads("imp"))
	}
}
