package wave

import (
	"testing"
	"time"

	"github.com/l1jgo/wavecore/internal/pool"
)

func dues(slots []Slot) []time.Duration {
	out := make([]time.Duration, len(slots))
	for n, s := range slots {
		out[n] = s.Due
	}
	return out
}

func equalDurations(a, b []time.Duration) bool {
	if len(a) != len(b) {
		return false
	}
	for n := range a {
		if a[n] != b[n] {
			return false
		}
	}
	return true
}

func TestScheduleAbsoluteOffsets(t *testing.T) {
	p, _ := NewPlan([]Descriptor{
		{ID: 1, Key: goblin, Count: 3, Interval: time.Second},
		{ID: 2, Key: goblin, Count: 1, Offset: 2 * time.Second},
	}, nil)
	slots := Schedule(p, nil)

	want := []time.Duration{0, time.Second, 2 * time.Second, 2 * time.Second}
	if got := dues(slots); !equalDurations(got, want) {
		t.Fatalf("Expected dues %v, got %v", want, got)
	}
	if slots[2].WaveID != 1 || slots[3].WaveID != 2 {
		t.Errorf("Expected wave 1 to finish before wave 2 starts, got %+v", slots)
	}
}

func TestScheduleLateOffsetFiresImmediately(t *testing.T) {
	p, _ := NewPlan([]Descriptor{
		{ID: 1, Key: goblin, Count: 3, Interval: 2 * time.Second},
		{ID: 2, Key: orc, Count: 2, Offset: time.Second, Interval: time.Second},
		{ID: 3, Key: orc, Count: 1, Offset: 20 * time.Second},
	}, &BossSpec{Key: dragon, Tier: 9})
	slots := Schedule(p, nil)

	want := []time.Duration{
		0, 2 * time.Second, 4 * time.Second, // wave 1
		4 * time.Second, 5 * time.Second, // wave 2 waits for wave 1
		20 * time.Second, // wave 3 at its offset
		20 * time.Second, // boss
	}
	if got := dues(slots); !equalDurations(got, want) {
		t.Fatalf("Expected dues %v, got %v", want, got)
	}
	boss := slots[len(slots)-1]
	if !boss.Boss || boss.Wave != -1 || boss.Tier != 9 || boss.Key != dragon {
		t.Errorf("Unexpected boss slot %+v", boss)
	}
}

func TestScheduleSkipsKeysAndEmptyWaves(t *testing.T) {
	p, _ := NewPlan([]Descriptor{
		{ID: 1, Key: goblin, Count: 2, Interval: 3 * time.Second},
		{ID: 2, Key: orc, Count: 0, Offset: time.Second},
		{ID: 3, Key: orc, Count: 2, Offset: time.Second},
		{ID: 4, Key: goblin, Count: 1, Offset: time.Second},
	}, &BossSpec{Key: orc})
	slots := Schedule(p, func(k pool.Key) bool { return k == orc })

	want := []time.Duration{0, 3 * time.Second, 3 * time.Second}
	if got := dues(slots); !equalDurations(got, want) {
		t.Fatalf("Expected dues %v, got %v", want, got)
	}
	for _, s := range slots {
		if s.Key == orc {
			t.Errorf("Expected skipped key to have no slots, got %+v", s)
		}
	}
}
