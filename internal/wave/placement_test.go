package wave

import (
	"math"
	"testing"

	"github.com/l1jgo/wavecore/internal/pool"
)

func TestAreaPlacementStaysInArea(t *testing.T) {
	normal := Rect{MinX: -5, MinZ: 20, MaxX: 5, MaxZ: 22, Y: 1}
	boss := Rect{MinX: -1, MinZ: 30, MaxX: 1, MaxZ: 32}
	dest := pool.Vec3{Z: 0}
	a := NewAreaPlacement(normal, boss, dest, 42)

	for n := 0; n < 100; n++ {
		pos, _, d := a.Place(Slot{Wave: 0, Index: n})
		if pos.X < normal.MinX || pos.X > normal.MaxX || pos.Z < normal.MinZ || pos.Z > normal.MaxZ || pos.Y != 1 {
			t.Fatalf("spawn %d outside area: %+v", n, pos)
		}
		if d != dest {
			t.Fatalf("Expected destination %+v, got %+v", dest, d)
		}
	}

	pos, _, _ := a.Place(Slot{Wave: -1, Boss: true})
	if pos != (pool.Vec3{X: 0, Z: 31}) {
		t.Errorf("Expected boss at area centre, got %+v", pos)
	}
}

func TestAreaPlacementDeterministicPerSeed(t *testing.T) {
	r := Rect{MaxX: 10, MaxZ: 10}
	a := NewAreaPlacement(r, r, pool.Vec3{}, 7)
	b := NewAreaPlacement(r, r, pool.Vec3{}, 7)
	for n := 0; n < 10; n++ {
		pa, _, _ := a.Place(Slot{Index: n})
		pb, _, _ := b.Place(Slot{Index: n})
		if pa != pb {
			t.Fatalf("spawn %d: %+v != %+v", n, pa, pb)
		}
	}
}

func TestHeading(t *testing.T) {
	tests := []struct {
		from, to pool.Vec3
		want     float64
	}{
		{pool.Vec3{}, pool.Vec3{Z: 1}, 0},
		{pool.Vec3{}, pool.Vec3{X: 1}, math.Pi / 2},
		{pool.Vec3{Z: 10}, pool.Vec3{}, math.Pi},
		{pool.Vec3{X: 3}, pool.Vec3{X: 3, Y: 5}, 0},
	}
	for _, tt := range tests {
		if got := Heading(tt.from, tt.to); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("Heading(%+v, %+v) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}
