package wave

import (
	"math"
	"math/rand"

	"github.com/l1jgo/wavecore/internal/pool"
)

// Placement decides where a spawn appears, which way it faces, and where it
// walks to.
type Placement interface {
	Place(s Slot) (position pool.Vec3, orientation float64, destination pool.Vec3)
}

// Rect is an axis-aligned spawn area on the ground plane.
type Rect struct {
	MinX, MinZ float64
	MaxX, MaxZ float64
	Y          float64
}

// Random returns a uniform point inside r.
func (r Rect) Random(rng *rand.Rand) pool.Vec3 {
	return pool.Vec3{
		X: r.MinX + rng.Float64()*(r.MaxX-r.MinX),
		Y: r.Y,
		Z: r.MinZ + rng.Float64()*(r.MaxZ-r.MinZ),
	}
}

// Center returns the middle of r.
func (r Rect) Center() pool.Vec3 {
	return pool.Vec3{X: (r.MinX + r.MaxX) / 2, Y: r.Y, Z: (r.MinZ + r.MaxZ) / 2}
}

// AreaPlacement spawns standard entities at random points of one area and
// bosses at the centre of another, all walking to the same destination.
type AreaPlacement struct {
	Normal      Rect
	Boss        Rect
	Destination pool.Vec3
	rng         *rand.Rand
}

func NewAreaPlacement(normal, boss Rect, dest pool.Vec3, seed int64) *AreaPlacement {
	return &AreaPlacement{
		Normal:      normal,
		Boss:        boss,
		Destination: dest,
		rng:         rand.New(rand.NewSource(seed)),
	}
}

func (a *AreaPlacement) Place(s Slot) (pool.Vec3, float64, pool.Vec3) {
	var pos pool.Vec3
	if s.Boss && s.Wave < 0 {
		pos = a.Boss.Center()
	} else {
		pos = a.Normal.Random(a.rng)
	}
	return pos, Heading(pos, a.Destination), a.Destination
}

// Heading returns the yaw in radians that faces from toward to.
func Heading(from, to pool.Vec3) float64 {
	d := to.Sub(from)
	if d.X == 0 && d.Z == 0 {
		return 0
	}
	return math.Atan2(d.X, d.Z)
}
