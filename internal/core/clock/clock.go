// Package clock provides the monotonic game clock that every campaign
// timestamp is measured against.
package clock

import "time"

// Clock accumulates game time from runner ticks, scaled by the top of a
// time-scale stack. A scale of 0 freezes game time while ticks keep flowing.
type Clock struct {
	now    time.Duration
	scales []float64
}

func New() *Clock {
	return &Clock{scales: []float64{1}}
}

// Now returns the game time elapsed since the clock was created or reset.
func (c *Clock) Now() time.Duration { return c.now }

// Scale returns the active time scale.
func (c *Clock) Scale() float64 { return c.scales[len(c.scales)-1] }

// Advance moves game time forward by dt scaled by the active time scale.
func (c *Clock) Advance(dt time.Duration) time.Duration {
	if dt <= 0 {
		return 0
	}
	step := time.Duration(float64(dt) * c.Scale())
	c.now += step
	return step
}

// Push applies a temporary scale (pause menu, level-up card pick).
// Negative scales are treated as 0.
func (c *Clock) Push(scale float64) {
	if scale < 0 {
		scale = 0
	}
	c.scales = append(c.scales, scale)
}

// Pop restores the previous scale. The base scale is never popped; Pop
// reports false in that case.
func (c *Clock) Pop() bool {
	if len(c.scales) <= 1 {
		return false
	}
	c.scales = c.scales[:len(c.scales)-1]
	return true
}

// Set replaces the active scale (game speed 1x / 1.5x / 2x).
func (c *Clock) Set(scale float64) {
	if scale < 0 {
		scale = 0
	}
	c.scales[len(c.scales)-1] = scale
}

// Freeze stops game time until Thaw or Reset.
func (c *Clock) Freeze() { c.Push(0) }

// Thaw drops every pushed scale and restores the base scale.
func (c *Clock) Thaw() { c.scales = c.scales[:1] }

// Frozen reports whether game time is currently stopped.
func (c *Clock) Frozen() bool { return c.Scale() == 0 }

// Reset rewinds game time to zero and restores a 1x scale.
func (c *Clock) Reset() {
	c.now = 0
	c.scales = c.scales[:1]
	c.scales[0] = 1
}
