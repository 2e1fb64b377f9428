package wave

import (
	"time"

	"github.com/l1jgo/wavecore/internal/pool"
)

// Slot is one scheduled spawn.
type Slot struct {
	WaveID int
	Wave   int // position in the plan, -1 for the boss
	Index  int // spawn index within the wave
	Key    pool.Key
	Tier   int
	Boss   bool
	Due    time.Duration // from campaign start
}

// Schedule lays out every spawn of plan against campaign start.
//
// A wave starts at its offset, or when the previous wave's last spawn is
// due if that is later; waves never overlap. Spawn k+1 of a wave is due one
// interval after spawn k. The boss is due with the last wave spawn and
// comes after it. Waves for which skip returns true are left out entirely.
func Schedule(p *Plan, skip func(pool.Key) bool) []Slot {
	var slots []Slot
	var last time.Duration
	for n, w := range p.waves {
		if w.Count == 0 || (skip != nil && skip(w.Key)) {
			continue
		}
		due := w.Offset
		if due < last {
			due = last
		}
		for i := 0; i < w.Count; i++ {
			if i > 0 {
				due += w.Interval
			}
			slots = append(slots, Slot{
				WaveID: w.ID,
				Wave:   n,
				Index:  i,
				Key:    w.Key,
				Tier:   w.Tier,
				Boss:   w.Boss,
				Due:    due,
			})
		}
		last = due
	}
	if b := p.boss; b != nil && (skip == nil || !skip(b.Key)) {
		slots = append(slots, Slot{
			Wave: -1,
			Key:  b.Key,
			Tier: b.Tier,
			Boss: true,
			Due:  last,
		})
	}
	return slots
}
