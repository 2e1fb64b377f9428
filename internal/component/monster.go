package component

import (
	"time"

	"github.com/l1jgo/wavecore/internal/pool"
)

// Motion moves a spawned instance toward its destination.
// Pure data, zero methods: all mutations happen in system functions.
type Motion struct {
	Inst    *pool.Instance
	Speed   float64 // units per second, tier applied
	Arrived bool
}

// Monster stores the combat state of a spawned wave entity.
type Monster struct {
	Key   string
	Level int
	Boss  bool
	Exp   int

	HP    float64
	MaxHP float64

	Damage         float64 // per attack on the defense target
	AttackInterval time.Duration
	AttackTimer    time.Duration // counts down to the next attack

	Dead  bool
	Ready bool // stats resolved from template and tier
}
