package wave

import "github.com/l1jgo/wavecore/internal/pool"

// TierSource resolves a wave's tier reference into stat scaling.
type TierSource interface {
	Tier(level int) pool.Tier
}

// TierFunc adapts a function to TierSource.
type TierFunc func(level int) pool.Tier

func (f TierFunc) Tier(level int) pool.Tier { return f(level) }

// BaseTiers leaves every tier at template stats.
var BaseTiers TierSource = TierFunc(pool.BaseTier)
