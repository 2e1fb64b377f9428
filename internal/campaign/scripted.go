package campaign

import (
	"github.com/l1jgo/wavecore/internal/pool"
	"github.com/l1jgo/wavecore/internal/scripting"
	"github.com/l1jgo/wavecore/internal/wave"
)

// scriptPlacement asks Lua spawn_position for each spawn and falls back to
// the configured areas when the script returns nothing.
type scriptPlacement struct {
	engine   *scripting.Engine
	fallback wave.Placement
	dest     pool.Vec3
}

func (p *scriptPlacement) Place(s wave.Slot) (pool.Vec3, float64, pool.Vec3) {
	pt := p.engine.SpawnPosition(scripting.SpawnContext{
		WaveID: s.WaveID,
		Index:  s.Index,
		Key:    s.Key.Name,
		Tier:   s.Tier,
		Boss:   s.Boss,
	})
	if pt == nil {
		return p.fallback.Place(s)
	}
	pos := pool.Vec3{X: pt.X, Y: pt.Y, Z: pt.Z}
	heading := wave.Heading(pos, p.dest)
	if pt.HasHead {
		heading = pt.Heading
	}
	return pos, heading, p.dest
}

// scriptTiers resolves tier scaling through Lua tier_stats.
type scriptTiers struct {
	engine *scripting.Engine
}

func (t scriptTiers) Tier(level int) pool.Tier {
	st := t.engine.GetTierStats(level)
	if st == nil {
		return pool.BaseTier(level)
	}
	return pool.Tier{
		Level:  level,
		HP:     st.HP,
		Speed:  st.Speed,
		Damage: st.Damage,
		Exp:    st.Exp,
	}
}
