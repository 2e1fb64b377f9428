package scripting

import (
	"fmt"
	"os"
	"path/filepath"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// Engine wraps a single gopher-lua VM for content hooks.
// Single-goroutine access only (game loop).
type Engine struct {
	vm  *lua.LState
	log *zap.Logger
}

// NewEngine creates a Lua engine and loads all scripts from the given directory.
func NewEngine(scriptsDir string, log *zap.Logger) (*Engine, error) {
	e := newEngine(log)

	// Load core scripts first, then feature scripts
	for _, sub := range []string{"core", "wave", "stage"} {
		p := filepath.Join(scriptsDir, sub)
		if err := e.loadDir(p); err != nil {
			e.vm.Close()
			return nil, fmt.Errorf("load %s scripts: %w", sub, err)
		}
	}
	return e, nil
}

// NewEngineFromString creates an engine running a single chunk of Lua source.
func NewEngineFromString(src string, log *zap.Logger) (*Engine, error) {
	e := newEngine(log)
	if err := e.vm.DoString(src); err != nil {
		e.vm.Close()
		return nil, fmt.Errorf("load lua source: %w", err)
	}
	return e, nil
}

func newEngine(log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	vm := lua.NewState(lua.Options{
		SkipOpenLibs: false,
	})

	// Set API version global
	vm.SetGlobal("API_VERSION", lua.LNumber(1))
	return &Engine{vm: vm, log: log}
}

// loadDir loads all .lua files in a directory.
func (e *Engine) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // skip missing dirs
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := e.vm.DoFile(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		e.log.Debug("loaded lua script", zap.String("file", path))
	}
	return nil
}

// Has reports whether a global Lua function is defined.
func (e *Engine) Has(name string) bool {
	_, ok := e.vm.GetGlobal(name).(*lua.LFunction)
	return ok
}

// --- Spawn Placement Bridge ---

// SpawnContext describes the spawn a position is requested for.
type SpawnContext struct {
	WaveID int
	Index  int
	Key    string
	Tier   int
	Boss   bool
}

// SpawnPoint is returned by the Lua spawn_position function.
type SpawnPoint struct {
	X, Y, Z float64
	Heading float64
	HasHead bool // script chose a heading
}

// SpawnPosition calls Lua spawn_position(ctx). Nil means the script has no
// opinion and the caller should fall back to its own placement.
func (e *Engine) SpawnPosition(ctx SpawnContext) *SpawnPoint {
	fn := e.vm.GetGlobal("spawn_position")
	if fn == lua.LNil {
		return nil
	}

	t := e.vm.NewTable()
	t.RawSetString("wave_id", lua.LNumber(ctx.WaveID))
	t.RawSetString("index", lua.LNumber(ctx.Index))
	t.RawSetString("key", lua.LString(ctx.Key))
	t.RawSetString("tier", lua.LNumber(ctx.Tier))
	t.RawSetString("boss", lua.LBool(ctx.Boss))

	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, t); err != nil {
		e.log.Error("lua spawn_position error", zap.Error(err))
		return nil
	}

	result := e.vm.Get(-1)
	e.vm.Pop(1)

	rt, ok := result.(*lua.LTable)
	if !ok {
		return nil
	}

	p := &SpawnPoint{
		X: lNum(rt, "x"),
		Y: lNum(rt, "y"),
		Z: lNum(rt, "z"),
	}
	if h := rt.RawGetString("heading"); h != lua.LNil {
		p.Heading = float64(lua.LVAsNumber(h))
		p.HasHead = true
	}
	return p
}

// --- Tier Bridge ---

// TierStats are the multipliers a tier applies to template stats.
type TierStats struct {
	HP     float64
	Speed  float64
	Damage float64
	Exp    int
}

// GetTierStats calls Lua tier_stats(level). Missing fields default to 1
// (no scaling) and 0 bonus exp.
func (e *Engine) GetTierStats(level int) *TierStats {
	fn := e.vm.GetGlobal("tier_stats")
	if fn == lua.LNil {
		return nil
	}

	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, lua.LNumber(level)); err != nil {
		e.log.Error("lua tier_stats error", zap.Int("level", level), zap.Error(err))
		return nil
	}

	result := e.vm.Get(-1)
	e.vm.Pop(1)

	rt, ok := result.(*lua.LTable)
	if !ok {
		e.log.Error("lua tier_stats returned non-table", zap.Int("level", level))
		return nil
	}

	return &TierStats{
		HP:     lNumOr(rt, "hp", 1),
		Speed:  lNumOr(rt, "speed", 1),
		Damage: lNumOr(rt, "damage", 1),
		Exp:    lInt(rt, "exp"),
	}
}

// --- Defense Bridge ---

// CalcDefenseDamage calls Lua calc_defense_damage(dps, seconds, boss) and
// returns the damage the defenders deal this tick. Without the script the
// plain dps * seconds is used.
func (e *Engine) CalcDefenseDamage(dps, seconds float64, boss bool) float64 {
	fn := e.vm.GetGlobal("calc_defense_damage")
	if fn == lua.LNil {
		return dps * seconds
	}

	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, lua.LNumber(dps), lua.LNumber(seconds), lua.LBool(boss)); err != nil {
		e.log.Error("lua calc_defense_damage error", zap.Error(err))
		return dps * seconds
	}

	result := e.vm.Get(-1)
	e.vm.Pop(1)
	return float64(lua.LVAsNumber(result))
}

// CalcKillExp calls Lua calc_kill_exp(base_exp, level).
func (e *Engine) CalcKillExp(baseExp, level int) int {
	if !e.Has("calc_kill_exp") {
		return baseExp
	}
	return e.callIntFunc("calc_kill_exp", baseExp, level)
}

// --- Lua helpers ---

// lInt reads an integer field from a Lua table.
func lInt(t *lua.LTable, key string) int {
	return int(lua.LVAsNumber(t.RawGetString(key)))
}

// lNum reads a float field from a Lua table.
func lNum(t *lua.LTable, key string) float64 {
	return float64(lua.LVAsNumber(t.RawGetString(key)))
}

// lNumOr reads a float field, or def when the field is absent.
func lNumOr(t *lua.LTable, key string, def float64) float64 {
	v := t.RawGetString(key)
	if v == lua.LNil {
		return def
	}
	return float64(lua.LVAsNumber(v))
}

// callIntFunc calls a Lua function with int args and returns an int result.
func (e *Engine) callIntFunc(name string, args ...int) int {
	fn := e.vm.GetGlobal(name)
	if fn == lua.LNil {
		e.log.Error("lua function not found", zap.String("name", name))
		return 0
	}

	lArgs := make([]lua.LValue, len(args))
	for i, a := range args {
		lArgs[i] = lua.LNumber(a)
	}

	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, lArgs...); err != nil {
		e.log.Error("lua call error", zap.String("func", name), zap.Error(err))
		return 0
	}

	result := e.vm.Get(-1)
	e.vm.Pop(1)
	return int(lua.LVAsNumber(result))
}

// Close shuts down the Lua VM.
func (e *Engine) Close() {
	e.vm.Close()
}
