package wave

import (
	"sort"

	"github.com/l1jgo/wavecore/internal/core/event"
	"github.com/l1jgo/wavecore/internal/pool"
	"github.com/l1jgo/wavecore/internal/template"
	"go.uber.org/zap"
)

type watch struct {
	cancel func()
	class  template.Class
	weight int // spawns this instance stands for; >1 after overflow reuse
	cycle  int // inst.Cycle() when watched
}

// Tracker counts the campaign's outstanding spawns down as they report
// removal and raises AllDefeated once when both counters reach zero.
type Tracker struct {
	log *zap.Logger
	bus *event.Bus

	standard  int
	boss      int
	kills     int
	signalled bool

	watches   map[*pool.Instance]*watch
	nextID    int
	listeners map[int]func()
}

func NewTracker(bus *event.Bus, log *zap.Logger) *Tracker {
	if log == nil {
		log = zap.NewNop()
	}
	return &Tracker{
		log:       log,
		bus:       bus,
		watches:   make(map[*pool.Instance]*watch),
		listeners: make(map[int]func()),
	}
}

// Reset detaches every watch and starts a new count.
func (t *Tracker) Reset(standard, boss int) {
	t.Detach()
	if standard < 0 {
		standard = 0
	}
	if boss < 0 {
		boss = 0
	}
	t.standard = standard
	t.boss = boss
	t.kills = 0
	t.signalled = false
}

func (t *Tracker) RemainingStandard() int { return t.standard }
func (t *Tracker) RemainingBoss() int     { return t.boss }
func (t *Tracker) Remaining() int         { return t.standard + t.boss }
func (t *Tracker) KillCount() int         { return t.kills }
func (t *Tracker) Signalled() bool        { return t.signalled }

// Watching returns the number of subscribed instances.
func (t *Tracker) Watching() int { return len(t.watches) }

// OnAllDefeated registers fn for the all-defeated signal. The returned
// function unregisters it.
func (t *Tracker) OnAllDefeated(fn func()) (cancel func()) {
	t.nextID++
	id := t.nextID
	t.listeners[id] = fn
	return func() { delete(t.listeners, id) }
}

// Watch subscribes to inst's removal. The subscription is one-shot: it is
// dropped when the removal arrives. An instance handed out again without
// leaving the active set, which happens on pool overflow, stands for one more
// spawn. One that went back to its pool in between gets a fresh watch.
func (t *Tracker) Watch(inst *pool.Instance, class template.Class) {
	if w, ok := t.watches[inst]; ok {
		if w.cycle == inst.Cycle() {
			w.weight++
			t.log.Debug("instance watched again after overflow",
				zap.Uint64("entity", uint64(inst.ID())),
				zap.Int("weight", w.weight))
			return
		}
		w.cancel()
		delete(t.watches, inst)
		t.log.Debug("replacing watch of recycled instance",
			zap.Uint64("entity", uint64(inst.ID())),
			zap.Int("dropped_weight", w.weight))
	}
	w := &watch{class: class, weight: 1, cycle: inst.Cycle()}
	w.cancel = inst.OnRemoved(t.onInstanceRemoved)
	t.watches[inst] = w
}

func (t *Tracker) onInstanceRemoved(inst *pool.Instance) {
	w, ok := t.watches[inst]
	if !ok {
		return
	}
	delete(t.watches, inst)
	w.cancel()
	for n := 0; n < w.weight; n++ {
		t.OnEntityRemoved(w.class)
	}
}

// OnEntityRemoved counts one defeated spawn of class.
func (t *Tracker) OnEntityRemoved(class template.Class) {
	if !t.decrement(class) {
		return
	}
	t.kills++
	if class == template.ClassBoss && t.bus != nil {
		event.Emit(t.bus, event.BossDefeated{Remaining: t.boss})
	}
	t.check()
}

// Skipped writes off n spawns of class that will never happen, such as the
// waves of a key whose template failed to load.
func (t *Tracker) Skipped(class template.Class, n int) {
	changed := false
	for ; n > 0; n-- {
		if t.decrement(class) {
			changed = true
		}
	}
	if changed {
		t.check()
	}
}

// Settle raises AllDefeated if nothing is outstanding. Counters that start
// at zero, as with a plan of empty waves, never see a decrement.
func (t *Tracker) Settle() { t.check() }

func (t *Tracker) decrement(class template.Class) bool {
	counter := &t.standard
	if class == template.ClassBoss {
		counter = &t.boss
	}
	if *counter <= 0 {
		t.log.Warn("completion counter decremented below zero",
			zap.String("class", class.String()),
			zap.Int("kills", t.kills))
		*counter = 0
		return false
	}
	*counter--
	return true
}

func (t *Tracker) check() {
	if t.signalled || t.standard != 0 || t.boss != 0 {
		return
	}
	t.signalled = true
	t.log.Info("all spawns defeated", zap.Int("kills", t.kills))
	if t.bus != nil {
		event.Emit(t.bus, event.AllDefeated{})
	}
	for _, fn := range t.snapshot() {
		fn()
	}
}

func (t *Tracker) snapshot() []func() {
	ids := make([]int, 0, len(t.listeners))
	for id := range t.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(), len(ids))
	for n, id := range ids {
		fns[n] = t.listeners[id]
	}
	return fns
}

// Detach cancels every instance subscription. Counters are kept.
func (t *Tracker) Detach() {
	for inst, w := range t.watches {
		w.cancel()
		delete(t.watches, inst)
	}
}
