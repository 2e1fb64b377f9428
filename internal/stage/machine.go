// Package stage holds the Playing/Cleared/Failed state machine of one
// campaign and the timer and defense target that can end it.
package stage

import (
	"github.com/l1jgo/wavecore/internal/core/event"
	"go.uber.org/zap"
)

type State uint8

const (
	Playing State = iota
	Cleared
	Failed
)

func (s State) String() string {
	switch s {
	case Playing:
		return "playing"
	case Cleared:
		return "cleared"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// Terminal reports whether s ends the campaign.
func (s State) Terminal() bool { return s != Playing }

// Cause names the signal behind a transition.
type Cause uint8

const (
	CauseAllDefeated Cause = iota + 1
	CauseDefenseDestroyed
	CauseTimeExpired
	CauseReset
)

func (c Cause) String() string {
	switch c {
	case CauseAllDefeated:
		return "all_defeated"
	case CauseDefenseDestroyed:
		return "defense_destroyed"
	case CauseTimeExpired:
		return "time_expired"
	case CauseReset:
		return "reset"
	}
	return "unknown"
}

// StateChanged is emitted on the bus for every transition.
type StateChanged struct {
	From, To State
	Cause    Cause
}

// Counters is the completion count the machine consults and zeroes.
type Counters interface {
	RemainingStandard() int
	RemainingBoss() int
	Reset(standard, boss int)
}

// Freezer stops gameplay time when the campaign ends.
type Freezer interface {
	Freeze()
	Thaw()
}

// Machine moves a campaign from Playing to Cleared or Failed. Cleared and
// Failed are terminal until Reset.
type Machine struct {
	log      *zap.Logger
	bus      *event.Bus
	counters Counters
	freezer  Freezer

	state     State
	cause     Cause
	subs      []event.Subscription
	nextID    int
	listeners []stateListener
}

type stateListener struct {
	id int
	fn func(StateChanged)
}

func NewMachine(bus *event.Bus, counters Counters, freezer Freezer, log *zap.Logger) *Machine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Machine{log: log, bus: bus, counters: counters, freezer: freezer}
}

// Attach subscribes the machine to the campaign signals on the bus.
func (m *Machine) Attach() {
	if m.bus == nil || len(m.subs) > 0 {
		return
	}
	m.subs = append(m.subs,
		event.Subscribe(m.bus, func(event.AllDefeated) { m.AllDefeated() }),
		event.Subscribe(m.bus, func(event.DefenseDestroyed) { m.DefenseDestroyed() }),
		event.Subscribe(m.bus, func(event.TimeExpired) { m.TimeExpired() }),
	)
}

// Detach drops the bus subscriptions.
func (m *Machine) Detach() {
	for _, s := range m.subs {
		s.Cancel()
	}
	m.subs = nil
}

func (m *Machine) State() State { return m.state }

// Cause returns the signal that ended the campaign, zero while playing.
func (m *Machine) Cause() Cause { return m.cause }

// OnStateChanged registers fn for transitions. The returned function
// unregisters it.
func (m *Machine) OnStateChanged(fn func(StateChanged)) (cancel func()) {
	m.nextID++
	id := m.nextID
	m.listeners = append(m.listeners, stateListener{id: id, fn: fn})
	return func() {
		for n, l := range m.listeners {
			if l.id == id {
				m.listeners = append(m.listeners[:n:n], m.listeners[n+1:]...)
				return
			}
		}
	}
}

func (m *Machine) AllDefeated() { m.transition(Cleared, CauseAllDefeated) }

func (m *Machine) DefenseDestroyed() { m.transition(Failed, CauseDefenseDestroyed) }

// TimeExpired fails the campaign if anything is left alive, otherwise
// clears it.
func (m *Machine) TimeExpired() {
	if m.counters != nil && m.counters.RemainingStandard()+m.counters.RemainingBoss() > 0 {
		m.transition(Failed, CauseTimeExpired)
		return
	}
	m.transition(Cleared, CauseTimeExpired)
}

func (m *Machine) transition(to State, cause Cause) {
	if m.state.Terminal() {
		m.log.Debug("stage signal ignored in terminal state",
			zap.String("state", m.state.String()),
			zap.String("cause", cause.String()))
		return
	}
	from := m.state
	m.state = to
	m.cause = cause
	if m.freezer != nil {
		m.freezer.Freeze()
	}
	m.log.Info("stage ended",
		zap.String("state", to.String()),
		zap.String("cause", cause.String()))
	m.notify(StateChanged{From: from, To: to, Cause: cause})
}

// Reset restores Playing, zeroes both counters and resumes game time.
func (m *Machine) Reset() {
	from := m.state
	m.state = Playing
	m.cause = 0
	if m.counters != nil {
		m.counters.Reset(0, 0)
	}
	if m.freezer != nil {
		m.freezer.Thaw()
	}
	if from != Playing {
		m.notify(StateChanged{From: from, To: Playing, Cause: CauseReset})
	}
}

func (m *Machine) notify(ev StateChanged) {
	if m.bus != nil {
		event.Emit(m.bus, ev)
	}
	ls := append([]stateListener(nil), m.listeners...)
	for _, l := range ls {
		l.fn(ev)
	}
}
