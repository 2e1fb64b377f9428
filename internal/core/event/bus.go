package event

import (
	"reflect"
	"sync"
)

// Bus is a double-buffered event bus. Events emitted in tick N are readable
// in tick N+1. SwapBuffers() is called at tick start by EventDispatchSystem.
//
// Emit and DispatchAll belong to the game loop. Post is the only entry point
// that may be called from other goroutines (template loaders); posted events
// join the back buffer at the next swap, so their handlers still run on the
// game loop.
type Bus struct {
	mu       sync.Mutex // protects handlers, nextID and inbox
	front    []envelope
	back     []envelope
	inbox    []envelope
	handlers map[reflect.Type][]handler
	nextID   uint64
}

type envelope struct {
	t  reflect.Type
	ev any
}

type handler struct {
	id uint64
	fn func(any)
}

// Subscription identifies one registered handler.
type Subscription struct {
	bus *Bus
	t   reflect.Type
	id  uint64
}

func NewBus() *Bus {
	return &Bus{
		front:    make([]envelope, 0, 64),
		back:     make([]envelope, 0, 64),
		handlers: make(map[reflect.Type][]handler),
	}
}

func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// Emit queues an event into the back buffer (will be readable next tick).
func Emit[T any](b *Bus, event T) {
	b.back = append(b.back, envelope{t: typeOf[T](), ev: event})
}

// Post queues an event from any goroutine.
func Post[T any](b *Bus, event T) {
	b.mu.Lock()
	b.inbox = append(b.inbox, envelope{t: typeOf[T](), ev: event})
	b.mu.Unlock()
}

// Subscribe registers a typed handler for events of type T.
func Subscribe[T any](b *Bus, fn func(T)) Subscription {
	t := typeOf[T]()
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	b.handlers[t] = append(b.handlers[t], handler{
		id: b.nextID,
		fn: func(ev any) { fn(ev.(T)) },
	})
	return Subscription{bus: b, t: t, id: b.nextID}
}

// Cancel removes the handler. Cancelling twice, or cancelling the zero
// Subscription, is a no-op.
func (s Subscription) Cancel() {
	if s.bus == nil {
		return
	}
	b := s.bus
	b.mu.Lock()
	defer b.mu.Unlock()
	hs := b.handlers[s.t]
	for i, h := range hs {
		if h.id == s.id {
			b.handlers[s.t] = append(hs[:i:i], hs[i+1:]...)
			return
		}
	}
}

// SwapBuffers moves posted events into the back buffer, then rotates
// back→front and clears the new back buffer. Called once at tick start.
func (b *Bus) SwapBuffers() {
	b.mu.Lock()
	b.back = append(b.back, b.inbox...)
	b.inbox = b.inbox[:0]
	b.mu.Unlock()

	b.front, b.back = b.back, b.front[:0]
}

// DispatchAll delivers all front-buffer events, in emission order, to the
// handlers subscribed at the moment each event is delivered.
func (b *Bus) DispatchAll() {
	for _, env := range b.front {
		b.mu.Lock()
		hs := append([]handler(nil), b.handlers[env.t]...)
		b.mu.Unlock()
		for _, h := range hs {
			h.fn(env.ev)
		}
	}
	b.front = b.front[:0]
}

// Pending reports how many events wait for the next dispatch.
func (b *Bus) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.back) + len(b.inbox)
}
