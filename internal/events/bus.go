// Package events provides the publish/subscribe bus that domain managers use
// to announce completed mutations. Each economy instance owns its own Bus, so
// handlers registered on one instance never see events from another.
package events

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// Handler receives the payload of an emitted event.
type Handler func(payload any)

type subscription struct {
	id   uint64
	fn   Handler
	once bool
}

// Bus dispatches events to registered handlers.
type Bus struct {
	mu       sync.RWMutex
	nextID   uint64
	handlers map[Name][]subscription
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[Name][]subscription),
	}
}

// On registers fn for name. The returned func removes the registration.
func (b *Bus) On(name Name, fn Handler) func() {
	return b.subscribe(name, fn, false)
}

// Once registers fn for the next emission of name only.
func (b *Bus) Once(name Name, fn Handler) func() {
	return b.subscribe(name, fn, true)
}

func (b *Bus) subscribe(name Name, fn Handler, once bool) func() {
	if fn == nil {
		return func() {}
	}

	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.handlers[name] = append(b.handlers[name], subscription{id: id, fn: fn, once: once})
	b.mu.Unlock()

	return func() { b.remove(name, id) }
}

func (b *Bus) remove(name Name, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.handlers[name]
	for i, s := range subs {
		if s.id == id {
			b.handlers[name] = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	if len(b.handlers[name]) == 0 {
		delete(b.handlers, name)
	}
}

// Off removes every handler registered for name and returns how many were
// removed.
func (b *Bus) Off(name Name) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := len(b.handlers[name])
	delete(b.handlers, name)
	return n
}

// Emit calls every handler registered for name, in registration order, and
// returns the number of handlers called. Handlers run on the caller's
// goroutine after the bus lock is released, so they may subscribe or emit.
func (b *Bus) Emit(name Name, payload any) int {
	b.mu.Lock()
	subs := b.handlers[name]
	if len(subs) == 0 {
		b.mu.Unlock()
		return 0
	}
	called := make([]Handler, 0, len(subs))
	kept := subs[:0:0]
	for _, s := range subs {
		called = append(called, s.fn)
		if !s.once {
			kept = append(kept, s)
		}
	}
	if len(kept) == 0 {
		delete(b.handlers, name)
	} else {
		b.handlers[name] = kept
	}
	b.mu.Unlock()

	for _, fn := range called {
		b.dispatch(name, fn, payload)
	}
	return len(called)
}

// dispatch isolates the emitter from a panicking handler.
func (b *Bus) dispatch(name Name, fn Handler, payload any) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("event", string(name)).
				Interface("panic", r).
				Msg("Event handler panicked")
		}
	}()
	fn(payload)
}

// Count returns the number of handlers registered for name.
func (b *Bus) Count(name Name) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[name])
}
