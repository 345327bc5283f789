package events

import (
	"sync"

	"nftescrow/core/types"
)

// Event represents a structured state change emitted by a native module.
type Event interface {
	EventType() string
}

// Payload is implemented by events that expose a canonical attribute map.
type Payload interface {
	Event() *types.Event
}

// Emitter broadcasts events to downstream subscribers (e.g. RPC, event log).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter is a helper that satisfies the Emitter interface while discarding
// all events. It is useful when a component wants to optionally expose events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// ToTypes resolves the attribute payload for an event, falling back to a bare
// type-only record.
func ToTypes(evt Event) *types.Event {
	if evt == nil {
		return nil
	}
	if p, ok := evt.(Payload); ok {
		if out := p.Event(); out != nil {
			return out.Clone()
		}
	}
	return &types.Event{Type: evt.EventType(), Attributes: map[string]string{}}
}

// Buffer collects events until Flush hands them to a downstream emitter. Writes
// performed inside a transaction emit into a Buffer so nothing leaks before
// commit.
type Buffer struct {
	mu     sync.Mutex
	events []Event
}

func (b *Buffer) Emit(evt Event) {
	if evt == nil {
		return
	}
	b.mu.Lock()
	b.events = append(b.events, evt)
	b.mu.Unlock()
}

// Events returns a snapshot of the buffered events.
func (b *Buffer) Events() []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Event(nil), b.events...)
}

// Flush forwards the buffered events in emission order and resets the buffer.
func (b *Buffer) Flush(to Emitter) {
	b.mu.Lock()
	pending := b.events
	b.events = nil
	b.mu.Unlock()
	if to == nil {
		return
	}
	for _, evt := range pending {
		to.Emit(evt)
	}
}

// Reset drops every buffered event.
func (b *Buffer) Reset() {
	b.mu.Lock()
	b.events = nil
	b.mu.Unlock()
}

// Multi fans one event out to several emitters in order.
type Multi []Emitter

func (m Multi) Emit(evt Event) {
	for _, e := range m {
		if e != nil {
			e.Emit(evt)
		}
	}
}
