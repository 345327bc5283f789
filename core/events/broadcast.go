package events

import (
	"sync"

	"nftescrow/core/types"
)

// Broadcaster delivers committed events to live subscribers such as websocket
// streams. Slow subscribers drop events rather than stall the emitter.
type Broadcaster struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[uint64]chan *types.Event
	buffer int
}

// NewBroadcaster constructs a broadcaster whose subscriber channels hold up to
// buffer pending events.
func NewBroadcaster(buffer int) *Broadcaster {
	if buffer <= 0 {
		buffer = 64
	}
	return &Broadcaster{subs: make(map[uint64]chan *types.Event), buffer: buffer}
}

// Subscribe registers a new listener. The returned cancel function must be
// invoked to release resources.
func (b *Broadcaster) Subscribe() (<-chan *types.Event, func()) {
	ch := make(chan *types.Event, b.buffer)
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Subscribers reports the number of active listeners.
func (b *Broadcaster) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

func (b *Broadcaster) Emit(evt Event) {
	payload := ToTypes(evt)
	if payload == nil {
		return
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- payload.Clone():
		default:
		}
	}
}
