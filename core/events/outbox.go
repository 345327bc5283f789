package events

import "sync"

// Outbox publishes committed event batches in commit order. Producers enqueue
// while holding their own lock and drain after releasing it, so an emitter may
// call back into the producer without deadlocking. A drain started while
// another is running returns at once; the running drain picks up the batch.
type Outbox struct {
	mu       sync.Mutex
	queue    []Event
	draining bool
}

// Enqueue appends a committed batch.
func (o *Outbox) Enqueue(evts []Event) {
	if len(evts) == 0 {
		return
	}
	o.mu.Lock()
	o.queue = append(o.queue, evts...)
	o.mu.Unlock()
}

// Drain forwards queued events to the emitter until the queue is empty. The
// outbox lock is not held while the emitter runs.
func (o *Outbox) Drain(to Emitter) {
	o.mu.Lock()
	if o.draining {
		o.mu.Unlock()
		return
	}
	o.draining = true
	for len(o.queue) > 0 {
		evt := o.queue[0]
		o.queue[0] = nil
		o.queue = o.queue[1:]
		o.mu.Unlock()
		if to != nil {
			to.Emit(evt)
		}
		o.mu.Lock()
	}
	o.queue = nil
	o.draining = false
	o.mu.Unlock()
}

