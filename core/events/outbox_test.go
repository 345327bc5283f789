package events

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

type callbackEmitter struct {
	seen []Event
	on   func(Event)
}

func (c *callbackEmitter) Emit(evt Event) {
	c.seen = append(c.seen, evt)
	if c.on != nil {
		c.on(evt)
	}
}

func TestOutboxDrainsInCommitOrder(t *testing.T) {
	var box Outbox
	box.Enqueue([]Event{TokenMinted{TokenID: big.NewInt(1)}, TokenTransferred{TokenID: big.NewInt(1)}})
	box.Enqueue(nil)
	box.Enqueue([]Event{TokenMinted{TokenID: big.NewInt(2)}})

	rec := &recorder{}
	box.Drain(rec)
	require.Len(t, rec.events, 3)
	require.Equal(t, TypeTokenMinted, rec.events[0].EventType())
	require.Equal(t, TypeTokenTransferred, rec.events[1].EventType())
	require.Equal(t, 0, rec.events[2].(TokenMinted).TokenID.Cmp(big.NewInt(2)))

	again := &recorder{}
	box.Drain(again)
	require.Empty(t, again.events)
}

func TestOutboxNestedBatchFollowsCurrent(t *testing.T) {
	var box Outbox
	em := &callbackEmitter{}
	nested := false
	em.on = func(evt Event) {
		if nested {
			return
		}
		nested = true
		// An emitter that triggers another commit enqueues and drains again.
		box.Enqueue([]Event{TokenMinted{TokenID: big.NewInt(9)}})
		box.Drain(em)
	}
	box.Enqueue([]Event{TokenMinted{TokenID: big.NewInt(1)}, TokenMinted{TokenID: big.NewInt(2)}})
	box.Drain(em)

	require.Len(t, em.seen, 3)
	for i, want := range []int64{1, 2, 9} {
		require.Equal(t, 0, em.seen[i].(TokenMinted).TokenID.Cmp(big.NewInt(want)))
	}
}

func TestOutboxNilEmitterDiscards(t *testing.T) {
	var box Outbox
	box.Enqueue([]Event{TokenMinted{}})
	box.Drain(nil)
	rec := &recorder{}
	box.Drain(rec)
	require.Empty(t, rec.events)
}
