package escrow

import (
	"encoding/hex"
	"strconv"
	"strings"

	"nftescrow/core/types"
	"nftescrow/crypto"
)

const (
	EventTypeTradeCreated   = "escrow.trade.created"
	EventTypeTradeDeposited = "escrow.trade.deposited"
	EventTypeTradeWithdrawn = "escrow.trade.withdrawn"
	EventTypeTradeLocked    = "escrow.trade.locked"
	EventTypeTradeSettled   = "escrow.trade.settled"
	EventTypeTradeCancelled = "escrow.trade.cancelled"
)

type escrowEvent struct {
	evt *types.Event
}

func (e escrowEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e escrowEvent) Event() *types.Event { return e.evt }

// NewTradeCreatedEvent emits the canonical payload for a newly created trade.
func NewTradeCreatedEvent(t *Trade) *types.Event {
	return newTradeEvent(EventTypeTradeCreated, t, nil)
}

// NewTradeDepositedEvent records items moved into custody by one side.
func NewTradeDepositedEvent(t *Trade, caller [20]byte, side Side, items []Item) *types.Event {
	return newTradeEvent(EventTypeTradeDeposited, t, map[string]string{
		"caller": crypto.FormatAccount(caller),
		"side":   side.String(),
		"items":  formatItems(items),
	})
}

// NewTradeWithdrawnEvent records items returned to a depositor before closure.
func NewTradeWithdrawnEvent(t *Trade, caller [20]byte, side Side, items []Item) *types.Event {
	return newTradeEvent(EventTypeTradeWithdrawn, t, map[string]string{
		"caller": crypto.FormatAccount(caller),
		"side":   side.String(),
		"items":  formatItems(items),
	})
}

// NewTradeLockedEvent records a side locking its complete deposit.
func NewTradeLockedEvent(t *Trade, caller [20]byte, side Side) *types.Event {
	return newTradeEvent(EventTypeTradeLocked, t, map[string]string{
		"caller": crypto.FormatAccount(caller),
		"side":   side.String(),
	})
}

// NewTradeSettledEvent emits the payload once both bundles changed hands.
func NewTradeSettledEvent(t *Trade) *types.Event {
	return newTradeEvent(EventTypeTradeSettled, t, map[string]string{
		"deliveredToA": formatItems(t.DepositedByB),
		"deliveredToB": formatItems(t.DepositedByA),
	})
}

// NewTradeCancelledEvent records the cancelling identity and the refunds.
func NewTradeCancelledEvent(t *Trade, caller [20]byte, side Side) *types.Event {
	return newTradeEvent(EventTypeTradeCancelled, t, map[string]string{
		"caller":      crypto.FormatAccount(caller),
		"side":        side.String(),
		"refundedToA": formatItems(t.DepositedByA),
		"refundedToB": formatItems(t.DepositedByB),
	})
}

func newTradeEvent(eventType string, t *Trade, extra map[string]string) *types.Event {
	attrs := map[string]string{}
	if t != nil {
		attrs["tradeId"] = t.ID
		attrs["partyA"] = crypto.FormatAccount(t.PartyA)
		attrs["partyB"] = crypto.FormatAccount(t.PartyB)
		attrs["owner"] = crypto.FormatAccount(t.Owner)
		attrs["status"] = t.Status.String()
		attrs["termsHash"] = "0x" + hex.EncodeToString(t.TermsHash[:])
		attrs["closed"] = strconv.FormatBool(t.Closed)
	}
	for k, v := range extra {
		attrs[k] = v
	}
	return &types.Event{Type: eventType, Attributes: attrs}
}

func formatItems(items []Item) string {
	parts := make([]string, 0, len(items))
	for _, it := range items {
		parts = append(parts, it.String())
	}
	return strings.Join(parts, ",")
}
