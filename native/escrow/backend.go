package escrow

import (
	"context"

	"nftescrow/core/events"
)

// State is the persistence contract of the offer ledger.
type State interface {
	TradeGet(id string) (*Trade, bool, error)
	TradePut(*Trade) error
	TradeIndexAppend(identity [20]byte, id string) error
	TradeIDsOf(identity [20]byte) ([]string, error)
}

// Registry is the external asset-ownership registry. Implementations receive
// the call context of the escrow operation that invoked them and must pass
// that same ctx on any callback into the engine. Reads made with it observe
// the in-flight call and writes fail with ErrReentrantCall. A fresh context
// waits on the engine lock held by the invoking operation and never completes.
type Registry interface {
	OwnerOf(ctx context.Context, item Item) ([20]byte, error)
	IsApproved(ctx context.Context, owner, operator [20]byte, item Item) (bool, error)
	Transfer(ctx context.Context, operator, from, to [20]byte, item Item) error
}

// Tx scopes the ledger and registry writes of a single entry point call.
// Nothing becomes visible until Commit succeeds.
type Tx interface {
	State() State
	Registry() Registry
	Commit() error
	Discard()
}

// Backend opens transactions. Events raised by collaborators inside the
// transaction must be sent to the supplied emitter.
type Backend interface {
	Begin(ctx context.Context, emitter events.Emitter) (Tx, error)
}
