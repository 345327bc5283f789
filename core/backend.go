package core

import (
	"context"
	"sync"

	"nftescrow/core/events"
	escrowstate "nftescrow/core/state"
	"nftescrow/native/escrow"
	nativecommon "nftescrow/native/common"
	"nftescrow/native/registry"
)

// stateBackend opens one session at a time so escrow and registry calls are
// linearised over the shared store.
type stateBackend struct {
	mu      sync.Mutex
	manager *escrowstate.Manager
	pauses  nativecommon.PauseView
	nowFn   func() int64
}

type stateTx struct {
	session  *escrowstate.Session
	registry *registry.Engine
	release  func()
	once     sync.Once
}

func (b *stateBackend) begin(emitter events.Emitter) *stateTx {
	b.mu.Lock()
	session := b.manager.Begin()
	reg := registry.NewEngine()
	reg.SetState(session)
	reg.SetEmitter(emitter)
	reg.SetPauses(b.pauses)
	reg.SetNowFunc(b.nowFn)
	return &stateTx{session: session, registry: reg, release: b.mu.Unlock}
}

// Begin implements escrow.Backend.
func (b *stateBackend) Begin(_ context.Context, emitter events.Emitter) (escrow.Tx, error) {
	return b.begin(emitter), nil
}

func (t *stateTx) State() escrow.State { return t.session }

func (t *stateTx) Registry() escrow.Registry { return registryAdapter{engine: t.registry} }

func (t *stateTx) Commit() error {
	err := t.session.Commit()
	if err != nil {
		t.session.Discard()
	}
	t.once.Do(t.release)
	return err
}

func (t *stateTx) Discard() {
	t.session.Discard()
	t.once.Do(t.release)
}

// registryAdapter exposes the native registry through the escrow collaborator
// contract.
type registryAdapter struct {
	engine *registry.Engine
}

func (r registryAdapter) OwnerOf(_ context.Context, item escrow.Item) ([20]byte, error) {
	return r.engine.OwnerOf(item.Collection, item.TokenID)
}

func (r registryAdapter) IsApproved(_ context.Context, owner, operator [20]byte, item escrow.Item) (bool, error) {
	return r.engine.IsApproved(owner, operator, item.Collection, item.TokenID)
}

func (r registryAdapter) Transfer(_ context.Context, operator, from, to [20]byte, item escrow.Item) error {
	return r.engine.Transfer(operator, from, to, item.Collection, item.TokenID)
}
