package core

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"nftescrow/core/events"
	"nftescrow/core/genesis"
	escrowstate "nftescrow/core/state"
	"nftescrow/native/escrow"
	nativecommon "nftescrow/native/common"
	"nftescrow/native/registry"
	"nftescrow/storage"
)

// NodeConfig captures the behaviour knobs of a node.
type NodeConfig struct {
	Escrow escrow.Config
	Pauses map[string]bool
}

// Node is the central controller, wiring storage, the registry and the escrow
// engine together.
type Node struct {
	db      storage.Database
	backend *stateBackend
	escrow  *escrow.Engine
	pauses  *nativecommon.Pauses
	emitter events.Emitter
	nowFn   func() int64
}

// NewNode opens the state stored in db and builds the escrow engine.
func NewNode(db storage.Database, cfg NodeConfig, emitter events.Emitter) (*Node, error) {
	if db == nil {
		return nil, errors.New("node: database required")
	}
	if err := escrowstate.EnsureStateVersion(db); err != nil {
		return nil, err
	}
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	pauses := nativecommon.NewPauses(cfg.Pauses)
	n := &Node{
		db:      db,
		pauses:  pauses,
		emitter: emitter,
		nowFn:   func() int64 { return time.Now().Unix() },
	}
	n.backend = &stateBackend{manager: escrowstate.NewManager(db), pauses: pauses, nowFn: n.now}
	engine, err := escrow.NewEngine(cfg.Escrow)
	if err != nil {
		return nil, err
	}
	engine.SetBackend(n.backend)
	engine.SetEmitter(emitter)
	engine.SetPauses(pauses)
	engine.SetNowFunc(n.now)
	n.escrow = engine
	return n, nil
}

// SetNowFunc overrides the clock shared by the escrow engine and registry.
func (n *Node) SetNowFunc(now func() int64) {
	if now == nil {
		now = func() int64 { return time.Now().Unix() }
	}
	n.nowFn = now
}

func (n *Node) now() int64 { return n.nowFn() }

// Escrow exposes the escrow engine.
func (n *Node) Escrow() *escrow.Engine { return n.escrow }

// Pauses exposes the runtime pause switches.
func (n *Node) Pauses() *nativecommon.Pauses { return n.pauses }

// EscrowVault returns the custody identity holding deposited items.
func (n *Node) EscrowVault() [20]byte { return n.escrow.Vault() }

// Close releases the underlying database.
func (n *Node) Close() {
	if n.db != nil {
		n.db.Close()
	}
}

// withRegistry runs fn against a registry bound to a fresh session. Mutating
// calls commit and publish their events; read calls always discard.
func (n *Node) withRegistry(mutating bool, fn func(*registry.Engine) error) error {
	buf := &events.Buffer{}
	tx := n.backend.begin(buf)
	if err := fn(tx.registry); err != nil {
		tx.Discard()
		return err
	}
	if !mutating {
		tx.Discard()
		return nil
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("node: commit: %w", err)
	}
	buf.Flush(n.emitter)
	return nil
}

// ApplyGenesis seeds collections and tokens. It is a no-op for collections
// that already exist so restarts against the same file succeed.
func (n *Node) ApplyGenesis(spec *genesis.GenesisSpec) error {
	return n.withRegistry(true, func(reg *registry.Engine) error {
		return genesis.Apply(spec, idempotentSeeder{reg})
	})
}

type idempotentSeeder struct {
	*registry.Engine
}

func (s idempotentSeeder) RegisterCollection(creator [20]byte, symbol, name string) (*registry.Collection, error) {
	col, err := s.Engine.RegisterCollection(creator, symbol, name)
	if errors.Is(err, registry.ErrCollectionExists) {
		return s.Engine.Collection(registry.CollectionAddress(symbol))
	}
	return col, err
}

func (s idempotentSeeder) Mint(collection, to [20]byte, tokenID *big.Int, uri string) (*registry.Token, error) {
	tok, err := s.Engine.Mint(collection, to, tokenID, uri)
	if errors.Is(err, registry.ErrTokenExists) {
		return s.Engine.Token(collection, tokenID)
	}
	return tok, err
}

// RegistryCollection returns the collection registered at addr.
func (n *Node) RegistryCollection(addr [20]byte) (*registry.Collection, error) {
	var out *registry.Collection
	err := n.withRegistry(false, func(reg *registry.Engine) error {
		col, err := reg.Collection(addr)
		out = col
		return err
	})
	return out, err
}

// RegistryToken returns the token record including its current owner.
func (n *Node) RegistryToken(collection [20]byte, tokenID *big.Int) (*registry.Token, error) {
	var out *registry.Token
	err := n.withRegistry(false, func(reg *registry.Engine) error {
		tok, err := reg.Token(collection, tokenID)
		out = tok
		return err
	})
	return out, err
}

// RegistryIsApproved reports whether operator may move the token for owner.
func (n *Node) RegistryIsApproved(owner, operator, collection [20]byte, tokenID *big.Int) (bool, error) {
	var out bool
	err := n.withRegistry(false, func(reg *registry.Engine) error {
		ok, err := reg.IsApproved(owner, operator, collection, tokenID)
		out = ok
		return err
	})
	return out, err
}

// RegistryTokensOf lists the tokens held by holder.
func (n *Node) RegistryTokensOf(holder [20]byte) ([]registry.TokenRef, error) {
	var out []registry.TokenRef
	err := n.withRegistry(false, func(reg *registry.Engine) error {
		refs, err := reg.TokensOf(holder)
		out = refs
		return err
	})
	return out, err
}

// RegistryApprove grants operator a single-token approval.
func (n *Node) RegistryApprove(caller, collection [20]byte, tokenID *big.Int, operator [20]byte) error {
	return n.withRegistry(true, func(reg *registry.Engine) error {
		return reg.Approve(caller, collection, tokenID, operator)
	})
}

// RegistrySetApprovalForAll toggles collection-wide operator rights.
func (n *Node) RegistrySetApprovalForAll(caller, collection, operator [20]byte, approved bool) error {
	return n.withRegistry(true, func(reg *registry.Engine) error {
		return reg.SetApprovalForAll(caller, collection, operator, approved)
	})
}

// RegistryTransfer moves a token directly between holders.
func (n *Node) RegistryTransfer(caller, from, to, collection [20]byte, tokenID *big.Int) error {
	return n.withRegistry(true, func(reg *registry.Engine) error {
		return reg.Transfer(caller, from, to, collection, tokenID)
	})
}

// TradesOf returns every trade of identity in creation order.
func (n *Node) TradesOf(ctx context.Context, identity [20]byte) ([]*escrow.Trade, error) {
	ids, err := n.escrow.GetTradeIDsOf(ctx, identity)
	if err != nil {
		return nil, err
	}
	out := make([]*escrow.Trade, 0, len(ids))
	for _, id := range ids {
		trade, err := n.escrow.GetTrade(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, trade)
	}
	return out, nil
}
