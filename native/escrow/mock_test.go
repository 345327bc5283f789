package escrow

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"nftescrow/core/events"
)

type mockState struct {
	trades map[string]*Trade
	index  map[[20]byte][]string
}

func newMockState() *mockState {
	return &mockState{trades: make(map[string]*Trade), index: make(map[[20]byte][]string)}
}

func (m *mockState) clone() *mockState {
	out := newMockState()
	for id, t := range m.trades {
		out.trades[id] = t.Clone()
	}
	for k, ids := range m.index {
		out.index[k] = append([]string(nil), ids...)
	}
	return out
}

func (m *mockState) TradeGet(id string) (*Trade, bool, error) {
	t, ok := m.trades[id]
	if !ok {
		return nil, false, nil
	}
	return t.Clone(), true, nil
}

func (m *mockState) TradePut(t *Trade) error {
	m.trades[t.ID] = t.Clone()
	return nil
}

func (m *mockState) TradeIndexAppend(identity [20]byte, id string) error {
	m.index[identity] = append(m.index[identity], id)
	return nil
}

func (m *mockState) TradeIDsOf(identity [20]byte) ([]string, error) {
	return append([]string(nil), m.index[identity]...), nil
}

type mockRegistry struct {
	owners    map[string][20]byte
	approvals map[string]map[[20]byte]bool
	// transferHook runs before every transfer and may veto it.
	transferHook func(ctx context.Context, from, to [20]byte, item Item) error
	transfers    int
}

func newMockRegistry() *mockRegistry {
	return &mockRegistry{owners: make(map[string][20]byte), approvals: make(map[string]map[[20]byte]bool)}
}

func (r *mockRegistry) clone() *mockRegistry {
	out := newMockRegistry()
	for k, v := range r.owners {
		out.owners[k] = v
	}
	for k, ops := range r.approvals {
		copied := make(map[[20]byte]bool, len(ops))
		for op, ok := range ops {
			copied[op] = ok
		}
		out.approvals[k] = copied
	}
	out.transferHook = r.transferHook
	out.transfers = r.transfers
	return out
}

func (r *mockRegistry) mint(owner [20]byte, item Item) { r.owners[item.Key()] = owner }

func (r *mockRegistry) approve(item Item, operator [20]byte) {
	if r.approvals[item.Key()] == nil {
		r.approvals[item.Key()] = make(map[[20]byte]bool)
	}
	r.approvals[item.Key()][operator] = true
}

func (r *mockRegistry) OwnerOf(_ context.Context, item Item) ([20]byte, error) {
	owner, ok := r.owners[item.Key()]
	if !ok {
		return [20]byte{}, errors.New("token does not exist")
	}
	return owner, nil
}

func (r *mockRegistry) IsApproved(_ context.Context, owner, operator [20]byte, item Item) (bool, error) {
	if owner == operator {
		return true, nil
	}
	return r.approvals[item.Key()][operator], nil
}

func (r *mockRegistry) Transfer(ctx context.Context, operator, from, to [20]byte, item Item) error {
	if r.transferHook != nil {
		if err := r.transferHook(ctx, from, to, item); err != nil {
			return err
		}
	}
	owner, ok := r.owners[item.Key()]
	if !ok || owner != from {
		return errors.New("transfer from non-owner")
	}
	if operator != from && !r.approvals[item.Key()][operator] {
		return errors.New("operator not approved")
	}
	r.owners[item.Key()] = to
	delete(r.approvals, item.Key())
	r.transfers++
	return nil
}

type mockBackend struct {
	state    *mockState
	registry *mockRegistry
	commits  int
}

type mockTx struct {
	backend  *mockBackend
	state    *mockState
	registry *mockRegistry
	done     bool
}

func (b *mockBackend) Begin(context.Context, events.Emitter) (Tx, error) {
	return &mockTx{backend: b, state: b.state.clone(), registry: b.registry.clone()}, nil
}

func (tx *mockTx) State() State       { return tx.state }
func (tx *mockTx) Registry() Registry { return tx.registry }

func (tx *mockTx) Commit() error {
	if tx.done {
		return errors.New("tx closed")
	}
	tx.done = true
	tx.backend.state = tx.state
	tx.backend.registry = tx.registry
	tx.backend.commits++
	return nil
}

func (tx *mockTx) Discard() { tx.done = true }

type capturingEmitter struct {
	events []events.Event
}

func (c *capturingEmitter) Emit(evt events.Event) {
	c.events = append(c.events, evt)
}

func eventSeen(emitter *capturingEmitter, eventType string) bool {
	if emitter == nil {
		return false
	}
	for _, evt := range emitter.events {
		if evt.EventType() == eventType {
			return true
		}
	}
	return false
}

func newTestAddress(b byte) [20]byte {
	var addr [20]byte
	for i := range addr {
		addr[i] = b
	}
	return addr
}

var testCollection = newTestAddress(0xC0)

func testItem(id int64) Item {
	return Item{Collection: testCollection, TokenID: big.NewInt(id)}
}

func tokenIDs(ids ...int64) []*big.Int {
	out := make([]*big.Int, len(ids))
	for i, id := range ids {
		out[i] = big.NewInt(id)
	}
	return out
}

type testEnv struct {
	engine  *Engine
	backend *mockBackend
	emitter *capturingEmitter
	partyA  [20]byte
	partyB  [20]byte
	outside [20]byte
}

func setupEscrowEnvironment(t *testing.T, cfg Config) *testEnv {
	t.Helper()
	engine, err := NewEngine(cfg)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	backend := &mockBackend{state: newMockState(), registry: newMockRegistry()}
	emitter := &capturingEmitter{}
	engine.SetBackend(backend)
	engine.SetEmitter(emitter)
	engine.SetNowFunc(func() int64 { return 1000 })
	env := &testEnv{
		engine:  engine,
		backend: backend,
		emitter: emitter,
		partyA:  newTestAddress(0x0A),
		partyB:  newTestAddress(0x0B),
		outside: newTestAddress(0x0C),
	}
	// A holds items 1 and 2, B holds item 3; all are approved for the vault.
	for id, owner := range map[int64][20]byte{1: env.partyA, 2: env.partyA, 3: env.partyB} {
		backend.registry.mint(owner, testItem(id))
		backend.registry.approve(testItem(id), engine.Vault())
	}
	return env
}

func (env *testEnv) ownerOf(t *testing.T, id int64) [20]byte {
	t.Helper()
	owner, err := env.backend.registry.OwnerOf(context.Background(), testItem(id))
	if err != nil {
		t.Fatalf("ownerOf %d: %v", id, err)
	}
	return owner
}

func (env *testEnv) createT1(t *testing.T) *Trade {
	t.Helper()
	trade, err := env.engine.CreateTrade(context.Background(), env.partyA, "T1", env.partyA, env.partyB,
		[]Item{testItem(1), testItem(2)}, []Item{testItem(3)})
	if err != nil {
		t.Fatalf("CreateTrade: %v", err)
	}
	return trade
}

func (env *testEnv) storedTrade(t *testing.T, id string) *Trade {
	t.Helper()
	trade, ok, _ := env.backend.state.TradeGet(id)
	if !ok {
		t.Fatalf("trade %s not stored", id)
	}
	return trade
}
