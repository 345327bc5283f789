package escrow

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"nftescrow/core/events"
	"nftescrow/core/types"
	"nftescrow/crypto"
	nativecommon "nftescrow/native/common"
)

const (
	moduleName = "escrow"
	// DefaultMaxItemsPerSide bounds each bundle when the config leaves it unset.
	DefaultMaxItemsPerSide = 64
)

// CancelPolicy selects who may cancel an open trade.
type CancelPolicy string

const (
	CancelByEitherParty CancelPolicy = "either"
	CancelByOwner       CancelPolicy = "owner"
)

// Config captures the policy knobs chosen at construction.
type Config struct {
	DepositPolicy   DepositPolicy
	CancelPolicy    CancelPolicy
	MaxItemsPerSide int
}

// DefaultConfig returns the explicit-deposit, either-party configuration.
func DefaultConfig() Config {
	return Config{
		DepositPolicy:   PolicyExplicit,
		CancelPolicy:    CancelByEitherParty,
		MaxItemsPerSide: DefaultMaxItemsPerSide,
	}
}

// ParseCancelPolicy normalises a configured cancellation policy name.
func ParseCancelPolicy(raw string) (CancelPolicy, error) {
	switch CancelPolicy(strings.ToLower(strings.TrimSpace(raw))) {
	case "", CancelByEitherParty:
		return CancelByEitherParty, nil
	case CancelByOwner:
		return CancelByOwner, nil
	default:
		return "", fmt.Errorf("escrow: unknown cancel policy %q", raw)
	}
}

type callKey struct{}

// call carries the transaction-scoped collaborators of one entry point.
type call struct {
	ctx      context.Context
	state    State
	registry Registry
	events   *events.Buffer
	now      int64
	vault    [20]byte
	maxItems int
}

func (c *call) emit(evt *types.Event) {
	if evt == nil {
		return
	}
	c.events.Emit(escrowEvent{evt: evt})
}

// Engine serialises escrow entry points and gives each one all-or-nothing
// semantics over the backend.
type Engine struct {
	mu           sync.Mutex
	backend      Backend
	coordinator  Coordinator
	cancelPolicy CancelPolicy
	maxItems     int
	vault        [20]byte
	emitter      events.Emitter
	nowFn        func() int64
	pauses       nativecommon.PauseView
	outbox       events.Outbox
}

// NewEngine constructs an engine for the supplied policy configuration.
func NewEngine(cfg Config) (*Engine, error) {
	coordinator, err := NewCoordinator(cfg.DepositPolicy)
	if err != nil {
		return nil, err
	}
	cancelPolicy, err := ParseCancelPolicy(string(cfg.CancelPolicy))
	if err != nil {
		return nil, err
	}
	maxItems := cfg.MaxItemsPerSide
	if maxItems <= 0 {
		maxItems = DefaultMaxItemsPerSide
	}
	return &Engine{
		coordinator:  coordinator,
		cancelPolicy: cancelPolicy,
		maxItems:     maxItems,
		vault:        crypto.ModuleAddress(moduleName),
		emitter:      events.NoopEmitter{},
		nowFn:        func() int64 { return time.Now().Unix() },
	}, nil
}

// SetBackend configures the transactional state backend.
func (e *Engine) SetBackend(b Backend) { e.backend = b }

// SetEmitter configures the event emitter used by the engine.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) SetPauses(p nativecommon.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

// SetNowFunc overrides the time source, primarily used in tests.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// Vault returns the custody identity that holds deposited items.
func (e *Engine) Vault() [20]byte { return e.vault }

// DepositPolicy reports the configured deposit strategy.
func (e *Engine) DepositPolicy() DepositPolicy { return e.coordinator.Policy() }

// CancelPolicy reports the configured cancellation policy.
func (e *Engine) CancelPolicy() CancelPolicy { return e.cancelPolicy }

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

// execute runs fn inside one backend transaction. Writes and buffered events
// are published only when fn succeeds and the commit lands. Events reach the
// emitter after the engine lock is released, in commit order.
func (e *Engine) execute(ctx context.Context, fn func(c *call) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if ctx.Value(callKey{}) != nil {
		return ErrReentrantCall
	}
	if e.backend == nil {
		return ErrNilBackend
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	err := e.commit(ctx, fn)
	e.outbox.Drain(e.emitter)
	return err
}

func (e *Engine) commit(ctx context.Context, fn func(c *call) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	buf := &events.Buffer{}
	tx, err := e.backend.Begin(ctx, buf)
	if err != nil {
		return fmt.Errorf("escrow: begin: %w", err)
	}
	c := &call{
		state:    tx.State(),
		registry: tx.Registry(),
		events:   buf,
		now:      e.now(),
		vault:    e.vault,
		maxItems: e.maxItems,
	}
	c.ctx = context.WithValue(ctx, callKey{}, c)
	if err := fn(c); err != nil {
		tx.Discard()
		return err
	}
	if err := tx.Commit(); err != nil {
		tx.Discard()
		return fmt.Errorf("escrow: commit: %w", err)
	}
	e.outbox.Enqueue(buf.Events())
	return nil
}

// view runs a read-only fn. Reads issued from inside an in-flight call observe
// that call's uncommitted state.
func (e *Engine) view(ctx context.Context, fn func(c *call) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if inflight, ok := ctx.Value(callKey{}).(*call); ok {
		return fn(inflight)
	}
	if e.backend == nil {
		return ErrNilBackend
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	tx, err := e.backend.Begin(ctx, events.NoopEmitter{})
	if err != nil {
		return fmt.Errorf("escrow: begin: %w", err)
	}
	defer tx.Discard()
	c := &call{ctx: ctx, state: tx.State(), registry: tx.Registry(), events: &events.Buffer{}, now: e.now(), vault: e.vault, maxItems: e.maxItems}
	return fn(c)
}

// CreateTrade records a new pending trade proposed by one of its parties.
func (e *Engine) CreateTrade(ctx context.Context, caller [20]byte, id string, partyA, partyB [20]byte, requiredFromA, requiredFromB []Item) (*Trade, error) {
	var out *Trade
	err := e.execute(ctx, func(c *call) error {
		trade, err := c.createTrade(caller, id, partyA, partyB, requiredFromA, requiredFromB)
		if err != nil {
			return err
		}
		out = trade
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out.Clone(), nil
}

// Deposit moves the caller's items of one collection into escrow custody.
func (e *Engine) Deposit(ctx context.Context, caller [20]byte, id string, collection [20]byte, tokenIDs []*big.Int) (*Trade, error) {
	items, err := itemsOf(collection, tokenIDs)
	if err != nil {
		return nil, err
	}
	return e.mutateTrade(ctx, caller, id, func(c *call, t *Trade, side Side) error {
		return e.coordinator.Deposit(c, t, side, items)
	})
}

// DepositAll delivers the caller's whole bundle, creating the trade on first use.
func (e *Engine) DepositAll(ctx context.Context, caller [20]byte, id string, counterparty [20]byte, have, want []Item) (*Trade, error) {
	var out *Trade
	err := e.execute(ctx, func(c *call) error {
		trade, err := e.coordinator.DepositAll(c, caller, id, counterparty, have, want)
		if err != nil {
			return err
		}
		out = trade
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out.Clone(), nil
}

// Lock marks the caller's complete deposit as ready to settle.
func (e *Engine) Lock(ctx context.Context, caller [20]byte, id string) (*Trade, error) {
	return e.mutateTrade(ctx, caller, id, func(c *call, t *Trade, side Side) error {
		return e.coordinator.Lock(c, t, side)
	})
}

// Withdraw returns deposited items of one collection to the caller.
func (e *Engine) Withdraw(ctx context.Context, caller [20]byte, id string, collection [20]byte, tokenIDs []*big.Int) (*Trade, error) {
	items, err := itemsOf(collection, tokenIDs)
	if err != nil {
		return nil, err
	}
	return e.mutateTrade(ctx, caller, id, func(c *call, t *Trade, side Side) error {
		return e.coordinator.Withdraw(c, t, side, items)
	})
}

// CancelTradeOffer unwinds both sides' deposits and closes the trade.
func (e *Engine) CancelTradeOffer(ctx context.Context, caller [20]byte, id string) (*Trade, error) {
	var out *Trade
	err := e.execute(ctx, func(c *call) error {
		trade, err := c.cancel(caller, id, e.cancelPolicy)
		if err != nil {
			return err
		}
		out = trade
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out.Clone(), nil
}

// GetTrade returns a copy of the stored trade.
func (e *Engine) GetTrade(ctx context.Context, id string) (*Trade, error) {
	var out *Trade
	err := e.view(ctx, func(c *call) error {
		trade, err := c.loadTrade(id)
		if err != nil {
			return err
		}
		out = trade
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetRequiredItems returns the bundle the party must deliver.
func (e *Engine) GetRequiredItems(ctx context.Context, id string, party [20]byte) ([]Item, error) {
	var out []Item
	err := e.view(ctx, func(c *call) error {
		trade, err := c.loadTrade(id)
		if err != nil {
			return err
		}
		side, err := requireParty(trade, party)
		if err != nil {
			return err
		}
		out = cloneItems(trade.Required(side))
		return nil
	})
	return out, err
}

// GetTradeIDsOf lists the trades where identity is a party, in creation order.
func (e *Engine) GetTradeIDsOf(ctx context.Context, identity [20]byte) ([]string, error) {
	var out []string
	err := e.view(ctx, func(c *call) error {
		ids, err := c.state.TradeIDsOf(identity)
		if err != nil {
			return err
		}
		out = append([]string{}, ids...)
		return nil
	})
	return out, err
}

// mutateTrade loads the trade, resolves the caller's side and rejects closed
// trades before handing control to fn.
func (e *Engine) mutateTrade(ctx context.Context, caller [20]byte, id string, fn func(c *call, t *Trade, side Side) error) (*Trade, error) {
	var out *Trade
	err := e.execute(ctx, func(c *call) error {
		trade, err := c.loadTrade(id)
		if err != nil {
			return err
		}
		side, err := requireParty(trade, caller)
		if err != nil {
			return err
		}
		if trade.Closed {
			return ErrAlreadyClosed
		}
		if err := fn(c, trade, side); err != nil {
			return err
		}
		out = trade
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out.Clone(), nil
}

func itemsOf(collection [20]byte, tokenIDs []*big.Int) ([]Item, error) {
	if len(tokenIDs) == 0 {
		return nil, fmt.Errorf("%w: at least one token id required", ErrInvalidItem)
	}
	items := make([]Item, 0, len(tokenIDs))
	seen := make(map[string]struct{}, len(tokenIDs))
	for _, id := range tokenIDs {
		item, err := NewItem(collection, id)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[item.Key()]; dup {
			return nil, fmt.Errorf("%w: duplicate token id %s", ErrInvalidItem, id)
		}
		seen[item.Key()] = struct{}{}
		items = append(items, item)
	}
	return items, nil
}
