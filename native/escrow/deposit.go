package escrow

import (
	"fmt"
	"strings"
)

// DepositPolicy tags the deposit strategy selected at construction.
type DepositPolicy string

const (
	// PolicyExplicit settles as soon as both sides deposited their bundles.
	PolicyExplicit DepositPolicy = "explicit"
	// PolicyLocking additionally requires each side to lock its deposit.
	PolicyLocking DepositPolicy = "locking"
	// PolicyAtomic creates the trade on first DepositAll and moves whole bundles.
	PolicyAtomic DepositPolicy = "atomic"
)

// ParseDepositPolicy normalises a configured policy name.
func ParseDepositPolicy(raw string) (DepositPolicy, error) {
	switch DepositPolicy(strings.ToLower(strings.TrimSpace(raw))) {
	case "", PolicyExplicit:
		return PolicyExplicit, nil
	case PolicyLocking:
		return PolicyLocking, nil
	case PolicyAtomic:
		return PolicyAtomic, nil
	default:
		return "", fmt.Errorf("escrow: unknown deposit policy %q", raw)
	}
}

// Coordinator records deposits against required bundles and decides when a
// trade is eligible for settlement. Operations a strategy does not offer fail
// with ErrUnsupportedOperation.
type Coordinator interface {
	Policy() DepositPolicy
	Deposit(c *call, t *Trade, side Side, items []Item) error
	DepositAll(c *call, caller [20]byte, id string, counterparty [20]byte, have, want []Item) (*Trade, error)
	Lock(c *call, t *Trade, side Side) error
	Withdraw(c *call, t *Trade, side Side, items []Item) error
	ReadyToSettle(t *Trade) bool
}

// NewCoordinator returns the strategy for policy.
func NewCoordinator(policy DepositPolicy) (Coordinator, error) {
	parsed, err := ParseDepositPolicy(string(policy))
	if err != nil {
		return nil, err
	}
	switch parsed {
	case PolicyLocking:
		return lockingCoordinator{}, nil
	case PolicyAtomic:
		return atomicCoordinator{}, nil
	default:
		return explicitCoordinator{}, nil
	}
}

type explicitCoordinator struct{}

func (explicitCoordinator) Policy() DepositPolicy { return PolicyExplicit }

func (explicitCoordinator) ReadyToSettle(t *Trade) bool { return t.FullyDeposited() }

func (co explicitCoordinator) Deposit(c *call, t *Trade, side Side, items []Item) error {
	return depositItems(c, co, t, side, items)
}

func (explicitCoordinator) DepositAll(*call, [20]byte, string, [20]byte, []Item, []Item) (*Trade, error) {
	return nil, ErrUnsupportedOperation
}

func (explicitCoordinator) Lock(*call, *Trade, Side) error { return ErrUnsupportedOperation }

func (explicitCoordinator) Withdraw(c *call, t *Trade, side Side, items []Item) error {
	return withdrawItems(c, t, side, items)
}

type lockingCoordinator struct{}

func (lockingCoordinator) Policy() DepositPolicy { return PolicyLocking }

func (lockingCoordinator) ReadyToSettle(t *Trade) bool {
	return t.ALocked && t.BLocked && t.FullyDeposited()
}

func (co lockingCoordinator) Deposit(c *call, t *Trade, side Side, items []Item) error {
	return depositItems(c, co, t, side, items)
}

func (lockingCoordinator) DepositAll(*call, [20]byte, string, [20]byte, []Item, []Item) (*Trade, error) {
	return nil, ErrUnsupportedOperation
}

func (co lockingCoordinator) Lock(c *call, t *Trade, side Side) error {
	if t.Locked(side) {
		return nil
	}
	if !t.SideComplete(side) {
		return ErrNotFullyDeposited
	}
	t.setLocked(side, true)
	if err := c.storeTrade(t); err != nil {
		return err
	}
	c.emit(NewTradeLockedEvent(t, t.Party(side), side))
	if co.ReadyToSettle(t) {
		return c.settle(t)
	}
	return nil
}

func (lockingCoordinator) Withdraw(c *call, t *Trade, side Side, items []Item) error {
	t.setLocked(side, false)
	return withdrawItems(c, t, side, items)
}

type atomicCoordinator struct{}

func (atomicCoordinator) Policy() DepositPolicy { return PolicyAtomic }

func (atomicCoordinator) ReadyToSettle(t *Trade) bool {
	return t.ALocked && t.BLocked && t.FullyDeposited()
}

func (atomicCoordinator) Deposit(*call, *Trade, Side, []Item) error { return ErrUnsupportedOperation }

func (atomicCoordinator) Lock(*call, *Trade, Side) error { return ErrUnsupportedOperation }

func (atomicCoordinator) Withdraw(*call, *Trade, Side, []Item) error {
	return ErrUnsupportedOperation
}

// DepositAll defines the terms on first use. Later calls must restate the
// same terms from the caller's perspective.
func (co atomicCoordinator) DepositAll(c *call, caller [20]byte, id string, counterparty [20]byte, have, want []Item) (*Trade, error) {
	normalized, err := NormalizeTradeID(id)
	if err != nil {
		return nil, err
	}
	t, exists, err := c.state.TradeGet(normalized)
	if err != nil {
		return nil, err
	}
	if !exists || t == nil {
		t, err = c.createTrade(caller, normalized, caller, counterparty, have, want)
		if err != nil {
			return nil, err
		}
	}
	side, err := requireParty(t, caller)
	if err != nil {
		return nil, err
	}
	if t.Closed {
		return nil, ErrAlreadyClosed
	}
	if err := matchTerms(t, side, counterparty, have, want); err != nil {
		return nil, err
	}
	if t.Locked(side) || len(t.Deposited(side)) > 0 {
		return nil, ErrAlreadyDeposited
	}
	bundle := cloneItems(t.Required(side))
	if err := c.takeCustody(caller, bundle); err != nil {
		return nil, err
	}
	t.setDeposited(side, bundle)
	t.setLocked(side, true)
	if err := c.storeTrade(t); err != nil {
		return nil, err
	}
	c.emit(NewTradeDepositedEvent(t, caller, side, bundle))
	if co.ReadyToSettle(t) {
		if err := c.settle(t); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// matchTerms compares restated terms with the stored digest.
func matchTerms(t *Trade, side Side, counterparty [20]byte, have, want []Item) error {
	if counterparty != t.Party(side.Counterparty()) {
		return fmt.Errorf("%w: counterparty differs", ErrTermsMismatch)
	}
	var digest [32]byte
	if side == SideA {
		digest = ComputeTermsHash(t.PartyA, t.PartyB, have, want)
	} else {
		digest = ComputeTermsHash(t.PartyA, t.PartyB, want, have)
	}
	if digest != t.TermsHash {
		return fmt.Errorf("%w: bundles differ", ErrTermsMismatch)
	}
	return nil
}

// depositItems records a partial or complete deposit under the explicit
// strategies and settles when the strategy says both sides are ready.
func depositItems(c *call, co Coordinator, t *Trade, side Side, items []Item) error {
	required := t.Required(side)
	deposited := t.Deposited(side)
	for _, it := range items {
		if !containsItem(required, it) {
			return fmt.Errorf("%w: %s", ErrItemNotRequired, it)
		}
		if containsItem(deposited, it) {
			return fmt.Errorf("%w: %s", ErrAlreadyDeposited, it)
		}
	}
	caller := t.Party(side)
	if err := c.takeCustody(caller, items); err != nil {
		return err
	}
	t.setDeposited(side, append(cloneItems(deposited), cloneItems(items)...))
	if err := c.storeTrade(t); err != nil {
		return err
	}
	c.emit(NewTradeDepositedEvent(t, caller, side, items))
	if co.ReadyToSettle(t) {
		return c.settle(t)
	}
	return nil
}

func withdrawItems(c *call, t *Trade, side Side, items []Item) error {
	deposited := t.Deposited(side)
	for _, it := range items {
		if !containsItem(deposited, it) {
			return fmt.Errorf("%w: %s", ErrNotDeposited, it)
		}
	}
	caller := t.Party(side)
	if err := c.release(caller, items, ErrRegistryTransfer); err != nil {
		return err
	}
	t.setDeposited(side, removeItems(deposited, items))
	if err := c.storeTrade(t); err != nil {
		return err
	}
	c.emit(NewTradeWithdrawnEvent(t, caller, side, items))
	return nil
}
