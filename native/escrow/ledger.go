package escrow

import (
	"fmt"
)

func (c *call) loadTrade(id string) (*Trade, error) {
	normalized, err := NormalizeTradeID(id)
	if err != nil {
		return nil, err
	}
	trade, ok, err := c.state.TradeGet(normalized)
	if err != nil {
		return nil, err
	}
	if !ok || trade == nil {
		return nil, ErrTradeNotFound
	}
	return trade, nil
}

func (c *call) storeTrade(t *Trade) error {
	if err := c.state.TradePut(t); err != nil {
		return fmt.Errorf("escrow: persist trade %s: %w", t.ID, err)
	}
	return nil
}

// validateTerms checks the parties and bundles of a prospective trade.
func (c *call) validateTerms(partyA, partyB [20]byte, fromA, fromB []Item) error {
	var zero [20]byte
	if partyA == zero || partyB == zero {
		return fmt.Errorf("%w: parties must be non-zero identities", ErrInvalidTerms)
	}
	if partyA == partyB {
		return fmt.Errorf("%w: parties must differ", ErrInvalidTerms)
	}
	if partyA == c.vault || partyB == c.vault {
		return fmt.Errorf("%w: escrow custody cannot be a party", ErrInvalidTerms)
	}
	if len(fromA) == 0 || len(fromB) == 0 {
		return fmt.Errorf("%w: both bundles must be non-empty", ErrInvalidTerms)
	}
	if len(fromA) > c.maxItems || len(fromB) > c.maxItems {
		return fmt.Errorf("%w: bundle exceeds %d items", ErrInvalidTerms, c.maxItems)
	}
	seen := make(map[string]struct{}, len(fromA)+len(fromB))
	for _, bundle := range [][]Item{fromA, fromB} {
		for _, it := range bundle {
			if err := it.validate(); err != nil {
				return fmt.Errorf("%w: %v", ErrInvalidTerms, err)
			}
			key := it.Key()
			if _, dup := seen[key]; dup {
				return fmt.Errorf("%w: item %s listed twice", ErrInvalidTerms, it)
			}
			seen[key] = struct{}{}
		}
	}
	return nil
}

// createTrade validates and stores a new pending trade and indexes it under
// both parties. The caller becomes the originating party.
func (c *call) createTrade(caller [20]byte, id string, partyA, partyB [20]byte, fromA, fromB []Item) (*Trade, error) {
	// Outsiders are rejected before any id or term validation.
	if caller == ([20]byte{}) || (caller != partyA && caller != partyB) {
		return nil, ErrUnauthorizedCaller
	}
	normalized, err := NormalizeTradeID(id)
	if err != nil {
		return nil, err
	}
	if err := c.validateTerms(partyA, partyB, fromA, fromB); err != nil {
		return nil, err
	}
	if _, exists, err := c.state.TradeGet(normalized); err != nil {
		return nil, err
	} else if exists {
		return nil, ErrDuplicateTrade
	}
	trade := &Trade{
		ID:            normalized,
		PartyA:        partyA,
		PartyB:        partyB,
		Owner:         caller,
		RequiredFromA: cloneItems(fromA),
		RequiredFromB: cloneItems(fromB),
		DepositedByA:  []Item{},
		DepositedByB:  []Item{},
		Status:        TradePending,
		TermsHash:     ComputeTermsHash(partyA, partyB, fromA, fromB),
		CreatedAt:     c.now,
	}
	if err := c.storeTrade(trade); err != nil {
		return nil, err
	}
	for _, party := range [][20]byte{partyA, partyB} {
		if err := c.state.TradeIndexAppend(party, trade.ID); err != nil {
			return nil, fmt.Errorf("escrow: index trade %s: %w", trade.ID, err)
		}
	}
	c.emit(NewTradeCreatedEvent(trade))
	return trade, nil
}
