package state

import (
	"fmt"
	"math/big"

	"nftescrow/native/escrow"
)

type storedItem struct {
	Collection [20]byte
	TokenID    *big.Int
}

type storedTrade struct {
	ID            string
	PartyA        [20]byte
	PartyB        [20]byte
	Owner         [20]byte
	RequiredFromA []storedItem
	RequiredFromB []storedItem
	DepositedByA  []storedItem
	DepositedByB  []storedItem
	ALocked       bool
	BLocked       bool
	Closed        bool
	Status        uint8
	ACancelled    bool
	BCancelled    bool
	TermsHash     [32]byte
	CreatedAt     uint64
	ClosedAt      uint64
}

func toStoredItems(items []escrow.Item) []storedItem {
	out := make([]storedItem, len(items))
	for i, it := range items {
		id := it.TokenID
		if id == nil {
			id = new(big.Int)
		}
		out[i] = storedItem{Collection: it.Collection, TokenID: new(big.Int).Set(id)}
	}
	return out
}

func fromStoredItems(items []storedItem) []escrow.Item {
	out := make([]escrow.Item, len(items))
	for i, it := range items {
		id := it.TokenID
		if id == nil {
			id = new(big.Int)
		}
		out[i] = escrow.Item{Collection: it.Collection, TokenID: new(big.Int).Set(id)}
	}
	return out
}

func nonNegative(v int64) uint64 {
	if v < 0 {
		return 0
	}
	return uint64(v)
}

func newStoredTrade(t *escrow.Trade) *storedTrade {
	return &storedTrade{
		ID:            t.ID,
		PartyA:        t.PartyA,
		PartyB:        t.PartyB,
		Owner:         t.Owner,
		RequiredFromA: toStoredItems(t.RequiredFromA),
		RequiredFromB: toStoredItems(t.RequiredFromB),
		DepositedByA:  toStoredItems(t.DepositedByA),
		DepositedByB:  toStoredItems(t.DepositedByB),
		ALocked:       t.ALocked,
		BLocked:       t.BLocked,
		Closed:        t.Closed,
		Status:        uint8(t.Status),
		ACancelled:    t.ACancelled,
		BCancelled:    t.BCancelled,
		TermsHash:     t.TermsHash,
		CreatedAt:     nonNegative(t.CreatedAt),
		ClosedAt:      nonNegative(t.ClosedAt),
	}
}

func (s *storedTrade) toTrade() (*escrow.Trade, error) {
	status := escrow.TradeStatus(s.Status)
	if !status.Valid() {
		return nil, fmt.Errorf("state: trade %s has invalid status %d", s.ID, s.Status)
	}
	return &escrow.Trade{
		ID:            s.ID,
		PartyA:        s.PartyA,
		PartyB:        s.PartyB,
		Owner:         s.Owner,
		RequiredFromA: fromStoredItems(s.RequiredFromA),
		RequiredFromB: fromStoredItems(s.RequiredFromB),
		DepositedByA:  fromStoredItems(s.DepositedByA),
		DepositedByB:  fromStoredItems(s.DepositedByB),
		ALocked:       s.ALocked,
		BLocked:       s.BLocked,
		Closed:        s.Closed,
		Status:        status,
		ACancelled:    s.ACancelled,
		BCancelled:    s.BCancelled,
		TermsHash:     s.TermsHash,
		CreatedAt:     int64(s.CreatedAt),
		ClosedAt:      int64(s.ClosedAt),
	}, nil
}

// TradePut persists the trade record.
func (s *Session) TradePut(t *escrow.Trade) error {
	if t == nil {
		return fmt.Errorf("state: nil trade")
	}
	return s.KVPut(TradeKey(t.ID), newStoredTrade(t))
}

// TradeGet loads the trade record by id.
func (s *Session) TradeGet(id string) (*escrow.Trade, bool, error) {
	var stored storedTrade
	ok, err := s.KVGet(TradeKey(id), &stored)
	if err != nil || !ok {
		return nil, ok, err
	}
	trade, err := stored.toTrade()
	if err != nil {
		return nil, false, err
	}
	return trade, true, nil
}

// TradeIndexAppend appends id to the identity's trade list. Duplicate ids are
// ignored to keep the index deterministic.
func (s *Session) TradeIndexAppend(identity [20]byte, id string) error {
	ids, err := s.TradeIDsOf(identity)
	if err != nil {
		return err
	}
	for _, existing := range ids {
		if existing == id {
			return nil
		}
	}
	return s.KVPut(TradeIndexKey(identity), append(ids, id))
}

// TradeIDsOf returns the trade ids indexed under identity in insertion order.
func (s *Session) TradeIDsOf(identity [20]byte) ([]string, error) {
	var ids []string
	if _, err := s.KVGet(TradeIndexKey(identity), &ids); err != nil {
		return nil, err
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}
