package escrow

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"sort"
	"strings"
	"unicode"

	"github.com/holiman/uint256"
	"lukechampine.com/blake3"

	"nftescrow/crypto"
)

// MaxTradeIDLength bounds caller supplied trade identifiers.
const MaxTradeIDLength = 64

// Item identifies a single non-fungible asset in the external registry.
type Item struct {
	Collection [20]byte
	TokenID    *big.Int
}

// NewItem validates the token id range and returns a detached item.
func NewItem(collection [20]byte, tokenID *big.Int) (Item, error) {
	item := Item{Collection: collection, TokenID: tokenID}
	if err := item.validate(); err != nil {
		return Item{}, err
	}
	return item.Clone(), nil
}

func (i Item) validate() error {
	if i.Collection == ([20]byte{}) {
		return fmt.Errorf("%w: collection required", ErrInvalidItem)
	}
	if i.TokenID == nil || i.TokenID.Sign() < 0 {
		return fmt.Errorf("%w: token id must be non-negative", ErrInvalidItem)
	}
	if _, overflow := uint256.FromBig(i.TokenID); overflow {
		return fmt.Errorf("%w: token id exceeds 256 bits", ErrInvalidItem)
	}
	return nil
}

// Key returns the canonical fixed-width encoding used for set comparisons.
func (i Item) Key() string {
	var buf [52]byte
	copy(buf[:20], i.Collection[:])
	if i.TokenID != nil {
		i.TokenID.FillBytes(buf[20:])
	}
	return hex.EncodeToString(buf[:])
}

// Clone returns a deep copy of the item.
func (i Item) Clone() Item {
	out := Item{Collection: i.Collection}
	if i.TokenID != nil {
		out.TokenID = new(big.Int).Set(i.TokenID)
	}
	return out
}

func (i Item) String() string {
	id := "0"
	if i.TokenID != nil {
		id = i.TokenID.String()
	}
	return crypto.FormatCollection(i.Collection) + "#" + id
}

// TradeStatus enumerates the lifecycle stage of a trade.
type TradeStatus uint8

const (
	TradePending TradeStatus = iota
	TradeSettled
	TradeCancelled
)

func (s TradeStatus) String() string {
	switch s {
	case TradePending:
		return "pending"
	case TradeSettled:
		return "settled"
	case TradeCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Valid reports whether the status is one of the defined values.
func (s TradeStatus) Valid() bool {
	return s <= TradeCancelled
}

// Side names one of the two parties of a trade.
type Side uint8

const (
	SideNone Side = iota
	SideA
	SideB
)

func (s Side) String() string {
	switch s {
	case SideA:
		return "A"
	case SideB:
		return "B"
	default:
		return ""
	}
}

// Trade is a bilateral exchange of item bundles between two identities.
type Trade struct {
	ID            string
	PartyA        [20]byte
	PartyB        [20]byte
	Owner         [20]byte
	RequiredFromA []Item
	RequiredFromB []Item
	DepositedByA  []Item
	DepositedByB  []Item
	// ALocked and BLocked gate settlement under the locking policy. Under the
	// atomic policy they record that the side delivered its whole bundle.
	ALocked    bool
	BLocked    bool
	Closed     bool
	Status     TradeStatus
	ACancelled bool
	BCancelled bool
	TermsHash  [32]byte
	CreatedAt  int64
	ClosedAt   int64
}

// Clone returns a deep copy of the trade.
func (t *Trade) Clone() *Trade {
	if t == nil {
		return nil
	}
	out := *t
	out.RequiredFromA = cloneItems(t.RequiredFromA)
	out.RequiredFromB = cloneItems(t.RequiredFromB)
	out.DepositedByA = cloneItems(t.DepositedByA)
	out.DepositedByB = cloneItems(t.DepositedByB)
	return &out
}

// SideOf resolves which side the identity occupies.
func (t *Trade) SideOf(identity [20]byte) Side {
	if t == nil {
		return SideNone
	}
	switch identity {
	case t.PartyA:
		return SideA
	case t.PartyB:
		return SideB
	default:
		return SideNone
	}
}

// Party returns the identity on the given side.
func (t *Trade) Party(side Side) [20]byte {
	if side == SideB {
		return t.PartyB
	}
	return t.PartyA
}

// Counterparty returns the side opposite to s.
func (s Side) Counterparty() Side {
	switch s {
	case SideA:
		return SideB
	case SideB:
		return SideA
	default:
		return SideNone
	}
}

// Required returns the bundle the side must deliver.
func (t *Trade) Required(side Side) []Item {
	if side == SideB {
		return t.RequiredFromB
	}
	return t.RequiredFromA
}

// Deposited returns what the side currently holds in escrow custody.
func (t *Trade) Deposited(side Side) []Item {
	if side == SideB {
		return t.DepositedByB
	}
	return t.DepositedByA
}

func (t *Trade) setDeposited(side Side, items []Item) {
	if side == SideB {
		t.DepositedByB = items
		return
	}
	t.DepositedByA = items
}

// Locked reports the side's settlement gate.
func (t *Trade) Locked(side Side) bool {
	if side == SideB {
		return t.BLocked
	}
	return t.ALocked
}

func (t *Trade) setLocked(side Side, locked bool) {
	if side == SideB {
		t.BLocked = locked
		return
	}
	t.ALocked = locked
}

// SideComplete reports whether the deposited set equals the required set.
func (t *Trade) SideComplete(side Side) bool {
	return sameItemSet(t.Required(side), t.Deposited(side))
}

// FullyDeposited reports whether both sides delivered their bundles.
func (t *Trade) FullyDeposited() bool {
	return t.SideComplete(SideA) && t.SideComplete(SideB)
}

// NormalizeTradeID trims and validates a caller supplied identifier.
func NormalizeTradeID(id string) (string, error) {
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return "", fmt.Errorf("%w: id required", ErrInvalidTradeID)
	}
	if len(trimmed) > MaxTradeIDLength {
		return "", fmt.Errorf("%w: id exceeds %d bytes", ErrInvalidTradeID, MaxTradeIDLength)
	}
	for _, r := range trimmed {
		if !unicode.IsPrint(r) {
			return "", fmt.Errorf("%w: id contains non-printable characters", ErrInvalidTradeID)
		}
	}
	return trimmed, nil
}

// ComputeTermsHash digests the parties and the two bundles. Bundle order does
// not affect the digest.
func ComputeTermsHash(partyA, partyB [20]byte, fromA, fromB []Item) [32]byte {
	h := blake3.New(32, nil)
	h.Write([]byte("nftescrow/terms/v1"))
	h.Write(partyA[:])
	h.Write(partyB[:])
	for _, bundle := range [][]Item{fromA, fromB} {
		keys := itemKeys(bundle)
		fmt.Fprintf(h, "|%d", len(keys))
		for _, k := range keys {
			h.Write([]byte(k))
		}
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

func itemKeys(items []Item) []string {
	keys := make([]string, 0, len(items))
	for _, it := range items {
		keys = append(keys, it.Key())
	}
	sort.Strings(keys)
	return keys
}

func cloneItems(items []Item) []Item {
	if items == nil {
		return nil
	}
	out := make([]Item, len(items))
	for i, it := range items {
		out[i] = it.Clone()
	}
	return out
}

func containsItem(items []Item, target Item) bool {
	key := target.Key()
	for _, it := range items {
		if it.Key() == key {
			return true
		}
	}
	return false
}

func removeItems(items []Item, drop []Item) []Item {
	dropped := make(map[string]struct{}, len(drop))
	for _, it := range drop {
		dropped[it.Key()] = struct{}{}
	}
	out := make([]Item, 0, len(items))
	for _, it := range items {
		if _, ok := dropped[it.Key()]; ok {
			continue
		}
		out = append(out, it)
	}
	return out
}

func sameItemSet(a, b []Item) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[string]int, len(a))
	for _, it := range a {
		seen[it.Key()]++
	}
	for _, it := range b {
		k := it.Key()
		if seen[k] == 0 {
			return false
		}
		seen[k]--
	}
	return true
}
