package rpc

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"nftescrow/core/types"
	"nftescrow/crypto"
	"nftescrow/eventlog"
	"nftescrow/native/escrow"
	"nftescrow/native/registry"
)

// tokenID accepts either a decimal string or a JSON number.
type tokenID struct {
	value *big.Int
}

func (t *tokenID) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" || raw == "" {
		return fmt.Errorf("token id required")
	}
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		raw = strings.TrimSpace(s)
	}
	parsed, ok := new(big.Int).SetString(raw, 10)
	if !ok || parsed.Sign() < 0 {
		return fmt.Errorf("invalid token id %q", raw)
	}
	t.value = parsed
	return nil
}

type itemJSON struct {
	Collection string  `json:"collection"`
	TokenID    tokenID `json:"tokenId"`
}

type itemResult struct {
	Collection string `json:"collection"`
	TokenID    string `json:"tokenId"`
}

type tradeJSON struct {
	ID            string       `json:"id"`
	PartyA        string       `json:"partyA"`
	PartyB        string       `json:"partyB"`
	Owner         string       `json:"owner"`
	RequiredFromA []itemResult `json:"requiredFromA"`
	RequiredFromB []itemResult `json:"requiredFromB"`
	DepositedByA  []itemResult `json:"depositedByA"`
	DepositedByB  []itemResult `json:"depositedByB"`
	ALocked       bool         `json:"aLocked"`
	BLocked       bool         `json:"bLocked"`
	Closed        bool         `json:"closed"`
	Status        string       `json:"status"`
	ACancelled    bool         `json:"aCancelled"`
	BCancelled    bool         `json:"bCancelled"`
	TermsHash     string       `json:"termsHash"`
	CreatedAt     int64        `json:"createdAt"`
	ClosedAt      int64        `json:"closedAt,omitempty"`
}

type tokenJSON struct {
	Collection string `json:"collection"`
	TokenID    string `json:"tokenId"`
	Owner      string `json:"owner"`
	Approved   string `json:"approved,omitempty"`
	URI        string `json:"uri,omitempty"`
}

type eventJSON struct {
	Sequence   int64             `json:"sequence,omitempty"`
	Type       string            `json:"type"`
	TradeID    string            `json:"tradeId,omitempty"`
	Attributes map[string]string `json:"attributes"`
	CreatedAt  int64             `json:"createdAt,omitempty"`
}

func formatItems(items []escrow.Item) []itemResult {
	out := make([]itemResult, 0, len(items))
	for _, item := range items {
		out = append(out, itemResult{
			Collection: crypto.FormatCollection(item.Collection),
			TokenID:    item.TokenID.String(),
		})
	}
	return out
}

func formatTrade(t *escrow.Trade) tradeJSON {
	return tradeJSON{
		ID:            t.ID,
		PartyA:        crypto.FormatAccount(t.PartyA),
		PartyB:        crypto.FormatAccount(t.PartyB),
		Owner:         crypto.FormatAccount(t.Owner),
		RequiredFromA: formatItems(t.RequiredFromA),
		RequiredFromB: formatItems(t.RequiredFromB),
		DepositedByA:  formatItems(t.DepositedByA),
		DepositedByB:  formatItems(t.DepositedByB),
		ALocked:       t.ALocked,
		BLocked:       t.BLocked,
		Closed:        t.Closed,
		Status:        t.Status.String(),
		ACancelled:    t.ACancelled,
		BCancelled:    t.BCancelled,
		TermsHash:     "0x" + hex.EncodeToString(t.TermsHash[:]),
		CreatedAt:     t.CreatedAt,
		ClosedAt:      t.ClosedAt,
	}
}

func formatToken(tok *registry.Token) tokenJSON {
	out := tokenJSON{
		Collection: crypto.FormatCollection(tok.Collection),
		TokenID:    tok.TokenID.String(),
		Owner:      crypto.FormatAccount(tok.Owner),
		URI:        tok.URI,
	}
	if tok.Approved != ([20]byte{}) {
		out.Approved = crypto.FormatAccount(tok.Approved)
	}
	return out
}

func formatRecord(rec eventlog.Record) eventJSON {
	return eventJSON{
		Sequence:   rec.Sequence,
		Type:       rec.Type,
		TradeID:    rec.TradeID,
		Attributes: rec.Attributes,
		CreatedAt:  rec.CreatedAt.UnixMilli(),
	}
}

func formatEvent(evt *types.Event) eventJSON {
	return eventJSON{Type: evt.Type, TradeID: evt.Attributes["tradeId"], Attributes: evt.Attributes}
}

func parseAccount(field, value string) ([20]byte, error) {
	addr, err := crypto.ParseAddress(crypto.AccountPrefix, strings.TrimSpace(value))
	if err != nil {
		return [20]byte{}, fmt.Errorf("%s: %w", field, err)
	}
	return addr, nil
}

// parseCollection accepts a bech32 collection address or a collection symbol.
func parseCollection(value string) ([20]byte, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return [20]byte{}, fmt.Errorf("collection required")
	}
	if strings.HasPrefix(strings.ToLower(trimmed), string(crypto.CollectionPrefix)+"1") {
		return crypto.ParseAddress(crypto.CollectionPrefix, trimmed)
	}
	return registry.CollectionAddress(trimmed), nil
}

func parseItems(field string, raw []itemJSON) ([]escrow.Item, error) {
	items := make([]escrow.Item, 0, len(raw))
	for i, entry := range raw {
		collection, err := parseCollection(entry.Collection)
		if err != nil {
			return nil, fmt.Errorf("%s[%d]: %w", field, i, err)
		}
		if entry.TokenID.value == nil {
			return nil, fmt.Errorf("%s[%d]: token id required", field, i)
		}
		items = append(items, escrow.Item{Collection: collection, TokenID: entry.TokenID.value})
	}
	return items, nil
}

func tokenIDValues(raw []tokenID) ([]*big.Int, error) {
	out := make([]*big.Int, 0, len(raw))
	for i, id := range raw {
		if id.value == nil {
			return nil, fmt.Errorf("tokenIds[%d]: token id required", i)
		}
		out = append(out, id.value)
	}
	return out, nil
}
