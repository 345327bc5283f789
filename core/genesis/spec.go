// core/genesis/spec.go
package genesis

import (
	"fmt"
	"math/big"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"nftescrow/crypto"
)

// GenesisSpec seeds the asset registry of a fresh node. The file may be YAML
// or JSON.
type GenesisSpec struct {
	Collections []CollectionSpec `json:"collections" yaml:"collections"`
}

type CollectionSpec struct {
	Symbol  string      `json:"symbol" yaml:"symbol"`
	Name    string      `json:"name" yaml:"name"`
	Creator string      `json:"creator,omitempty" yaml:"creator,omitempty"`
	Tokens  []TokenSpec `json:"tokens" yaml:"tokens"`

	creator [20]byte
}

type TokenSpec struct {
	ID    string `json:"id" yaml:"id"`
	Owner string `json:"owner" yaml:"owner"`
	URI   string `json:"uri,omitempty" yaml:"uri,omitempty"`

	id    *big.Int
	owner [20]byte
}

// LoadSpecFromFile reads and validates the genesis file at path.
func LoadSpecFromFile(path string) (*GenesisSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read genesis: %w", err)
	}
	return ParseSpec(data)
}

// ParseSpec decodes and validates a genesis document.
func ParseSpec(data []byte) (*GenesisSpec, error) {
	spec := new(GenesisSpec)
	if err := yaml.Unmarshal(data, spec); err != nil {
		return nil, fmt.Errorf("decode genesis: %w", err)
	}
	if err := spec.resolve(); err != nil {
		return nil, err
	}
	return spec, nil
}

func (s *GenesisSpec) resolve() error {
	symbols := make(map[string]struct{}, len(s.Collections))
	for i := range s.Collections {
		col := &s.Collections[i]
		symbol := strings.ToUpper(strings.TrimSpace(col.Symbol))
		if symbol == "" {
			return fmt.Errorf("genesis: collection %d missing symbol", i)
		}
		if _, dup := symbols[symbol]; dup {
			return fmt.Errorf("genesis: duplicate collection %s", symbol)
		}
		symbols[symbol] = struct{}{}
		col.Symbol = symbol
		if strings.TrimSpace(col.Creator) != "" {
			creator, err := crypto.ParseAddress(crypto.AccountPrefix, col.Creator)
			if err != nil {
				return fmt.Errorf("genesis: collection %s creator: %w", symbol, err)
			}
			col.creator = creator
		}
		ids := make(map[string]struct{}, len(col.Tokens))
		for j := range col.Tokens {
			tok := &col.Tokens[j]
			id, ok := new(big.Int).SetString(strings.TrimSpace(tok.ID), 10)
			if !ok || id.Sign() < 0 {
				return fmt.Errorf("genesis: collection %s token %q invalid id", symbol, tok.ID)
			}
			if _, dup := ids[id.String()]; dup {
				return fmt.Errorf("genesis: collection %s token %s listed twice", symbol, id)
			}
			ids[id.String()] = struct{}{}
			owner, err := crypto.ParseAddress(crypto.AccountPrefix, tok.Owner)
			if err != nil {
				return fmt.Errorf("genesis: collection %s token %s owner: %w", symbol, id, err)
			}
			tok.id = id
			tok.owner = owner
		}
	}
	return nil
}

// ResolvedID returns the parsed token id.
func (t TokenSpec) ResolvedID() *big.Int { return t.id }

// ResolvedOwner returns the parsed owner identity.
func (t TokenSpec) ResolvedOwner() [20]byte { return t.owner }

// ResolvedCreator returns the parsed creator identity, zero when omitted.
func (c CollectionSpec) ResolvedCreator() [20]byte { return c.creator }
