// core/genesis/loader.go
package genesis

import (
	"fmt"
	"math/big"

	"nftescrow/native/registry"
)

// Seeder is the registry surface genesis needs.
type Seeder interface {
	RegisterCollection(creator [20]byte, symbol, name string) (*registry.Collection, error)
	Mint(collection [20]byte, to [20]byte, tokenID *big.Int, uri string) (*registry.Token, error)
}

// Apply registers every collection and mints its initial tokens in file order.
func Apply(spec *GenesisSpec, seeder Seeder) error {
	if spec == nil {
		return fmt.Errorf("genesis spec must not be nil")
	}
	if seeder == nil {
		return fmt.Errorf("genesis seeder must not be nil")
	}
	for _, col := range spec.Collections {
		created, err := seeder.RegisterCollection(col.ResolvedCreator(), col.Symbol, col.Name)
		if err != nil {
			return fmt.Errorf("genesis: register %s: %w", col.Symbol, err)
		}
		for _, tok := range col.Tokens {
			if _, err := seeder.Mint(created.Address, tok.ResolvedOwner(), tok.ResolvedID(), tok.URI); err != nil {
				return fmt.Errorf("genesis: mint %s #%s: %w", col.Symbol, tok.ResolvedID(), err)
			}
		}
	}
	return nil
}
