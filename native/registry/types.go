package registry

import (
	"fmt"
	"math/big"
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

// Collection is a family of non-fungible tokens sharing one contract address.
type Collection struct {
	Address   [20]byte
	Symbol    string
	Name      string
	Creator   [20]byte
	CreatedAt uint64
}

// Token records the current holder and single-token approval of one asset.
type Token struct {
	Collection [20]byte
	TokenID    *big.Int
	Owner      [20]byte
	Approved   [20]byte
	URI        string
}

// TokenRef names a token without its ownership data.
type TokenRef struct {
	Collection [20]byte
	TokenID    *big.Int
}

// Clone returns a deep copy of the token.
func (t *Token) Clone() *Token {
	if t == nil {
		return nil
	}
	out := *t
	if t.TokenID != nil {
		out.TokenID = new(big.Int).Set(t.TokenID)
	}
	return &out
}

// CollectionAddress derives the deterministic address of a collection symbol.
func CollectionAddress(symbol string) [20]byte {
	var out [20]byte
	digest := ethcrypto.Keccak256([]byte("collection:" + NormalizeSymbol(symbol)))
	copy(out[:], digest[12:])
	return out
}

// NormalizeSymbol trims and upper-cases a collection symbol.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

func validateTokenID(id *big.Int) error {
	if id == nil || id.Sign() < 0 {
		return fmt.Errorf("%w: must be non-negative", ErrInvalidTokenID)
	}
	if _, overflow := uint256.FromBig(id); overflow {
		return fmt.Errorf("%w: exceeds 256 bits", ErrInvalidTokenID)
	}
	return nil
}
