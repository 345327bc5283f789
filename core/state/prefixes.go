package state

import (
	"math/big"
)

var (
	tradePrefix          = []byte("escrow/trade/")
	tradeIndexPrefix     = []byte("escrow/index/")
	collectionPrefix     = []byte("registry/collection/")
	tokenPrefix          = []byte("registry/token/")
	operatorPrefix       = []byte("registry/operator/")
	holderPrefix         = []byte("registry/holder/")
	stateVersionKeyBytes = []byte("state/version")
)

func prefixed(prefix []byte, parts ...[]byte) []byte {
	size := len(prefix)
	for _, p := range parts {
		size += len(p)
	}
	buf := make([]byte, 0, size)
	buf = append(buf, prefix...)
	for _, p := range parts {
		buf = append(buf, p...)
	}
	return buf
}

// TradeKey returns the pre-hash key of a trade record.
func TradeKey(id string) []byte { return prefixed(tradePrefix, []byte(id)) }

// TradeIndexKey returns the pre-hash key of an identity's trade list.
func TradeIndexKey(identity [20]byte) []byte { return prefixed(tradeIndexPrefix, identity[:]) }

func collectionKey(addr [20]byte) []byte { return prefixed(collectionPrefix, addr[:]) }

func tokenKey(collection [20]byte, tokenID *big.Int) []byte {
	return prefixed(tokenPrefix, collection[:], tokenIDBytes(tokenID))
}

func operatorKey(owner, collection, operator [20]byte) []byte {
	return prefixed(operatorPrefix, owner[:], collection[:], operator[:])
}

func holderKey(holder [20]byte) []byte { return prefixed(holderPrefix, holder[:]) }

func tokenIDBytes(id *big.Int) []byte {
	buf := make([]byte, 32)
	if id != nil {
		id.FillBytes(buf)
	}
	return buf
}
