package state

import (
	"fmt"
	"math/big"

	"nftescrow/native/registry"
)

// CollectionPut persists a registry collection.
func (s *Session) CollectionPut(c *registry.Collection) error {
	if c == nil {
		return fmt.Errorf("state: nil collection")
	}
	return s.KVPut(collectionKey(c.Address), c)
}

// CollectionGet loads the collection registered at addr.
func (s *Session) CollectionGet(addr [20]byte) (*registry.Collection, bool, error) {
	col := new(registry.Collection)
	ok, err := s.KVGet(collectionKey(addr), col)
	if err != nil || !ok {
		return nil, ok, err
	}
	return col, true, nil
}

// TokenPut persists a token record.
func (s *Session) TokenPut(t *registry.Token) error {
	if t == nil || t.TokenID == nil {
		return fmt.Errorf("state: token id required")
	}
	return s.KVPut(tokenKey(t.Collection, t.TokenID), t)
}

// TokenGet loads the token record.
func (s *Session) TokenGet(collection [20]byte, tokenID *big.Int) (*registry.Token, bool, error) {
	tok := new(registry.Token)
	ok, err := s.KVGet(tokenKey(collection, tokenID), tok)
	if err != nil || !ok {
		return nil, ok, err
	}
	if tok.TokenID == nil {
		tok.TokenID = new(big.Int)
	}
	return tok, true, nil
}

// OperatorApproved reports the collection-wide operator flag.
func (s *Session) OperatorApproved(owner, collection, operator [20]byte) (bool, error) {
	var approved bool
	if _, err := s.KVGet(operatorKey(owner, collection, operator), &approved); err != nil {
		return false, err
	}
	return approved, nil
}

// SetOperatorApproval stores the collection-wide operator flag.
func (s *Session) SetOperatorApproval(owner, collection, operator [20]byte, approved bool) error {
	return s.KVPut(operatorKey(owner, collection, operator), approved)
}

// HolderTokens lists the tokens indexed under holder.
func (s *Session) HolderTokens(holder [20]byte) ([]registry.TokenRef, error) {
	var refs []registry.TokenRef
	if _, err := s.KVGet(holderKey(holder), &refs); err != nil {
		return nil, err
	}
	if refs == nil {
		refs = []registry.TokenRef{}
	}
	return refs, nil
}

// HolderTokenAdd indexes ref under holder.
func (s *Session) HolderTokenAdd(holder [20]byte, ref registry.TokenRef) error {
	refs, err := s.HolderTokens(holder)
	if err != nil {
		return err
	}
	for _, existing := range refs {
		if sameRef(existing, ref) {
			return nil
		}
	}
	return s.KVPut(holderKey(holder), append(refs, ref))
}

// HolderTokenRemove drops ref from holder's index.
func (s *Session) HolderTokenRemove(holder [20]byte, ref registry.TokenRef) error {
	refs, err := s.HolderTokens(holder)
	if err != nil {
		return err
	}
	out := refs[:0]
	for _, existing := range refs {
		if !sameRef(existing, ref) {
			out = append(out, existing)
		}
	}
	return s.KVPut(holderKey(holder), out)
}

func sameRef(a, b registry.TokenRef) bool {
	if a.Collection != b.Collection || a.TokenID == nil || b.TokenID == nil {
		return false
	}
	return a.TokenID.Cmp(b.TokenID) == 0
}
