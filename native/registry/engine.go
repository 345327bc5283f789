package registry

import (
	"math/big"
	"strings"
	"time"

	"nftescrow/core/events"
	nativecommon "nftescrow/native/common"
)

const moduleName = "registry"

type engineState interface {
	CollectionGet(addr [20]byte) (*Collection, bool, error)
	CollectionPut(*Collection) error
	TokenGet(collection [20]byte, tokenID *big.Int) (*Token, bool, error)
	TokenPut(*Token) error
	OperatorApproved(owner, collection, operator [20]byte) (bool, error)
	SetOperatorApproval(owner, collection, operator [20]byte, approved bool) error
	HolderTokens(holder [20]byte) ([]TokenRef, error)
	HolderTokenAdd(holder [20]byte, ref TokenRef) error
	HolderTokenRemove(holder [20]byte, ref TokenRef) error
}

// Engine is the in-process reference registry for non-fungible ownership.
type Engine struct {
	state   engineState
	emitter events.Emitter
	nowFn   func() int64
	pauses  nativecommon.PauseView
}

// NewEngine constructs a registry engine with no backing state.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetEmitter configures the event emitter used by the engine.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) SetPauses(p nativecommon.PauseView) { e.pauses = p }

// SetNowFunc overrides the time source, primarily used in tests.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

func (e *Engine) emit(evt events.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(evt)
}

func (e *Engine) now() uint64 {
	if e.nowFn == nil {
		return uint64(time.Now().Unix())
	}
	return uint64(e.nowFn())
}

// RegisterCollection creates a collection whose address derives from symbol.
func (e *Engine) RegisterCollection(creator [20]byte, symbol, name string) (*Collection, error) {
	if e.state == nil {
		return nil, ErrNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	normalized := NormalizeSymbol(symbol)
	if normalized == "" || len(normalized) > 16 {
		return nil, ErrInvalidSymbol
	}
	addr := CollectionAddress(normalized)
	if _, exists, err := e.state.CollectionGet(addr); err != nil {
		return nil, err
	} else if exists {
		return nil, ErrCollectionExists
	}
	col := &Collection{
		Address:   addr,
		Symbol:    normalized,
		Name:      strings.TrimSpace(name),
		Creator:   creator,
		CreatedAt: e.now(),
	}
	if err := e.state.CollectionPut(col); err != nil {
		return nil, err
	}
	e.emit(events.CollectionRegistered{Collection: addr, Symbol: col.Symbol, Name: col.Name, Creator: creator})
	return col, nil
}

// Collection returns the stored collection.
func (e *Engine) Collection(addr [20]byte) (*Collection, error) {
	if e.state == nil {
		return nil, ErrNilState
	}
	col, ok, err := e.state.CollectionGet(addr)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrCollectionNotFound
	}
	return col, nil
}

// Mint creates a token owned by to. It is used by genesis and development
// tooling only.
func (e *Engine) Mint(collection [20]byte, to [20]byte, tokenID *big.Int, uri string) (*Token, error) {
	if e.state == nil {
		return nil, ErrNilState
	}
	if to == ([20]byte{}) {
		return nil, ErrZeroAddress
	}
	if err := validateTokenID(tokenID); err != nil {
		return nil, err
	}
	if _, err := e.Collection(collection); err != nil {
		return nil, err
	}
	if _, exists, err := e.state.TokenGet(collection, tokenID); err != nil {
		return nil, err
	} else if exists {
		return nil, ErrTokenExists
	}
	tok := &Token{Collection: collection, TokenID: new(big.Int).Set(tokenID), Owner: to, URI: uri}
	if err := e.state.TokenPut(tok); err != nil {
		return nil, err
	}
	if err := e.state.HolderTokenAdd(to, TokenRef{Collection: collection, TokenID: tok.TokenID}); err != nil {
		return nil, err
	}
	e.emit(events.TokenMinted{Collection: collection, TokenID: tok.TokenID, To: to})
	return tok.Clone(), nil
}

func (e *Engine) token(collection [20]byte, tokenID *big.Int) (*Token, error) {
	if e.state == nil {
		return nil, ErrNilState
	}
	if err := validateTokenID(tokenID); err != nil {
		return nil, err
	}
	tok, ok, err := e.state.TokenGet(collection, tokenID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrTokenNotFound
	}
	return tok, nil
}

// Token returns the full token record.
func (e *Engine) Token(collection [20]byte, tokenID *big.Int) (*Token, error) {
	tok, err := e.token(collection, tokenID)
	if err != nil {
		return nil, err
	}
	return tok.Clone(), nil
}

// OwnerOf returns the current holder of the token.
func (e *Engine) OwnerOf(collection [20]byte, tokenID *big.Int) ([20]byte, error) {
	tok, err := e.token(collection, tokenID)
	if err != nil {
		return [20]byte{}, err
	}
	return tok.Owner, nil
}

// GetApproved returns the single-token approval, zero when unset.
func (e *Engine) GetApproved(collection [20]byte, tokenID *big.Int) ([20]byte, error) {
	tok, err := e.token(collection, tokenID)
	if err != nil {
		return [20]byte{}, err
	}
	return tok.Approved, nil
}

// IsApprovedForAll reports whether operator manages every token of owner in
// the collection.
func (e *Engine) IsApprovedForAll(owner, collection, operator [20]byte) (bool, error) {
	if e.state == nil {
		return false, ErrNilState
	}
	return e.state.OperatorApproved(owner, collection, operator)
}

// IsApproved reports whether operator may move the token on behalf of owner.
func (e *Engine) IsApproved(owner, operator, collection [20]byte, tokenID *big.Int) (bool, error) {
	tok, err := e.token(collection, tokenID)
	if err != nil {
		return false, err
	}
	if tok.Owner != owner {
		return false, nil
	}
	return e.authorized(tok, operator)
}

func (e *Engine) authorized(tok *Token, operator [20]byte) (bool, error) {
	if operator == tok.Owner || (tok.Approved != [20]byte{} && tok.Approved == operator) {
		return true, nil
	}
	return e.state.OperatorApproved(tok.Owner, tok.Collection, operator)
}

// Approve grants operator the right to move one token. Passing the zero
// address clears the approval.
func (e *Engine) Approve(caller, collection [20]byte, tokenID *big.Int, operator [20]byte) error {
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	tok, err := e.token(collection, tokenID)
	if err != nil {
		return err
	}
	if caller != tok.Owner {
		ok, err := e.state.OperatorApproved(tok.Owner, collection, caller)
		if err != nil {
			return err
		}
		if !ok {
			return ErrNotAuthorized
		}
	}
	tok.Approved = operator
	if err := e.state.TokenPut(tok); err != nil {
		return err
	}
	e.emit(events.TokenApproved{Collection: collection, TokenID: tok.TokenID, Owner: tok.Owner, Approved: operator})
	return nil
}

// SetApprovalForAll toggles operator rights over every token the caller holds
// in the collection.
func (e *Engine) SetApprovalForAll(caller, collection, operator [20]byte, approved bool) error {
	if e.state == nil {
		return ErrNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if operator == ([20]byte{}) {
		return ErrZeroAddress
	}
	if _, err := e.Collection(collection); err != nil {
		return err
	}
	if err := e.state.SetOperatorApproval(caller, collection, operator, approved); err != nil {
		return err
	}
	e.emit(events.OperatorApproval{Collection: collection, Owner: caller, Operator: operator, Approved: approved})
	return nil
}

// Transfer moves a token from its owner to a new holder. The single-token
// approval is cleared on every transfer.
func (e *Engine) Transfer(operator, from, to, collection [20]byte, tokenID *big.Int) error {
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if to == ([20]byte{}) {
		return ErrZeroAddress
	}
	tok, err := e.token(collection, tokenID)
	if err != nil {
		return err
	}
	if tok.Owner != from {
		return ErrNotOwner
	}
	ok, err := e.authorized(tok, operator)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotAuthorized
	}
	ref := TokenRef{Collection: collection, TokenID: tok.TokenID}
	if err := e.state.HolderTokenRemove(from, ref); err != nil {
		return err
	}
	tok.Owner = to
	tok.Approved = [20]byte{}
	if err := e.state.TokenPut(tok); err != nil {
		return err
	}
	if err := e.state.HolderTokenAdd(to, ref); err != nil {
		return err
	}
	e.emit(events.TokenTransferred{Collection: collection, TokenID: tok.TokenID, From: from, To: to, Operator: operator})
	return nil
}

// TokensOf lists the tokens currently held by holder.
func (e *Engine) TokensOf(holder [20]byte) ([]TokenRef, error) {
	if e.state == nil {
		return nil, ErrNilState
	}
	return e.state.HolderTokens(holder)
}
