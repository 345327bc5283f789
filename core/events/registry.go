package events

import (
	"math/big"

	"nftescrow/core/types"
	"nftescrow/crypto"
)

const (
	TypeCollectionRegistered = "registry.collection.registered"
	TypeTokenMinted          = "registry.token.minted"
	TypeTokenTransferred     = "registry.token.transferred"
	TypeTokenApproved        = "registry.token.approved"
	TypeOperatorApproval     = "registry.operator.approval"
)

type CollectionRegistered struct {
	Collection [20]byte
	Symbol     string
	Name       string
	Creator    [20]byte
}

func (CollectionRegistered) EventType() string { return TypeCollectionRegistered }

func (e CollectionRegistered) Event() *types.Event {
	return &types.Event{
		Type: TypeCollectionRegistered,
		Attributes: map[string]string{
			"collection": crypto.FormatCollection(e.Collection),
			"symbol":     e.Symbol,
			"name":       e.Name,
			"creator":    crypto.FormatAccount(e.Creator),
		},
	}
}

type TokenMinted struct {
	Collection [20]byte
	TokenID    *big.Int
	To         [20]byte
}

func (TokenMinted) EventType() string { return TypeTokenMinted }

func (e TokenMinted) Event() *types.Event {
	return &types.Event{
		Type: TypeTokenMinted,
		Attributes: map[string]string{
			"collection": crypto.FormatCollection(e.Collection),
			"tokenId":    formatTokenID(e.TokenID),
			"to":         crypto.FormatAccount(e.To),
		},
	}
}

type TokenTransferred struct {
	Collection [20]byte
	TokenID    *big.Int
	From       [20]byte
	To         [20]byte
	Operator   [20]byte
}

func (TokenTransferred) EventType() string { return TypeTokenTransferred }

func (e TokenTransferred) Event() *types.Event {
	return &types.Event{
		Type: TypeTokenTransferred,
		Attributes: map[string]string{
			"collection": crypto.FormatCollection(e.Collection),
			"tokenId":    formatTokenID(e.TokenID),
			"from":       crypto.FormatAccount(e.From),
			"to":         crypto.FormatAccount(e.To),
			"operator":   crypto.FormatAccount(e.Operator),
		},
	}
}

type TokenApproved struct {
	Collection [20]byte
	TokenID    *big.Int
	Owner      [20]byte
	Approved   [20]byte
}

func (TokenApproved) EventType() string { return TypeTokenApproved }

func (e TokenApproved) Event() *types.Event {
	return &types.Event{
		Type: TypeTokenApproved,
		Attributes: map[string]string{
			"collection": crypto.FormatCollection(e.Collection),
			"tokenId":    formatTokenID(e.TokenID),
			"owner":      crypto.FormatAccount(e.Owner),
			"approved":   crypto.FormatAccount(e.Approved),
		},
	}
}

type OperatorApproval struct {
	Collection [20]byte
	Owner      [20]byte
	Operator   [20]byte
	Approved   bool
}

func (OperatorApproval) EventType() string { return TypeOperatorApproval }

func (e OperatorApproval) Event() *types.Event {
	return &types.Event{
		Type: TypeOperatorApproval,
		Attributes: map[string]string{
			"collection": crypto.FormatCollection(e.Collection),
			"owner":      crypto.FormatAccount(e.Owner),
			"operator":   crypto.FormatAccount(e.Operator),
			"approved":   boolString(e.Approved),
		},
	}
}
