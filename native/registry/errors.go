package registry

import "errors"

var (
	ErrNilState           = errors.New("registry: state not configured")
	ErrCollectionExists   = errors.New("registry: collection already registered")
	ErrCollectionNotFound = errors.New("registry: collection not found")
	ErrInvalidSymbol      = errors.New("registry: invalid collection symbol")
	ErrTokenExists        = errors.New("registry: token already minted")
	ErrTokenNotFound      = errors.New("registry: token not found")
	ErrInvalidTokenID     = errors.New("registry: invalid token id")
	ErrNotOwner           = errors.New("registry: from is not the token owner")
	ErrNotAuthorized      = errors.New("registry: operator not approved")
	ErrZeroAddress        = errors.New("registry: zero address")
)
