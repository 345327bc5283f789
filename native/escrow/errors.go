package escrow

import (
	"errors"

	nativecommon "nftescrow/native/common"
)

var (
	ErrNilBackend = errors.New("escrow: backend not configured")

	// Input errors.
	ErrDuplicateTrade  = errors.New("escrow: trade id already exists")
	ErrTradeNotFound   = errors.New("escrow: trade not found")
	ErrTermsMismatch   = errors.New("escrow: terms do not match stored trade")
	ErrInvalidTerms    = errors.New("escrow: invalid trade terms")
	ErrInvalidTradeID  = errors.New("escrow: invalid trade id")
	ErrInvalidItem     = errors.New("escrow: invalid item")
	ErrItemNotRequired = errors.New("escrow: item not required from caller")

	// Authorization errors.
	ErrUnauthorizedCaller = errors.New("escrow: caller is not a party to the trade")
	ErrOnlyOwnerCanCancel = errors.New("escrow: only the originating party can cancel")

	// Registry errors.
	ErrItemNotOwned             = errors.New("escrow: item not owned by caller")
	ErrItemNotApprovedForEscrow = errors.New("escrow: item not approved for escrow")
	ErrRegistryTransfer         = errors.New("escrow: registry transfer failed")
	ErrSettlementFailed         = errors.New("escrow: settlement failed")

	// State errors.
	ErrAlreadyClosed        = errors.New("escrow: trade already closed")
	ErrNotFullyDeposited    = errors.New("escrow: bundle not fully deposited")
	ErrNotDeposited         = errors.New("escrow: item not deposited")
	ErrAlreadyDeposited     = errors.New("escrow: item already deposited")
	ErrUnsupportedOperation = errors.New("escrow: operation not supported by deposit policy")
	ErrReentrantCall        = errors.New("escrow: re-entrant call rejected")
)

// ErrorKind groups escrow failures by how a caller should react to them.
type ErrorKind string

const (
	KindNone          ErrorKind = ""
	KindInput         ErrorKind = "input"
	KindAuthorization ErrorKind = "authorization"
	KindRegistry      ErrorKind = "registry"
	KindState         ErrorKind = "state"
	KindInternal      ErrorKind = "internal"
)

var errorKinds = []struct {
	err  error
	kind ErrorKind
}{
	{ErrDuplicateTrade, KindInput},
	{ErrTradeNotFound, KindInput},
	{ErrTermsMismatch, KindInput},
	{ErrInvalidTerms, KindInput},
	{ErrInvalidTradeID, KindInput},
	{ErrInvalidItem, KindInput},
	{ErrItemNotRequired, KindInput},
	{ErrUnauthorizedCaller, KindAuthorization},
	{ErrOnlyOwnerCanCancel, KindAuthorization},
	{ErrItemNotOwned, KindRegistry},
	{ErrItemNotApprovedForEscrow, KindRegistry},
	{ErrRegistryTransfer, KindRegistry},
	{ErrSettlementFailed, KindRegistry},
	{ErrAlreadyClosed, KindState},
	{ErrNotFullyDeposited, KindState},
	{ErrNotDeposited, KindState},
	{ErrAlreadyDeposited, KindState},
	{ErrUnsupportedOperation, KindState},
	{ErrReentrantCall, KindState},
	{nativecommon.ErrModulePaused, KindState},
}

// Kind classifies err into the escrow error taxonomy.
func Kind(err error) ErrorKind {
	if err == nil {
		return KindNone
	}
	for _, entry := range errorKinds {
		if errors.Is(err, entry.err) {
			return entry.kind
		}
	}
	return KindInternal
}
