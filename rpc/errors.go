package rpc

import (
	"errors"
	"net/http"

	"nftescrow/native/escrow"
	nativecommon "nftescrow/native/common"
	"nftescrow/native/registry"
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeUnauthorized   = -32001
	codeRateLimited    = -32020
	codeNotFound       = -32022
	codeForbidden      = -32023
	codeConflict       = -32024
	codeInternal       = -32025
	codeRegistry       = -32026
	codePaused         = -32027
)

type errorMapping struct {
	status  int
	code    int
	message string
}

var (
	mapNotFound  = errorMapping{http.StatusNotFound, codeNotFound, "not_found"}
	mapInvalid   = errorMapping{http.StatusBadRequest, codeInvalidParams, "invalid_params"}
	mapForbidden = errorMapping{http.StatusForbidden, codeForbidden, "forbidden"}
	mapConflict  = errorMapping{http.StatusConflict, codeConflict, "conflict"}
	mapRegistry  = errorMapping{http.StatusUnprocessableEntity, codeRegistry, "registry_rejected"}
	mapPaused    = errorMapping{http.StatusServiceUnavailable, codePaused, "module_paused"}
	mapInternal  = errorMapping{http.StatusInternalServerError, codeInternal, "internal_error"}
)

// classifyError maps escrow and registry failures onto JSON-RPC codes.
func classifyError(err error) errorMapping {
	switch {
	case errors.Is(err, nativecommon.ErrModulePaused):
		return mapPaused
	case errors.Is(err, errJournalDisabled):
		return errorMapping{http.StatusServiceUnavailable, codeInternal, "journal_disabled"}
	case errors.Is(err, escrow.ErrTradeNotFound),
		errors.Is(err, registry.ErrTokenNotFound),
		errors.Is(err, registry.ErrCollectionNotFound):
		return mapNotFound
	case errors.Is(err, escrow.ErrDuplicateTrade):
		return mapConflict
	case errors.Is(err, registry.ErrNotOwner),
		errors.Is(err, registry.ErrNotAuthorized):
		return mapForbidden
	case errors.Is(err, registry.ErrInvalidTokenID),
		errors.Is(err, registry.ErrZeroAddress),
		errors.Is(err, registry.ErrInvalidSymbol):
		return mapInvalid
	}
	switch escrow.Kind(err) {
	case escrow.KindInput:
		return mapInvalid
	case escrow.KindAuthorization:
		return mapForbidden
	case escrow.KindRegistry:
		return mapRegistry
	case escrow.KindState:
		return mapConflict
	default:
		return mapInternal
	}
}

func errorLabel(err error) string {
	if errors.Is(err, nativecommon.ErrModulePaused) {
		return "paused"
	}
	if kind := escrow.Kind(err); kind != escrow.KindInternal {
		return string(kind)
	}
	return classifyError(err).message
}
