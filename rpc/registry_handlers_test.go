package rpc

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"nftescrow/crypto"
	"nftescrow/native/registry"
)

func TestRegistryTransferOverRPC(t *testing.T) {
	env := newTestEnv(t)

	_, result, rpcErr := env.call(t, env.alice, "registry_transfer", map[string]interface{}{
		"collection": "PUNKS",
		"tokenId":    "1",
		"to":         crypto.FormatAccount(env.carol),
	})
	require.Nil(t, rpcErr)
	var tok tokenJSON
	require.NoError(t, json.Unmarshal(result, &tok))
	require.Equal(t, crypto.FormatAccount(env.carol), tok.Owner)

	// Carol may not move Bob's token without an approval.
	recorder, _, rpcErr := env.call(t, env.carol, "registry_transfer", map[string]interface{}{
		"collection": "PUNKS",
		"tokenId":    "3",
		"from":       crypto.FormatAccount(env.bob),
		"to":         crypto.FormatAccount(env.carol),
	})
	require.NotNil(t, rpcErr)
	require.Equal(t, http.StatusForbidden, recorder.Code)
	require.Equal(t, codeForbidden, rpcErr.Code)

	_, _, rpcErr = env.call(t, env.bob, "registry_approve", map[string]interface{}{
		"collection": "PUNKS",
		"tokenId":    "3",
		"operator":   crypto.FormatAccount(env.carol),
	})
	require.Nil(t, rpcErr)
	_, result, rpcErr = env.call(t, env.carol, "registry_transfer", map[string]interface{}{
		"collection": "PUNKS",
		"tokenId":    "3",
		"from":       crypto.FormatAccount(env.bob),
		"to":         crypto.FormatAccount(env.alice),
	})
	require.Nil(t, rpcErr)
	require.NoError(t, json.Unmarshal(result, &tok))
	require.Equal(t, crypto.FormatAccount(env.alice), tok.Owner)
	require.Empty(t, tok.Approved)
}

func TestRegistryTransferErrors(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name   string
		who    [20]byte
		params map[string]interface{}
		status int
		code   int
	}{
		{"anonymous", [20]byte{}, map[string]interface{}{"collection": "PUNKS", "tokenId": "1", "to": crypto.FormatAccount(env.bob)}, http.StatusUnauthorized, codeUnauthorized},
		{"not owner", env.alice, map[string]interface{}{"collection": "PUNKS", "tokenId": "3", "to": crypto.FormatAccount(env.carol)}, http.StatusForbidden, codeForbidden},
		{"unknown token", env.alice, map[string]interface{}{"collection": "PUNKS", "tokenId": "99", "to": crypto.FormatAccount(env.bob)}, http.StatusNotFound, codeNotFound},
		{"missing recipient", env.alice, map[string]interface{}{"collection": "PUNKS", "tokenId": "1"}, http.StatusBadRequest, codeInvalidParams},
		{"missing token id", env.alice, map[string]interface{}{"collection": "PUNKS", "to": crypto.FormatAccount(env.bob)}, http.StatusBadRequest, codeInvalidParams},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			recorder, _, rpcErr := env.call(t, tc.who, "registry_transfer", tc.params)
			require.NotNil(t, rpcErr)
			require.Equal(t, tc.status, recorder.Code)
			require.Equal(t, tc.code, rpcErr.Code)
		})
	}
}

func TestRegistryGetCollection(t *testing.T) {
	env := newTestEnv(t)
	addr := registry.CollectionAddress("PUNKS")

	for _, ref := range []string{"PUNKS", crypto.FormatCollection(addr)} {
		_, result, rpcErr := env.call(t, [20]byte{}, "registry_getCollection", map[string]string{"collection": ref})
		require.Nil(t, rpcErr, ref)
		var col collectionResult
		require.NoError(t, json.Unmarshal(result, &col))
		require.Equal(t, crypto.FormatCollection(addr), col.Address)
		require.Equal(t, "PUNKS", col.Symbol)
		require.Equal(t, "Punks", col.Name)
	}

	recorder, _, rpcErr := env.call(t, [20]byte{}, "registry_getCollection", map[string]string{"collection": "APES"})
	require.NotNil(t, rpcErr)
	require.Equal(t, http.StatusNotFound, recorder.Code)
}
