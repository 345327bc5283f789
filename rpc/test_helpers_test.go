package rpc

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"nftescrow/core"
	"nftescrow/core/events"
	"nftescrow/core/genesis"
	"nftescrow/crypto"
	"nftescrow/eventlog"
	"nftescrow/native/escrow"
	"nftescrow/storage"
)

const (
	testJWTSecret = "rpc-test-secret"
	testIssuer    = "rpc-tests"
	testAudience  = "unit-tests"
)

type testEnv struct {
	server  *Server
	node    *core.Node
	journal *eventlog.Store
	stream  *events.Broadcaster
	alice   [20]byte
	bob     [20]byte
	carol   [20]byte
}

func newIdentity(t testing.TB) [20]byte {
	t.Helper()
	key, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	return key.PubKey().Address().Array()
}

func newTestEnv(t testing.TB, mutate ...func(*ServerConfig, *escrow.Config)) *testEnv {
	t.Helper()
	cfg := ServerConfig{
		Auth: AuthConfig{
			HMACSecret:     testJWTSecret,
			Issuer:         testIssuer,
			Audience:       testAudience,
			AllowAnonymous: true,
		},
	}
	escrowCfg := escrow.DefaultConfig()
	for _, fn := range mutate {
		fn(&cfg, &escrowCfg)
	}

	journal, err := eventlog.Open(filepath.Join(t.TempDir(), "events.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = journal.Close() })
	stream := events.NewBroadcaster(16)

	node, err := core.NewNode(storage.NewMemDB(), core.NodeConfig{Escrow: escrowCfg}, events.Multi{journal, stream})
	require.NoError(t, err)
	t.Cleanup(node.Close)

	env := &testEnv{node: node, journal: journal, stream: stream}
	env.alice, env.bob, env.carol = newIdentity(t), newIdentity(t), newIdentity(t)

	doc := map[string]interface{}{
		"collections": []map[string]interface{}{{
			"symbol": "PUNKS",
			"name":   "Punks",
			"tokens": []map[string]string{
				{"id": "1", "owner": crypto.FormatAccount(env.alice)},
				{"id": "2", "owner": crypto.FormatAccount(env.alice)},
				{"id": "3", "owner": crypto.FormatAccount(env.bob)},
			},
		}},
	}
	raw, err := json.Marshal(doc)
	require.NoError(t, err)
	spec, err := genesis.ParseSpec(raw)
	require.NoError(t, err)
	require.NoError(t, node.ApplyGenesis(spec))

	srv, err := NewServer(node, cfg, WithJournal(journal), WithBroadcaster(stream))
	require.NoError(t, err)
	env.server = srv
	return env
}

func (e *testEnv) token(t testing.TB, who [20]byte) string {
	t.Helper()
	tok, err := IssueToken(testJWTSecret, who, testIssuer, testAudience, time.Minute)
	require.NoError(t, err)
	return tok
}

func marshalParam(t testing.TB, v interface{}) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return raw
}

// call posts a JSON-RPC request as who. A zero identity sends no token.
func (e *testEnv) call(t testing.TB, who [20]byte, method string, params interface{}) (*httptest.ResponseRecorder, json.RawMessage, *RPCError) {
	t.Helper()
	req := RPCRequest{JSONRPC: jsonRPCVersion, Method: method, ID: 1}
	if params != nil {
		req.Params = []json.RawMessage{marshalParam(t, params)}
	}
	body, err := json.Marshal(req)
	require.NoError(t, err)
	httpReq := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	httpReq.Header.Set("Content-Type", "application/json")
	if who != ([20]byte{}) {
		httpReq.Header.Set("Authorization", "Bearer "+e.token(t, who))
	}
	recorder := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(recorder, httpReq)
	result, rpcErr := decodeRPCResponse(t, recorder)
	return recorder, result, rpcErr
}

func decodeRPCResponse(t testing.TB, recorder *httptest.ResponseRecorder) (json.RawMessage, *RPCError) {
	t.Helper()
	var resp struct {
		Result json.RawMessage `json:"result"`
		Error  *RPCError       `json:"error"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &resp), recorder.Body.String())
	return resp.Result, resp.Error
}

func punk(id string) map[string]string {
	return map[string]string{"collection": "PUNKS", "tokenId": id}
}
