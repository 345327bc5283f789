package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"nftescrow/crypto"
)

var aliceAddr = crypto.FormatAccount([20]byte{0xa1})

type recordedCall struct {
	method      string
	params      map[string]interface{}
	requireAuth bool
}

func stubRPC(t *testing.T, result string) *[]recordedCall {
	t.Helper()
	calls := &[]recordedCall{}
	original := rpcCall
	rpcCall = func(method string, params interface{}, requireAuth bool) (json.RawMessage, *rpcError, error) {
		raw, err := json.Marshal(params)
		require.NoError(t, err)
		var decoded map[string]interface{}
		require.NoError(t, json.Unmarshal(raw, &decoded))
		*calls = append(*calls, recordedCall{method: method, params: decoded, requireAuth: requireAuth})
		return json.RawMessage(result), nil, nil
	}
	t.Cleanup(func() { rpcCall = original })
	return calls
}

func runCLI(args ...string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	code := run(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestArgumentValidation(t *testing.T) {
	calls := stubRPC(t, `{}`)
	cases := []struct {
		name string
		args []string
		want string
	}{
		{name: "no command", args: nil, want: "Usage:"},
		{name: "unknown command", args: []string{"swap"}, want: "Unknown command: swap"},
		{name: "unknown trade subcommand", args: []string{"trade", "settle"}, want: "Unknown trade subcommand"},
		{name: "create missing a", args: []string{"trade", "create", "--b", aliceAddr, "--from-a", "PUNKS:1"}, want: "--a is required"},
		{name: "create without items", args: []string{"trade", "create", "--a", aliceAddr, "--b", aliceAddr}, want: "at least one of"},
		{name: "create bad item", args: []string{"trade", "create", "--a", aliceAddr, "--b", aliceAddr, "--from-a", "PUNKS"}, want: "COLLECTION:TOKEN_ID"},
		{name: "deposit bad token", args: []string{"trade", "deposit", "--id", "t1", "--collection", "PUNKS", "--tokens", "1,x"}, want: "invalid token id"},
		{name: "deposit missing id", args: []string{"trade", "deposit", "--collection", "PUNKS", "--tokens", "1"}, want: "--id is required"},
		{name: "lock missing id", args: []string{"trade", "lock"}, want: "--id is required"},
		{name: "positional", args: []string{"trade", "get", "--id", "t1", "extra"}, want: "unexpected positional"},
		{name: "events negative limit", args: []string{"trade", "events", "--limit", "-1"}, want: "--limit must be non-negative"},
		{name: "owner missing token", args: []string{"nft", "owner", "--collection", "PUNKS"}, want: "--token is required"},
		{name: "is-approved missing owner", args: []string{"nft", "is-approved", "--collection", "PUNKS", "--token", "1"}, want: "--owner is required"},
		{name: "rpc flag without value", args: []string{"--rpc"}, want: "missing value for --rpc"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			code, _, stderr := runCLI(tc.args...)
			require.Equal(t, 1, code)
			require.Contains(t, stderr, tc.want)
		})
	}
	require.Empty(t, *calls)
}

func TestTradeCreateBuildsParams(t *testing.T) {
	calls := stubRPC(t, `{"id":"generated"}`)
	original := newTradeID
	newTradeID = func() string { return "generated" }
	t.Cleanup(func() { newTradeID = original })

	code, stdout, stderr := runCLI("trade", "create", "--a", aliceAddr, "--b", aliceAddr, "--from-a", "PUNKS:1, punks:02", "--from-b", "APES:7")
	require.Equal(t, 0, code, stderr)
	require.Contains(t, stderr, "trade id: generated")
	require.Contains(t, stdout, `"id": "generated"`)

	require.Len(t, *calls, 1)
	call := (*calls)[0]
	require.Equal(t, "escrow_createTrade", call.method)
	require.True(t, call.requireAuth)
	require.Equal(t, "generated", call.params["id"])
	require.Equal(t, []interface{}{
		map[string]interface{}{"collection": "PUNKS", "tokenId": "1"},
		map[string]interface{}{"collection": "punks", "tokenId": "2"},
	}, call.params["fromA"])
	require.Equal(t, []interface{}{
		map[string]interface{}{"collection": "APES", "tokenId": "7"},
	}, call.params["fromB"])
}

func TestSubcommandsMapToMethods(t *testing.T) {
	cases := []struct {
		args   []string
		method string
		auth   bool
		check  func(t *testing.T, params map[string]interface{})
	}{
		{
			args:   []string{"trade", "deposit", "--id", "t1", "--collection", "PUNKS", "--tokens", "1,2"},
			method: "escrow_deposit", auth: true,
			check: func(t *testing.T, params map[string]interface{}) {
				require.Equal(t, []interface{}{"1", "2"}, params["tokenIds"])
			},
		},
		{args: []string{"trade", "withdraw", "--id", "t1", "--collection", "PUNKS", "--tokens", "1"}, method: "escrow_withdraw", auth: true},
		{
			args:   []string{"trade", "deposit-all", "--id", "t2", "--counterparty", aliceAddr, "--have", "PUNKS:1", "--want", "PUNKS:3"},
			method: "escrow_depositAll", auth: true,
			check: func(t *testing.T, params map[string]interface{}) {
				require.Equal(t, aliceAddr, params["counterparty"])
			},
		},
		{args: []string{"trade", "lock", "--id", "t1"}, method: "escrow_lock", auth: true},
		{args: []string{"trade", "cancel", "--id", "t1"}, method: "escrow_cancelTradeOffer", auth: true},
		{args: []string{"trade", "get", "--id", "t1"}, method: "escrow_getTrade"},
		{args: []string{"trade", "required", "--id", "t1"}, method: "escrow_getRequiredItems", auth: true},
		{args: []string{"trade", "required", "--id", "t1", "--party", aliceAddr}, method: "escrow_getRequiredItems"},
		{args: []string{"trade", "list", "--identity", aliceAddr}, method: "escrow_getTradeIdsOf"},
		{args: []string{"trade", "list", "--identity", aliceAddr, "--full"}, method: "escrow_getTradesOf"},
		{
			args:   []string{"trade", "events", "--trade", "t1", "--after", "4", "--limit", "10"},
			method: "escrow_listEvents",
			check: func(t *testing.T, params map[string]interface{}) {
				require.Equal(t, "t1", params["tradeId"])
				require.EqualValues(t, 4, params["after"])
				require.EqualValues(t, 10, params["limit"])
				require.NotContains(t, params, "type")
			},
		},
		{args: []string{"vault"}, method: "escrow_vault"},
		{args: []string{"nft", "owner", "--collection", "PUNKS", "--token", "1"}, method: "registry_ownerOf"},
		{
			args:   []string{"nft", "approve", "--collection", "PUNKS", "--token", "1"},
			method: "registry_approve", auth: true,
			check: func(t *testing.T, params map[string]interface{}) {
				require.Equal(t, "escrow", params["operator"])
			},
		},
		{
			args:   []string{"nft", "approve-all", "--collection", "PUNKS", "--revoke"},
			method: "registry_setApprovalForAll", auth: true,
			check: func(t *testing.T, params map[string]interface{}) {
				require.Equal(t, false, params["approved"])
			},
		},
		{args: []string{"nft", "is-approved", "--collection", "PUNKS", "--token", "1", "--owner", aliceAddr}, method: "registry_isApproved"},
		{args: []string{"nft", "tokens", "--holder", aliceAddr}, method: "registry_tokensOf"},
		{
			args:   []string{"nft", "transfer", "--collection", "PUNKS", "--token", "1", "--to", aliceAddr},
			method: "registry_transfer", auth: true,
			check: func(t *testing.T, params map[string]interface{}) {
				require.Equal(t, aliceAddr, params["to"])
				require.NotContains(t, params, "from")
			},
		},
		{args: []string{"nft", "collection", "--collection", "PUNKS"}, method: "registry_getCollection"},
	}
	for _, tc := range cases {
		t.Run(strings.Join(tc.args, " "), func(t *testing.T) {
			calls := stubRPC(t, `true`)
			code, _, stderr := runCLI(tc.args...)
			require.Equal(t, 0, code, stderr)
			require.Len(t, *calls, 1)
			call := (*calls)[0]
			require.Equal(t, tc.method, call.method)
			require.Equal(t, tc.auth, call.requireAuth)
			if tc.check != nil {
				tc.check(t, call.params)
			}
		})
	}
}

func TestRPCErrorIsReported(t *testing.T) {
	original := rpcCall
	rpcCall = func(string, interface{}, bool) (json.RawMessage, *rpcError, error) {
		return nil, &rpcError{Code: -32020, Message: "trade not found", Data: json.RawMessage(`"t9"`)}, nil
	}
	t.Cleanup(func() { rpcCall = original })

	code, _, stderr := runCLI("trade", "get", "--id", "t9")
	require.Equal(t, 1, code)
	require.Contains(t, stderr, "RPC error -32020: trade not found")
	require.Contains(t, stderr, `"t9"`)
}

func TestCallRPCSendsEnvelopeAndToken(t *testing.T) {
	var (
		gotAuth string
		gotBody map[string]interface{}
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":{"ok":true}}`))
	}))
	defer server.Close()

	originalEndpoint, originalToken := rpcEndpoint, rpcAuthToken
	t.Cleanup(func() { rpcEndpoint, rpcAuthToken = originalEndpoint, originalToken })

	rpcAuthToken = ""
	args, err := applyGlobalFlags([]string{"--rpc=" + server.URL, "trade", "get"})
	require.NoError(t, err)
	require.Equal(t, []string{"trade", "get"}, args)

	_, _, err = callRPC("escrow_lock", map[string]string{"id": "t1"}, true)
	require.ErrorContains(t, err, "ESCROW_RPC_TOKEN")

	rpcAuthToken = " secret-token "
	result, rpcErr, err := callRPC("escrow_lock", map[string]string{"id": "t1"}, true)
	require.NoError(t, err)
	require.Nil(t, rpcErr)
	require.JSONEq(t, `{"ok":true}`, string(result))
	require.Equal(t, "Bearer secret-token", gotAuth)
	require.Equal(t, "escrow_lock", gotBody["method"])
	require.Equal(t, "2.0", gotBody["jsonrpc"])
	require.Equal(t, []interface{}{map[string]interface{}{"id": "t1"}}, gotBody["params"])
}

func TestIssueTokenForSubject(t *testing.T) {
	t.Setenv(jwtSecretEnv, "shared-secret")
	code, stdout, stderr := runCLI("token", "--subject", aliceAddr, "--ttl", "10m", "--audience", "escrowd")
	require.Equal(t, 0, code, stderr)

	parsed, err := jwt.Parse(strings.TrimSpace(stdout), func(*jwt.Token) (interface{}, error) {
		return []byte("shared-secret"), nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithAudience("escrowd"), jwt.WithIssuer("nftescrow"))
	require.NoError(t, err)
	sub, err := parsed.Claims.GetSubject()
	require.NoError(t, err)
	require.Equal(t, aliceAddr, sub)
}

func TestIssueTokenRequiresSecret(t *testing.T) {
	t.Setenv(jwtSecretEnv, "")
	code, _, stderr := runCLI("token", "--subject", aliceAddr)
	require.Equal(t, 1, code)
	require.Contains(t, stderr, jwtSecretEnv)
}

func TestKeygenCreatesThenReopens(t *testing.T) {
	original := keystorePassphrase
	keystorePassphrase = func() (string, error) { return "correct horse", nil }
	t.Cleanup(func() { keystorePassphrase = original })

	path := filepath.Join(t.TempDir(), "alice.json")
	code, first, stderr := runCLI("keygen", "--keystore", path)
	require.Equal(t, 0, code, stderr)
	require.Contains(t, first, "created ")

	code, second, stderr := runCLI("keygen", "--keystore", path)
	require.Equal(t, 0, code, stderr)
	require.NotContains(t, second, "created ")

	lines := strings.Split(strings.TrimSpace(first), "\n")
	addr := lines[len(lines)-1]
	require.Equal(t, addr, strings.TrimSpace(second))
	_, err := crypto.ParseAddress(crypto.AccountPrefix, addr)
	require.NoError(t, err)
}
