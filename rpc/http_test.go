package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"

	"nftescrow/crypto"
	"nftescrow/native/escrow"
	"nftescrow/observability/logging"
)

func postRaw(t *testing.T, env *testEnv, body string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	for k, v := range header {
		req.Header[k] = v
	}
	recorder := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(recorder, req)
	return recorder
}

func TestHandleRejectsMalformedRequests(t *testing.T) {
	env := newTestEnv(t)
	tests := []struct {
		name string
		body string
		code int
	}{
		{"empty", "  ", codeInvalidRequest},
		{"not json", "{", codeParseError},
		{"bad version", `{"jsonrpc":"1.0","method":"escrow_vault","id":1}`, codeInvalidRequest},
		{"no method", `{"jsonrpc":"2.0","id":1}`, codeInvalidRequest},
		{"two params", `{"jsonrpc":"2.0","method":"escrow_getTrade","params":[{"id":"a"},{"id":"b"}],"id":1}`, codeInvalidParams},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, rpcErr := decodeRPCResponse(t, postRaw(t, env, tc.body, nil))
			require.NotNil(t, rpcErr)
			require.Equal(t, tc.code, rpcErr.Code)
		})
	}

	recorder := postRaw(t, env, `{"jsonrpc":"2.0","method":"escrow_vault","params":["`+strings.Repeat("x", maxRequestBytes)+`"],"id":1}`, nil)
	require.Equal(t, http.StatusRequestEntityTooLarge, recorder.Code)
}

func TestAuthRejectsBadTokens(t *testing.T) {
	env := newTestEnv(t)
	wrongIssuer, err := IssueToken(testJWTSecret, env.alice, "someone-else", testAudience, time.Minute)
	require.NoError(t, err)
	wrongSecret, err := IssueToken("other-secret", env.alice, testIssuer, testAudience, time.Minute)
	require.NoError(t, err)
	badSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "not-an-address",
		Issuer:    testIssuer,
		Audience:  jwt.ClaimStrings{testAudience},
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}).SignedString([]byte(testJWTSecret))
	require.NoError(t, err)
	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:  crypto.FormatAccount(env.alice),
		Issuer:   testIssuer,
		Audience: jwt.ClaimStrings{testAudience},
	}).SignedString([]byte(testJWTSecret))
	require.NoError(t, err)

	body := `{"jsonrpc":"2.0","method":"escrow_vault","id":7}`
	for name, tok := range map[string]string{
		"issuer":    wrongIssuer,
		"secret":    wrongSecret,
		"subject":   badSubject,
		"no expiry": noExpiry,
		"garbage":   "abc.def.ghi",
	} {
		t.Run(name, func(t *testing.T) {
			recorder := postRaw(t, env, body, http.Header{"Authorization": {"Bearer " + tok}})
			require.Equal(t, http.StatusUnauthorized, recorder.Code)
			_, rpcErr := decodeRPCResponse(t, recorder)
			require.Equal(t, codeUnauthorized, rpcErr.Code)
		})
	}
}

func TestAnonymousReadsCanBeDisabled(t *testing.T) {
	env := newTestEnv(t, func(cfg *ServerConfig, _ *escrow.Config) { cfg.Auth.AllowAnonymous = false })
	_, _, rpcErr := env.call(t, [20]byte{}, "escrow_vault", nil)
	require.NotNil(t, rpcErr)
	require.Equal(t, codeUnauthorized, rpcErr.Code)

	_, _, rpcErr = env.call(t, env.carol, "escrow_vault", nil)
	require.Nil(t, rpcErr)
}

func TestRateLimitPerCaller(t *testing.T) {
	env := newTestEnv(t, func(cfg *ServerConfig, _ *escrow.Config) {
		cfg.RateLimit = RateLimit{RequestsPerMinute: 1, Burst: 2}
	})
	for i := 0; i < 2; i++ {
		_, _, rpcErr := env.call(t, env.alice, "escrow_vault", nil)
		require.Nil(t, rpcErr)
	}
	recorder, _, rpcErr := env.call(t, env.alice, "escrow_vault", nil)
	require.NotNil(t, rpcErr)
	require.Equal(t, codeRateLimited, rpcErr.Code)
	require.Equal(t, http.StatusTooManyRequests, recorder.Code)

	// Limits are tracked per identity.
	_, _, rpcErr = env.call(t, env.bob, "escrow_vault", nil)
	require.Nil(t, rpcErr)
}

func TestHealthAndMetricsRoutes(t *testing.T) {
	env := newTestEnv(t)
	for _, path := range []string{"/healthz", "/metrics"} {
		recorder := httptest.NewRecorder()
		env.server.Handler().ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusOK, recorder.Code, path)
	}
}

func TestEventStreamDeliversCommittedEvents(t *testing.T) {
	env := newTestEnv(t)
	ts := httptest.NewServer(env.server.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/events?type=" + escrow.EventTypeTradeCreated
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "done")
	require.Eventually(t, func() bool { return env.stream.Subscribers() == 1 }, 2*time.Second, 10*time.Millisecond)

	params := map[string]interface{}{
		"id":     "WS1",
		"partyA": crypto.FormatAccount(env.alice),
		"partyB": crypto.FormatAccount(env.bob),
		"fromA":  []map[string]string{punk("1")},
		"fromB":  []map[string]string{punk("3")},
	}
	body, err := json.Marshal(RPCRequest{JSONRPC: jsonRPCVersion, Method: "escrow_createTrade", ID: 1, Params: []json.RawMessage{marshalParam(t, params)}})
	require.NoError(t, err)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, ts.URL+"/", bytes.NewReader(body))
	require.NoError(t, err)
	httpReq.Header.Set("Authorization", "Bearer "+env.token(t, env.alice))
	resp, err := http.DefaultClient.Do(httpReq)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	var evt eventJSON
	require.NoError(t, json.Unmarshal(data, &evt))
	require.Equal(t, escrow.EventTypeTradeCreated, evt.Type)
	require.Equal(t, "WS1", evt.TradeID)
}

func TestClassifyErrorFallsBackToInternal(t *testing.T) {
	mapping := classifyError(context.DeadlineExceeded)
	require.Equal(t, codeInternal, mapping.code)
	require.Equal(t, http.StatusInternalServerError, mapping.status)
	require.Equal(t, codeForbidden, classifyError(escrow.ErrOnlyOwnerCanCancel).code)
}

func TestRejectedCallerLogMasksAuthorization(t *testing.T) {
	env := newTestEnv(t)
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	srv, err := NewServer(env.node, ServerConfig{Auth: AuthConfig{
		HMACSecret: testJWTSecret,
		Issuer:     testIssuer,
		Audience:   testAudience,
	}}, WithLogger(logger))
	require.NoError(t, err)
	env.server = srv

	forged, err := IssueToken("other-secret", env.alice, testIssuer, testAudience, time.Minute)
	require.NoError(t, err)
	recorder := postRaw(t, env, `{"jsonrpc":"2.0","method":"escrow_vault","id":1}`, http.Header{"Authorization": {"Bearer " + forged}})
	require.Equal(t, http.StatusUnauthorized, recorder.Code)

	out := buf.String()
	require.Contains(t, out, "rpc caller rejected")
	require.Contains(t, out, logging.RedactedValue)
	require.NotContains(t, out, forged)
}
