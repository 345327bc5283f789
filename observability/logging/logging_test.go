package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetupEmitsRenamedKeys(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup("escrowd", "prod", WithOutput(&buf))
	logger.Info("trade settled", slog.String("trade_id", "T1"))

	var line map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line))
	require.Equal(t, "trade settled", line["message"])
	require.Equal(t, "INFO", line["severity"])
	require.Equal(t, "escrowd", line["service"])
	require.Equal(t, "prod", line["env"])
	require.Equal(t, "T1", line["trade_id"])
	require.Contains(t, line, "timestamp")
}

func TestSetupLevelFollowsEnv(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup("escrowd", "prod", WithOutput(&buf))
	logger.Debug("hidden")
	require.Empty(t, buf.String())

	buf.Reset()
	logger = Setup("escrowd", "dev", WithOutput(&buf))
	logger.Debug("shown")
	require.Contains(t, buf.String(), "shown")
}

func TestSetupTeesIntoRotatingFile(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "escrowd.log")
	logger := Setup("escrowd", "", WithOutput(&buf), WithFile(FileConfig{Path: path, MaxSizeMB: 1}))
	logger.Warn("vault low")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "vault low")
	require.Contains(t, buf.String(), "vault low")
}

func TestMaskField(t *testing.T) {
	require.Equal(t, RedactedValue, MaskField("authorization", "Bearer abc").Value.String())
	require.Equal(t, RedactedValue, MaskField("JWT-Secret", "s3cr3t").Value.String())
	require.Equal(t, "T1", MaskField("trade_id", "T1").Value.String())
	require.Equal(t, "7", MaskField("token_id", "7").Value.String())
	require.Equal(t, " ", MaskField("secret", " ").Value.String())
	require.Equal(t, "", MaskValue(""))
}

func TestIsSensitive(t *testing.T) {
	for _, key := range []string{"authorization", "rpc.jwt_secret", "keystore_passphrase", "otlp_token", "otlp_headers", "Password"} {
		require.True(t, IsSensitive(key), key)
	}
	for _, key := range []string{"tokenId", "token_ids", "caller", "method", "trade_id"} {
		require.False(t, IsSensitive(key), key)
	}
}

func TestSetupRedactsSensitiveAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup("escrowd", "prod", WithOutput(&buf))
	logger.Info("rpc rejected",
		slog.String("authorization", "Bearer eyJhbGciOi"),
		slog.Int("secret_len", 32),
		slog.Group("rpc", slog.String("jwt_secret", "hunter2"), slog.String("method", "escrow_lock")),
		slog.String("token_id", "42"))

	out := buf.String()
	require.NotContains(t, out, "eyJhbGciOi")
	require.NotContains(t, out, "hunter2")

	var line map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line))
	require.Equal(t, RedactedValue, line["authorization"])
	require.Equal(t, RedactedValue, line["secret_len"])
	require.Equal(t, "42", line["token_id"])
	group, ok := line["rpc"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, RedactedValue, group["jwt_secret"])
	require.Equal(t, "escrow_lock", group["method"])
}
