package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/BurntSushi/toml"
	"github.com/stretchr/testify/require"

	"nftescrow/native/escrow"
)

func TestLoadCreatesDefaultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "escrowd.toml")
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "explicit", cfg.Escrow.DepositPolicy)
	require.Equal(t, 64, cfg.Escrow.MaxItemsPerSide)

	_, err = os.Stat(path)
	require.NoError(t, err)

	var onDisk Config
	_, err = toml.DecodeFile(path, &onDisk)
	require.NoError(t, err)
	require.Equal(t, cfg.RPC.ListenAddress, onDisk.RPC.ListenAddress)
}

func TestLoadParsesSections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "escrowd.toml")
	contents := `DataDir = "/var/lib/escrow"
GenesisFile = "genesis.yaml"

[RPC]
ListenAddress = "0.0.0.0:9000"
JWTSecret = "file-secret"
RequestsPerMinute = 30
Burst = 5
AllowAnonymousReads = false

[Escrow]
DepositPolicy = " Atomic "
CancelPolicy = "owner"
MaxItemsPerSide = 8
Paused = true

[Logging]
Env = "prod"
File = "/var/log/escrowd.log"

[EventLog]
Path = "journal.db"
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "/var/lib/escrow", cfg.DataDir)
	require.Equal(t, "0.0.0.0:9000", cfg.RPC.ListenAddress)
	require.False(t, cfg.RPC.AllowAnonymousReads)
	require.Equal(t, "atomic", cfg.Escrow.DepositPolicy)
	require.Equal(t, filepath.Join("/var/lib/escrow", "journal.db"), cfg.EventLogPath())
	require.Equal(t, filepath.Join("/var/lib/escrow", "state"), cfg.StatePath())
	// Unset keys keep their defaults.
	require.Equal(t, 10, cfg.RPC.ShutdownTimeout)

	settings, err := cfg.EscrowSettings()
	require.NoError(t, err)
	require.Equal(t, escrow.PolicyAtomic, settings.DepositPolicy)
	require.Equal(t, escrow.CancelByOwner, settings.CancelPolicy)
	require.Equal(t, 8, settings.MaxItemsPerSide)
	require.True(t, cfg.Pauses()["escrow"])
	require.False(t, cfg.Pauses()["registry"])
	require.NotNil(t, cfg.LogFile())
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "escrowd.toml")
	t.Setenv(EnvJWTSecret, "env-secret")
	t.Setenv(EnvEnvironment, "staging")
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "env-secret", cfg.RPC.JWTSecret)
	require.Equal(t, "staging", cfg.Logging.Env)
	require.Nil(t, cfg.LogFile())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{name: "default", mutate: func(*Config) {}, ok: true},
		{name: "unknown deposit policy", mutate: func(c *Config) { c.Escrow.DepositPolicy = "lazy" }},
		{name: "unknown cancel policy", mutate: func(c *Config) { c.Escrow.CancelPolicy = "anyone" }},
		{name: "zero items", mutate: func(c *Config) { c.Escrow.MaxItemsPerSide = 0 }},
		{name: "too many items", mutate: func(c *Config) { c.Escrow.MaxItemsPerSide = MaxItemsPerSideLimit + 1 }},
		{name: "empty data dir", mutate: func(c *Config) { c.DataDir = "" }},
		{name: "empty listen", mutate: func(c *Config) { c.RPC.ListenAddress = " " }},
		{name: "rate without burst", mutate: func(c *Config) { c.RPC.Burst = 0 }},
		{name: "limiter disabled", mutate: func(c *Config) { c.RPC.RequestsPerMinute = 0; c.RPC.Burst = 0 }, ok: true},
		{name: "telemetry without endpoint", mutate: func(c *Config) { c.Telemetry.Enabled = true; c.Telemetry.Endpoint = "" }},
		{name: "sample ratio above one", mutate: func(c *Config) { c.Telemetry.SampleRatio = 1.5 }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			err := cfg.Validate()
			if tc.ok {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
			}
		})
	}
}

func TestEventLogPathDisabled(t *testing.T) {
	cfg := Default()
	cfg.EventLog.Path = ""
	require.Empty(t, cfg.EventLogPath())
}
