package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

const (
	// EnvEnvironment overrides Logging.Env.
	EnvEnvironment = "ESCROW_ENV"
	// EnvJWTSecret overrides RPC.JWTSecret so secrets can stay out of the file.
	EnvJWTSecret = "ESCROW_RPC_JWT_SECRET"
)

type Config struct {
	DataDir     string    `toml:"DataDir"`
	GenesisFile string    `toml:"GenesisFile"`
	RPC         RPC       `toml:"RPC"`
	Escrow      Escrow    `toml:"Escrow"`
	Registry    Registry  `toml:"Registry"`
	Logging     Logging   `toml:"Logging"`
	Telemetry   Telemetry `toml:"Telemetry"`
	EventLog    EventLog  `toml:"EventLog"`
}

// Default returns the configuration written for a fresh installation.
func Default() *Config {
	return &Config{
		DataDir:     "./escrow-data",
		GenesisFile: "",
		RPC: RPC{
			ListenAddress:       "127.0.0.1:8645",
			Issuer:              "nftescrow",
			Audience:            "escrowd",
			RequestsPerMinute:   120,
			Burst:               20,
			AllowAnonymousReads: true,
			ReadHeaderTimeout:   5,
			ShutdownTimeout:     10,
		},
		Escrow: Escrow{
			DepositPolicy:   "explicit",
			CancelPolicy:    "either",
			MaxItemsPerSide: 64,
		},
		Logging: Logging{
			Env:        "dev",
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 28,
		},
		Telemetry: Telemetry{
			Endpoint: "localhost:4318",
			Insecure: true,
		},
		EventLog: EventLog{Path: "events.db"},
	}
}

// Load loads the configuration from the given path, writing a default file
// when none exists. Environment overrides are applied after decoding and the
// result is validated.
func Load(path string) (*Config, error) {
	var cfg *Config
	if _, err := os.Stat(path); os.IsNotExist(err) {
		created, err := createDefault(path)
		if err != nil {
			return nil, err
		}
		cfg = created
	} else {
		cfg = Default()
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if env := strings.TrimSpace(os.Getenv(EnvEnvironment)); env != "" {
		c.Logging.Env = env
	}
	if secret := strings.TrimSpace(os.Getenv(EnvJWTSecret)); secret != "" {
		c.RPC.JWTSecret = secret
	}
}

func (c *Config) normalize() {
	c.Escrow.DepositPolicy = strings.ToLower(strings.TrimSpace(c.Escrow.DepositPolicy))
	c.Escrow.CancelPolicy = strings.ToLower(strings.TrimSpace(c.Escrow.CancelPolicy))
	c.DataDir = strings.TrimSpace(c.DataDir)
	c.EventLog.Path = strings.TrimSpace(c.EventLog.Path)
}

// EventLogPath resolves the journal path against DataDir. It returns an empty
// string when the journal is disabled.
func (c *Config) EventLogPath() string {
	if c.EventLog.Path == "" {
		return ""
	}
	if filepath.IsAbs(c.EventLog.Path) {
		return c.EventLog.Path
	}
	return filepath.Join(c.DataDir, c.EventLog.Path)
}

// StatePath returns the LevelDB directory under DataDir.
func (c *Config) StatePath() string {
	return filepath.Join(c.DataDir, "state")
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := Default()
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
