package config

import (
	"nftescrow/native/escrow"
	"nftescrow/observability/logging"
)

// EscrowSettings converts the [Escrow] section into engine configuration.
func (c *Config) EscrowSettings() (escrow.Config, error) {
	deposit, err := escrow.ParseDepositPolicy(c.Escrow.DepositPolicy)
	if err != nil {
		return escrow.Config{}, err
	}
	cancel, err := escrow.ParseCancelPolicy(c.Escrow.CancelPolicy)
	if err != nil {
		return escrow.Config{}, err
	}
	return escrow.Config{
		DepositPolicy:   deposit,
		CancelPolicy:    cancel,
		MaxItemsPerSide: c.Escrow.MaxItemsPerSide,
	}, nil
}

// Pauses returns the initial module pause switches.
func (c *Config) Pauses() map[string]bool {
	return map[string]bool{
		"escrow":   c.Escrow.Paused,
		"registry": c.Registry.Paused,
	}
}

// LogFile returns the rotating file settings, or nil when file logging is off.
func (c *Config) LogFile() *logging.FileConfig {
	if c.Logging.File == "" {
		return nil
	}
	return &logging.FileConfig{
		Path:       c.Logging.File,
		MaxSizeMB:  c.Logging.MaxSizeMB,
		MaxBackups: c.Logging.MaxBackups,
		MaxAgeDays: c.Logging.MaxAgeDays,
		Compress:   true,
	}
}
