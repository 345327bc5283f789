package config

import (
	"fmt"
	"strings"

	"nftescrow/native/escrow"
)

// MaxItemsPerSideLimit caps the configurable bundle size.
var MaxItemsPerSideLimit = 1024

// Validate rejects configurations the node cannot start with.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("config: DataDir must not be empty")
	}
	if _, err := escrow.ParseDepositPolicy(c.Escrow.DepositPolicy); err != nil {
		return fmt.Errorf("config: escrow.DepositPolicy: %w", err)
	}
	if _, err := escrow.ParseCancelPolicy(c.Escrow.CancelPolicy); err != nil {
		return fmt.Errorf("config: escrow.CancelPolicy: %w", err)
	}
	if c.Escrow.MaxItemsPerSide <= 0 || c.Escrow.MaxItemsPerSide > MaxItemsPerSideLimit {
		return fmt.Errorf("config: escrow.MaxItemsPerSide must be within 1..%d", MaxItemsPerSideLimit)
	}
	if strings.TrimSpace(c.RPC.ListenAddress) == "" {
		return fmt.Errorf("config: rpc.ListenAddress must not be empty")
	}
	if c.RPC.RequestsPerMinute < 0 || c.RPC.Burst < 0 {
		return fmt.Errorf("config: rpc rate limits must not be negative")
	}
	if c.RPC.RequestsPerMinute > 0 && c.RPC.Burst == 0 {
		return fmt.Errorf("config: rpc.Burst must be positive when RequestsPerMinute is set")
	}
	if c.Telemetry.Enabled && strings.TrimSpace(c.Telemetry.Endpoint) == "" {
		return fmt.Errorf("config: telemetry.Endpoint required when telemetry is enabled")
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("config: telemetry.SampleRatio must be within 0..1")
	}
	return nil
}
