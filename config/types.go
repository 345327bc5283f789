package config

// RPC configures the JSON-RPC listener and its caller authentication.
type RPC struct {
	ListenAddress       string `toml:"ListenAddress"`
	JWTSecret           string `toml:"JWTSecret"`
	Issuer              string `toml:"Issuer"`
	Audience            string `toml:"Audience"`
	RequestsPerMinute   int    `toml:"RequestsPerMinute"`
	Burst               int    `toml:"Burst"`
	AllowAnonymousReads bool   `toml:"AllowAnonymousReads"`
	ReadHeaderTimeout   int    `toml:"ReadHeaderTimeout"`
	ShutdownTimeout     int    `toml:"ShutdownTimeout"`
}

// Escrow holds the runtime knobs of the escrow engine.
type Escrow struct {
	DepositPolicy   string `toml:"DepositPolicy"`
	CancelPolicy    string `toml:"CancelPolicy"`
	MaxItemsPerSide int    `toml:"MaxItemsPerSide"`
	Paused          bool   `toml:"Paused"`
}

// Registry holds the runtime knobs of the asset registry.
type Registry struct {
	Paused bool `toml:"Paused"`
}

// Logging selects the log environment and optional rotating file.
type Logging struct {
	Env        string `toml:"Env"`
	File       string `toml:"File"`
	MaxSizeMB  int    `toml:"MaxSizeMB"`
	MaxBackups int    `toml:"MaxBackups"`
	MaxAgeDays int    `toml:"MaxAgeDays"`
}

// Telemetry configures OTLP export.
type Telemetry struct {
	Enabled     bool    `toml:"Enabled"`
	Endpoint    string  `toml:"Endpoint"`
	Insecure    bool    `toml:"Insecure"`
	Headers     string  `toml:"Headers"`
	SampleRatio float64 `toml:"SampleRatio"`
}

// EventLog points at the SQLite journal of committed events. An empty path
// disables the journal.
type EventLog struct {
	Path string `toml:"Path"`
}
