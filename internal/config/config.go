// Package config provides configuration types and loading for Warden.
package config

// Config is the top-level configuration for the Warden governance engine.
type Config struct {
	// Server configures the admin HTTP listener.
	Server ServerConfig `yaml:"server" mapstructure:"server"`

	// State configures the governance file (roles and policies).
	State StateConfig `yaml:"state" mapstructure:"state"`

	// Journal configures event stream persistence.
	Journal JournalConfig `yaml:"journal" mapstructure:"journal"`

	// Approvals configures the approval lifecycle.
	Approvals ApprovalsConfig `yaml:"approvals" mapstructure:"approvals"`

	// Resolver configures the policy resolver.
	Resolver ResolverConfig `yaml:"resolver" mapstructure:"resolver"`

	// Auth configures API key authentication for the admin API.
	// Optional: when empty, only localhost access works.
	Auth AuthConfig `yaml:"auth" mapstructure:"auth"`

	// Telemetry configures trace/metric export.
	Telemetry TelemetryConfig `yaml:"telemetry" mapstructure:"telemetry"`

	// DevMode enables development features (verbose logging, dev API key).
	DevMode bool `yaml:"dev_mode" mapstructure:"dev_mode"`
}

// ServerConfig configures the admin HTTP server. TLS is out of scope; put a
// reverse proxy in front for network exposure.
type ServerConfig struct {
	// HTTPAddr is the address to listen on. Defaults to "127.0.0.1:7710"
	// (localhost only) if empty.
	HTTPAddr string `yaml:"http_addr" mapstructure:"http_addr" validate:"omitempty,hostname_port"`

	// LogLevel sets the minimum log level: "debug", "info", "warn", "error".
	// Defaults to "info". DevMode=true overrides to "debug".
	LogLevel string `yaml:"log_level" mapstructure:"log_level" validate:"omitempty,oneof=debug info warn warning error"`

	// ShutdownTimeout is the graceful-shutdown grace period (e.g., "10s").
	ShutdownTimeout string `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout" validate:"omitempty"`
}

// StateConfig configures the governance file.
type StateConfig struct {
	// Path is the governance file location. Defaults to "governance.json" in
	// the working directory.
	Path string `yaml:"path" mapstructure:"path"`
}

// JournalConfig configures event persistence.
type JournalConfig struct {
	// Backend selects the journal implementation: "sqlite" or "memory".
	// Defaults to "memory".
	Backend string `yaml:"backend" mapstructure:"backend" validate:"omitempty,oneof=sqlite memory"`

	// Path is the SQLite database file. Required when backend is "sqlite".
	Path string `yaml:"path" mapstructure:"path"`
}

// ApprovalsConfig configures the approval lifecycle.
type ApprovalsConfig struct {
	// TTL is how long an approval stays decidable (e.g., "5m", "1h").
	// "0" disables expiry. Defaults to "5m".
	TTL string `yaml:"ttl" mapstructure:"ttl" validate:"omitempty"`

	// SweepInterval is how often the expiry sweeper runs (e.g., "30s").
	// Defaults to "30s".
	SweepInterval string `yaml:"sweep_interval" mapstructure:"sweep_interval" validate:"omitempty"`
}

// ResolverConfig configures the policy resolver.
type ResolverConfig struct {
	// CacheSize is the max number of cached resolutions. Defaults to 1000.
	CacheSize int `yaml:"cache_size" mapstructure:"cache_size" validate:"omitempty,min=1"`
}

// AuthConfig configures admin API authentication.
type AuthConfig struct {
	// APIKeys are the accepted key hashes, "sha256:<hex>" or PHC-format
	// Argon2id ("$argon2id$..."). Generate with `warden hash-key`.
	APIKeys []string `yaml:"api_keys" mapstructure:"api_keys" validate:"omitempty,dive,key_hash"`
}

// TelemetryConfig configures trace and metric export.
type TelemetryConfig struct {
	// Output is where traces/metrics are written: "off", "stdout", or
	// "file://<absolute-path>". Defaults to "off".
	Output string `yaml:"output" mapstructure:"output" validate:"omitempty,telemetry_output"`
}

// SetDefaults applies sensible default values to the configuration.
func (c *Config) SetDefaults() {
	// Bind to localhost only; network exposure must be explicit.
	if c.Server.HTTPAddr == "" {
		c.Server.HTTPAddr = "127.0.0.1:7710"
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}
	if c.Server.ShutdownTimeout == "" {
		c.Server.ShutdownTimeout = "10s"
	}

	if c.State.Path == "" {
		c.State.Path = "governance.json"
	}

	if c.Journal.Backend == "" {
		c.Journal.Backend = "memory"
	}
	if c.Journal.Backend == "sqlite" && c.Journal.Path == "" {
		c.Journal.Path = "warden-events.db"
	}

	if c.Approvals.TTL == "" {
		c.Approvals.TTL = "5m"
	}
	if c.Approvals.SweepInterval == "" {
		c.Approvals.SweepInterval = "30s"
	}

	if c.Resolver.CacheSize == 0 {
		c.Resolver.CacheSize = 1000
	}

	if c.Telemetry.Output == "" {
		c.Telemetry.Output = "off"
	}
}

// SetDevDefaults applies permissive defaults for development mode.
// Applied BEFORE validation so required fields are satisfied.
func (c *Config) SetDevDefaults() {
	if !c.DevMode {
		return
	}

	c.Server.LogLevel = "debug"

	// Default dev API key if none configured. SHA256 of "dev-api-key".
	if len(c.Auth.APIKeys) == 0 {
		c.Auth.APIKeys = []string{
			"sha256:6e1e4e1b8f8b36d08901cdb51b97841dfe20f5efd2fd2fd00768971408c46274",
		}
	}
}
