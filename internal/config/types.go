// Package config loads the YAML configuration consumed by the espbridge
// tool. The driver library itself reads no configuration.
package config

import "fmt"

// Config is the top-level tool configuration.
type Config struct {
	// Device is the serial device the module hangs off, e.g. /dev/ttyUSB0.
	Device string `yaml:"device"`

	Network   NetworkConfig   `yaml:"network"`
	Peer      PeerConfig      `yaml:"peer"`
	Log       LogConfig       `yaml:"log"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Timeouts  TimeoutConfig   `yaml:"timeouts"`
}

// NetworkConfig names the access point to join.
type NetworkConfig struct {
	SSID     string `yaml:"ssid"`
	Password string `yaml:"password"`
}

// PeerConfig is the TCP endpoint the bridge connects the module to.
type PeerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// LogConfig selects log verbosity and rendering.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// TelemetryConfig configures the diagnostics endpoint; empty disables it.
type TelemetryConfig struct {
	Listen string `yaml:"listen"`
}

// TimeoutConfig overrides the driver's default budgets, in milliseconds.
// Zero keeps the default.
type TimeoutConfig struct {
	ShortMS int `yaml:"short_ms"`
	LongMS  int `yaml:"long_ms"`

	// ReadPollMS is how long the bridge waits for an inbound frame before
	// checking for outbound data again.
	ReadPollMS int `yaml:"read_poll_ms"`
}

// Validate checks the fields the bridge cannot run without.
func (c *Config) Validate() error {
	if c.Device == "" {
		return fmt.Errorf("device is required")
	}
	if c.Network.SSID == "" {
		return fmt.Errorf("network.ssid is required")
	}
	if c.Peer.Host == "" {
		return fmt.Errorf("peer.host is required")
	}
	if c.Peer.Port <= 0 || c.Peer.Port > 65535 {
		return fmt.Errorf("invalid peer.port: %d", c.Peer.Port)
	}
	if c.Timeouts.ShortMS < 0 || c.Timeouts.LongMS < 0 || c.Timeouts.ReadPollMS < 0 {
		return fmt.Errorf("timeouts must not be negative")
	}
	return nil
}
