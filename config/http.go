package config

import "fmt"

// HTTPConfig configures the API listener.
type HTTPConfig struct {
	Addr string `json:"addr"`
	// ReadHeaderTimeoutSeconds bounds header parsing. Write timeouts are
	// deliberately absent: long-lived websocket upgrades share this
	// listener.
	ReadHeaderTimeoutSeconds int `json:"read_header_timeout_seconds"`
	ShutdownTimeoutSeconds   int `json:"shutdown_timeout_seconds"`
}

// SetDefaults fills zero fields with sane values.
func (c *HTTPConfig) SetDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if c.ReadHeaderTimeoutSeconds == 0 {
		c.ReadHeaderTimeoutSeconds = 10
	}
	if c.ShutdownTimeoutSeconds == 0 {
		c.ShutdownTimeoutSeconds = 10
	}
}

// Validate checks the listener settings.
func (c HTTPConfig) Validate() error {
	if c.ReadHeaderTimeoutSeconds < 0 || c.ShutdownTimeoutSeconds < 0 {
		return fmt.Errorf("http timeouts must not be negative")
	}
	return nil
}
