package devices

import "time"

// DevicesConfig holds the devices module configuration.
type DevicesConfig struct {
	// Secret is the passphrase used to derive the key that encrypts device
	// passwords at rest. Required when the module is enabled.
	Secret string

	// DefaultTimeout applies to devices created without an explicit timeout.
	DefaultTimeout time.Duration

	// ICMP diagnostic settings.
	PingTimeout time.Duration
	PingCount   int
}

// DefaultConfig returns the devices module defaults.
func DefaultConfig() DevicesConfig {
	return DevicesConfig{
		DefaultTimeout: 10 * time.Second,
		PingTimeout:    2 * time.Second,
		PingCount:      3,
	}
}
