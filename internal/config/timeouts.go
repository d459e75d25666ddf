package config

import "time"

// TimeoutConfig holds timeout settings for the HTTP surface.
// These can be configured via CLI flags to tune for different environments.
type TimeoutConfig struct {
	// HTTPRead is the timeout for reading a request body. Default: 15s
	HTTPRead time.Duration

	// HTTPIdle is the keep-alive timeout between requests. Default: 120s
	HTTPIdle time.Duration

	// Shutdown bounds graceful HTTP server shutdown. Default: 30s
	Shutdown time.Duration
}

// DefaultTimeoutConfig returns the default timeout configuration.
func DefaultTimeoutConfig() *TimeoutConfig {
	return &TimeoutConfig{
		HTTPRead: 15 * time.Second,
		HTTPIdle: 120 * time.Second,
		Shutdown: 30 * time.Second,
	}
}

// global instance that can be set at startup
var globalTimeouts = DefaultTimeoutConfig()

// SetGlobalTimeouts sets the global timeout configuration.
func SetGlobalTimeouts(cfg *TimeoutConfig) {
	globalTimeouts = cfg
}

// GetTimeouts returns the global timeout configuration.
func GetTimeouts() *TimeoutConfig {
	return globalTimeouts
}
