// Package config provides typed access to runtime settings with defaults.
// Settings come from the environment, keyed as LITEBRIDGE_<KEY> with dots
// replaced by underscores: "log.max_size_mb" reads LITEBRIDGE_LOG_MAX_SIZE_MB.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// EnvPrefix is prepended to every environment key.
const EnvPrefix = "LITEBRIDGE_"

// Loader provides typed access to settings with default values.
type Loader struct {
	lookup func(string) (string, bool)
}

// NewLoader creates a loader backed by the process environment.
func NewLoader() *Loader {
	return &Loader{lookup: os.LookupEnv}
}

func (l *Loader) get(key string) string {
	name := EnvPrefix + strings.ToUpper(strings.NewReplacer(".", "_", "-", "_").Replace(key))
	if val, ok := l.lookup(name); ok {
		return val
	}
	return ""
}

// String retrieves a string setting, returning defaultVal if not set.
func (l *Loader) String(key, defaultVal string) string {
	if val := l.get(key); val != "" {
		return val
	}
	return defaultVal
}

// Int retrieves an integer setting, returning defaultVal if not set or invalid.
func (l *Loader) Int(key string, defaultVal int) int {
	if val := l.get(key); val != "" {
		if v, err := strconv.Atoi(val); err == nil {
			return v
		}
	}
	return defaultVal
}

// Bool retrieves a boolean setting, returning defaultVal if not set.
// Recognizes "true" as true, anything else as false.
func (l *Loader) Bool(key string, defaultVal bool) bool {
	if val := l.get(key); val != "" {
		return val == "true"
	}
	return defaultVal
}

// Duration retrieves a duration setting, returning defaultVal if not set or invalid.
func (l *Loader) Duration(key string, defaultVal time.Duration) time.Duration {
	if val := l.get(key); val != "" {
		if v, err := time.ParseDuration(val); err == nil {
			return v
		}
	}
	return defaultVal
}
