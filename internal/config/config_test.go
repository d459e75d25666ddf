package config

import (
	"testing"
	"time"
)

func fakeLookup(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func TestLoaderKeyNormalization(t *testing.T) {
	l := &Loader{lookup: fakeLookup(map[string]string{
		"LITEBRIDGE_MAINTENANCE_SCHEDULE": "*/5 * * * *",
	})}
	if got := l.String("maintenance.schedule", "fallback"); got != "*/5 * * * *" {
		t.Fatalf("dotted key not resolved: %q", got)
	}
	if got := l.String("maintenance-schedule", "fallback"); got != "*/5 * * * *" {
		t.Fatalf("dashed key not resolved: %q", got)
	}
	if got := l.String("missing.key", "fallback"); got != "fallback" {
		t.Fatalf("expected fallback, got %q", got)
	}
}

func TestLoaderTypedGetters(t *testing.T) {
	l := &Loader{lookup: fakeLookup(map[string]string{
		"LITEBRIDGE_PORT":    "8080",
		"LITEBRIDGE_DEBUG":   "true",
		"LITEBRIDGE_TIMEOUT": "45s",
		"LITEBRIDGE_BROKEN":  "not-a-number",
	})}

	if got := l.Int("port", 1); got != 8080 {
		t.Fatalf("expected 8080, got %d", got)
	}
	if !l.Bool("debug", false) {
		t.Fatal("expected true")
	}
	if got := l.Duration("timeout", time.Second); got != 45*time.Second {
		t.Fatalf("expected 45s, got %v", got)
	}
	// Unparseable values fall back to the default.
	if got := l.Int("broken", 7); got != 7 {
		t.Fatalf("expected fallback 7, got %d", got)
	}
	if got := l.Duration("missing", 2*time.Second); got != 2*time.Second {
		t.Fatalf("expected fallback, got %v", got)
	}
}
