package registry

import (
	"context"
	"testing"

	"github.com/litekit/litebridge/internal/database"
)

func TestMaintenanceRejectsBadSchedule(t *testing.T) {
	r := newTestRegistry(t)
	m := NewMaintenance(r, "not a schedule")
	if err := m.Start(); err == nil {
		m.Stop()
		t.Fatal("expected error for invalid cron expression")
	}
}

func TestMaintenanceStartStop(t *testing.T) {
	r := newTestRegistry(t)
	m := NewMaintenance(r, "")
	if m.schedule != DefaultMaintenanceSchedule {
		t.Fatalf("empty schedule must fall back to default, got %q", m.schedule)
	}
	if !m.NextRun().IsZero() {
		t.Fatal("NextRun must be zero before Start")
	}
	if err := m.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if m.NextRun().IsZero() {
		t.Fatal("NextRun must be set while running")
	}
	// Idempotent.
	if err := m.Start(); err != nil {
		t.Fatalf("second start failed: %v", err)
	}
	m.Stop()
	m.Stop()
}

func TestMaintenancePassTouchesOpenDatabases(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry(t)
	if _, _, err := r.Open(ctx, "opt.db", false, true); err != nil {
		t.Fatalf("open failed: %v", err)
	}
	h2, _, err := r.Open(ctx, database.MemoryPath, false, false)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}

	m := NewMaintenance(r, "")
	m.run()

	// Databases stay usable after a pass.
	if _, err := r.Query(ctx, h2, "SELECT 1", nil); err != nil {
		t.Fatalf("query after maintenance pass failed: %v", err)
	}
}
