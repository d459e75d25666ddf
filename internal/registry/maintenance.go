package registry

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// DefaultMaintenanceSchedule runs nightly at 03:00.
const DefaultMaintenanceSchedule = "0 3 * * *"

// DefaultOptimizeTimeout bounds one PRAGMA optimize pass per database.
const DefaultOptimizeTimeout = 60 * time.Second

// Maintenance periodically runs PRAGMA optimize across every open database so
// long-lived connections keep fresh planner statistics.
type Maintenance struct {
	registry *Registry
	schedule string
	timeout  time.Duration
	cron     *cron.Cron
	entryID  cron.EntryID

	mu      sync.Mutex
	running bool
}

// NewMaintenance creates the scheduler. An empty schedule selects the
// default.
func NewMaintenance(r *Registry, schedule string) *Maintenance {
	if schedule == "" {
		schedule = DefaultMaintenanceSchedule
	}
	return &Maintenance{
		registry: r,
		schedule: schedule,
		timeout:  DefaultOptimizeTimeout,
		cron:     cron.New(),
	}
}

// Start begins the cron scheduler.
func (m *Maintenance) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return nil
	}

	id, err := m.cron.AddFunc(m.schedule, m.run)
	if err != nil {
		return err
	}
	m.entryID = id
	m.cron.Start()
	m.running = true

	log.Info().Str("schedule", m.schedule).Msg("Database maintenance scheduler started")
	return nil
}

// Stop halts the scheduler and waits for a running pass to finish.
func (m *Maintenance) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return
	}
	ctx := m.cron.Stop()
	<-ctx.Done()
	m.running = false
	log.Info().Msg("Database maintenance scheduler stopped")
}

// NextRun reports the next scheduled pass, zero when not running.
func (m *Maintenance) NextRun() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return time.Time{}
	}
	return m.cron.Entry(m.entryID).Next
}

func (m *Maintenance) run() {
	handles := m.registry.Handles()
	log.Debug().Int("databases", len(handles)).Msg("Running database maintenance pass")

	for _, h := range handles {
		mgr, err := m.registry.Lookup(h)
		if err != nil {
			// Closed since the snapshot; nothing to do.
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
		if err := mgr.Optimize(ctx); err != nil {
			log.Warn().Err(err).Int64("handle", h).Str("path", mgr.Path()).Msg("Optimize failed")
		}
		cancel()
	}
}
