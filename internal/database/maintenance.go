package database

import "context"

// Optimize runs SQLite's PRAGMA optimize to refresh planner stats.
func (m *Manager) Optimize(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.execute(ctx, "PRAGMA optimize", nil)
}

// Vacuum rebuilds the database file to reclaim unused space.
func (m *Manager) Vacuum(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.execute(ctx, "VACUUM", nil)
}
