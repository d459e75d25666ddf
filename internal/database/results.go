package database

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
)

const (
	insertChangesSQL = "SELECT changes(), last_insert_rowid();"
	updateChangesSQL = "SELECT changes();"
)

// Insert executes caller SQL and reports the last inserted row id by reading
// changes() and last_insert_rowid() on the same session. Zero changed rows
// means no row was inserted and yields nil, never a numeric zero. With
// noResult set the follow-up read is skipped entirely and nil is returned.
func (m *Manager) Insert(ctx context.Context, sqlText string, params []Value, noResult bool) (*int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.execute(ctx, sqlText, params); err != nil {
		return nil, err
	}
	if noResult {
		log.Debug().Int64("handle", m.id).Msg("Ignoring insert result, noResult is set")
		return nil, nil
	}

	rs, err := m.query(ctx, insertChangesSQL, nil)
	if err != nil {
		return nil, err
	}
	changes, lastID, err := changesRow(rs, 2)
	if err != nil {
		return nil, err
	}
	if changes == 0 {
		return nil, nil
	}
	return &lastID, nil
}

// Update executes caller SQL and reports the affected-row count via
// changes(). With noResult set the follow-up read is skipped and nil is
// returned.
func (m *Manager) Update(ctx context.Context, sqlText string, params []Value, noResult bool) (*int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.execute(ctx, sqlText, params); err != nil {
		return nil, err
	}
	if noResult {
		log.Debug().Int64("handle", m.id).Msg("Ignoring update result, noResult is set")
		return nil, nil
	}

	rs, err := m.query(ctx, updateChangesSQL, nil)
	if err != nil {
		return nil, err
	}
	changes, _, err := changesRow(rs, 1)
	if err != nil {
		return nil, err
	}
	return &changes, nil
}

// changesRow pulls the integer columns out of a changes() follow-up row.
func changesRow(rs *Rows, want int) (changes, lastID int64, err error) {
	if len(rs.Rows) == 0 || len(rs.Rows[0]) < want {
		return 0, 0, &Error{Message: fmt.Sprintf("malformed changes() result: %d rows", len(rs.Rows))}
	}
	row := rs.Rows[0]
	changes = row[0].Int64()
	if want > 1 {
		lastID = row[1].Int64()
	}
	return changes, lastID, nil
}
