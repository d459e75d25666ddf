package database

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

// MemoryPath is the sentinel path for an in-memory database.
const MemoryPath = ":memory:"

// IsMemoryPath reports whether path names an in-memory database. An empty
// path is treated as in-memory, matching the sentinel.
func IsMemoryPath(path string) bool {
	return path == "" || path == MemoryPath
}

type state int

const (
	stateUninitialized state = iota
	stateOpen
	stateClosed
)

// Manager owns exactly one SQLite connection and every prepared statement
// derived from it. The connection pool is pinned to a single exclusive
// connection so session-scoped reads (changes(), last_insert_rowid()) always
// observe the preceding write. All operations serialize on the manager's
// mutex; one manager, one caller at a time.
//
// Lifecycle is Uninitialized -> Open -> Closed, terminal. A closed manager is
// never reopened; construct a new one.
type Manager struct {
	path           string
	id             int64
	singleInstance bool

	mu    sync.Mutex
	state state
	pool  *sql.DB
	conn  *sql.Conn
	stmts map[string]*sql.Stmt
}

// NewManager returns an unopened manager for path. The id is the external
// handle it will be registered under, carried for diagnostics.
func NewManager(path string, id int64, singleInstance bool) *Manager {
	return &Manager{
		path:           path,
		id:             id,
		singleInstance: singleInstance,
		stmts:          make(map[string]*sql.Stmt),
	}
}

// Path returns the filesystem path, or the in-memory sentinel.
func (m *Manager) Path() string { return m.path }

// ID returns the external handle this manager was registered under.
func (m *Manager) ID() int64 { return m.id }

// SingleInstance reports whether the manager was opened with
// single-instance-per-path semantics.
func (m *Manager) SingleInstance() bool { return m.singleInstance }

// IsOpen reports whether the manager holds a live connection.
func (m *Manager) IsOpen() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == stateOpen
}

func (m *Manager) dsn(readOnly bool) string {
	if IsMemoryPath(m.path) {
		return MemoryPath
	}
	dsn := "file:" + m.path + "?_pragma=busy_timeout(5000)"
	if readOnly {
		dsn += "&mode=ro"
	}
	return dsn
}

// Open establishes the native connection, read-write (creating the file if
// absent) or read-only. Valid only once, from the Uninitialized state.
func (m *Manager) Open(ctx context.Context, readOnly bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.state {
	case stateOpen:
		return fmt.Errorf("database %d already open", m.id)
	case stateClosed:
		return ErrClosed
	}

	pool, err := sql.Open("sqlite", m.dsn(readOnly))
	if err != nil {
		return &OpenError{Path: m.path, Err: err}
	}
	// One physical connection, exclusively owned by this manager.
	pool.SetMaxOpenConns(1)

	conn, err := pool.Conn(ctx)
	if err != nil {
		pool.Close()
		return &OpenError{Path: m.path, Err: err}
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		pool.Close()
		return &OpenError{Path: m.path, Err: err}
	}

	m.pool = pool
	m.conn = conn
	m.state = stateOpen

	log.Debug().
		Int64("handle", m.id).
		Str("path", m.path).
		Bool("read_only", readOnly).
		Msg("Database opened")
	return nil
}

// stmt resolves the cached prepared statement for sqlText, preparing and
// caching it on first use. Cached statements are reused verbatim; the driver
// rebinds parameters on every run, so no bound values leak between calls.
func (m *Manager) stmt(ctx context.Context, sqlText string) (*sql.Stmt, error) {
	if s, ok := m.stmts[sqlText]; ok {
		return s, nil
	}
	s, err := m.conn.PrepareContext(ctx, sqlText)
	if err != nil {
		return nil, wrapError(err, sqlText, nil)
	}
	m.stmts[sqlText] = s
	return s, nil
}

func (m *Manager) ensureOpen() error {
	if m.state != stateOpen {
		return ErrClosed
	}
	return nil
}

// Execute runs sqlText with params bound positionally, discarding any rows.
// The statement stays cache-eligible after a failure.
func (m *Manager) Execute(ctx context.Context, sqlText string, params []Value) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.execute(ctx, sqlText, params)
}

func (m *Manager) execute(ctx context.Context, sqlText string, params []Value) error {
	if err := m.ensureOpen(); err != nil {
		return err
	}
	s, err := m.stmt(ctx, sqlText)
	if err != nil {
		return err
	}
	if _, err := s.ExecContext(ctx, bindArgs(params)...); err != nil {
		return wrapError(err, sqlText, params)
	}
	return nil
}

// Query runs sqlText with params and decodes every produced row. Column names
// come from the statement metadata before any row is read.
func (m *Manager) Query(ctx context.Context, sqlText string, params []Value) (*Rows, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.query(ctx, sqlText, params)
}

func (m *Manager) query(ctx context.Context, sqlText string, params []Value) (*Rows, error) {
	if err := m.ensureOpen(); err != nil {
		return nil, err
	}
	s, err := m.stmt(ctx, sqlText)
	if err != nil {
		return nil, err
	}

	rows, err := s.QueryContext(ctx, bindArgs(params)...)
	if err != nil {
		return nil, wrapError(err, sqlText, params)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, wrapError(err, sqlText, params)
	}

	out := &Rows{Columns: cols, Rows: make([][]Value, 0)}
	raw := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range raw {
		ptrs[i] = &raw[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, wrapError(err, sqlText, params)
		}
		row := make([]Value, len(cols))
		for i, rv := range raw {
			v, err := decodeValue(rv)
			if err != nil {
				return nil, wrapError(err, sqlText, params)
			}
			row[i] = v
		}
		out.Rows = append(out.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapError(err, sqlText, params)
	}
	return out, nil
}

// Close finalizes every cached statement, then closes the connection.
// Statement finalization happens strictly first so no statement handle
// outlives the connection it was prepared on. Errors are surfaced but the
// manager transitions to Closed regardless; Close is not retryable.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != stateOpen {
		return ErrClosed
	}
	m.state = stateClosed

	var firstErr error
	for sqlText, s := range m.stmts {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(m.stmts, sqlText)
	}
	if err := m.conn.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := m.pool.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	m.conn = nil
	m.pool = nil

	log.Debug().Int64("handle", m.id).Str("path", m.path).Msg("Database closed")
	return firstErr
}
