package database

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func openTestManager(t *testing.T, path string) *Manager {
	t.Helper()
	m := NewManager(path, 1, false)
	if err := m.Open(context.Background(), false); err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { m.Close() })
	return m
}

func TestManagerExecuteAndQuery(t *testing.T) {
	ctx := context.Background()
	m := openTestManager(t, MemoryPath)

	if err := m.Execute(ctx, "CREATE TABLE t (a INTEGER, b TEXT)", nil); err != nil {
		t.Fatalf("create table failed: %v", err)
	}
	if err := m.Execute(ctx, "INSERT INTO t VALUES (?, ?)", []Value{Integer(42), Text("hi")}); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	rs, err := m.Query(ctx, "SELECT a, b FROM t", nil)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(rs.Columns) != 2 || rs.Columns[0] != "a" || rs.Columns[1] != "b" {
		t.Fatalf("unexpected columns: %v", rs.Columns)
	}
	if len(rs.Rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rs.Rows))
	}
	if !rs.Rows[0][0].Equal(Integer(42)) || !rs.Rows[0][1].Equal(Text("hi")) {
		t.Fatalf("unexpected row: %v", rs.Rows[0])
	}
}

func TestManagerBindRoundTrip(t *testing.T) {
	ctx := context.Background()
	m := openTestManager(t, MemoryPath)

	cases := []struct {
		name string
		val  Value
	}{
		{"integer", Integer(-77)},
		{"float", Float(2.75)},
		{"text", Text("snow ❄")},
		{"blob", Blob([]byte{0x00, 0xde, 0xad})},
		{"null", Null()},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rs, err := m.Query(ctx, "SELECT ?", []Value{tc.val})
			if err != nil {
				t.Fatalf("query failed: %v", err)
			}
			if len(rs.Rows) != 1 || len(rs.Rows[0]) != 1 {
				t.Fatalf("unexpected shape: %v", rs.Rows)
			}
			if !rs.Rows[0][0].Equal(tc.val) {
				t.Fatalf("round trip changed value: bound %v (%v), got %v (%v)",
					tc.val, tc.val.Kind(), rs.Rows[0][0], rs.Rows[0][0].Kind())
			}
		})
	}
}

func TestManagerQueryEmptyResultKeepsColumns(t *testing.T) {
	ctx := context.Background()
	m := openTestManager(t, MemoryPath)

	if err := m.Execute(ctx, "CREATE TABLE empty_t (x INTEGER)", nil); err != nil {
		t.Fatalf("create table failed: %v", err)
	}
	rs, err := m.Query(ctx, "SELECT x FROM empty_t", nil)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(rs.Columns) != 1 || rs.Columns[0] != "x" {
		t.Fatalf("expected columns [x], got %v", rs.Columns)
	}
	if len(rs.Rows) != 0 {
		t.Fatalf("expected no rows, got %d", len(rs.Rows))
	}
}

func TestManagerStatementCacheDoesNotLeakBindings(t *testing.T) {
	ctx := context.Background()
	m := openTestManager(t, MemoryPath)

	if err := m.Execute(ctx, "CREATE TABLE t (n INTEGER)", nil); err != nil {
		t.Fatalf("create table failed: %v", err)
	}
	// Same SQL text twice, different parameters; the cached statement must
	// produce independent results.
	for _, n := range []int64{1, 2} {
		if err := m.Execute(ctx, "INSERT INTO t VALUES (?)", []Value{Integer(n)}); err != nil {
			t.Fatalf("insert %d failed: %v", n, err)
		}
	}
	rs, err := m.Query(ctx, "SELECT n FROM t ORDER BY n", nil)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(rs.Rows) != 2 || rs.Rows[0][0].Int64() != 1 || rs.Rows[1][0].Int64() != 2 {
		t.Fatalf("unexpected rows: %v", rs.Rows)
	}

	// A statement that failed once must stay cache-eligible and work again.
	if err := m.Execute(ctx, "INSERT INTO t VALUES (?)", nil); err == nil {
		t.Fatal("expected bind arity error")
	}
	if err := m.Execute(ctx, "INSERT INTO t VALUES (?)", []Value{Integer(3)}); err != nil {
		t.Fatalf("insert after failed bind should work: %v", err)
	}
}

func TestManagerExecuteErrorCarriesContext(t *testing.T) {
	ctx := context.Background()
	m := openTestManager(t, MemoryPath)

	err := m.Execute(ctx, "NOT REALLY SQL", []Value{Integer(1)})
	if err == nil {
		t.Fatal("expected error for invalid SQL")
	}
	var de *Error
	if !errors.As(err, &de) {
		t.Fatalf("expected *Error, got %T: %v", err, err)
	}
	if de.SQL != "NOT REALLY SQL" {
		t.Fatalf("expected offending SQL in error, got %q", de.SQL)
	}
	if de.Code == 0 {
		t.Fatalf("expected a native result code, got %v", de)
	}
}

func TestManagerInsertReturnsLastID(t *testing.T) {
	ctx := context.Background()
	m := openTestManager(t, MemoryPath)

	if err := m.Execute(ctx, "CREATE TABLE t (id INTEGER PRIMARY KEY, v TEXT)", nil); err != nil {
		t.Fatalf("create table failed: %v", err)
	}
	id, err := m.Insert(ctx, "INSERT INTO t (v) VALUES (?)", []Value{Text("a")}, false)
	if err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if id == nil || *id != 1 {
		t.Fatalf("expected lastId 1, got %v", id)
	}

	id, err = m.Insert(ctx, "INSERT INTO t (v) VALUES (?)", []Value{Text("b")}, true)
	if err != nil {
		t.Fatalf("insert with noResult failed: %v", err)
	}
	if id != nil {
		t.Fatalf("expected nil id with noResult, got %d", *id)
	}
}

func TestManagerInsertZeroChangesYieldsNoID(t *testing.T) {
	ctx := context.Background()
	m := openTestManager(t, MemoryPath)

	if err := m.Execute(ctx, "CREATE TABLE t (id INTEGER PRIMARY KEY)", nil); err != nil {
		t.Fatalf("create table failed: %v", err)
	}
	if _, err := m.Insert(ctx, "INSERT INTO t (id) VALUES (1)", nil, false); err != nil {
		t.Fatalf("first insert failed: %v", err)
	}
	id, err := m.Insert(ctx, "INSERT OR IGNORE INTO t (id) VALUES (1)", nil, false)
	if err != nil {
		t.Fatalf("ignored insert failed: %v", err)
	}
	if id != nil {
		t.Fatalf("expected no id for zero changed rows, got %d", *id)
	}
}

func TestManagerUpdateReturnsChanges(t *testing.T) {
	ctx := context.Background()
	m := openTestManager(t, MemoryPath)

	if err := m.Execute(ctx, "CREATE TABLE t (n INTEGER)", nil); err != nil {
		t.Fatalf("create table failed: %v", err)
	}
	for i := int64(0); i < 3; i++ {
		if err := m.Execute(ctx, "INSERT INTO t VALUES (?)", []Value{Integer(i)}); err != nil {
			t.Fatalf("insert failed: %v", err)
		}
	}
	changes, err := m.Update(ctx, "UPDATE t SET n = n + 10 WHERE n < 2", nil, false)
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if changes == nil || *changes != 2 {
		t.Fatalf("expected 2 changes, got %v", changes)
	}

	changes, err = m.Update(ctx, "DELETE FROM t", nil, true)
	if err != nil {
		t.Fatalf("delete with noResult failed: %v", err)
	}
	if changes != nil {
		t.Fatalf("expected nil changes with noResult, got %d", *changes)
	}
}

func TestManagerLifecycle(t *testing.T) {
	ctx := context.Background()
	m := NewManager(MemoryPath, 7, false)

	// No operation besides Open is valid before Open.
	if err := m.Execute(ctx, "SELECT 1", nil); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed before open, got %v", err)
	}

	if err := m.Open(ctx, false); err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if err := m.Open(ctx, false); err == nil {
		t.Fatal("expected error for double open")
	}
	if !m.IsOpen() {
		t.Fatal("expected manager to report open")
	}

	if err := m.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if err := m.Execute(ctx, "SELECT 1", nil); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed after close, got %v", err)
	}
	if _, err := m.Query(ctx, "SELECT 1", nil); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed after close, got %v", err)
	}
	// Closed is terminal; there is no reopen.
	if err := m.Open(ctx, false); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed on reopen, got %v", err)
	}
	if err := m.Close(); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed on double close, got %v", err)
	}
}

func TestManagerCloseWithEmptyCache(t *testing.T) {
	m := NewManager(MemoryPath, 2, false)
	if err := m.Open(context.Background(), false); err != nil {
		t.Fatalf("open failed: %v", err)
	}
	// Fresh manager, nothing ever prepared.
	if err := m.Close(); err != nil {
		t.Fatalf("close of unused manager failed: %v", err)
	}
}

func TestManagerCloseFinalizesCachedStatements(t *testing.T) {
	ctx := context.Background()
	tmp := t.TempDir()
	path := filepath.Join(tmp, "test.db")

	m := NewManager(path, 3, false)
	if err := m.Open(ctx, false); err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if err := m.Execute(ctx, "CREATE TABLE t (n INTEGER)", nil); err != nil {
		t.Fatalf("create table failed: %v", err)
	}
	for i := 0; i < 5; i++ {
		if _, err := m.Query(ctx, "SELECT n FROM t", nil); err != nil {
			t.Fatalf("query failed: %v", err)
		}
	}
	if err := m.Close(); err != nil {
		t.Fatalf("close with cached statements failed: %v", err)
	}

	// The same file must open cleanly again; leaked native handles would
	// keep the old connection alive.
	m2 := openTestManager(t, path)
	if _, err := m2.Query(ctx, "SELECT n FROM t", nil); err != nil {
		t.Fatalf("query after reopen failed: %v", err)
	}
}

func TestManagerReadOnly(t *testing.T) {
	ctx := context.Background()
	tmp := t.TempDir()
	path := filepath.Join(tmp, "ro.db")

	rw := NewManager(path, 4, false)
	if err := rw.Open(ctx, false); err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if err := rw.Execute(ctx, "CREATE TABLE t (n INTEGER)", nil); err != nil {
		t.Fatalf("create table failed: %v", err)
	}
	if err := rw.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	ro := NewManager(path, 5, false)
	if err := ro.Open(ctx, true); err != nil {
		t.Fatalf("read-only open failed: %v", err)
	}
	defer ro.Close()

	if _, err := ro.Query(ctx, "SELECT n FROM t", nil); err != nil {
		t.Fatalf("read-only query failed: %v", err)
	}
	if err := ro.Execute(ctx, "INSERT INTO t VALUES (1)", nil); err == nil {
		t.Fatal("expected write on read-only database to fail")
	}
}

func TestManagerOpenFailure(t *testing.T) {
	ctx := context.Background()
	m := NewManager(filepath.Join(t.TempDir(), "missing", "nested", "db.sqlite"), 6, false)
	err := m.Open(ctx, true)
	if err == nil {
		t.Fatal("expected read-only open of missing file to fail")
	}
	var oe *OpenError
	if !errors.As(err, &oe) {
		t.Fatalf("expected *OpenError, got %T: %v", err, err)
	}
	if oe.Path == "" {
		t.Fatal("expected path in open error")
	}
}
