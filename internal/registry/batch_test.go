package registry

import (
	"context"
	"testing"

	"github.com/litekit/litebridge/internal/database"
)

func openBatchHandle(t *testing.T, r *Registry) int64 {
	t.Helper()
	ctx := context.Background()
	h, _, err := r.Open(ctx, database.MemoryPath, false, false)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if err := r.Execute(ctx, h, "CREATE TABLE t (id INTEGER PRIMARY KEY, name TEXT)", nil); err != nil {
		t.Fatalf("create table failed: %v", err)
	}
	return h
}

func TestBatchRunsOperationsInOrder(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry(t)
	h := openBatchHandle(t, r)

	ops := []Operation{
		{Method: MethodInsert, SQL: "INSERT INTO t (name) VALUES (?)", Params: []database.Value{database.Text("one")}},
		{Method: MethodInsert, SQL: "INSERT INTO t (name) VALUES (?)", Params: []database.Value{database.Text("two")}},
		{Method: MethodUpdate, SQL: "UPDATE t SET name = ?", Params: []database.Value{database.Text("both")}},
		{Method: MethodQuery, SQL: "SELECT name FROM t ORDER BY id", Params: nil},
	}
	results, err := r.Batch(ctx, h, ops, false, false)
	if err != nil {
		t.Fatalf("batch failed: %v", err)
	}
	if len(results) != len(ops) {
		t.Fatalf("expected %d results, got %d", len(ops), len(results))
	}

	id1, ok := results[0].Result.(*int64)
	if !ok || id1 == nil || *id1 != 1 {
		t.Fatalf("expected first insert to return id 1, got %v", results[0].Result)
	}
	id2 := results[1].Result.(*int64)
	if id2 == nil || *id2 != 2 {
		t.Fatalf("expected second insert to return id 2, got %v", results[1].Result)
	}
	changes := results[2].Result.(*int64)
	if changes == nil || *changes != 2 {
		t.Fatalf("expected update to touch 2 rows, got %v", results[2].Result)
	}
	rows := results[3].Result.(*database.Rows)
	if len(rows.Rows) != 2 || !rows.Rows[0][0].Equal(database.Text("both")) {
		t.Fatalf("unexpected query result: %+v", rows)
	}
}

func TestBatchAbortsOnFirstError(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry(t)
	h := openBatchHandle(t, r)

	ops := []Operation{
		{Method: MethodInsert, SQL: "INSERT INTO t (name) VALUES (?)", Params: []database.Value{database.Text("kept")}},
		{Method: MethodExecute, SQL: "INSERT INTO nonexistent VALUES (1)"},
		{Method: MethodInsert, SQL: "INSERT INTO t (name) VALUES (?)", Params: []database.Value{database.Text("never")}},
	}
	results, err := r.Batch(ctx, h, ops, false, false)
	if err == nil {
		t.Fatal("expected batch to fail")
	}
	if results != nil {
		t.Fatalf("aborted batch must return no results, got %v", results)
	}
	if de := database.AsError(err); de == nil || de.SQL != ops[1].SQL {
		t.Fatalf("expected failing statement in the error, got %v", err)
	}

	// Work before the failure is kept, work after it never ran.
	out, err := r.Query(ctx, h, "SELECT name FROM t ORDER BY id", nil)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(out.Rows) != 1 || !out.Rows[0][0].Equal(database.Text("kept")) {
		t.Fatalf("expected only the first insert applied, got %+v", out.Rows)
	}
}

func TestBatchContinueOnErrorCollectsMarkers(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry(t)
	h := openBatchHandle(t, r)

	ops := []Operation{
		{Method: MethodInsert, SQL: "INSERT INTO t (name) VALUES (?)", Params: []database.Value{database.Text("a")}},
		{Method: MethodExecute, SQL: "INSERT INTO nonexistent VALUES (1)"},
		{Method: MethodInsert, SQL: "INSERT INTO t (name) VALUES (?)", Params: []database.Value{database.Text("b")}},
	}
	results, err := r.Batch(ctx, h, ops, true, false)
	if err != nil {
		t.Fatalf("batch failed: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected one result per operation, got %d", len(results))
	}
	if results[0].Err != nil || results[2].Err != nil {
		t.Fatalf("expected surrounding operations to succeed: %v / %v", results[0].Err, results[2].Err)
	}
	if results[1].Err == nil || results[1].Err.SQL != ops[1].SQL {
		t.Fatalf("expected error marker for the failing operation, got %+v", results[1])
	}
}

func TestBatchNoResult(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry(t)
	h := openBatchHandle(t, r)

	ops := []Operation{
		{Method: MethodInsert, SQL: "INSERT INTO t (name) VALUES (?)", Params: []database.Value{database.Text("x")}},
		{Method: MethodUpdate, SQL: "UPDATE t SET name = 'y'"},
	}
	results, err := r.Batch(ctx, h, ops, false, true)
	if err != nil {
		t.Fatalf("batch failed: %v", err)
	}
	if results != nil {
		t.Fatalf("noResult batch must return nil results, got %v", results)
	}

	out, err := r.Query(ctx, h, "SELECT name FROM t", nil)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(out.Rows) != 1 || !out.Rows[0][0].Equal(database.Text("y")) {
		t.Fatalf("noResult batch must still apply its writes, got %+v", out.Rows)
	}
}

func TestBatchRejectsUnknownMethod(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry(t)
	h := openBatchHandle(t, r)

	_, err := r.Batch(ctx, h, []Operation{{Method: "drop", SQL: "DROP TABLE t"}}, true, false)
	if err == nil {
		t.Fatal("expected error for unsupported method")
	}
}

func TestBatchClosedHandle(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry(t)
	h := openBatchHandle(t, r)
	if err := r.Close(h); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if _, err := r.Batch(ctx, h, nil, false, false); err == nil {
		t.Fatal("expected error for closed handle")
	}
}
