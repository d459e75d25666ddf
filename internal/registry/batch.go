package registry

import (
	"context"
	"fmt"

	"github.com/litekit/litebridge/internal/database"
)

// Batch operation methods. These mirror the single-operation entry points.
const (
	MethodExecute = "execute"
	MethodInsert  = "insert"
	MethodUpdate  = "update"
	MethodQuery   = "query"
)

// Operation is one entry of a batch: a method name, SQL text and parameters.
type Operation struct {
	Method string           `json:"method"`
	SQL    string           `json:"sql"`
	Params []database.Value `json:"params,omitempty"`
}

// OperationResult is the outcome of one batch operation: either a result
// (nil for execute, *int64 for insert/update, *database.Rows for query) or
// the error that failed it.
type OperationResult struct {
	Result any
	Err    *database.Error
}

// Batch runs an ordered sequence of operations against one handle. By
// default the first failure aborts the whole batch and is returned;
// operations after it are never executed. With continueOnError each failure
// is recorded as a per-operation error marker and the batch runs on. With
// noResult no results are collected at all and a successful batch returns
// nil.
func (r *Registry) Batch(ctx context.Context, handle int64, ops []Operation, continueOnError, noResult bool) ([]OperationResult, error) {
	m, err := r.Lookup(handle)
	if err != nil {
		return nil, err
	}

	var results []OperationResult
	if !noResult {
		results = make([]OperationResult, 0, len(ops))
	}

	for _, op := range ops {
		var res any
		var opErr error

		switch op.Method {
		case MethodExecute:
			opErr = m.Execute(ctx, op.SQL, op.Params)
		case MethodInsert:
			res, opErr = m.Insert(ctx, op.SQL, op.Params, noResult)
		case MethodUpdate:
			res, opErr = m.Update(ctx, op.SQL, op.Params, noResult)
		case MethodQuery:
			res, opErr = m.Query(ctx, op.SQL, op.Params)
		default:
			return nil, fmt.Errorf("unsupported batch method %q", op.Method)
		}

		if opErr != nil {
			if !continueOnError {
				return nil, opErr
			}
			if !noResult {
				results = append(results, OperationResult{Err: database.AsError(opErr)})
			}
			continue
		}
		if !noResult {
			results = append(results, OperationResult{Result: res})
		}
	}
	return results, nil
}
