package handlers

import (
	"net/http"

	"github.com/litekit/litebridge/internal/database"
	"github.com/litekit/litebridge/internal/registry"
)

type statementRequest struct {
	SQL      string           `json:"sql"`
	Params   []database.Value `json:"params"`
	NoResult bool             `json:"noResult"`
}

// Execute runs a statement, discarding any rows.
func (h *Handlers) Execute(w http.ResponseWriter, r *http.Request) {
	handle, err := handleParam(r)
	if err != nil {
		h.jsonError(w, "invalid handle", http.StatusBadRequest)
		return
	}
	var req statementRequest
	if !h.decodeBody(w, r, &req) {
		return
	}
	if err := h.registry.Execute(r.Context(), handle, req.SQL, req.Params); err != nil {
		h.databaseError(w, err)
		return
	}
	h.jsonSuccess(w)
}

// Query runs a query and returns columns plus decoded rows.
func (h *Handlers) Query(w http.ResponseWriter, r *http.Request) {
	handle, err := handleParam(r)
	if err != nil {
		h.jsonError(w, "invalid handle", http.StatusBadRequest)
		return
	}
	var req statementRequest
	if !h.decodeBody(w, r, &req) {
		return
	}
	rows, err := h.registry.Query(r.Context(), handle, req.SQL, req.Params)
	if err != nil {
		h.databaseError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, rows)
}

// Insert runs an insert and returns the last inserted row id, null when no
// row was inserted or noResult was requested.
func (h *Handlers) Insert(w http.ResponseWriter, r *http.Request) {
	handle, err := handleParam(r)
	if err != nil {
		h.jsonError(w, "invalid handle", http.StatusBadRequest)
		return
	}
	var req statementRequest
	if !h.decodeBody(w, r, &req) {
		return
	}
	lastID, err := h.registry.Insert(r.Context(), handle, req.SQL, req.Params, req.NoResult)
	if err != nil {
		h.databaseError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"lastId": lastID})
}

// Update runs an update/delete and returns the affected-row count, null when
// noResult was requested.
func (h *Handlers) Update(w http.ResponseWriter, r *http.Request) {
	handle, err := handleParam(r)
	if err != nil {
		h.jsonError(w, "invalid handle", http.StatusBadRequest)
		return
	}
	var req statementRequest
	if !h.decodeBody(w, r, &req) {
		return
	}
	changes, err := h.registry.Update(r.Context(), handle, req.SQL, req.Params, req.NoResult)
	if err != nil {
		h.databaseError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"changes": changes})
}

type batchRequest struct {
	Operations      []registry.Operation `json:"operations"`
	ContinueOnError bool                 `json:"continueOnError"`
	NoResult        bool                 `json:"noResult"`
}

// Batch runs an ordered sequence of operations against one handle.
func (h *Handlers) Batch(w http.ResponseWriter, r *http.Request) {
	handle, err := handleParam(r)
	if err != nil {
		h.jsonError(w, "invalid handle", http.StatusBadRequest)
		return
	}
	var req batchRequest
	if !h.decodeBody(w, r, &req) {
		return
	}
	results, err := h.registry.Batch(r.Context(), handle, req.Operations, req.ContinueOnError, req.NoResult)
	if err != nil {
		h.databaseError(w, err)
		return
	}
	if req.NoResult {
		h.jsonSuccess(w)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"results": batchResults(results)})
}

// batchResults shapes per-operation outcomes: {"result": ...} on success,
// {"error": {...}} for an operation that failed under continueOnError.
func batchResults(results []registry.OperationResult) []map[string]any {
	out := make([]map[string]any, 0, len(results))
	for _, res := range results {
		if res.Err != nil {
			out = append(out, map[string]any{
				"error": map[string]any{
					"code":    "database_error",
					"message": res.Err.Error(),
					"data": map[string]any{
						"sql":    res.Err.SQL,
						"params": res.Err.Params,
					},
				},
			})
			continue
		}
		out = append(out, map[string]any{"result": res.Result})
	}
	return out
}
