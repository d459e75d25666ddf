// Package handlers decodes JSON requests, drives the registry and encodes
// results or the error taxonomy. It carries no database semantics of its own.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/litekit/litebridge/internal/database"
	"github.com/litekit/litebridge/internal/registry"
	"github.com/litekit/litebridge/internal/web/events"
)

// Handlers contains all HTTP handlers.
type Handlers struct {
	registry *registry.Registry
	broker   *events.Broker
}

// New creates the handler set.
func New(reg *registry.Registry, broker *events.Broker) *Handlers {
	return &Handlers{registry: reg, broker: broker}
}

// Health reports liveness.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// ListDatabases returns a snapshot of every open database, the debug
// introspection surface.
func (h *Handlers) ListDatabases(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{"databases": h.registry.Snapshot()})
}

// DatabasesPath reports the directory relative database paths resolve under.
func (h *Handlers) DatabasesPath(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{"path": h.registry.DataDir()})
}

// Events upgrades to a WebSocket subscribed to registry lifecycle events.
func (h *Handlers) Events(w http.ResponseWriter, r *http.Request) {
	h.broker.Handle(w, r)
}

// handleParam pulls the {handle} URL parameter.
func handleParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "handle"), 10, 64)
}

// decodeBody decodes a JSON request body into v.
func (h *Handlers) decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

// jsonError sends a JSON error response
func (h *Handlers) jsonError(w http.ResponseWriter, message string, status int) {
	h.writeJSON(w, status, map[string]any{"error": message})
}

// jsonSuccess sends a JSON success response
func (h *Handlers) jsonSuccess(w http.ResponseWriter) {
	h.writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// databaseError maps the core error taxonomy onto HTTP responses. The shape
// mirrors the core contract: database_closed for unknown handles,
// database_error with sql and params for native failures, open_failed with
// the path for failed opens.
func (h *Handlers) databaseError(w http.ResponseWriter, err error) {
	if errors.Is(err, database.ErrClosed) {
		h.writeJSON(w, http.StatusNotFound, map[string]any{
			"error":   "database_closed",
			"message": err.Error(),
		})
		return
	}
	var oe *database.OpenError
	if errors.As(err, &oe) {
		h.writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error":   "open_failed",
			"message": oe.Error(),
			"path":    oe.Path,
		})
		return
	}
	var de *database.Error
	if errors.As(err, &de) {
		h.writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":   "database_error",
			"message": de.Error(),
			"data": map[string]any{
				"sql":    de.SQL,
				"params": de.Params,
			},
		})
		return
	}
	h.writeJSON(w, http.StatusInternalServerError, map[string]any{
		"error":   "internal",
		"message": err.Error(),
	})
}
