// Package registry maps external integer handles to owned database managers,
// enforces single-instance-per-path reuse and owns close/delete lifecycle
// ordering. One Registry per process, constructed explicitly and injected
// into whatever sits at the boundary; every mutating operation runs under the
// registry mutex.
package registry

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/litekit/litebridge/internal/database"
)

// EventType names a registry lifecycle transition.
type EventType string

const (
	EventOpened  EventType = "opened"
	EventClosed  EventType = "closed"
	EventDeleted EventType = "deleted"
	EventEvicted EventType = "evicted"
)

// Event describes one lifecycle transition of a registered database.
type Event struct {
	Type   EventType `json:"type"`
	Handle int64     `json:"handle,omitempty"`
	Path   string    `json:"path,omitempty"`
}

// EventSink receives registry lifecycle events. Publish must not call back
// into the Registry's mutating operations synchronously.
type EventSink interface {
	Publish(Event)
}

// Registry owns every open database manager in the process. Handles are
// positive, monotonically increasing and never reused; the path map holds a
// non-owning back reference for single-instance lookups only.
type Registry struct {
	dataDir string

	mu         sync.Mutex
	nextHandle int64
	databases  map[int64]*database.Manager
	byPath     map[string]int64
	sinks      []EventSink
}

// New returns an empty registry. Relative database paths resolve under
// dataDir when it is non-empty.
func New(dataDir string) *Registry {
	return &Registry{
		dataDir:   dataDir,
		databases: make(map[int64]*database.Manager),
		byPath:    make(map[string]int64),
	}
}

// DataDir returns the directory relative database paths resolve under.
func (r *Registry) DataDir() string { return r.dataDir }

// AddEventSink registers a lifecycle event sink. Call during setup, before
// the registry is shared.
func (r *Registry) AddEventSink(sink EventSink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sinks = append(r.sinks, sink)
}

func (r *Registry) publish(e Event) {
	r.mu.Lock()
	sinks := make([]EventSink, len(r.sinks))
	copy(sinks, r.sinks)
	r.mu.Unlock()
	for _, s := range sinks {
		s.Publish(e)
	}
}

// ResolvePath expands a caller-supplied path: the in-memory sentinel and
// absolute paths pass through, relative paths land under the data directory.
func (r *Registry) ResolvePath(path string) string {
	if database.IsMemoryPath(path) || r.dataDir == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(r.dataDir, path)
}

// Open opens the database at path, read-write or read-only. With
// singleInstance set and a non-memory path, a repeated open of the same path
// returns the existing live handle with recovered=true and opens nothing. A
// failed open registers nothing and the discarded manager never appears in
// any map.
func (r *Registry) Open(ctx context.Context, path string, readOnly, singleInstance bool) (handle int64, recovered bool, err error) {
	path = r.ResolvePath(path)
	singleInstance = singleInstance && !database.IsMemoryPath(path)

	r.mu.Lock()
	if singleInstance {
		if h, ok := r.byPath[path]; ok {
			if m, ok := r.databases[h]; ok && m.IsOpen() {
				r.mu.Unlock()
				log.Debug().Int64("handle", h).Str("path", path).Msg("Reusing single-instance database")
				return h, true, nil
			}
			// Stale back reference, the manager is gone or dead.
			delete(r.byPath, path)
		}
	}

	r.nextHandle++
	handle = r.nextHandle
	m := database.NewManager(path, handle, singleInstance)
	if err := m.Open(ctx, readOnly); err != nil {
		r.mu.Unlock()
		return 0, false, err
	}
	r.databases[handle] = m
	if singleInstance {
		r.byPath[path] = handle
	}
	r.mu.Unlock()

	log.Info().
		Int64("handle", handle).
		Str("path", path).
		Bool("read_only", readOnly).
		Bool("single_instance", singleInstance).
		Msg("Database opened")
	r.publish(Event{Type: EventOpened, Handle: handle, Path: path})
	return handle, false, nil
}

// Lookup resolves a handle to its manager. A miss is the "database closed"
// condition, never conflated with a SQL error.
func (r *Registry) Lookup(handle int64) (*database.Manager, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.databases[handle]
	if !ok {
		return nil, fmt.Errorf("%w: handle %d", database.ErrClosed, handle)
	}
	return m, nil
}

// remove drops a handle from both maps and returns its manager, or nil when
// the handle is unknown. Ownership of the manager transfers to the caller.
func (r *Registry) remove(handle int64) *database.Manager {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.databases[handle]
	if !ok {
		return nil
	}
	delete(r.databases, handle)
	if m.SingleInstance() {
		delete(r.byPath, m.Path())
	}
	return m
}

// Close removes the handle and closes its manager: every cached statement is
// finalized, then the connection is released. The registry entries are gone
// even when the native close errors; close is not retried.
func (r *Registry) Close(handle int64) error {
	m := r.remove(handle)
	if m == nil {
		return fmt.Errorf("%w: handle %d", database.ErrClosed, handle)
	}
	err := m.Close()
	log.Info().Int64("handle", handle).Str("path", m.Path()).Msg("Database closed")
	r.publish(Event{Type: EventClosed, Handle: handle, Path: m.Path()})
	if err != nil {
		log.Error().Err(err).Int64("handle", handle).Msg("Native close failed, entry removed regardless")
		return err
	}
	return nil
}

// Delete closes any tracked single-instance handle for path, then removes the
// underlying file. Deleting a path with no tracked handle and no file is not
// an error.
func (r *Registry) Delete(path string) error {
	path = r.ResolvePath(path)

	r.mu.Lock()
	h, tracked := r.byPath[path]
	r.mu.Unlock()
	if tracked {
		if err := r.Close(h); err != nil && !errors.Is(err, database.ErrClosed) {
			log.Warn().Err(err).Str("path", path).Msg("Close before delete failed")
		}
	}

	if !database.IsMemoryPath(path) {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to delete database file: %w", err)
		}
	}
	log.Info().Str("path", path).Msg("Database deleted")
	r.publish(Event{Type: EventDeleted, Path: path})
	return nil
}

// EvictPath closes the single-instance handle tracked for path without
// touching the file. Used when the file disappeared underneath us; a path
// with no tracked handle is a no-op.
func (r *Registry) EvictPath(path string) {
	r.mu.Lock()
	h, tracked := r.byPath[path]
	r.mu.Unlock()
	if !tracked {
		return
	}
	m := r.remove(h)
	if m == nil {
		return
	}
	if err := m.Close(); err != nil {
		log.Warn().Err(err).Int64("handle", h).Str("path", path).Msg("Close during eviction failed")
	}
	log.Info().Int64("handle", h).Str("path", path).Msg("Database evicted, file removed externally")
	r.publish(Event{Type: EventEvicted, Handle: h, Path: path})
}

// Execute runs a statement against the database behind handle.
func (r *Registry) Execute(ctx context.Context, handle int64, sqlText string, params []database.Value) error {
	m, err := r.Lookup(handle)
	if err != nil {
		return err
	}
	return m.Execute(ctx, sqlText, params)
}

// Query runs a query against the database behind handle.
func (r *Registry) Query(ctx context.Context, handle int64, sqlText string, params []database.Value) (*database.Rows, error) {
	m, err := r.Lookup(handle)
	if err != nil {
		return nil, err
	}
	return m.Query(ctx, sqlText, params)
}

// Insert runs an insert against the database behind handle and reports the
// last inserted row id, nil when nothing was inserted or noResult is set.
func (r *Registry) Insert(ctx context.Context, handle int64, sqlText string, params []database.Value, noResult bool) (*int64, error) {
	m, err := r.Lookup(handle)
	if err != nil {
		return nil, err
	}
	return m.Insert(ctx, sqlText, params, noResult)
}

// Update runs an update/delete against the database behind handle and reports
// the affected-row count, nil when noResult is set.
func (r *Registry) Update(ctx context.Context, handle int64, sqlText string, params []database.Value, noResult bool) (*int64, error) {
	m, err := r.Lookup(handle)
	if err != nil {
		return nil, err
	}
	return m.Update(ctx, sqlText, params, noResult)
}

// DatabaseInfo is one entry of the registry snapshot.
type DatabaseInfo struct {
	Handle         int64  `json:"handle"`
	Path           string `json:"path"`
	SingleInstance bool   `json:"singleInstance"`
}

// Snapshot lists every open database, ordered by handle.
func (r *Registry) Snapshot() []DatabaseInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]DatabaseInfo, 0, len(r.databases))
	for h, m := range r.databases {
		out = append(out, DatabaseInfo{Handle: h, Path: m.Path(), SingleInstance: m.SingleInstance()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Handle < out[j].Handle })
	return out
}

// Handles returns the open handles, ordered.
func (r *Registry) Handles() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]int64, 0, len(r.databases))
	for h := range r.databases {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// CloseAll closes every open database, used at shutdown. Errors are logged
// and the sweep continues.
func (r *Registry) CloseAll() {
	for _, h := range r.Handles() {
		if err := r.Close(h); err != nil && !errors.Is(err, database.ErrClosed) {
			log.Error().Err(err).Int64("handle", h).Msg("Failed to close database during shutdown")
		}
	}
}
