package handlers

import (
	"net/http"
)

type openRequest struct {
	Path           string `json:"path"`
	ReadOnly       bool   `json:"readOnly"`
	SingleInstance bool   `json:"singleInstance"`
}

type openResponse struct {
	Handle    int64 `json:"handle"`
	Recovered bool  `json:"recovered"`
}

// OpenDatabase opens (or recovers) a database and returns its handle.
func (h *Handlers) OpenDatabase(w http.ResponseWriter, r *http.Request) {
	var req openRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	handle, recovered, err := h.registry.Open(r.Context(), req.Path, req.ReadOnly, req.SingleInstance)
	if err != nil {
		h.databaseError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, openResponse{Handle: handle, Recovered: recovered})
}

// CloseDatabase closes the database behind {handle}.
func (h *Handlers) CloseDatabase(w http.ResponseWriter, r *http.Request) {
	handle, err := handleParam(r)
	if err != nil {
		h.jsonError(w, "invalid handle", http.StatusBadRequest)
		return
	}
	if err := h.registry.Close(handle); err != nil {
		h.databaseError(w, err)
		return
	}
	h.jsonSuccess(w)
}

type deleteRequest struct {
	Path string `json:"path"`
}

// DeleteDatabase closes any tracked handle for the path and removes the
// file. Idempotent: nothing tracked and no file is still a success.
func (h *Handlers) DeleteDatabase(w http.ResponseWriter, r *http.Request) {
	var req deleteRequest
	if !h.decodeBody(w, r, &req) {
		return
	}
	if err := h.registry.Delete(req.Path); err != nil {
		h.databaseError(w, err)
		return
	}
	h.jsonSuccess(w)
}
