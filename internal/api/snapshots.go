package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// handleCaptureSnapshot captures a snapshot of the named instrument and
// persists it to the snapshot store. By default every gettable parameter
// is re-read first so the record reflects hardware, not the cache; pass
// ?update=false to persist the cached view instead.
func (s *Server) handleCaptureSnapshot(w http.ResponseWriter, r *http.Request) {
	if s.snapshots == nil {
		writeNotFound(w, errSnapshotsDisabled.Error())
		return
	}

	name := chi.URLParam(r, "name")
	b, err := s.registry.Find(name)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	update := r.URL.Query().Get("update") != "false"
	snap := b.Snapshot(r.Context(), update)

	record, err := s.snapshots.Save(r.Context(), b.FullName(), snap)
	if err != nil {
		s.logger.Error("persisting snapshot", "instrument", b.FullName(), "error", err)
		writeInternalError(w, "failed to persist snapshot")
		return
	}

	if s.notifier != nil {
		s.notifier.SnapshotCaptured(record.Instrument, record)
	}

	writeJSON(w, http.StatusCreated, record)
}

// handleListSnapshots returns recent snapshot records, newest first.
// Filters: ?instrument=psu limits to one instrument, ?limit=N caps the
// result count (the store clamps it).
func (s *Server) handleListSnapshots(w http.ResponseWriter, r *http.Request) {
	if s.snapshots == nil {
		writeNotFound(w, errSnapshotsDisabled.Error())
		return
	}

	instrumentName := r.URL.Query().Get("instrument")
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeBadRequest(w, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	records, err := s.snapshots.List(r.Context(), instrumentName, limit)
	if err != nil {
		s.logger.Error("listing snapshots", "error", err)
		writeInternalError(w, "failed to list snapshots")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"snapshots": records,
		"count":     len(records),
	})
}

// handleGetSnapshot returns one snapshot record by ID.
func (s *Server) handleGetSnapshot(w http.ResponseWriter, r *http.Request) {
	if s.snapshots == nil {
		writeNotFound(w, errSnapshotsDisabled.Error())
		return
	}

	id := chi.URLParam(r, "id")
	record, err := s.snapshots.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, record)
}
