package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/openlabctl/labcore/internal/instrument"
)

// instrumentSummary is the list-view representation of an instrument.
type instrumentSummary struct {
	Name       string   `json:"name"`
	Label      string   `json:"label,omitempty"`
	Parameters []string `json:"parameters"`
	Submodules []string `json:"submodules,omitempty"`
}

// parameterResponse is the response body for parameter reads and writes.
type parameterResponse struct {
	Instrument string     `json:"instrument"`
	Parameter  string     `json:"parameter"`
	Value      any        `json:"value"`
	Unit       string     `json:"unit,omitempty"`
	Raw        string     `json:"raw,omitempty"`
	TS         *time.Time `json:"ts"`
	Cached     bool       `json:"cached"`
}

// setParameterRequest is the request body for PUT parameter.
type setParameterRequest struct {
	Value any `json:"value"`
}

// handleListInstruments returns summaries of all registered root instruments.
func (s *Server) handleListInstruments(w http.ResponseWriter, _ *http.Request) {
	names := s.registry.Names()
	out := make([]instrumentSummary, 0, len(names))
	for _, name := range names {
		b, err := s.registry.Find(name)
		if err != nil {
			// Closed between Names() and Find(); skip
			continue
		}
		out = append(out, summarize(b))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"instruments": out,
		"count":       len(out),
	})
}

func summarize(b *instrument.Base) instrumentSummary {
	sum := instrumentSummary{
		Name:  b.FullName(),
		Label: b.Label(),
	}
	for _, h := range b.Parameters() {
		sum.Parameters = append(sum.Parameters, h.Name())
	}
	for _, sub := range b.Submodules() {
		sum.Submodules = append(sum.Submodules, sub.Name())
	}
	return sum
}

// handleGetInstrument returns a live snapshot of one instrument. Dotted
// paths address submodules ("psu.ch2"). With ?update=true every gettable
// parameter is re-read from hardware first.
func (s *Server) handleGetInstrument(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	b, err := s.registry.Find(name)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	update := r.URL.Query().Get("update") == "true"
	snap := b.Snapshot(r.Context(), update)

	writeJSON(w, http.StatusOK, snap)
}

// handleGetParameter reads a parameter. Gettable parameters are read from
// hardware; set-only parameters return the cached setpoint. With
// ?latest=true the cache is returned for any parameter, without hardware I/O.
func (s *Server) handleGetParameter(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	param := chi.URLParam(r, "param")

	b, err := s.registry.Find(name)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	h, ok := b.Parameter(param)
	if !ok {
		writeNotFound(w, "parameter not found: "+param)
		return
	}

	latestOnly := r.URL.Query().Get("latest") == "true"
	if !latestOnly && h.Gettable() {
		if _, err := h.GetAny(r.Context()); err != nil {
			writeDomainError(w, err)
			return
		}
	}

	v, raw, ts, ok := h.LatestAny()
	resp := parameterResponse{
		Instrument: b.FullName(),
		Parameter:  h.Name(),
		Unit:       h.Unit(),
		Cached:     true,
	}
	if ok {
		resp.Value = v
		resp.Raw = raw
		resp.TS = &ts
		resp.Cached = latestOnly || !h.Gettable()
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleSetParameter applies a value to a settable parameter. The value is
// validated before any hardware I/O; rejected values return 422 without
// touching the instrument.
func (s *Server) handleSetParameter(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	param := chi.URLParam(r, "param")

	var req setParameterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	b, err := s.registry.Find(name)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	h, ok := b.Parameter(param)
	if !ok {
		writeNotFound(w, "parameter not found: "+param)
		return
	}

	if err := h.SetAny(r.Context(), req.Value); err != nil {
		writeDomainError(w, err)
		return
	}

	v, raw, ts, _ := h.LatestAny()
	writeJSON(w, http.StatusOK, parameterResponse{
		Instrument: b.FullName(),
		Parameter:  h.Name(),
		Value:      v,
		Unit:       h.Unit(),
		Raw:        raw,
		TS:         &ts,
		Cached:     true,
	})
}

// errSnapshotsDisabled is returned on snapshot history routes when no
// store is configured.
var errSnapshotsDisabled = errors.New("snapshot store is not configured")
