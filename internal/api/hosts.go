package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/switchboard-core/switchboard/internal/engine"
)

// handleListHosts returns all registered hosts with their connectivity state.
func (s *Server) handleListHosts(w http.ResponseWriter, _ *http.Request) {
	snap := s.engine.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"hosts": snap.Hosts,
		"count": len(snap.Hosts),
	})
}

// handleAddHost registers a host (or re-registers an existing one).
//
// The engine contacts the host before committing anything, so this call
// fails without side effects if the host is unreachable, lists a device
// twice, or claims a device owned by another host.
func (s *Server) handleAddHost(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.URL == "" {
		writeBadRequest(w, "url is required")
		return
	}

	if err := s.engine.UpsertHost(r.Context(), req.URL); err != nil {
		switch {
		case errors.Is(err, engine.ErrDuplicateDevice), errors.Is(err, engine.ErrDeviceConflict):
			writeConflict(w, err.Error())
		default:
			writeBadGateway(w, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"url": req.URL,
	})
}
