package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/switchboard-core/switchboard/internal/engine"
)

// handleListModules returns all registered modules.
func (s *Server) handleListModules(w http.ResponseWriter, _ *http.Request) {
	snap := s.engine.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"modules": snap.Modules,
		"count":   len(snap.Modules),
	})
}

// handleEnableModule enables the named module.
func (s *Server) handleEnableModule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.engine.EnableModule(r.Context(), id); err != nil {
		if errors.Is(err, engine.ErrModuleNotFound) {
			writeNotFound(w, "module not found")
			return
		}
		writeInternalError(w, "failed to enable module")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"id":      id,
		"enabled": true,
	})
}

// handleDisableModule disables the named module.
func (s *Server) handleDisableModule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.engine.DisableModule(r.Context(), id); err != nil {
		if errors.Is(err, engine.ErrModuleNotFound) {
			writeNotFound(w, "module not found")
			return
		}
		writeInternalError(w, "failed to disable module")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"id":      id,
		"enabled": false,
	})
}
