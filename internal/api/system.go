package api

import (
	"net/http"
)

// handleStatus returns a summary of the hub's state.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	snap := s.engine.Snapshot()

	status := map[string]any{
		"running": snap.Running,
		"hosts":   len(snap.Hosts),
		"devices": len(snap.Devices),
		"modules": len(snap.Modules),
		"version": s.version,
	}
	if s.adminEmail != "" {
		status["admin_email"] = s.adminEmail
	}

	writeJSON(w, http.StatusOK, status)
}

// handleEngineStart resumes polling and module execution.
func (s *Server) handleEngineStart(w http.ResponseWriter, _ *http.Request) {
	s.engine.Start()
	writeJSON(w, http.StatusOK, map[string]any{
		"running": true,
	})
}

// handleEngineStop pauses polling and module execution.
//
// The poll loop keeps ticking while stopped; it just skips the refresh
// and module work until started again.
func (s *Server) handleEngineStop(w http.ResponseWriter, _ *http.Request) {
	s.engine.Stop()
	writeJSON(w, http.StatusOK, map[string]any{
		"running": false,
	})
}
