package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/switchboard-core/switchboard/internal/engine"
)

// handleListDevices returns all known devices with their effective errors.
func (s *Server) handleListDevices(w http.ResponseWriter, _ *http.Request) {
	snap := s.engine.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"devices": snap.Devices,
		"count":   len(snap.Devices),
	})
}

// handleGetDevice returns a single device by name.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	status, err := s.engine.DeviceStatus(name)
	if err != nil {
		if errors.Is(err, engine.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		writeInternalError(w, "failed to get device")
		return
	}

	writeJSON(w, http.StatusOK, status)
}

// handleSetDeviceValue issues a remote write to the device's host.
//
// A 202 response means the write was delivered; whether the host accepted
// the value shows up in the device's state on the next polling cycle.
func (s *Server) handleSetDeviceValue(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var req struct {
		Value string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if err := s.engine.SetDeviceValue(r.Context(), name, req.Value); err != nil {
		if errors.Is(err, engine.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		writeBadGateway(w, err.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"name":  name,
		"value": req.Value,
	})
}
