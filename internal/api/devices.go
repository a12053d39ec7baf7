package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/openhearth/loragate/internal/device"
)

// handleListDevices returns the full device catalogue.
//
// Query parameters:
//   - type: filter by wire type string (e.g. "DIMMER_LIGHT")
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	devices := s.registry.List()

	if typeStr := r.URL.Query().Get("type"); typeStr != "" {
		filtered := make([]device.Record, 0, len(devices))
		for _, d := range devices {
			if string(d.Type) == typeStr {
				filtered = append(filtered, d)
			}
		}
		devices = filtered
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"devices": devices,
		"count":   len(devices),
	})
}

// handleGetDevice returns a single device by ID.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	rec, err := s.registry.Get(id)
	if err != nil {
		if errors.Is(err, device.ErrNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		writeInternalError(w, "failed to get device")
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

// handleGetDeviceByName returns a single device by its human-readable name.
// The lookup is case-insensitive.
func (s *Server) handleGetDeviceByName(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	rec, err := s.registry.FindByName(name)
	if err != nil {
		if errors.Is(err, device.ErrNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		writeInternalError(w, "failed to find device")
		return
	}

	writeJSON(w, http.StatusOK, rec)
}
