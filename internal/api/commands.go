package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/openhearth/loragate/internal/bridges/lora"
)

// commandRequest is the body for POST /devices/{id}/command.
type commandRequest struct {
	Command string `json:"command"`
	Value   string `json:"value,omitempty"`
}

// commandResponse reports the outcome of a dispatched command.
// Acknowledged is true for explicit acks and for radio silence within the
// grace period (soft success); an explicit non-ack line makes it false.
type commandResponse struct {
	DeviceID     string `json:"device_id"`
	Command      string `json:"command"`
	Value        string `json:"value,omitempty"`
	Acknowledged bool   `json:"acknowledged"`
}

// handleCommand dispatches an arbitrary command to a device.
//
// Status codes:
//   - 404 if the device has never been discovered
//   - 409 if the gateway is not connected to the radio
//   - 502 if the serial write itself failed
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	req.Command = strings.TrimSpace(req.Command)
	if req.Command == "" {
		writeBadRequest(w, "command is required")
		return
	}

	acked, err := s.gateway.SendCommand(r.Context(), id, req.Command, req.Value)
	if err != nil {
		s.writeCommandError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, commandResponse{
		DeviceID:     id,
		Command:      req.Command,
		Value:        req.Value,
		Acknowledged: acked,
	})
}

// handlePower is a convenience endpoint for the common on/off case.
//
// POST /devices/{id}/power/on
// POST /devices/{id}/power/off
func (s *Server) handlePower(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	action := chi.URLParam(r, "action")

	var command string
	switch strings.ToLower(action) {
	case "on":
		command = lora.CommandOn
	case "off":
		command = lora.CommandOff
	default:
		writeBadRequest(w, "action must be on or off")
		return
	}

	acked, err := s.gateway.SendCommand(r.Context(), id, command, "")
	if err != nil {
		s.writeCommandError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, commandResponse{
		DeviceID:     id,
		Command:      command,
		Acknowledged: acked,
	})
}

// handleDiscover runs a discovery cycle and returns the updated catalogue.
// The request blocks for the duration of the discovery window.
func (s *Server) handleDiscover(w http.ResponseWriter, r *http.Request) {
	found, err := s.gateway.Discover(r.Context())
	if err != nil {
		if errors.Is(err, lora.ErrInvalidState) {
			writeConflict(w, err.Error())
			return
		}
		if errors.Is(err, lora.ErrWriteFailed) {
			writeBadGateway(w, "discovery broadcast failed")
			return
		}
		writeInternalError(w, "discovery failed")
		return
	}

	devices := s.registry.List()
	writeJSON(w, http.StatusOK, map[string]any{
		"discovered": found,
		"devices":    devices,
		"count":      len(devices),
	})
}

// writeCommandError maps gateway errors onto HTTP status codes.
func (s *Server) writeCommandError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, lora.ErrUnknownDevice):
		writeNotFound(w, "device not found")
	case errors.Is(err, lora.ErrNotConnected):
		writeConflict(w, "gateway is not connected to the radio")
	case errors.Is(err, lora.ErrWriteFailed):
		writeBadGateway(w, "serial write failed")
	default:
		writeInternalError(w, "command dispatch failed")
	}
}
