package api

import (
	"net/http"
	"strconv"

	"github.com/openhearth/loragate/internal/audit"
)

// handleAudit returns command log entries, most recent first.
//
// Query parameters:
//   - device_id: filter by device
//   - command: filter by command name (ON, BRIGHTNESS, ...)
//   - limit: page size (default 50, max 200)
//   - offset: pagination offset
func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	if s.audit == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "audit log not configured")
		return
	}

	filter := audit.Filter{
		DeviceID: r.URL.Query().Get("device_id"),
		Command:  r.URL.Query().Get("command"),
	}

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil {
			writeBadRequest(w, "limit must be an integer")
			return
		}
		filter.Limit = limit
	}

	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		offset, err := strconv.Atoi(offsetStr)
		if err != nil {
			writeBadRequest(w, "offset must be an integer")
			return
		}
		filter.Offset = offset
	}

	result, err := s.audit.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("audit query failed", "error", err)
		writeInternalError(w, "failed to query audit log")
		return
	}

	writeJSON(w, http.StatusOK, result)
}
