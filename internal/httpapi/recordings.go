package httpapi

import (
	"net/http"
	"strconv"
	"strings"
)

const defaultRecentLimit = 20

func (s *Server) handleRecentRecordings(w http.ResponseWriter, r *http.Request) {
	if s.recordings == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "recording store not configured")
		return
	}

	connID := strings.TrimSpace(r.URL.Query().Get("connection_id"))
	if connID == "" {
		respondError(w, http.StatusBadRequest, "missing_connection_id", "query parameter connection_id is required")
		return
	}

	limit := defaultRecentLimit
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer")
			return
		}
		limit = n
	}

	turns, err := s.recordings.RecentTurns(r.Context(), connID, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"connection_id": connID,
		"turns":         turns,
	})
}
