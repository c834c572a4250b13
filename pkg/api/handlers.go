package api

import (
	"encoding/json"
	"net/http"
)

// errorResponse is a standard error payload.
type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON encodes v as JSON and writes it to w.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "encoding response", http.StatusInternalServerError)
	}
}

// serverError logs err and writes a 500. The error detail is only
// exposed in development mode.
func (s *server) serverError(w http.ResponseWriter, msg string, err error) {
	s.log.WithError(err).Error(msg)

	if s.cfg.Development {
		writeJSON(w, http.StatusInternalServerError,
			errorResponse{msg + ": " + err.Error()})

		return
	}

	writeJSON(w, http.StatusInternalServerError, errorResponse{msg})
}

// handleHealth returns server health status.
func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
