package api

import (
	"net/http"
)

// HealthHandler responds with a simple status check.
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	s.instrument("health", w, r, func(w http.ResponseWriter) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
}
