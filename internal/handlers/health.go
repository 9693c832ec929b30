// internal/handlers/health.go
package handlers

import (
	"context"
	"net/http"
	"time"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "ok", "tables": s.Tables.Len()})
}

// handleHealthDB pings the database. Without one configured the service runs in memory and reports so.
func (s *Server) handleHealthDB(w http.ResponseWriter, r *http.Request) {
	if s.DBPing == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.DBPing(ctx); err != nil {
		s.log.WithError(err).Warn("database health check failed")
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
