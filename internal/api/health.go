package api

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/patrickwarner/floodwatch/internal/middleware"
)

// HealthHandler responds with a simple status check. When a database is
// attached it must answer a ping within two seconds.
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if s.DB != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.DB.Ping(ctx); err != nil {
			middleware.LoggerFromRequest(r, s.Logger).Warn("health check failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
