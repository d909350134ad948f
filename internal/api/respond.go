package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/patrickwarner/floodwatch/internal/middleware"
	"github.com/patrickwarner/floodwatch/internal/models"
	"github.com/patrickwarner/floodwatch/internal/reports"
	"github.com/patrickwarner/floodwatch/internal/storage"
)

var (
	errBadBody      = errors.New("invalid request body")
	errBodyTooLarge = errors.New("request body too large")
)

type errorResponse struct {
	Error   string         `json:"error"`
	Details map[string]any `json:"details,omitempty"`
	Debug   string         `json:"debug,omitempty"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// helper function to write JSON response
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps workflow errors to status codes and response bodies.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := classify(err)
	logger := middleware.LoggerFromRequest(r, s.Logger)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", zap.Int("status", status), zap.Error(err))
	} else {
		logger.Debug("request rejected", zap.Int("status", status), zap.Error(err))
	}
	if s.Development {
		body.Debug = err.Error()
	}
	writeJSON(w, status, body)
}

func classify(err error) (int, errorResponse) {
	var verr *reports.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, errorResponse{Error: verr.Message, Details: verr.Details}
	case errors.Is(err, errBodyTooLarge):
		return http.StatusRequestEntityTooLarge, errorResponse{Error: "Request body too large"}
	case errors.Is(err, errBadBody):
		return http.StatusBadRequest, errorResponse{Error: "Invalid request body"}
	case errors.Is(err, reports.ErrUnauthorized):
		return http.StatusUnauthorized, errorResponse{Error: "Unauthorized: Invalid token"}
	case errors.Is(err, reports.ErrForbidden):
		return http.StatusForbidden, errorResponse{Error: "Forbidden: Not your report"}
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound, errorResponse{Error: "Report not found"}
	case errors.Is(err, storage.ErrUploadFailed):
		return http.StatusBadGateway, errorResponse{Error: "Failed to upload image"}
	default:
		return http.StatusInternalServerError, errorResponse{Error: "Internal server error"}
	}
}

// NotFoundHandler answers requests that match no route.
func NotFoundHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, messageResponse{Message: "Endpoint not found"})
}

// MethodNotAllowedHandler answers requests whose path exists under another method.
func MethodNotAllowedHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusMethodNotAllowed, messageResponse{Message: "Method not allowed"})
}
