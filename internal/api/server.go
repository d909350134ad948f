// Package api exposes the report workflows over HTTP.
package api

import (
	"context"

	"go.uber.org/zap"

	"github.com/patrickwarner/floodwatch/internal/middleware"
	"github.com/patrickwarner/floodwatch/internal/observability"
	"github.com/patrickwarner/floodwatch/internal/reports"
)

// DefaultMaxUploadBytes caps multipart request bodies when no limit is set.
const DefaultMaxUploadBytes = 10 << 20

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server groups dependencies for HTTP handlers.
type Server struct {
	Logger         *zap.Logger
	Reports        *reports.Service
	Tokens         middleware.TokenVerifier
	Metrics        observability.MetricsRegistry
	DB             Pinger
	MaxUploadBytes int64
	CORSOrigin     string
	// Development adds the underlying error text to error responses.
	Development bool
}

// NewServer constructs a Server.
func NewServer(logger *zap.Logger, svc *reports.Service, tokens middleware.TokenVerifier, metrics observability.MetricsRegistry) *Server {
	return &Server{
		Logger:         logger,
		Reports:        svc,
		Tokens:         tokens,
		Metrics:        metrics,
		MaxUploadBytes: DefaultMaxUploadBytes,
	}
}
