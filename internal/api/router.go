package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/patrickwarner/floodwatch/internal/middleware"
)

// NewRouter builds the HTTP handler: routes, auth guard on mutations, request
// metrics, trace-aware logging, CORS and server spans.
func NewRouter(s *Server) http.Handler {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(NotFoundHandler)
	r.MethodNotAllowedHandler = http.HandlerFunc(MethodNotAllowedHandler)
	r.Use(middleware.WithTraceLogger(s.Logger))

	guard := middleware.RequireIdentity(s.Tokens, s.Logger, s.Metrics)

	api := r.PathPrefix("/api").Subrouter()
	api.Handle("/reports", s.instrument("create_report", guard(http.HandlerFunc(s.CreateReport)))).Methods(http.MethodPost)
	api.Handle("/reports", s.instrument("list_reports", http.HandlerFunc(s.ListReports))).Methods(http.MethodGet)
	api.Handle("/reports/total-user", s.instrument("count_users", http.HandlerFunc(s.CountUsers))).Methods(http.MethodGet)
	api.Handle("/reports/{id}", s.instrument("update_report", guard(http.HandlerFunc(s.UpdateReport)))).Methods(http.MethodPut)
	api.Handle("/reports/{id}", s.instrument("delete_report", guard(http.HandlerFunc(s.DeleteReport)))).Methods(http.MethodDelete)

	r.Handle("/health", s.instrument("health", http.HandlerFunc(s.HealthHandler))).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler())

	return otelhttp.NewHandler(middleware.CORS(s.CORSOrigin)(r), "floodwatch.http")
}

// statusRecorder captures the response status for metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.status = code
	rec.ResponseWriter.WriteHeader(code)
}

func (s *Server) instrument(endpoint string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.Metrics.IncrementRequests(endpoint, r.Method, strconv.Itoa(rec.status))
		s.Metrics.RecordRequestLatency(endpoint, r.Method, time.Since(start))
	})
}
