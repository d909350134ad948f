package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/patrickwarner/floodwatch/internal/middleware"
)

// CreateReport handles POST /api/reports.
func (s *Server) CreateReport(w http.ResponseWriter, r *http.Request) {
	in, err := s.decodeInput(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	caller, _ := middleware.IdentityFromContext(r.Context())

	report, err := s.Reports.Create(r.Context(), caller, in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, report)
}

// ListReports handles GET /api/reports.
func (s *Server) ListReports(w http.ResponseWriter, r *http.Request) {
	reports, err := s.Reports.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reports)
}

// CountUsers handles GET /api/reports/total-user.
func (s *Server) CountUsers(w http.ResponseWriter, r *http.Request) {
	n, err := s.Reports.CountUsers(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

// UpdateReport handles PUT /api/reports/{id}.
func (s *Server) UpdateReport(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	in, err := s.decodeInput(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	caller, _ := middleware.IdentityFromContext(r.Context())

	report, err := s.Reports.Update(r.Context(), caller, id, in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// DeleteReport handles DELETE /api/reports/{id}.
func (s *Server) DeleteReport(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	caller, _ := middleware.IdentityFromContext(r.Context())

	if err := s.Reports.Delete(r.Context(), caller, id); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Report deleted successfully"})
}
