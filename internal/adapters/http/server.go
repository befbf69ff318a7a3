package httpadapter

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ferret/internal/logger"
	"ferret/internal/report"
	jobsvc "ferret/internal/services/jobs"
	"ferret/internal/validation"
)

// Server exposes the scan service over HTTP. Ownership checks belong to the
// deployment's auth proxy, not here; the owner header is trusted as given.
type Server struct {
	jobs    *jobsvc.Service
	reports *report.Synthesizer
	log     *logger.Logger
}

func New(jobs *jobsvc.Service, reports *report.Synthesizer, log *logger.Logger) *Server {
	return &Server{jobs: jobs, reports: reports, log: log}
}

func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/healthz", s.handleHealthz)
	r.Post("/scans", s.handleStartScan)
	r.Get("/scans/{id}", s.handleScanStatus)
	r.Post("/scans/{id}/cancel", s.handleCancelScan)
	r.Get("/scans/{id}/report", s.handleScanReport)
	r.Get("/jobs", s.handleListJobs)
	return r
}

type startScanRequest struct {
	Target string `json:"target"`
}

type startScanResponse struct {
	ScanID string `json:"scan_id"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStartScan(w http.ResponseWriter, r *http.Request) {
	var req startScanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	id, err := s.jobs.Start(r.Context(), req.Target, ownerID(r))
	if err != nil {
		var verr *validation.Error
		if errors.As(err, &verr) {
			s.writeError(w, http.StatusBadRequest, verr.Error())
			return
		}
		s.log.Errorw("start scan failed", "error", err)
		s.writeError(w, http.StatusServiceUnavailable, "could not create scan job")
		return
	}
	s.writeJSON(w, http.StatusAccepted, startScanResponse{ScanID: id})
}

func (s *Server) handleScanStatus(w http.ResponseWriter, r *http.Request) {
	job, err := s.jobs.Status(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, jobsvc.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "scan not found")
			return
		}
		s.log.Errorw("status lookup failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "status lookup failed")
		return
	}
	s.writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleCancelScan(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !s.jobs.Cancel(id) {
		s.writeError(w, http.StatusNotFound, "no running scan with that id")
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]string{"scan_id": id, "status": "cancelling"})
}

func (s *Server) handleScanReport(w http.ResponseWriter, r *http.Request) {
	rep, err := s.reports.Build(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, report.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "scan not found")
			return
		}
		s.log.Errorw("report build failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "report build failed")
		return
	}
	if r.URL.Query().Get("format") == "html" {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := report.RenderHTML(w, rep); err != nil {
			s.log.Errorw("report render failed", "error", err)
		}
		return
	}
	s.writeJSON(w, http.StatusOK, rep)
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.jobs.List(r.Context(), ownerID(r))
	if err != nil {
		s.log.Errorw("job list failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "job list failed")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"jobs":   jobs,
		"active": s.jobs.Active(),
	})
}

func ownerID(r *http.Request) string {
	return r.Header.Get("X-Owner-ID")
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warnw("response encode failed", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, code int, msg string) {
	s.writeJSON(w, code, map[string]string{"error": msg})
}
