package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/aeromap/odm-orchestrator/internal/domain"
	"github.com/aeromap/odm-orchestrator/internal/platform/nodeodm"
)

// JobAdmin is the subset of orchestrator operations the admin surface
// exposes.
type JobAdmin interface {
	CheckNode(ctx context.Context) error
	List(ctx context.Context, requestID string, statuses []domain.JobStatus) ([]nodeodm.JobInfo, error)
	RemoveJobs(ctx context.Context, requestID string, statuses []domain.JobStatus, dryRun bool) ([]string, error)
}

// JobSummary is the JSON representation of one remote job.
type JobSummary struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Status    string  `json:"status"`
	Progress  float64 `json:"progress"`
	LastError string  `json:"lastError,omitempty"`
}

// ErrorResponse defines the standard error response structure.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Handler serves the admin endpoints.
type Handler struct {
	admin  JobAdmin
	logger *slog.Logger
}

// NewHandler creates a Handler.
func NewHandler(admin JobAdmin, logger *slog.Logger) *Handler {
	return &Handler{
		admin:  admin,
		logger: logger.With("component", "admin_api"),
	}
}

// Router builds the chi router for the admin surface.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", h.Health)
	r.Get("/jobs", h.ListJobs)
	r.Delete("/jobs", h.RemoveJobs)
	return r
}

// Health reports whether the compute node is reachable.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.admin.CheckNode(r.Context()); err != nil {
		h.logger.Warn("health check failed", "error", err)
		respondWithError(w, http.StatusServiceUnavailable, "compute node unavailable")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ListJobs returns the node's jobs, filtered by the optional request_id and
// status query parameters.
func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	requestID, statuses, err := parseFilters(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	jobs, err := h.admin.List(r.Context(), requestID, statuses)
	if err != nil {
		h.logger.Error("failed to list jobs", "error", err)
		respondWithError(w, http.StatusBadGateway, "failed to list jobs")
		return
	}
	respondWithJSON(w, http.StatusOK, toSummaries(jobs))
}

// RemoveJobs removes matching jobs; with dry_run=true it only reports what
// would be removed.
func (h *Handler) RemoveJobs(w http.ResponseWriter, r *http.Request) {
	requestID, statuses, err := parseFilters(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	dryRun := r.URL.Query().Get("dry_run") == "true"
	removed, err := h.admin.RemoveJobs(r.Context(), requestID, statuses, dryRun)
	if err != nil {
		h.logger.Error("failed to remove jobs", "error", err)
		respondWithError(w, http.StatusBadGateway, "failed to remove jobs")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"dryRun":  dryRun,
		"removed": removed,
	})
}

// parseFilters extracts the shared request_id and status query filters.
func parseFilters(r *http.Request) (string, []domain.JobStatus, error) {
	requestID := r.URL.Query().Get("request_id")
	var statuses []domain.JobStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		for _, value := range strings.Split(raw, ",") {
			status, err := domain.ParseJobStatus(strings.ToUpper(strings.TrimSpace(value)))
			if err != nil {
				return "", nil, err
			}
			statuses = append(statuses, status)
		}
	}
	return requestID, statuses, nil
}

func toSummaries(jobs []nodeodm.JobInfo) []JobSummary {
	summaries := make([]JobSummary, 0, len(jobs))
	for _, job := range jobs {
		summaries = append(summaries, JobSummary{
			ID:        job.ID,
			Name:      job.Name,
			Status:    string(job.Status),
			Progress:  job.Progress,
			LastError: job.LastError,
		})
	}
	return summaries
}

// respondWithJSON writes a JSON response with the given status code and data.
func respondWithJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

// respondWithError writes a JSON error response with the given status code
// and message.
func respondWithError(w http.ResponseWriter, status int, message string) {
	respondWithJSON(w, status, ErrorResponse{Error: message})
}
