package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/aeromap/odm-orchestrator/internal/domain"
	"github.com/aeromap/odm-orchestrator/internal/platform/nodeodm"
)

// List returns the node's jobs, optionally filtered by the request id
// encoded in the job name and by a status set. It never touches the task
// registry.
func (o *Orchestrator) List(ctx context.Context, requestID string, statuses []domain.JobStatus) ([]nodeodm.JobInfo, error) {
	jobs, err := o.client.ListJobs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	return filterJobs(jobs, requestID, statuses), nil
}

// RemoveJobs removes the node's jobs matching the same filters as List.
// In dry-run mode the intended removals are logged and nothing is removed.
// Returns the ids of jobs actually removed.
func (o *Orchestrator) RemoveJobs(ctx context.Context, requestID string, statuses []domain.JobStatus, dryRun bool) ([]string, error) {
	jobs, err := o.List(ctx, requestID, statuses)
	if err != nil {
		return nil, err
	}

	removed := make([]string, 0, len(jobs))
	for _, job := range jobs {
		if dryRun {
			o.logger.Info("would remove job",
				"job_id", job.ID,
				"name", job.Name,
				"status", string(job.Status))
			continue
		}
		if err := o.client.Remove(ctx, job.ID); err != nil {
			o.logger.Warn("failed to remove job",
				"job_id", job.ID,
				"name", job.Name,
				"error", err)
			continue
		}
		o.logger.Info("job removed", "job_id", job.ID, "name", job.Name)
		removed = append(removed, job.ID)
	}
	return removed, nil
}

// filterJobs applies the optional request-id and status filters.
func filterJobs(jobs []nodeodm.JobInfo, requestID string, statuses []domain.JobStatus) []nodeodm.JobInfo {
	statusSet := make(map[domain.JobStatus]bool, len(statuses))
	for _, status := range statuses {
		statusSet[status] = true
	}

	filtered := make([]nodeodm.JobInfo, 0, len(jobs))
	for _, job := range jobs {
		if requestID != "" && jobRequestID(job.Name) != requestID {
			continue
		}
		if len(statusSet) > 0 && !statusSet[job.Status] {
			continue
		}
		filtered = append(filtered, job)
	}
	return filtered
}

// jobRequestID extracts the request id from a job name of the form
// {request_id}_{data_group_name}. Group names contain no underscore, so the
// last one separates the two parts even for request ids that do.
func jobRequestID(name string) string {
	if idx := strings.LastIndex(name, "_"); idx > 0 {
		return name[:idx]
	}
	return name
}
