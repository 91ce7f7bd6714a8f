package domain

import (
	"fmt"
	"time"
)

// JobStatus represents the state of a job on the remote compute node.
type JobStatus string

// Possible job status values as reported by the node.
const (
	JobStatusQueued    JobStatus = "QUEUED"
	JobStatusRunning   JobStatus = "RUNNING"
	JobStatusCompleted JobStatus = "COMPLETED"
	JobStatusFailed    JobStatus = "FAILED"
	JobStatusCanceled  JobStatus = "CANCELED"
)

// Terminal reports whether the status is final. Once a terminal status has
// been observed the orchestrator stops polling the job.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusCanceled:
		return true
	case JobStatusQueued, JobStatusRunning:
		return false
	}
	return false
}

// ParseJobStatus converts a status string (case-insensitive on the caller's
// side; the node reports upper-case) into a JobStatus.
// Returns an error for values outside the closed set.
func ParseJobStatus(value string) (JobStatus, error) {
	switch JobStatus(value) {
	case JobStatusQueued, JobStatusRunning, JobStatusCompleted, JobStatusFailed, JobStatusCanceled:
		return JobStatus(value), nil
	}
	return "", fmt.Errorf("unknown job status %q", value)
}

// TaskTracker correlates a remote job with the request context it belongs to.
// Trackers live only for the duration of one orchestrator run; a restarted
// orchestrator rediscovers jobs through the node-side listing, never through
// persisted trackers.
type TaskTracker struct {
	// JobID is the opaque identifier assigned by the compute node.
	JobID string

	// RequestID identifies the processing request this job belongs to.
	RequestID string

	// DataType identifies which data group of the request the job processes.
	DataType DataType

	// CreatedAt is when this tracker was registered, not when the remote
	// job was created on the node.
	CreatedAt time.Time

	// OutputPath is set once the job's assets have been materialized
	// locally; empty until then.
	OutputPath string
}

// NewTaskTracker creates a tracker for the given remote job.
func NewTaskTracker(jobID, requestID string, dataType DataType) *TaskTracker {
	return &TaskTracker{
		JobID:     jobID,
		RequestID: requestID,
		DataType:  dataType,
		CreatedAt: time.Now().UTC(),
	}
}
