package nodeodm

import (
	"github.com/aeromap/odm-orchestrator/internal/domain"
)

// Node status codes as reported in task info responses.
const (
	statusCodeQueued    = 10
	statusCodeRunning   = 20
	statusCodeFailed    = 30
	statusCodeCompleted = 40
	statusCodeCanceled  = 50
)

// statusFromCode maps a node status code onto the domain status enum.
// Unknown codes map to QUEUED, the node's own default for fresh tasks.
func statusFromCode(code int) domain.JobStatus {
	switch code {
	case statusCodeQueued:
		return domain.JobStatusQueued
	case statusCodeRunning:
		return domain.JobStatusRunning
	case statusCodeFailed:
		return domain.JobStatusFailed
	case statusCodeCompleted:
		return domain.JobStatusCompleted
	case statusCodeCanceled:
		return domain.JobStatusCanceled
	}
	return domain.JobStatusQueued
}

// NodeInfo describes the compute node itself.
type NodeInfo struct {
	Version          string `json:"version"`
	Engine           string `json:"engine"`
	TaskQueueCount   int    `json:"taskQueueCount"`
	MaxParallelTasks int    `json:"maxParallelTasks"`
}

// JobInfo is the client's view of one remote job.
type JobInfo struct {
	ID             string
	Name           string
	Status         domain.JobStatus
	Progress       float64
	ProcessingTime int
	ImagesCount    int
	LastError      string
}

// taskInfoResponse mirrors the node's task info JSON.
type taskInfoResponse struct {
	UUID           string  `json:"uuid"`
	Name           string  `json:"name"`
	Progress       float64 `json:"progress"`
	ProcessingTime int     `json:"processingTime"`
	ImagesCount    int     `json:"imagesCount"`
	Status         struct {
		Code     int    `json:"code"`
		ErrorMsg string `json:"errorMessage"`
	} `json:"status"`
}

func (r taskInfoResponse) toJobInfo() JobInfo {
	return JobInfo{
		ID:             r.UUID,
		Name:           r.Name,
		Status:         statusFromCode(r.Status.Code),
		Progress:       r.Progress,
		ProcessingTime: r.ProcessingTime,
		ImagesCount:    r.ImagesCount,
		LastError:      r.Status.ErrorMsg,
	}
}
