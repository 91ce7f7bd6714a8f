package orchestrator

import (
	"sync"

	"github.com/aeromap/odm-orchestrator/internal/domain"
)

// Registry is the in-memory mapping from remote job identifier to local
// tracking metadata for the current orchestrator instance. It is discarded
// at process end; a restarted orchestrator rediscovers jobs through the
// node-side listing.
type Registry struct {
	mu       sync.RWMutex
	trackers map[string]*domain.TaskTracker
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{trackers: make(map[string]*domain.TaskTracker)}
}

// Register records a tracker under its remote job id. Re-registering the
// same job id replaces the previous tracker.
func (r *Registry) Register(tracker *domain.TaskTracker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.trackers[tracker.JobID] = tracker
}

// Get returns the tracker for the given remote job id, or nil if the job is
// not tracked.
func (r *Registry) Get(jobID string) *domain.TaskTracker {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.trackers[jobID]
}

// All returns the currently tracked jobs.
func (r *Registry) All() []*domain.TaskTracker {
	r.mu.RLock()
	defer r.mu.RUnlock()
	trackers := make([]*domain.TaskTracker, 0, len(r.trackers))
	for _, tracker := range r.trackers {
		trackers = append(trackers, tracker)
	}
	return trackers
}

// Len returns the number of tracked jobs.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.trackers)
}
