package orchestrator

import "errors"

// Error definitions for the orchestrator package.
var (
	// ErrCancelled is returned internally when operator shutdown interrupts
	// a submission. It surfaces to callers as OutcomeCancelled, never as a
	// crash.
	ErrCancelled = errors.New("processing cancelled by operator")

	// ErrNoJobs is returned when a submission produced no jobs to monitor.
	ErrNoJobs = errors.New("no jobs were created")
)
