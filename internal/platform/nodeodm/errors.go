package nodeodm

import (
	"errors"
	"fmt"
)

// NodeError represents a connectivity or protocol failure against the
// compute node. It is distinct from a job-level failure, which surfaces as a
// terminal job status instead.
type NodeError struct {
	// Op names the failed operation, e.g. "create job".
	Op string

	// StatusCode is the HTTP status, or zero for connection-level failures.
	StatusCode int

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *NodeError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("node %s failed (status %d): %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("node %s failed: %v", e.Op, e.Err)
}

// Unwrap returns the underlying cause.
func (e *NodeError) Unwrap() error { return e.Err }

// IsNodeError reports whether err is (or wraps) a NodeError.
func IsNodeError(err error) bool {
	var nodeErr *NodeError
	return errors.As(err, &nodeErr)
}
