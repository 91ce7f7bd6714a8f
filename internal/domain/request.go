package domain

import (
	"errors"
	"fmt"
	"time"
)

// Request-specific validation errors
var (
	// ErrRequestIDEmpty is returned when a request descriptor has no request id.
	ErrRequestIDEmpty = errors.New("request id cannot be empty")

	// ErrSituationIDEmpty is returned when a request descriptor has no situation id.
	ErrSituationIDEmpty = errors.New("situation id cannot be empty")

	// ErrNoDataTypes is returned when a request names no data types.
	ErrNoDataTypes = errors.New("request must name at least one data type")

	// ErrTimeWindowInvalid is returned when the acquisition window end
	// precedes its start.
	ErrTimeWindowInvalid = errors.New("acquisition window end precedes start")
)

// ProcessingRequest identifies one imagery-processing job request as parsed
// from its request descriptor. Immutable once loaded.
type ProcessingRequest struct {
	RequestID   string    `json:"requestId"`
	SituationID string    `json:"situationId"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	DataTypeIDs []int     `json:"datatypeIds"`

	// Path is the request directory the descriptor was loaded from. It is
	// filled in by the loader, not by the descriptor itself.
	Path string `json:"-"`
}

// Validate checks that the request descriptor is complete and coherent.
// Returns the first validation error encountered.
func (r *ProcessingRequest) Validate() error {
	if r.RequestID == "" {
		return ErrRequestIDEmpty
	}
	if r.SituationID == "" {
		return ErrSituationIDEmpty
	}
	if len(r.DataTypeIDs) == 0 {
		return ErrNoDataTypes
	}
	if r.End.Before(r.Start) {
		return ErrTimeWindowInvalid
	}
	for _, id := range r.DataTypeIDs {
		if _, err := ParseDataType(id); err != nil {
			return fmt.Errorf("invalid request: %w", err)
		}
	}
	return nil
}

// JobName derives the deterministic remote job name for one data group of
// this request. The name doubles as the deduplication key against jobs
// already present on the node, so it must be stable across submissions.
func (r *ProcessingRequest) JobName(dataType DataType) string {
	return fmt.Sprintf("%s_%s", r.RequestID, dataType.Name())
}

// DataGroup is one homogeneous subset of a request's imagery together with
// its filesystem location and resolved image list. Derived from a
// ProcessingRequest at submission time; never persisted.
type DataGroup struct {
	Type   DataType
	Path   string
	Images []string
}
