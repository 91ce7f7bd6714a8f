package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Status classifies a lifecycle notification.
type Status string

// Possible notification statuses.
const (
	StatusStart  Status = "start"
	StatusUpdate Status = "update"
	StatusEnd    Status = "end"
	StatusError  Status = "error"
)

// StatusEvent is one lifecycle notification for a (request, data group)
// pair. It is purely communicative: no orchestration logic depends on its
// delivery succeeding. Field names follow the camelCase wire contract of the
// downstream status consumer.
type StatusEvent struct {
	// ID is a unique identifier for this event
	ID uuid.UUID `json:"id"`

	// RequestID identifies the processing request the event belongs to
	RequestID string `json:"requestId"`

	// DataTypeID identifies the data group within the request
	DataTypeID int `json:"datatypeId"`

	// Status is one of start, update, end or error
	Status Status `json:"status"`

	// Timestamp is when the event was created
	Timestamp time.Time `json:"timestamp"`

	// Message is a free-text human-readable description
	Message string `json:"message"`
}

// NewStatusEvent creates a StatusEvent with a fresh ID and the current
// timestamp.
func NewStatusEvent(requestID string, dataTypeID int, status Status, message string) StatusEvent {
	return StatusEvent{
		ID:         uuid.New(),
		RequestID:  requestID,
		DataTypeID: dataTypeID,
		Status:     status,
		Timestamp:  time.Now().UTC(),
		Message:    message,
	}
}

// Notifier defines an interface for sinks that can deliver status events.
// Implementations are expected to retry internally; callers treat a returned
// error as a delivery failure to log, never as a reason to abort.
type Notifier interface {
	// Publish delivers the given event to the sink.
	Publish(ctx context.Context, event StatusEvent) error

	// Close releases any resources held by the sink.
	Close() error
}

// NopNotifier discards every event. Used when notifications are suppressed.
type NopNotifier struct{}

// Publish implements Notifier by dropping the event.
func (NopNotifier) Publish(context.Context, StatusEvent) error { return nil }

// Close implements Notifier.
func (NopNotifier) Close() error { return nil }
