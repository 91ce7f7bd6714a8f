package events

import (
	"context"
	"log/slog"
	"sync"
)

// MultiNotifier dispatches every event to a set of registered sinks. If any
// sink returns an error, the event is still delivered to all other sinks and
// the first error encountered is returned.
type MultiNotifier struct {
	sinks  []Notifier
	mu     sync.RWMutex
	logger *slog.Logger
}

// NewMultiNotifier creates a MultiNotifier wrapping the given sinks.
func NewMultiNotifier(logger *slog.Logger, sinks ...Notifier) *MultiNotifier {
	return &MultiNotifier{
		sinks:  sinks,
		logger: logger.With("component", "multi_notifier"),
	}
}

// Register adds another sink to receive events.
func (m *MultiNotifier) Register(sink Notifier) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sinks = append(m.sinks, sink)
	m.logger.Debug("registered notification sink", "sink_count", len(m.sinks))
}

// Publish delivers the event to every registered sink.
func (m *MultiNotifier) Publish(ctx context.Context, event StatusEvent) error {
	m.mu.RLock()
	sinks := make([]Notifier, len(m.sinks))
	copy(sinks, m.sinks)
	m.mu.RUnlock()

	var firstErr error
	for i, sink := range sinks {
		if err := sink.Publish(ctx, event); err != nil {
			m.logger.Warn("sink failed to deliver event",
				"error", err,
				"sink_index", i,
				"event_id", event.ID,
				"status", event.Status)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// Close closes every registered sink, returning the first error.
func (m *MultiNotifier) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var firstErr error
	for _, sink := range m.sinks {
		if err := sink.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// LogNotifier writes every event to the structured log. It is registered
// alongside the real sink so operators can follow request progress without
// a broker consumer.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With("component", "log_notifier")}
}

// Publish implements Notifier by logging the event.
func (n *LogNotifier) Publish(_ context.Context, event StatusEvent) error {
	n.logger.Info("status event",
		"request_id", event.RequestID,
		"datatype_id", event.DataTypeID,
		"status", event.Status,
		"message", event.Message)
	return nil
}

// Close implements Notifier.
func (n *LogNotifier) Close() error { return nil }
