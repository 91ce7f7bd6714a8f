package orchestrator

import (
	"log/slog"
	"sync"

	"go.uber.org/atomic"
)

// ShutdownCoordinator carries the process-wide cancellation signal. The flag
// is written once by the signal path and read by every phase of the
// orchestrator at its defined suspension points; a closed channel lets the
// poll-interval sleep race the signal.
type ShutdownCoordinator struct {
	requested *atomic.Bool
	done      chan struct{}
	once      sync.Once
	logger    *slog.Logger
}

// NewShutdownCoordinator creates a coordinator with no shutdown pending.
func NewShutdownCoordinator(logger *slog.Logger) *ShutdownCoordinator {
	return &ShutdownCoordinator{
		requested: atomic.NewBool(false),
		done:      make(chan struct{}),
		logger:    logger.With("component", "shutdown_coordinator"),
	}
}

// Request signals shutdown. The first call sets the flag and returns false;
// any further call returns true, telling the caller the operator wants an
// immediate forced exit.
func (s *ShutdownCoordinator) Request() (force bool) {
	if !s.requested.CompareAndSwap(false, true) {
		s.logger.Warn("force shutdown requested")
		return true
	}
	s.once.Do(func() { close(s.done) })
	s.logger.Info("graceful shutdown requested")
	return false
}

// Requested reports whether shutdown has been signaled.
func (s *ShutdownCoordinator) Requested() bool {
	return s.requested.Load()
}

// Done returns a channel closed once shutdown has been signaled.
func (s *ShutdownCoordinator) Done() <-chan struct{} {
	return s.done
}
