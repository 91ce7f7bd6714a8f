package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/aeromap/odm-orchestrator/internal/domain"
	"github.com/aeromap/odm-orchestrator/internal/events"
	"github.com/aeromap/odm-orchestrator/internal/platform/nodeodm"
)

// unwindTimeout bounds the best-effort cancellation pass after a failed or
// cancelled submission.
const unwindTimeout = time.Minute

// ComputeClient is the remote compute node contract the orchestrator
// depends on. Transport failures must be reported as *nodeodm.NodeError so
// the poll loop can tell them apart from business outcomes.
type ComputeClient interface {
	Info(ctx context.Context) (*nodeodm.NodeInfo, error)
	ListJobs(ctx context.Context) ([]nodeodm.JobInfo, error)
	CreateJob(ctx context.Context, images []string, options map[string]string, name string) (*nodeodm.JobInfo, error)
	JobInfo(ctx context.Context, id string) (*nodeodm.JobInfo, error)
	Cancel(ctx context.Context, id string) error
	Remove(ctx context.Context, id string) error
	DownloadAssets(ctx context.Context, id, destDir string) (string, error)
}

// ResultProcessor receives the output of a completed job. A failure here is
// reported per job and never retried by the orchestrator.
type ResultProcessor interface {
	ProcessResult(ctx context.Context, req *domain.ProcessingRequest, tracker *domain.TaskTracker, resultDir string) error
}

// Config holds the orchestrator's tunables.
type Config struct {
	// PollInterval is the sleep between poll rounds.
	PollInterval time.Duration

	// PollRetries bounds the total number of transport failures tolerated
	// across all jobs of one submission.
	PollRetries int

	// CancelOnShutdown controls whether the unwind path cancels
	// non-terminal jobs on the node or leaves them running.
	CancelOnShutdown bool

	// JobOptions are the processing options sent with every job creation.
	JobOptions map[string]string
}

// Orchestrator turns one processing request into remote jobs and drives
// them to completion. One instance handles one request at a time.
type Orchestrator struct {
	client    ComputeClient
	notifier  events.Notifier
	processor ResultProcessor
	cfg       Config
	registry  *Registry
	shutdown  *ShutdownCoordinator
	clock     clock.Clock
	logger    *slog.Logger
}

// New creates an Orchestrator.
func New(client ComputeClient, notifier events.Notifier, processor ResultProcessor, cfg Config, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		client:    client,
		notifier:  notifier,
		processor: processor,
		cfg:       cfg,
		registry:  NewRegistry(),
		shutdown:  NewShutdownCoordinator(logger),
		clock:     clock.New(),
		logger:    logger.With("component", "orchestrator"),
	}
}

// RequestShutdown signals cooperative cancellation. Idempotent; returns true
// when shutdown was already pending, telling the caller to force-terminate.
func (o *Orchestrator) RequestShutdown() (force bool) {
	return o.shutdown.Request()
}

// Registry exposes the task registry, mainly for inspection in tests and
// the admin surface.
func (o *Orchestrator) Registry() *Registry {
	return o.registry
}

// CheckNode probes the compute node and fails fast when it is unreachable.
func (o *Orchestrator) CheckNode(ctx context.Context) error {
	info, err := o.client.Info(ctx)
	if err != nil {
		return fmt.Errorf("compute node is not available: %w", err)
	}
	o.logger.Info("compute node available",
		"version", info.Version,
		"engine", info.Engine,
		"queue_count", info.TaskQueueCount)
	return nil
}

// SubmitAndWait runs one submission end to end: dedup and creation of a job
// per data group, polling to completion, hand-off of completed outputs and,
// on failure or operator cancellation, the best-effort unwind of every
// non-terminal job this submission touched.
func (o *Orchestrator) SubmitAndWait(ctx context.Context, req *domain.ProcessingRequest, groups []domain.DataGroup) (*Result, error) {
	if err := o.CheckNode(ctx); err != nil {
		return nil, err
	}
	o.logger.Info("processing request",
		"request_id", req.RequestID,
		"situation_id", req.SituationID,
		"group_count", len(groups))

	trackers, err := o.createJobs(ctx, req, groups)
	if err != nil {
		o.unwind(ctx, trackers)
		if errors.Is(err, ErrCancelled) {
			return &Result{Outcome: OutcomeCancelled, Pending: len(trackers)}, nil
		}
		return nil, err
	}
	if len(trackers) == 0 {
		return nil, ErrNoJobs
	}

	observed, err := o.monitor(ctx, req, trackers)
	if err != nil {
		o.unwind(ctx, trackers)
		if errors.Is(err, ErrCancelled) {
			return &Result{Outcome: OutcomeCancelled, Pending: countPending(trackers, observed)}, nil
		}
		return nil, err
	}

	completed, failed, err := o.handOff(ctx, req, trackers, observed)
	result := &Result{
		Completed: completed,
		Failed:    failed,
		Pending:   countPending(trackers, observed),
	}
	switch {
	case errors.Is(err, ErrCancelled):
		result.Outcome = OutcomeCancelled
	case result.Pending > 0:
		result.Outcome = OutcomeIncomplete
	case failed > 0:
		result.Outcome = OutcomeFailed
	default:
		result.Outcome = OutcomeCompleted
	}
	o.logger.Info("submission finished",
		"request_id", req.RequestID,
		"outcome", result.Outcome.String(),
		"completed", result.Completed,
		"failed", result.Failed,
		"pending", result.Pending)
	return result, nil
}

// createJobs deduplicates the request's data groups against jobs already on
// the node and creates the missing ones. Exactly one start event is emitted
// per newly created job, none for reused ones. The returned trackers cover
// every job touched so the caller can unwind them on failure.
func (o *Orchestrator) createJobs(ctx context.Context, req *domain.ProcessingRequest, groups []domain.DataGroup) ([]*domain.TaskTracker, error) {
	existing, err := o.client.ListJobs(ctx)
	if err != nil {
		// Partial dedup is unsafe: without the full listing a resubmission
		// could double-create work already running on the node.
		return nil, fmt.Errorf("failed to list existing jobs: %w", err)
	}
	index := make(map[string]nodeodm.JobInfo, len(existing))
	for _, job := range existing {
		index[job.Name] = job
	}

	trackers := make([]*domain.TaskTracker, 0, len(groups))
	for _, group := range groups {
		if o.shutdown.Requested() {
			o.logger.Info("shutdown requested during job creation")
			return trackers, ErrCancelled
		}

		name := req.JobName(group.Type)
		if job, ok := index[name]; ok {
			o.logger.Info("job already exists on node, tracking",
				"name", name,
				"job_id", job.ID,
				"status", string(job.Status))
			tracker := domain.NewTaskTracker(job.ID, req.RequestID, group.Type)
			o.registry.Register(tracker)
			trackers = append(trackers, tracker)
			// The start notification went out when the job was first
			// created; reused jobs must not repeat it.
			continue
		}

		o.logger.Info("creating job",
			"name", name,
			"datatype", group.Type.Name(),
			"image_count", len(group.Images))
		job, err := o.client.CreateJob(ctx, group.Images, o.cfg.JobOptions, name)
		if err != nil {
			// One missing job makes the whole set unmonitorable; abort the
			// request and let the caller unwind the siblings.
			return trackers, fmt.Errorf("failed to create job for data type %s: %w", group.Type.Name(), err)
		}
		tracker := domain.NewTaskTracker(job.ID, req.RequestID, group.Type)
		o.registry.Register(tracker)
		trackers = append(trackers, tracker)
		o.notify(ctx, events.NewStatusEvent(req.RequestID, int(group.Type), events.StatusStart, "processing job started"))
	}
	return trackers, nil
}

// monitor polls every tracked job round-robin until all are terminal or the
// shared retry budget is exhausted. Returns the last observed info per job.
func (o *Orchestrator) monitor(ctx context.Context, req *domain.ProcessingRequest, trackers []*domain.TaskTracker) (map[string]nodeodm.JobInfo, error) {
	o.logger.Info("monitoring jobs", "job_count", len(trackers))
	observed := make(map[string]nodeodm.JobInfo, len(trackers))
	terminal := make(map[string]bool, len(trackers))
	retries := 0

	for len(terminal) < len(trackers) && retries < o.cfg.PollRetries {
		if o.shutdown.Requested() {
			o.logger.Info("shutdown requested during monitoring")
			return observed, ErrCancelled
		}

		for _, tracker := range trackers {
			if terminal[tracker.JobID] {
				// Terminal statuses are never re-queried.
				continue
			}
			if o.shutdown.Requested() {
				o.logger.Info("shutdown requested during monitoring")
				return observed, ErrCancelled
			}

			info, err := o.client.JobInfo(ctx, tracker.JobID)
			if err != nil {
				retries++
				o.logger.Warn("failed to fetch job status",
					"job_id", tracker.JobID,
					"retries", retries,
					"error", err)
				continue
			}
			observed[tracker.JobID] = *info
			o.logger.Info("job status",
				"job_id", tracker.JobID,
				"datatype", tracker.DataType.Name(),
				"status", string(info.Status),
				"progress", info.Progress)

			switch info.Status {
			case domain.JobStatusRunning:
				o.notify(ctx, events.NewStatusEvent(req.RequestID, int(tracker.DataType), events.StatusUpdate,
					fmt.Sprintf("processing in progress - %.0f%% complete", info.Progress)))
			case domain.JobStatusCompleted:
				o.logger.Info("job completed",
					"job_id", tracker.JobID,
					"processing_time_ms", info.ProcessingTime)
				terminal[tracker.JobID] = true
			case domain.JobStatusFailed:
				o.logger.Error("job failed",
					"job_id", tracker.JobID,
					"error", info.LastError)
				terminal[tracker.JobID] = true
			case domain.JobStatusCanceled:
				o.notify(ctx, events.NewStatusEvent(req.RequestID, int(tracker.DataType), events.StatusEnd,
					"job cancelled on compute node"))
				terminal[tracker.JobID] = true
			case domain.JobStatusQueued:
				// Liveness signal while the job waits in the node queue.
				o.notify(ctx, events.NewStatusEvent(req.RequestID, int(tracker.DataType), events.StatusUpdate,
					"job queued on compute node"))
			}
		}

		if len(terminal) == len(trackers) || retries >= o.cfg.PollRetries {
			break
		}

		select {
		case <-o.clock.After(o.cfg.PollInterval):
		case <-o.shutdown.Done():
			o.logger.Info("shutdown requested during poll sleep")
			return observed, ErrCancelled
		case <-ctx.Done():
			return observed, ctx.Err()
		}
	}

	if retries >= o.cfg.PollRetries {
		// Fail-open exit: outstanding jobs are left as-is and surfaced to
		// the caller as an incomplete outcome.
		o.logger.Warn("poll retry budget exhausted",
			"retries", retries,
			"terminal", len(terminal),
			"total", len(trackers))
	}
	return observed, nil
}

// handOff processes every job observed in a terminal state: completed jobs
// have their assets materialized and submitted downstream, failed jobs are
// reported. Hand-offs already started are allowed to finish even under
// shutdown; only new ones are skipped.
func (o *Orchestrator) handOff(ctx context.Context, req *domain.ProcessingRequest, trackers []*domain.TaskTracker, observed map[string]nodeodm.JobInfo) (completed, failed int, err error) {
	for _, tracker := range trackers {
		info, ok := observed[tracker.JobID]
		if !ok {
			continue
		}

		switch info.Status {
		case domain.JobStatusCompleted:
			if o.shutdown.Requested() {
				o.logger.Info("shutdown requested before result hand-off", "job_id", tracker.JobID)
				return completed, failed, ErrCancelled
			}
			if err := o.processCompleted(ctx, req, tracker); err != nil {
				failed++
				o.logger.Error("result hand-off failed",
					"job_id", tracker.JobID,
					"datatype", tracker.DataType.Name(),
					"error", err)
				o.notify(ctx, events.NewStatusEvent(req.RequestID, int(tracker.DataType), events.StatusError,
					"result processing failed"))
			} else {
				completed++
				o.notify(ctx, events.NewStatusEvent(req.RequestID, int(tracker.DataType), events.StatusEnd,
					"processing completed"))
			}
		case domain.JobStatusFailed:
			failed++
			message := "processing job failed"
			if info.LastError != "" {
				message = fmt.Sprintf("processing job failed: %s", info.LastError)
			}
			o.notify(ctx, events.NewStatusEvent(req.RequestID, int(tracker.DataType), events.StatusError, message))
		case domain.JobStatusQueued, domain.JobStatusRunning, domain.JobStatusCanceled:
			// Queued/running jobs are counted as pending by the caller;
			// node-side cancellations were already reported by the poll loop.
		}
	}
	return completed, failed, nil
}

// processCompleted materializes one completed job's output and hands it to
// the result processor.
func (o *Orchestrator) processCompleted(ctx context.Context, req *domain.ProcessingRequest, tracker *domain.TaskTracker) error {
	outputDir := filepath.Join(req.Path, "outputs", tracker.DataType.Name())
	o.logger.Info("downloading job results",
		"job_id", tracker.JobID,
		"output_dir", outputDir)
	resultDir, err := o.client.DownloadAssets(ctx, tracker.JobID, outputDir)
	if err != nil {
		return fmt.Errorf("failed to download assets: %w", err)
	}
	tracker.OutputPath = resultDir
	return o.processor.ProcessResult(ctx, req, tracker, resultDir)
}

// unwind is the best-effort cleanup after a failed or cancelled submission.
// Unless configured otherwise, every touched job still alive on the node is
// cancelled; an end event is emitted only for jobs this process actually
// cancelled. Errors here are logged, never escalated.
func (o *Orchestrator) unwind(ctx context.Context, trackers []*domain.TaskTracker) {
	if len(trackers) == 0 {
		return
	}
	if !o.cfg.CancelOnShutdown {
		o.logger.Warn("leaving jobs running on node; enable processing.cancel_on_shutdown to cancel them",
			"job_count", len(trackers))
		return
	}

	// The caller's context may already be cancelled; the cleanup pass gets
	// its own bounded one.
	unwindCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), unwindTimeout)
	defer cancel()

	o.logger.Info("cancelling in-flight jobs", "job_count", len(trackers))
	for _, tracker := range trackers {
		info, err := o.client.JobInfo(unwindCtx, tracker.JobID)
		if err != nil {
			o.logger.Error("failed to inspect job during unwind",
				"job_id", tracker.JobID,
				"error", err)
			continue
		}
		if info.Status.Terminal() {
			o.logger.Debug("job already terminal, skipping cancellation",
				"job_id", tracker.JobID,
				"status", string(info.Status))
			continue
		}
		if err := o.client.Cancel(unwindCtx, tracker.JobID); err != nil {
			o.logger.Warn("failed to cancel job",
				"job_id", tracker.JobID,
				"error", err)
			continue
		}
		o.logger.Info("job cancelled", "job_id", tracker.JobID)
		o.notify(unwindCtx, events.NewStatusEvent(tracker.RequestID, int(tracker.DataType), events.StatusEnd,
			"job cancelled by operator"))
	}
}

// notify publishes a status event, demoting delivery failures to a log
// line. Notification delivery never influences orchestration.
func (o *Orchestrator) notify(ctx context.Context, event events.StatusEvent) {
	if err := o.notifier.Publish(ctx, event); err != nil {
		o.logger.Warn("failed to deliver status event",
			"request_id", event.RequestID,
			"datatype_id", event.DataTypeID,
			"status", string(event.Status),
			"error", err)
	}
}

// countPending counts jobs never observed in a terminal state.
func countPending(trackers []*domain.TaskTracker, observed map[string]nodeodm.JobInfo) int {
	pending := 0
	for _, tracker := range trackers {
		info, ok := observed[tracker.JobID]
		if !ok || !info.Status.Terminal() {
			pending++
		}
	}
	return pending
}
