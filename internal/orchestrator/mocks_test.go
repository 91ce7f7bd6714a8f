package orchestrator

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/aeromap/odm-orchestrator/internal/domain"
	"github.com/aeromap/odm-orchestrator/internal/events"
	"github.com/aeromap/odm-orchestrator/internal/platform/nodeodm"
)

// scriptedStep is one scripted JobInfo response for a fake job.
type scriptedStep struct {
	info nodeodm.JobInfo
	err  error
}

// fakeClient is a scriptable in-memory ComputeClient. Each job's status
// responses follow its script; once a script is exhausted, the last step
// repeats.
type fakeClient struct {
	mu sync.Mutex

	nodeInfo *nodeodm.NodeInfo
	infoErr  error

	existing []nodeodm.JobInfo
	listErr  error

	createErr   error
	createCalls []string
	nextJobID   int

	scripts   map[string][]scriptedStep
	infoCalls map[string]int

	// onJobInfo runs before each scripted response, letting tests inject
	// shutdown requests mid-poll.
	onJobInfo func(jobID string, call int)

	cancelCalls []string
	cancelErr   error
	removeCalls []string
	removeErr   error

	downloadCalls []string
	downloadErr   error
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		nodeInfo:  &nodeodm.NodeInfo{Version: "2.2.1", Engine: "odm"},
		scripts:   make(map[string][]scriptedStep),
		infoCalls: make(map[string]int),
	}
}

// script registers the status sequence returned for the given job id.
func (c *fakeClient) script(jobID string, statuses ...domain.JobStatus) {
	steps := make([]scriptedStep, 0, len(statuses))
	for _, status := range statuses {
		steps = append(steps, scriptedStep{info: nodeodm.JobInfo{ID: jobID, Status: status}})
	}
	c.scripts[jobID] = steps
}

// scriptSteps registers raw steps, allowing error injection.
func (c *fakeClient) scriptSteps(jobID string, steps ...scriptedStep) {
	c.scripts[jobID] = steps
}

func (c *fakeClient) Info(_ context.Context) (*nodeodm.NodeInfo, error) {
	if c.infoErr != nil {
		return nil, c.infoErr
	}
	return c.nodeInfo, nil
}

func (c *fakeClient) ListJobs(_ context.Context) ([]nodeodm.JobInfo, error) {
	if c.listErr != nil {
		return nil, c.listErr
	}
	return c.existing, nil
}

func (c *fakeClient) CreateJob(_ context.Context, _ []string, _ map[string]string, name string) (*nodeodm.JobInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.createCalls = append(c.createCalls, name)
	if c.createErr != nil {
		return nil, c.createErr
	}
	c.nextJobID++
	id := fmt.Sprintf("job-%d", c.nextJobID)
	return &nodeodm.JobInfo{ID: id, Name: name, Status: domain.JobStatusQueued}, nil
}

func (c *fakeClient) JobInfo(_ context.Context, id string) (*nodeodm.JobInfo, error) {
	c.mu.Lock()
	call := c.infoCalls[id]
	c.infoCalls[id] = call + 1
	hook := c.onJobInfo
	steps := c.scripts[id]
	c.mu.Unlock()

	if hook != nil {
		hook(id, call)
	}
	if len(steps) == 0 {
		return &nodeodm.JobInfo{ID: id, Status: domain.JobStatusRunning}, nil
	}
	if call >= len(steps) {
		call = len(steps) - 1
	}
	step := steps[call]
	if step.err != nil {
		return nil, step.err
	}
	info := step.info
	return &info, nil
}

func (c *fakeClient) Cancel(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelCalls = append(c.cancelCalls, id)
	return c.cancelErr
}

func (c *fakeClient) Remove(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.removeErr != nil {
		return c.removeErr
	}
	c.removeCalls = append(c.removeCalls, id)
	return nil
}

func (c *fakeClient) DownloadAssets(_ context.Context, id, destDir string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.downloadCalls = append(c.downloadCalls, id)
	if c.downloadErr != nil {
		return "", c.downloadErr
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", err
	}
	return destDir, nil
}

// fakeNotifier records published events in delivery order.
type fakeNotifier struct {
	mu         sync.Mutex
	events     []events.StatusEvent
	publishErr error
}

func (n *fakeNotifier) Publish(_ context.Context, event events.StatusEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return n.publishErr
}

func (n *fakeNotifier) Close() error { return nil }

// byStatus returns the recorded events with the given status.
func (n *fakeNotifier) byStatus(status events.Status) []events.StatusEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	var matched []events.StatusEvent
	for _, event := range n.events {
		if event.Status == status {
			matched = append(matched, event)
		}
	}
	return matched
}

// forDataType returns the recorded event statuses for one data type, in
// delivery order.
func (n *fakeNotifier) forDataType(dataTypeID int) []events.Status {
	n.mu.Lock()
	defer n.mu.Unlock()
	var statuses []events.Status
	for _, event := range n.events {
		if event.DataTypeID == dataTypeID {
			statuses = append(statuses, event.Status)
		}
	}
	return statuses
}

// fakeProcessor records hand-off calls.
type fakeProcessor struct {
	mu         sync.Mutex
	calls      []string
	processErr error
}

func (p *fakeProcessor) ProcessResult(_ context.Context, _ *domain.ProcessingRequest, tracker *domain.TaskTracker, _ string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, tracker.JobID)
	return p.processErr
}

// testConfig returns orchestrator tunables suitable for fast tests.
func testConfig() Config {
	return Config{
		PollInterval:     time.Millisecond,
		PollRetries:      5,
		CancelOnShutdown: true,
		JobOptions:       map[string]string{"feature-quality": "medium"},
	}
}

func newTestOrchestrator(client *fakeClient, notifier *fakeNotifier, processor *fakeProcessor, cfg Config) *Orchestrator {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(client, notifier, processor, cfg, logger)
}
