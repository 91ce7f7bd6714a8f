package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aeromap/odm-orchestrator/internal/domain"
	"github.com/aeromap/odm-orchestrator/internal/platform/nodeodm"
)

// fakeJobAdmin records the filters it was called with and returns scripted
// responses.
type fakeJobAdmin struct {
	checkErr error

	jobs    []nodeodm.JobInfo
	listErr error

	removed   []string
	removeErr error

	gotRequestID string
	gotStatuses  []domain.JobStatus
	gotDryRun    bool
}

func (a *fakeJobAdmin) CheckNode(context.Context) error { return a.checkErr }

func (a *fakeJobAdmin) List(_ context.Context, requestID string, statuses []domain.JobStatus) ([]nodeodm.JobInfo, error) {
	a.gotRequestID = requestID
	a.gotStatuses = statuses
	return a.jobs, a.listErr
}

func (a *fakeJobAdmin) RemoveJobs(_ context.Context, requestID string, statuses []domain.JobStatus, dryRun bool) ([]string, error) {
	a.gotRequestID = requestID
	a.gotStatuses = statuses
	a.gotDryRun = dryRun
	return a.removed, a.removeErr
}

func newTestRouter(admin *fakeJobAdmin) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewHandler(admin, logger).Router()
}

func doRequest(t *testing.T, router http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestHealth(t *testing.T) {
	t.Run("node reachable", func(t *testing.T) {
		rec := doRequest(t, newTestRouter(&fakeJobAdmin{}), http.MethodGet, "/healthz")

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"status": "ok"}`, rec.Body.String())
	})

	t.Run("node unreachable", func(t *testing.T) {
		admin := &fakeJobAdmin{checkErr: errors.New("connection refused")}
		rec := doRequest(t, newTestRouter(admin), http.MethodGet, "/healthz")

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

		var body ErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "compute node unavailable", body.Error)
	})
}

func TestListJobsEndpoint(t *testing.T) {
	t.Run("returns job summaries", func(t *testing.T) {
		admin := &fakeJobAdmin{jobs: []nodeodm.JobInfo{
			{ID: "job-1", Name: "req-42_rgb", Status: domain.JobStatusRunning, Progress: 42.5},
			{ID: "job-2", Name: "req-42_thermal", Status: domain.JobStatusFailed, LastError: "boom"},
		}}
		rec := doRequest(t, newTestRouter(admin), http.MethodGet, "/jobs")

		require.Equal(t, http.StatusOK, rec.Code)

		var summaries []JobSummary
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summaries))
		require.Len(t, summaries, 2)
		assert.Equal(t, "RUNNING", summaries[0].Status)
		assert.Equal(t, 42.5, summaries[0].Progress)
		assert.Equal(t, "boom", summaries[1].LastError)
	})

	t.Run("empty listing is an empty array", func(t *testing.T) {
		rec := doRequest(t, newTestRouter(&fakeJobAdmin{}), http.MethodGet, "/jobs")

		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `[]`, rec.Body.String())
	})

	t.Run("passes filters through", func(t *testing.T) {
		admin := &fakeJobAdmin{}
		rec := doRequest(t, newTestRouter(admin), http.MethodGet,
			"/jobs?request_id=req-42&status=running,queued")

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "req-42", admin.gotRequestID)
		assert.Equal(t, []domain.JobStatus{domain.JobStatusRunning, domain.JobStatusQueued}, admin.gotStatuses)
	})

	t.Run("invalid status filter", func(t *testing.T) {
		rec := doRequest(t, newTestRouter(&fakeJobAdmin{}), http.MethodGet, "/jobs?status=exploded")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("upstream failure maps to bad gateway", func(t *testing.T) {
		admin := &fakeJobAdmin{listErr: errors.New("connection reset")}
		rec := doRequest(t, newTestRouter(admin), http.MethodGet, "/jobs")
		assert.Equal(t, http.StatusBadGateway, rec.Code)
	})
}

func TestRemoveJobsEndpoint(t *testing.T) {
	t.Run("removes and reports ids", func(t *testing.T) {
		admin := &fakeJobAdmin{removed: []string{"job-1", "job-2"}}
		rec := doRequest(t, newTestRouter(admin), http.MethodDelete, "/jobs?request_id=req-42")

		require.Equal(t, http.StatusOK, rec.Code)
		assert.False(t, admin.gotDryRun)

		var body struct {
			DryRun  bool     `json:"dryRun"`
			Removed []string `json:"removed"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.False(t, body.DryRun)
		assert.Equal(t, []string{"job-1", "job-2"}, body.Removed)
	})

	t.Run("dry run flag passes through", func(t *testing.T) {
		admin := &fakeJobAdmin{}
		rec := doRequest(t, newTestRouter(admin), http.MethodDelete, "/jobs?dry_run=true")

		require.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, admin.gotDryRun)
	})

	t.Run("invalid status filter", func(t *testing.T) {
		rec := doRequest(t, newTestRouter(&fakeJobAdmin{}), http.MethodDelete, "/jobs?status=nope")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("upstream failure maps to bad gateway", func(t *testing.T) {
		admin := &fakeJobAdmin{removeErr: errors.New("node busy")}
		rec := doRequest(t, newTestRouter(admin), http.MethodDelete, "/jobs")
		assert.Equal(t, http.StatusBadGateway, rec.Code)
	})
}
