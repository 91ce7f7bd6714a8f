package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aeromap/odm-orchestrator/internal/domain"
	"github.com/aeromap/odm-orchestrator/internal/orchestrator"
)

func TestExitCode(t *testing.T) {
	cases := []struct {
		outcome orchestrator.Outcome
		want    int
	}{
		{orchestrator.OutcomeCompleted, exitOK},
		{orchestrator.OutcomeFailed, exitFailure},
		{orchestrator.OutcomeCancelled, exitCancelled},
		{orchestrator.OutcomeIncomplete, exitIncomplete},
	}
	for _, tc := range cases {
		t.Run(tc.outcome.String(), func(t *testing.T) {
			assert.Equal(t, tc.want, exitCode(&orchestrator.Result{Outcome: tc.outcome}))
		})
	}
}

func TestParseStatuses(t *testing.T) {
	t.Run("accepts mixed case with whitespace", func(t *testing.T) {
		statuses, err := parseStatuses([]string{"running", " Completed ", "FAILED"})
		require.NoError(t, err)
		assert.Equal(t, []domain.JobStatus{
			domain.JobStatusRunning,
			domain.JobStatusCompleted,
			domain.JobStatusFailed,
		}, statuses)
	})

	t.Run("rejects unknown values", func(t *testing.T) {
		_, err := parseStatuses([]string{"running", "exploded"})
		assert.Error(t, err)
	})

	t.Run("empty input", func(t *testing.T) {
		statuses, err := parseStatuses(nil)
		require.NoError(t, err)
		assert.Empty(t, statuses)
	})
}
