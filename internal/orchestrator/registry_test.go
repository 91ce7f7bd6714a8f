package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aeromap/odm-orchestrator/internal/domain"
)

func TestRegistry(t *testing.T) {
	t.Run("register and get", func(t *testing.T) {
		registry := NewRegistry()
		tracker := domain.NewTaskTracker("job-1", "req-1", domain.DataTypeRGB)

		registry.Register(tracker)

		got := registry.Get("job-1")
		require.NotNil(t, got)
		assert.Equal(t, tracker, got)
		assert.Equal(t, 1, registry.Len())
	})

	t.Run("get unknown job", func(t *testing.T) {
		assert.Nil(t, NewRegistry().Get("nope"))
	})

	t.Run("re-registering replaces the tracker", func(t *testing.T) {
		registry := NewRegistry()
		registry.Register(domain.NewTaskTracker("job-1", "req-1", domain.DataTypeRGB))
		replacement := domain.NewTaskTracker("job-1", "req-1", domain.DataTypeThermal)
		registry.Register(replacement)

		assert.Equal(t, 1, registry.Len())
		assert.Equal(t, domain.DataTypeThermal, registry.Get("job-1").DataType)
	})

	t.Run("all returns every tracker", func(t *testing.T) {
		registry := NewRegistry()
		first := domain.NewTaskTracker("job-1", "req-1", domain.DataTypeRGB)
		second := domain.NewTaskTracker("job-2", "req-1", domain.DataTypeThermal)
		registry.Register(first)
		registry.Register(second)

		assert.ElementsMatch(t, []*domain.TaskTracker{first, second}, registry.All())
	})
}
