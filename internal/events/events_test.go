package events

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStatusEvent(t *testing.T) {
	event := NewStatusEvent("req-1", 22002, StatusStart, "job created")

	assert.NotEqual(t, uuid.Nil, event.ID)
	assert.Equal(t, "req-1", event.RequestID)
	assert.Equal(t, 22002, event.DataTypeID)
	assert.Equal(t, StatusStart, event.Status)
	assert.Equal(t, "job created", event.Message)
	assert.False(t, event.Timestamp.IsZero())

	t.Run("ids are unique", func(t *testing.T) {
		other := NewStatusEvent("req-1", 22002, StatusStart, "job created")
		assert.NotEqual(t, event.ID, other.ID)
	})
}

func TestStatusEventJSONKeys(t *testing.T) {
	event := NewStatusEvent("req-1", 22001, StatusError, "boom")

	data, err := json.Marshal(event)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))

	for _, key := range []string{"id", "requestId", "datatypeId", "status", "timestamp", "message"} {
		assert.Contains(t, decoded, key)
	}
	assert.Equal(t, "error", decoded["status"])
}

func TestNopNotifier(t *testing.T) {
	var n NopNotifier
	assert.NoError(t, n.Publish(context.Background(), NewStatusEvent("r", 1, StatusEnd, "")))
	assert.NoError(t, n.Close())
}
