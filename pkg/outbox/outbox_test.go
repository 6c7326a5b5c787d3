package outbox

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEvent(t *testing.T) {
	ev, err := NewEvent("project", 7, "project.imported", map[string]any{"project_id": 7, "trace_id": "abc"})
	require.NoError(t, err)

	assert.Equal(t, "project", ev.AggregateType)
	require.NotNil(t, ev.AggregateID)
	assert.Equal(t, int64(7), *ev.AggregateID)
	assert.Equal(t, StatusPending, ev.Status)
	assert.JSONEq(t, `{"project_id":7,"trace_id":"abc"}`, string(ev.Payload))
	assert.Equal(t, "abc", traceIDOf(ev.Payload))
}

func TestNextAttempt(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	status, next := nextAttempt(1, 5, now)
	assert.Equal(t, StatusPending, status)
	require.NotNil(t, next)
	assert.Equal(t, now.Add(5*time.Second), *next)

	status, next = nextAttempt(3, 5, now)
	assert.Equal(t, StatusPending, status)
	assert.Equal(t, now.Add(15*time.Second), *next)

	status, next = nextAttempt(5, 5, now)
	assert.Equal(t, StatusFailed, status)
	assert.Nil(t, next)
}

func TestTraceIDOfInvalidPayload(t *testing.T) {
	assert.Empty(t, traceIDOf([]byte("not json")))
	assert.Empty(t, traceIDOf([]byte(`{"project_id":1}`)))
}
