package eventbus

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEvent(t *testing.T) {
	id := uuid.New()
	ev, err := ParseEvent(`{"operation": "insert", "table": "deployments", "data": {"id": "` + id.String() + `"}}`)
	require.NoError(t, err)
	assert.Equal(t, OpInsert, ev.Operation)
	assert.Equal(t, "deployments", ev.Table)
	assert.Equal(t, id, ev.Data.ID)
}

func TestParseEventUnknownOperation(t *testing.T) {
	_, err := ParseEvent(`{"operation": "truncate", "table": "deployments"}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown notification operation")
}

func TestParseEventMissingTable(t *testing.T) {
	_, err := ParseEvent(`{"operation": "update"}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing table")
}

func TestParseEventInvalidPayload(t *testing.T) {
	_, err := ParseEvent(`not json`)
	assert.Error(t, err)
}
