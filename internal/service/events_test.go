package service

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNATSPublisherSubject(t *testing.T) {
	assert.Equal(t, "geotasks.task.created", NewNATSPublisher(nil, "").Subject(EventTaskCreated))
	assert.Equal(t, "staging.user.deleted", NewNATSPublisher(nil, "staging").Subject(EventUserDeleted))
}

func TestEventJSON(t *testing.T) {
	data, err := json.Marshal(newEvent(EventLocationCreated, 3, 7))
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "location.created", decoded["type"])
	assert.Equal(t, float64(3), decoded["id"])
	assert.Equal(t, float64(7), decoded["user_id"])
	assert.Contains(t, decoded, "at")
}
