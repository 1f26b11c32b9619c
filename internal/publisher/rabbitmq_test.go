package publisher

import (
	"encoding/json"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"video_ingestor/internal/domain"
)

func TestNewPublishing(t *testing.T) {
	now := time.Date(2024, 5, 2, 10, 0, 0, 0, time.UTC)
	video := &domain.Video{
		ID:              7,
		VideoID:         "abc123",
		Title:           "Walk in the park",
		CategoryID:      "22",
		DurationSeconds: 240,
		Tags:            "walk|park",
	}

	msg, err := newPublishing(video, now)
	require.NoError(t, err)

	assert.Equal(t, uint8(amqp.Persistent), msg.DeliveryMode)
	assert.Equal(t, "application/json", msg.ContentType)
	assert.Equal(t, "video.create", msg.Type)
	assert.NotEmpty(t, msg.MessageId)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(msg.Body, &decoded))
	assert.Equal(t, "create", decoded["action"])
	assert.Equal(t, "2024-05-02T10:00:00Z", decoded["timestamp"])

	payload, ok := decoded["video"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "abc123", payload["video_id"])
	assert.Equal(t, "walk|park", payload["tags"])
	assert.NotContains(t, payload, "category_title")
}

func TestNewPublishing_UniqueMessageIDs(t *testing.T) {
	video := &domain.Video{VideoID: "abc123"}

	first, err := newPublishing(video, time.Now())
	require.NoError(t, err)
	second, err := newPublishing(video, time.Now())
	require.NoError(t, err)

	assert.NotEqual(t, first.MessageId, second.MessageId)
}
