package kafka

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/waterwatch-service/internal/config"
	"github.com/couchcryptid/waterwatch-service/internal/domain"
)

func TestSerializeToMessage(t *testing.T) {
	generated := time.Date(2021, 8, 20, 12, 0, 0, 0, time.UTC)
	frac := 0.3
	fc := domain.FeatureClass{
		FeatureID:     "101",
		Class:         domain.ClassPartial,
		Label:         domain.ClassPartial.String(),
		WaterFraction: &frac,
		ValidFraction: 1,
		SceneID:       "S2A_1",
		SceneTime:     generated.Add(-48 * time.Hour),
	}

	msg, err := serializeToMessage(fc, generated)
	require.NoError(t, err)

	assert.Equal(t, []byte("101"), msg.Key)
	assert.Contains(t, string(msg.Value), `"label":"partial"`)
	assert.Contains(t, string(msg.Value), `"water_fraction":0.3`)
	assert.Len(t, msg.Headers, 2)
	assert.Equal(t, "class", msg.Headers[0].Key)
	assert.Equal(t, []byte("partial"), msg.Headers[0].Value)
	assert.Equal(t, "generated_at", msg.Headers[1].Key)
	assert.Equal(t, []byte("2021-08-20T12:00:00Z"), msg.Headers[1].Value)
}

func TestPublishClassification_EmptySnapshot(t *testing.T) {
	p := NewPublisher(&config.Config{KafkaBrokers: []string{"localhost:1"}, KafkaClassificationTopic: "t"}, slog.Default())
	defer p.Close()

	// Nothing to send, so the unreachable broker is never dialled.
	err := p.PublishClassification(context.Background(), domain.Classification{
		Failures: map[string]domain.ErrorPayload{"p1": {Kind: domain.KindDataUnavailable}},
	})
	assert.NoError(t, err)
}
