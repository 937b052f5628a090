//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/waterwatch-service/internal/adapter/kafka"
	"github.com/couchcryptid/waterwatch-service/internal/config"
	"github.com/couchcryptid/waterwatch-service/internal/domain"
)

const testTopic = "test-classifications"

type publishedClass struct {
	Class   domain.FeatureClass
	Key     string
	Headers map[string]string
}

func readClass(ctx context.Context, t *testing.T, consumer *kafkago.Reader) publishedClass {
	t.Helper()
	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read from classification topic")

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	var fc domain.FeatureClass
	require.NoError(t, json.Unmarshal(msg.Value, &fc), "unmarshal classification message")
	return publishedClass{Class: fc, Key: string(msg.Key), Headers: headers}
}

// TestPublishClassification round-trips a snapshot through a real broker.
func TestPublishClassification(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testTopic)

	cfg := &config.Config{KafkaBrokers: []string{broker}, KafkaClassificationTopic: testTopic}
	publisher := kafka.NewPublisher(cfg, discardLogger())
	t.Cleanup(func() { _ = publisher.Close() })

	generated := time.Date(2021, 8, 20, 12, 0, 0, 0, time.UTC)
	full, dry := 0.9, 0.0
	snapshot := domain.Classification{
		GeneratedAt: generated,
		Classes:     map[string]domain.PondClass{"p2": domain.ClassLikelyFull, "p1": domain.ClassDry},
		Details: []domain.FeatureClass{
			{FeatureID: "p2", Class: domain.ClassLikelyFull, Label: "likely-full", WaterFraction: &full, ValidFraction: 1, SceneID: "S2A_2"},
			{FeatureID: "p1", Class: domain.ClassDry, Label: "dry", WaterFraction: &dry, ValidFraction: 0.8, SceneID: "S2A_1"},
		},
		Failures: map[string]domain.ErrorPayload{"p3": {Kind: domain.KindDataUnavailable, Message: "no scene"}},
	}
	require.NoError(t, publisher.PublishClassification(ctx, snapshot))

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testTopic,
		GroupID:     fmt.Sprintf("test-consumer-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	first := readClass(ctx, t, consumer)
	second := readClass(ctx, t, consumer)

	assert.Equal(t, "p1", first.Key)
	assert.Equal(t, "dry", first.Headers["class"])
	assert.Equal(t, "2021-08-20T12:00:00Z", first.Headers["generated_at"])
	assert.Equal(t, domain.ClassDry, first.Class.Class)
	assert.InDelta(t, 0.8, first.Class.ValidFraction, 0)

	assert.Equal(t, "p2", second.Key)
	assert.Equal(t, "likely-full", second.Headers["class"])
	require.NotNil(t, second.Class.WaterFraction)
	assert.InDelta(t, 0.9, *second.Class.WaterFraction, 0)
}
