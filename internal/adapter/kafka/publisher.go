package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/waterwatch-service/internal/config"
	"github.com/couchcryptid/waterwatch-service/internal/domain"
)

// Publisher produces classification snapshots to a Kafka topic, one message
// per classified pond keyed by its id.
type Publisher struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewPublisher creates a Kafka producer for the configured classification topic.
func NewPublisher(cfg *config.Config, logger *slog.Logger) *Publisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaClassificationTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Publisher{writer: w, logger: logger}
}

// PublishClassification writes every classified pond of c in a single
// WriteMessages call. Failed ponds are not published.
func (p *Publisher) PublishClassification(ctx context.Context, c domain.Classification) error {
	if len(c.Details) == 0 {
		return nil
	}
	details := append([]domain.FeatureClass(nil), c.Details...)
	sort.Slice(details, func(i, j int) bool { return details[i].FeatureID < details[j].FeatureID })

	msgs := make([]kafkago.Message, len(details))
	for i := range details {
		msg, err := serializeToMessage(details[i], c.GeneratedAt)
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish classification: %w", err)
	}
	p.logger.Debug("classification published", "topic", p.writer.Topic, "messages", len(msgs))
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// serializeToMessage marshals a pond classification into a Kafka message.
func serializeToMessage(fc domain.FeatureClass, generatedAt time.Time) (kafkago.Message, error) {
	data, err := json.Marshal(fc)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize pond classification: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(fc.FeatureID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "class", Value: []byte(fc.Label)},
			{Key: "generated_at", Value: []byte(generatedAt.UTC().Format(time.RFC3339))},
		},
	}, nil
}
