package usage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/skillsenselab/scribe/logger"
)

// KafkaTracker publishes usage events to a Kafka topic, keyed by owner so
// one owner's events land in order on one partition.
type KafkaTracker struct {
	writer *kafkago.Writer
	log    *logger.Logger
}

var _ Tracker = (*KafkaTracker)(nil)

// NewKafkaTracker creates a tracker writing to the given brokers and topic.
func NewKafkaTracker(brokers []string, topic string, log *logger.Logger) *KafkaTracker {
	return &KafkaTracker{
		writer: &kafkago.Writer{
			Addr:         kafkago.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafkago.Hash{},
			RequiredAcks: kafkago.RequireOne,
			BatchTimeout: 50 * time.Millisecond,
		},
		log: log.WithComponent("usage"),
	}
}

// Record marshals the event and writes it to the topic.
func (t *KafkaTracker) Record(ctx context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("usage: marshal event: %w", err)
	}

	key := event.OwnerID
	if key == "" {
		key = event.JobID
	}

	msg := kafkago.Message{
		Key:   []byte(key),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "content-type", Value: []byte("application/json")},
		},
		Time: event.Timestamp,
	}

	if err := t.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("usage: publish event: %w", err)
	}

	t.log.Debug("usage event published", map[string]interface{}{
		logger.FieldJobID: event.JobID,
		"duration":        event.DurationSeconds,
	})
	return nil
}

// Close flushes pending messages and shuts the writer down.
func (t *KafkaTracker) Close() error {
	return t.writer.Close()
}
