// Package broker implements the Kafka-facing edge of the progress pipeline:
// the learning event consumer and the dead-letter producer.
package broker

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
)

// DeadLetterSink receives messages that could not be processed.
type DeadLetterSink interface {
	// Send redirects one raw message, tagged with the failure cause.
	Send(ctx context.Context, cause string, key, value []byte) error

	// Close releases resources. Safe to call if already closed.
	Close() error
}

// DeadLetterTopic derives the dead-letter topic from a source topic.
func DeadLetterTopic(topic string) string {
	return topic + ".dlq"
}

// DeadLetterProducer writes failed messages to the dead-letter topic so
// they can be inspected or replayed out of band.
type DeadLetterProducer struct {
	writer *kafkago.Writer
	topic  string
	logger *slog.Logger
}

// NewDeadLetterProducer creates a producer for the dead-letter topic of
// the given source topic.
func NewDeadLetterProducer(brokers []string, sourceTopic string, logger *slog.Logger) *DeadLetterProducer {
	if logger == nil {
		logger = slog.Default()
	}
	topic := DeadLetterTopic(sourceTopic)
	writer := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.LeastBytes{},
		BatchTimeout: 50 * time.Millisecond,
	}
	return &DeadLetterProducer{
		writer: writer,
		topic:  topic,
		logger: logger.With("component", "dead_letter", "topic", topic),
	}
}

// Send writes the message to the dead-letter topic. Each entry carries the
// failure cause and a unique entry id for correlation.
func (p *DeadLetterProducer) Send(ctx context.Context, cause string, key, value []byte) error {
	writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := p.writer.WriteMessages(writeCtx, kafkago.Message{
		Key:   key,
		Value: value,
		Headers: []kafkago.Header{
			{Key: "cause", Value: []byte(cause)},
			{Key: "entry_id", Value: []byte(uuid.NewString())},
		},
	})
	if err != nil {
		p.logger.Error("dead-letter write failed", "cause", cause, "error", err)
		return err
	}
	p.logger.Debug("message dead-lettered", "cause", cause)
	return nil
}

// Close closes the dead-letter writer.
func (p *DeadLetterProducer) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
