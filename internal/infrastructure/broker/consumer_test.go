package broker

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tutormesh/tutormesh/internal/domain/progress"
	"github.com/tutormesh/tutormesh/internal/domain/shared"
)

// fakeProcessor records executed events and returns a preset error.
type fakeProcessor struct {
	events []*progress.LearningEvent
	err    error
}

func (p *fakeProcessor) Execute(_ context.Context, event *progress.LearningEvent) error {
	p.events = append(p.events, event)
	return p.err
}

// recordingSink captures dead-lettered messages.
type recordingSink struct {
	causes []string
	values [][]byte
	err    error
}

func (s *recordingSink) Send(_ context.Context, cause string, _, value []byte) error {
	if s.err != nil {
		return s.err
	}
	s.causes = append(s.causes, cause)
	s.values = append(s.values, value)
	return nil
}

func (s *recordingSink) Close() error { return nil }

func validPayload() []byte {
	return []byte(`{
		"student_id": "student-1",
		"topic_id": "recursion",
		"timestamp": "2026-08-30T14:00:00Z",
		"action": "session_completed",
		"score": 85,
		"time_spent": 1200
	}`)
}

func TestConsumer_DisabledMode(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Enabled = false

	consumer := NewConsumer(cfg, &fakeProcessor{}, nil, nil)
	assert.False(t, consumer.Enabled())
	assert.Equal(t, "learning.events", consumer.Topic())

	// Start returns immediately without touching any broker.
	assert.NoError(t, consumer.Start(context.Background()))
	assert.NoError(t, consumer.Close())
}

func TestConsumer_StartFailsWithoutBrokers(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Enabled = true
	cfg.Brokers = nil

	consumer := NewConsumer(cfg, &fakeProcessor{}, nil, nil)
	assert.Error(t, consumer.Start(context.Background()))
	// A failed probe flips the consumer to disabled mode.
	assert.False(t, consumer.Enabled())
}

func TestConsumer_HandleMessage_Success(t *testing.T) {
	processor := &fakeProcessor{}
	sink := &recordingSink{}
	consumer := NewConsumer(DefaultConfig(), processor, sink, nil)

	commit := consumer.handleMessage(context.Background(), []byte("student-1"), validPayload())
	assert.True(t, commit)
	assert.Len(t, processor.events, 1)
	assert.Empty(t, sink.causes)
	// A missing event_id is assigned for dead-letter correlation.
	assert.NotEmpty(t, processor.events[0].EventID)
}

func TestConsumer_HandleMessage_DecodeError(t *testing.T) {
	processor := &fakeProcessor{}
	sink := &recordingSink{}
	consumer := NewConsumer(DefaultConfig(), processor, sink, nil)

	payload := []byte(`{"student_id": `)
	commit := consumer.handleMessage(context.Background(), nil, payload)
	assert.True(t, commit)
	assert.Empty(t, processor.events)
	if assert.Len(t, sink.causes, 1) {
		assert.Equal(t, CauseDecodeError, sink.causes[0])
		assert.Equal(t, payload, sink.values[0])
	}
}

func TestConsumer_HandleMessage_ValidationError(t *testing.T) {
	processor := &fakeProcessor{
		err: shared.NewDomainError("progress", "Validate", shared.ErrValidation, "student_id is required"),
	}
	sink := &recordingSink{}
	consumer := NewConsumer(DefaultConfig(), processor, sink, nil)

	commit := consumer.handleMessage(context.Background(), nil, validPayload())
	assert.True(t, commit)
	if assert.Len(t, sink.causes, 1) {
		assert.Equal(t, CauseValidationError, sink.causes[0])
	}
}

func TestConsumer_HandleMessage_StoreFailure(t *testing.T) {
	processor := &fakeProcessor{
		err: shared.WrapError("progress", "Process", shared.ErrStoreUnavailable, "persist mastery record", errors.New("connection refused")),
	}
	sink := &recordingSink{}
	consumer := NewConsumer(DefaultConfig(), processor, sink, nil)

	// Preserved in the dead-letter topic, so the offset advances.
	commit := consumer.handleMessage(context.Background(), nil, validPayload())
	assert.True(t, commit)
	if assert.Len(t, sink.causes, 1) {
		assert.Equal(t, CauseStoreFailure, sink.causes[0])
	}
}

func TestConsumer_HandleMessage_StoreFailureNoSink(t *testing.T) {
	processor := &fakeProcessor{
		err: shared.WrapError("progress", "Process", shared.ErrStoreUnavailable, "persist mastery record", errors.New("connection refused")),
	}
	consumer := NewConsumer(DefaultConfig(), processor, nil, nil)

	// Neither processed nor preserved: do not advance, force redelivery.
	commit := consumer.handleMessage(context.Background(), nil, validPayload())
	assert.False(t, commit)
}

func TestConsumer_HandleMessage_StoreFailureSinkDown(t *testing.T) {
	processor := &fakeProcessor{
		err: shared.WrapError("progress", "Process", shared.ErrStoreUnavailable, "persist mastery record", errors.New("connection refused")),
	}
	sink := &recordingSink{err: errors.New("dlq unavailable")}
	consumer := NewConsumer(DefaultConfig(), processor, sink, nil)

	commit := consumer.handleMessage(context.Background(), nil, validPayload())
	assert.False(t, commit)
}

func TestConsumer_HandleMessage_KeepsProducerEventID(t *testing.T) {
	processor := &fakeProcessor{}
	consumer := NewConsumer(DefaultConfig(), processor, nil, nil)

	payload := []byte(`{
		"event_id": "evt-42",
		"student_id": "student-1",
		"topic_id": "recursion",
		"timestamp": "2026-08-30T14:00:00Z",
		"action": "session_completed",
		"score": 85
	}`)
	assert.True(t, consumer.handleMessage(context.Background(), nil, payload))
	if assert.Len(t, processor.events, 1) {
		assert.Equal(t, "evt-42", processor.events[0].EventID)
	}
}

func TestConsumer_ConfigDefaults(t *testing.T) {
	consumer := NewConsumer(Config{Enabled: true}, &fakeProcessor{}, nil, nil)
	assert.Equal(t, "learning.events", consumer.Topic())
	assert.True(t, consumer.Enabled())
}

func TestDeadLetterTopic(t *testing.T) {
	assert.Equal(t, "learning.events.dlq", DeadLetterTopic("learning.events"))
}
