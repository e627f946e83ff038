package broker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/tutormesh/tutormesh/internal/domain/progress"
	"github.com/tutormesh/tutormesh/internal/domain/shared"
	"github.com/tutormesh/tutormesh/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// EVENT CONSUMER
// Long-lived subscriber bound to the learning events topic. A failure inside
// one event's processing never terminates the subscription loop; each event
// is handled in isolation. At-most-once delivery is accepted.
// ══════════════════════════════════════════════════════════════════════════════

// Dead-letter causes attached to redirected messages.
const (
	CauseDecodeError     = "decode_error"
	CauseValidationError = "validation_error"
	CauseStoreFailure    = "store_failure"
)

// Config holds consumer configuration.
type Config struct {
	// Enabled toggles between an active subscription and no-op mode.
	// Disabled mode is used in tests and environments without a broker.
	Enabled bool

	// Brokers is the list of Kafka broker addresses.
	Brokers []string

	// Topic is the fixed topic the consumer is bound to.
	Topic string

	// GroupID is the consumer group id.
	GroupID string

	// Workers is the number of concurrent consumer tasks.
	Workers int

	// MinBytes and MaxBytes bound fetch sizes.
	MinBytes int
	MaxBytes int

	// MaxWait is the longest a fetch blocks waiting for data.
	MaxWait time.Duration

	// ProcessTimeout bounds one event's processing.
	ProcessTimeout time.Duration

	// ConnectAttempts is how many times the initial broker probe is
	// retried before the consumer gives up and stays disabled.
	ConnectAttempts int

	// ConnectBackoff is the initial probe retry delay.
	ConnectBackoff time.Duration
}

// DefaultConfig returns sensible consumer defaults.
func DefaultConfig() Config {
	return Config{
		Topic:           "learning.events",
		GroupID:         "progress-agent",
		Workers:         4,
		MinBytes:        1,
		MaxBytes:        10e6, // 10MB
		MaxWait:         1 * time.Second,
		ProcessTimeout:  10 * time.Second,
		ConnectAttempts: 3,
		ConnectBackoff:  500 * time.Millisecond,
	}
}

// Processor applies one decoded learning event.
type Processor interface {
	Execute(ctx context.Context, event *progress.LearningEvent) error
}

// Consumer subscribes to the learning events topic and drives the
// processor. Construct it explicitly and pass it to the worker's startup
// routine; there is no process-wide instance.
type Consumer struct {
	config      Config
	processor   Processor
	deadLetters DeadLetterSink
	logger      *slog.Logger

	mu      sync.Mutex
	enabled bool
	reader  *kafkago.Reader
	wg      sync.WaitGroup
}

// NewConsumer creates a consumer. deadLetters may be nil, in which case
// unprocessable messages are dropped with a log line instead.
func NewConsumer(config Config, processor Processor, deadLetters DeadLetterSink, logger *slog.Logger) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	if config.Topic == "" {
		config.Topic = DefaultConfig().Topic
	}
	if config.Workers <= 0 {
		config.Workers = 1
	}
	if config.ProcessTimeout <= 0 {
		config.ProcessTimeout = DefaultConfig().ProcessTimeout
	}
	return &Consumer{
		config:      config,
		processor:   processor,
		deadLetters: deadLetters,
		logger:      logger.With("component", "event_consumer", "topic", config.Topic),
		enabled:     config.Enabled,
	}
}

// Enabled reports whether the consumer has an active subscription.
func (c *Consumer) Enabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enabled
}

// Topic returns the bound topic name.
func (c *Consumer) Topic() string {
	return c.config.Topic
}

// Start runs the subscription loop until ctx is cancelled. In disabled
// mode it returns immediately with no error. If the initial broker probe
// fails after its retries, the consumer flips to disabled mode and returns
// the error; the caller reports it and keeps running without a broker.
func (c *Consumer) Start(ctx context.Context) error {
	if !c.Enabled() {
		c.logger.Info("event consumer disabled, skipping subscription")
		return nil
	}

	if err := c.probe(ctx); err != nil {
		c.setEnabled(false)
		return fmt.Errorf("broker: connect %v: %w", c.config.Brokers, err)
	}

	c.mu.Lock()
	c.reader = kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:  c.config.Brokers,
		Topic:    c.config.Topic,
		GroupID:  c.config.GroupID,
		MinBytes: c.config.MinBytes,
		MaxBytes: c.config.MaxBytes,
		MaxWait:  c.config.MaxWait,
	})
	reader := c.reader
	c.mu.Unlock()

	c.logger.Info("event consumer started",
		"group_id", c.config.GroupID,
		"workers", c.config.Workers,
	)

	for i := 0; i < c.config.Workers; i++ {
		c.wg.Add(1)
		go c.runWorker(ctx, reader)
	}
	c.wg.Wait()

	c.logger.Info("event consumer stopped")
	return nil
}

// Close stops the subscription: the reader is closed so no new messages
// are accepted, then in-flight processing is allowed to finish.
func (c *Consumer) Close() error {
	c.mu.Lock()
	reader := c.reader
	c.reader = nil
	c.mu.Unlock()

	var err error
	if reader != nil {
		err = reader.Close()
	}
	c.wg.Wait()
	return err
}

// runWorker is one consumer task: fetch, handle, commit.
func (c *Consumer) runWorker(ctx context.Context, reader *kafkago.Reader) {
	defer c.wg.Done()
	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			// io.EOF means the reader was closed (graceful drain).
			if ctx.Err() != nil || errors.Is(err, io.EOF) || errors.Is(err, kafkago.ErrGroupClosed) {
				return
			}
			c.logger.Error("fetch failed", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		if c.handleMessage(ctx, msg.Key, msg.Value) {
			if err := reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
				c.logger.Error("commit failed", "error", err)
			}
		}
	}
}

// handleMessage processes one raw message and reports whether its offset
// should be committed.
//
// Policy: decode and validation failures always advance, since redelivery
// cannot fix the payload; they are dead-lettered when a sink is configured,
// dropped with a log otherwise. A store failure advances only after a
// successful dead-letter write, so the message is redelivered when it
// could be neither processed nor preserved.
func (c *Consumer) handleMessage(ctx context.Context, key, value []byte) bool {
	event, err := progress.DecodeLearningEvent(value)
	if err != nil {
		c.logger.Warn("dropping undecodable message", "error", err)
		c.deadLetter(ctx, CauseDecodeError, key, value)
		return true
	}
	if event.EventID == "" {
		event.EventID = uuid.NewString()
	}

	procCtx, cancel := context.WithTimeout(ctx, c.config.ProcessTimeout)
	err = c.processor.Execute(procCtx, event)
	cancel()
	if err == nil {
		return true
	}

	switch {
	case errors.Is(err, shared.ErrValidation) || errors.Is(err, shared.ErrValueOutOfRange):
		c.logger.Warn("event rejected", "event_id", event.EventID, "error", err)
		c.deadLetter(ctx, CauseValidationError, key, value)
		return true
	default:
		c.logger.Error("event processing failed", "event_id", event.EventID, "error", err)
		return c.deadLetter(ctx, CauseStoreFailure, key, value)
	}
}

// deadLetter redirects a message when a sink is configured. It reports
// whether the message was preserved.
func (c *Consumer) deadLetter(ctx context.Context, cause string, key, value []byte) bool {
	if c.deadLetters == nil {
		return false
	}
	return c.deadLetters.Send(ctx, cause, key, value) == nil
}

// probe verifies initial broker connectivity with bounded retries.
func (c *Consumer) probe(ctx context.Context) error {
	if len(c.config.Brokers) == 0 {
		return errors.New("no brokers configured")
	}

	attempts := c.config.ConnectAttempts
	if attempts <= 0 {
		attempts = 1
	}
	r := retry.New(
		retry.WithMaxAttempts(attempts),
		retry.WithInitialDelay(c.config.ConnectBackoff),
		retry.WithRetryIf(func(error) bool { return true }),
		retry.WithOnRetry(func(attempt int, err error, delay time.Duration) {
			c.logger.Warn("broker probe failed, retrying",
				"attempt", attempt,
				"delay", delay,
				"error", err,
			)
		}),
	)

	return r.Do(ctx, func(ctx context.Context) error {
		var lastErr error
		for _, addr := range c.config.Brokers {
			conn, err := kafkago.DialContext(ctx, "tcp", addr)
			if err != nil {
				lastErr = err
				continue
			}
			conn.Close()
			return nil
		}
		return lastErr
	})
}

func (c *Consumer) setEnabled(v bool) {
	c.mu.Lock()
	c.enabled = v
	c.mu.Unlock()
}
