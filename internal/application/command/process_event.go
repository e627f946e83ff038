// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"
	"log/slog"

	"github.com/tutormesh/tutormesh/internal/domain/progress"
	"github.com/tutormesh/tutormesh/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROCESS LEARNING EVENT COMMAND
// Applies one validated learning event to per-student mastery state:
// received → validated → scored → persisted → acknowledged, exiting at
// rejected (validation) or persist_failed (store error). The processor never
// retries; the consumer owns the retry/dead-letter decision.
// ══════════════════════════════════════════════════════════════════════════════

// Stage names for structured logging of the per-event state machine.
const (
	StageReceived      = "received"
	StageValidated     = "validated"
	StageScored        = "scored"
	StagePersisted     = "persisted"
	StageAcknowledged  = "acknowledged"
	StageRejected      = "rejected"
	StagePersistFailed = "persist_failed"
)

// ProcessLearningEvent applies learning events to the state store via the
// mastery scorer. One instance is shared by all consumer tasks; it holds no
// per-event state and is safe for concurrent use.
type ProcessLearningEvent struct {
	store   progress.StateStore
	history progress.HistoryStore
	scorer  *progress.Scorer
	bus     shared.EventPublisher
	logger  *slog.Logger
}

// NewProcessLearningEvent creates the command handler. history and bus are
// optional: a nil history skips trend bookkeeping, a nil bus skips snapshot
// aggregation.
func NewProcessLearningEvent(
	store progress.StateStore,
	history progress.HistoryStore,
	scorer *progress.Scorer,
	bus shared.EventPublisher,
	logger *slog.Logger,
) *ProcessLearningEvent {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProcessLearningEvent{
		store:   store,
		history: history,
		scorer:  scorer,
		bus:     bus,
		logger:  logger.With("component", "process_learning_event"),
	}
}

// Execute runs the full state machine for one event. It returns nil only
// when the mastery record was persisted; a validation failure returns a
// shared.ErrValidation-wrapped error with no state mutated, and a store
// failure returns a shared.ErrStoreUnavailable-wrapped error.
func (h *ProcessLearningEvent) Execute(ctx context.Context, event *progress.LearningEvent) error {
	log := h.logger.With("event_id", eventID(event))
	log.Debug("processing learning event", "stage", StageReceived)

	// Stage 1: validation. On failure, no partial writes.
	if err := event.Validate(); err != nil {
		log.Warn("learning event rejected",
			"stage", StageRejected,
			"error", err,
		)
		return err
	}
	log.Debug("learning event valid",
		"stage", StageValidated,
		"student_id", event.StudentID,
		"topic_id", event.TopicID,
	)

	// The prior record is read only to let the snapshot aggregator detect
	// a topic crossing the completion threshold. A read failure here is
	// tolerated: the event is still applied, the prior is treated as
	// unknown.
	prior, err := h.store.GetRecord(ctx, event.StudentID, event.TopicID)
	if err != nil {
		log.Warn("prior record unavailable, continuing without it", "error", err)
		prior = nil
	}

	// Stage 2: scoring. Pure CPU work, no suspension.
	session := event.SessionData()
	record := h.scorer.Compute(event.StudentID, event.TopicID, session)
	log.Debug("mastery computed",
		"stage", StageScored,
		"mastery_level", record.MasteryLevel,
		"confidence", record.Confidence,
	)

	// Stage 3: persistence through the state store, the sole writer.
	if err := h.store.SaveRecord(ctx, &record); err != nil {
		log.Error("mastery record persist failed",
			"stage", StagePersistFailed,
			"error", err,
		)
		return shared.WrapError("progress", "Process", shared.ErrStoreUnavailable, "persist mastery record", err)
	}
	log.Debug("mastery record persisted", "stage", StagePersisted)

	// History append is best-effort: trend analysis degrades, processing
	// does not fail.
	if h.history != nil {
		if err := h.history.AppendRecord(ctx, &record); err != nil {
			log.Warn("history append failed", "error", err)
		}
	}

	// Stage 4: notify the snapshot aggregation path.
	if h.bus != nil {
		updated := progress.NewMasteryUpdatedEvent(&record, prior, session.TimeSpent)
		if err := h.bus.Publish(updated); err != nil {
			log.Warn("mastery update publish failed", "error", err)
		}
	}

	log.Debug("learning event acknowledged", "stage", StageAcknowledged)
	return nil
}

func eventID(event *progress.LearningEvent) string {
	if event == nil {
		return ""
	}
	return event.EventID
}
