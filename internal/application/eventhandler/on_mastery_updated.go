// Package eventhandler contains handlers for domain events.
package eventhandler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tutormesh/tutormesh/internal/domain/progress"
	"github.com/tutormesh/tutormesh/internal/domain/shared"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON MASTERY UPDATED HANDLER
// Maintains the per-student snapshot rollup: session counts, accumulated
// study time, and topics completed. Runs on the in-process bus after each
// persisted mastery record.
//
// Snapshot and record writes are independent last-write-wins cells; a race
// between two concurrent updates for the same student is accepted, not
// corrected.
// ═══════════════════════════════════════════════════════════════════════════

// SnapshotConfig tunes snapshot aggregation.
type SnapshotConfig struct {
	// CompletionThreshold is the mastery level at which a topic counts
	// as completed. A topic is counted once, when it first crosses the
	// threshold.
	CompletionThreshold float64

	// StoreTimeout bounds the state store calls made by the handler.
	StoreTimeout time.Duration
}

// DefaultSnapshotConfig returns the default aggregation settings.
func DefaultSnapshotConfig() SnapshotConfig {
	return SnapshotConfig{
		CompletionThreshold: 0.8,
		StoreTimeout:        3 * time.Second,
	}
}

// OnMasteryUpdatedHandler folds mastery updates into student snapshots.
type OnMasteryUpdatedHandler struct {
	store  progress.StateStore
	config SnapshotConfig
	logger *slog.Logger
}

// NewOnMasteryUpdatedHandler creates the handler.
func NewOnMasteryUpdatedHandler(store progress.StateStore, config SnapshotConfig, logger *slog.Logger) *OnMasteryUpdatedHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if config.CompletionThreshold <= 0 || config.CompletionThreshold > 1 {
		config.CompletionThreshold = DefaultSnapshotConfig().CompletionThreshold
	}
	if config.StoreTimeout <= 0 {
		config.StoreTimeout = DefaultSnapshotConfig().StoreTimeout
	}
	return &OnMasteryUpdatedHandler{
		store:  store,
		config: config,
		logger: logger.With("component", "snapshot_aggregator"),
	}
}

// Handle implements shared.EventHandler via HandlerFunc.
func (h *OnMasteryUpdatedHandler) Handle(event shared.Event) error {
	updated, ok := event.(*progress.MasteryUpdatedEvent)
	if !ok {
		return fmt.Errorf("snapshot_aggregator: unexpected event type %s", event.EventType())
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.StoreTimeout)
	defer cancel()

	snapshot, err := h.store.GetSnapshot(ctx, updated.StudentID)
	if err != nil {
		return fmt.Errorf("snapshot_aggregator: load snapshot: %w", err)
	}
	if snapshot == nil {
		snapshot = &progress.StudentSnapshot{StudentID: updated.StudentID}
	}

	snapshot.TotalSessions++
	snapshot.TotalTime += updated.SessionSeconds
	if h.newlyCompleted(updated) {
		snapshot.TopicsCompleted++
	}

	if err := h.store.SaveSnapshot(ctx, snapshot); err != nil {
		return fmt.Errorf("snapshot_aggregator: save snapshot: %w", err)
	}

	h.logger.Debug("snapshot updated",
		"student_id", snapshot.StudentID,
		"total_sessions", snapshot.TotalSessions,
		"topics_completed", snapshot.TopicsCompleted,
	)
	return nil
}

// HandlerFunc adapts the handler to the event bus signature.
func (h *OnMasteryUpdatedHandler) HandlerFunc() shared.EventHandler {
	return h.Handle
}

// newlyCompleted reports whether this update moved the topic across the
// completion threshold for the first time.
func (h *OnMasteryUpdatedHandler) newlyCompleted(e *progress.MasteryUpdatedEvent) bool {
	if e.MasteryLevel < h.config.CompletionThreshold {
		return false
	}
	return !e.HadPrior || e.PreviousMastery < h.config.CompletionThreshold
}
