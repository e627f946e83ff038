// Package query contains read operations (CQRS - Queries).
package query

import (
	"context"
	"errors"
	"time"

	"github.com/tutormesh/tutormesh/internal/domain/progress"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET MASTERY TREND QUERY
// Computes improvement rate and predicted mastery for a (student, topic)
// pair from its record history. With no prior records the result is a flat
// zero trend, never an error.
// ══════════════════════════════════════════════════════════════════════════════

// GetMasteryTrendQuery contains the trend request parameters.
type GetMasteryTrendQuery struct {
	// StudentID is the student to analyze. Required.
	StudentID string

	// TopicID is the topic to analyze. Required.
	TopicID string

	// WindowDays bounds how far back history is read (default 30, max 365).
	WindowDays int

	// Now overrides the window reference time, for tests. Zero means
	// the current time.
	Now time.Time
}

// Validate checks and normalizes the query parameters.
func (q *GetMasteryTrendQuery) Validate() error {
	if q.StudentID == "" {
		return errors.New("get_mastery_trend: student_id is required")
	}
	if q.TopicID == "" {
		return errors.New("get_mastery_trend: topic_id is required")
	}
	if q.WindowDays <= 0 {
		q.WindowDays = 30
	}
	if q.WindowDays > 365 {
		q.WindowDays = 365
	}
	if q.Now.IsZero() {
		q.Now = time.Now().UTC()
	}
	return nil
}

// GetMasteryTrendHandler executes trend queries.
type GetMasteryTrendHandler struct {
	history progress.HistoryStore
	scorer  *progress.Scorer
}

// NewGetMasteryTrendHandler creates the query handler.
func NewGetMasteryTrendHandler(history progress.HistoryStore, scorer *progress.Scorer) *GetMasteryTrendHandler {
	return &GetMasteryTrendHandler{
		history: history,
		scorer:  scorer,
	}
}

// Execute reads the record history for the window and computes the trend.
func (h *GetMasteryTrendHandler) Execute(ctx context.Context, q GetMasteryTrendQuery) (progress.TrendSummary, error) {
	if err := q.Validate(); err != nil {
		return progress.TrendSummary{}, err
	}

	since := progress.WindowStart(q.Now, q.WindowDays)
	records, err := h.history.RecordsSince(ctx, q.StudentID, q.TopicID, since)
	if err != nil {
		return progress.TrendSummary{}, err
	}

	return h.scorer.Trend(q.StudentID, q.TopicID, records), nil
}
