package query

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/tutormesh/tutormesh/internal/domain/progress"
	"github.com/tutormesh/tutormesh/internal/infrastructure/persistence/memory"
)

func TestGetMasteryTrend_EmptyHistory(t *testing.T) {
	handler := NewGetMasteryTrendHandler(memory.NewHistoryStore(), progress.NewScorer(progress.DefaultScorerConfig()))

	trend, err := handler.Execute(context.Background(), GetMasteryTrendQuery{
		StudentID: "student-1",
		TopicID:   "recursion",
	})
	assert.NoError(t, err)
	assert.Zero(t, trend.ImprovementRate)
	assert.Zero(t, trend.PredictedMastery)
	assert.Zero(t, trend.Samples)
}

func TestGetMasteryTrend_WindowFiltersOldRecords(t *testing.T) {
	history := memory.NewHistoryStore()
	now := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)

	// One record well outside the window, two inside.
	records := []progress.MasteryRecord{
		{StudentID: "student-1", TopicID: "recursion", MasteryLevel: 0.9, Timestamp: now.AddDate(0, 0, -60)},
		{StudentID: "student-1", TopicID: "recursion", MasteryLevel: 0.4, Timestamp: now.AddDate(0, 0, -10)},
		{StudentID: "student-1", TopicID: "recursion", MasteryLevel: 0.5, Timestamp: now.AddDate(0, 0, -5)},
	}
	for i := range records {
		assert.NoError(t, history.AppendRecord(context.Background(), &records[i]))
	}

	handler := NewGetMasteryTrendHandler(history, progress.NewScorer(progress.DefaultScorerConfig()))
	trend, err := handler.Execute(context.Background(), GetMasteryTrendQuery{
		StudentID:  "student-1",
		TopicID:    "recursion",
		WindowDays: 30,
		Now:        now,
	})
	assert.NoError(t, err)
	assert.Equal(t, 2, trend.Samples)
	assert.Greater(t, trend.ImprovementRate, 0.0)
}

func TestGetMasteryTrend_Validation(t *testing.T) {
	handler := NewGetMasteryTrendHandler(memory.NewHistoryStore(), progress.NewScorer(progress.DefaultScorerConfig()))

	_, err := handler.Execute(context.Background(), GetMasteryTrendQuery{TopicID: "recursion"})
	assert.Error(t, err)

	_, err = handler.Execute(context.Background(), GetMasteryTrendQuery{StudentID: "student-1"})
	assert.Error(t, err)
}

func TestGetMasteryTrendQuery_Normalization(t *testing.T) {
	q := GetMasteryTrendQuery{StudentID: "s", TopicID: "t"}
	assert.NoError(t, q.Validate())
	assert.Equal(t, 30, q.WindowDays)
	assert.False(t, q.Now.IsZero())

	q = GetMasteryTrendQuery{StudentID: "s", TopicID: "t", WindowDays: 1000}
	assert.NoError(t, q.Validate())
	assert.Equal(t, 365, q.WindowDays)
}
