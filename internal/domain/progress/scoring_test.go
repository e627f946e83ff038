package progress

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestScorer_Compute_Bounds(t *testing.T) {
	scorer := NewScorer(DefaultScorerConfig())
	observed := time.Date(2026, 8, 30, 14, 0, 0, 0, time.UTC)

	sessions := []SessionData{
		{Score: 0, TimeSpent: 0, ObservedAt: observed},
		{Score: 100, TimeSpent: 1800, ObservedAt: observed},
		{Score: 100, TimeSpent: 7200, ObservedAt: observed},
		{Score: 42.5, TimeSpent: 300, ObservedAt: observed},
	}

	for _, session := range sessions {
		record := scorer.Compute("student-1", "recursion", session)
		assert.GreaterOrEqual(t, record.MasteryLevel, 0.0)
		assert.LessOrEqual(t, record.MasteryLevel, 1.0)
		assert.GreaterOrEqual(t, record.Confidence, 0.0)
		assert.LessOrEqual(t, record.Confidence, 1.0)
		assert.NotEmpty(t, record.Recommendations)
		assert.Equal(t, observed, record.Timestamp)
	}
}

func TestScorer_Compute_Deterministic(t *testing.T) {
	scorer := NewScorer(DefaultScorerConfig())
	session := SessionData{
		Score:      73.0,
		TimeSpent:  900,
		ObservedAt: time.Date(2026, 8, 30, 14, 0, 0, 0, time.UTC),
	}

	first := scorer.Compute("student-1", "recursion", session)
	second := scorer.Compute("student-1", "recursion", session)
	assert.Equal(t, first, second)
}

func TestScorer_Compute_WeightedBlend(t *testing.T) {
	scorer := NewScorer(DefaultScorerConfig())
	observed := time.Date(2026, 8, 30, 14, 0, 0, 0, time.UTC)

	// Perfect score at target time earns full mastery.
	full := scorer.Compute("s", "t", SessionData{Score: 100, TimeSpent: 1800, ObservedAt: observed})
	assert.InDelta(t, 1.0, full.MasteryLevel, 1e-9)

	// Perfect score with no time credit earns the score weight only.
	scoreOnly := scorer.Compute("s", "t", SessionData{Score: 100, TimeSpent: 0, ObservedAt: observed})
	assert.InDelta(t, 0.85, scoreOnly.MasteryLevel, 1e-9)

	// Time credit is capped at the target session length.
	capped := scorer.Compute("s", "t", SessionData{Score: 100, TimeSpent: 7200, ObservedAt: observed})
	assert.InDelta(t, 1.0, capped.MasteryLevel, 1e-9)

	// Empty session yields zero mastery at base confidence.
	empty := scorer.Compute("s", "t", SessionData{ObservedAt: observed})
	assert.InDelta(t, 0.0, empty.MasteryLevel, 1e-9)
	assert.InDelta(t, 0.3, empty.Confidence, 1e-9)
}

func TestScorer_Compute_Recommendations(t *testing.T) {
	scorer := NewScorer(DefaultScorerConfig())
	observed := time.Date(2026, 8, 30, 14, 0, 0, 0, time.UTC)

	low := scorer.Compute("s", "loops", SessionData{Score: 20, ObservedAt: observed})
	assert.Contains(t, low.Recommendations[0], "fundamentals")
	assert.Contains(t, low.Recommendations[0], "loops")

	mid := scorer.Compute("s", "loops", SessionData{Score: 60, TimeSpent: 900, ObservedAt: observed})
	assert.Contains(t, mid.Recommendations[0], "practicing")

	high := scorer.Compute("s", "loops", SessionData{Score: 100, TimeSpent: 1800, ObservedAt: observed})
	assert.Contains(t, high.Recommendations, "Advance to the next topic")
}

func TestScorer_Trend_EmptyHistory(t *testing.T) {
	scorer := NewScorer(DefaultScorerConfig())

	trend := scorer.Trend("student-1", "recursion", nil)
	assert.Equal(t, "student-1", trend.StudentID)
	assert.Equal(t, "recursion", trend.TopicID)
	assert.Zero(t, trend.ImprovementRate)
	assert.Zero(t, trend.PredictedMastery)
	assert.Zero(t, trend.Samples)
}

func TestScorer_Trend_SingleRecord(t *testing.T) {
	scorer := NewScorer(DefaultScorerConfig())
	history := []MasteryRecord{
		{MasteryLevel: 0.6, Timestamp: time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)},
	}

	trend := scorer.Trend("student-1", "recursion", history)
	assert.Zero(t, trend.ImprovementRate)
	assert.InDelta(t, 0.6, trend.PredictedMastery, 1e-9)
	assert.Equal(t, 1, trend.Samples)
}

func TestScorer_Trend_Improving(t *testing.T) {
	scorer := NewScorer(DefaultScorerConfig())
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	// Mastery grows 0.05 per day; given unsorted to verify sorting.
	history := []MasteryRecord{
		{MasteryLevel: 0.50, Timestamp: base.AddDate(0, 0, 4)},
		{MasteryLevel: 0.30, Timestamp: base},
		{MasteryLevel: 0.40, Timestamp: base.AddDate(0, 0, 2)},
	}

	trend := scorer.Trend("student-1", "recursion", history)
	assert.InDelta(t, 0.05, trend.ImprovementRate, 1e-9)
	// Latest 0.50 projected forward 7 days at 0.05/day.
	assert.InDelta(t, 0.85, trend.PredictedMastery, 1e-9)
	assert.Equal(t, 3, trend.Samples)
}

func TestScorer_Trend_PredictionClamped(t *testing.T) {
	scorer := NewScorer(DefaultScorerConfig())
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	history := []MasteryRecord{
		{MasteryLevel: 0.40, Timestamp: base},
		{MasteryLevel: 0.90, Timestamp: base.AddDate(0, 0, 1)},
	}

	trend := scorer.Trend("student-1", "recursion", history)
	assert.Equal(t, 1.0, trend.PredictedMastery)
}

func TestScorer_Trend_SameTimestamp(t *testing.T) {
	scorer := NewScorer(DefaultScorerConfig())
	at := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	history := []MasteryRecord{
		{MasteryLevel: 0.40, Timestamp: at},
		{MasteryLevel: 0.60, Timestamp: at},
	}

	trend := scorer.Trend("student-1", "recursion", history)
	assert.Zero(t, trend.ImprovementRate)
	assert.InDelta(t, 0.60, trend.PredictedMastery, 1e-9)
}

func TestWindowStart(t *testing.T) {
	ref := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, ref.AddDate(0, 0, -30), WindowStart(ref, 30))
	assert.Equal(t, ref.AddDate(0, 0, -30), WindowStart(ref, 0))
	assert.Equal(t, ref.AddDate(0, 0, -7), WindowStart(ref, 7))
}
