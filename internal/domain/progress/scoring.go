package progress

import (
	"fmt"
	"sort"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// MASTERY SCORER
// Pure, deterministic scoring: identical input always yields identical
// output, so replaying the same event is idempotent. No hidden randomness,
// no clock reads - the record timestamp comes from the session itself.
// ══════════════════════════════════════════════════════════════════════════════

// ScorerConfig tunes the mastery computation.
type ScorerConfig struct {
	// ScoreWeight is the share of mastery attributed to the session score.
	ScoreWeight float64

	// TimeWeight is the share attributed to time on task.
	TimeWeight float64

	// TargetSessionSeconds is the session length that earns full time
	// credit; longer sessions are capped, shorter earn proportionally.
	TargetSessionSeconds float64

	// RemedialThreshold is the mastery level below which remedial
	// recommendations are issued.
	RemedialThreshold float64

	// AdvanceThreshold is the mastery level at or above which advancement
	// recommendations are issued.
	AdvanceThreshold float64

	// BaseConfidence is the confidence floor for any scored session.
	BaseConfidence float64

	// TrendHorizonDays is how far ahead Trend projects mastery.
	TrendHorizonDays float64
}

// DefaultScorerConfig returns the tuning used in production.
func DefaultScorerConfig() ScorerConfig {
	return ScorerConfig{
		ScoreWeight:          0.85,
		TimeWeight:           0.15,
		TargetSessionSeconds: 1800, // 30 minutes
		RemedialThreshold:    0.4,
		AdvanceThreshold:     0.75,
		BaseConfidence:       0.3,
		TrendHorizonDays:     7,
	}
}

// Scorer computes mastery records and trends from session statistics.
type Scorer struct {
	config ScorerConfig
}

// NewScorer creates a Scorer with the given configuration.
func NewScorer(config ScorerConfig) *Scorer {
	if config.ScoreWeight <= 0 && config.TimeWeight <= 0 {
		config = DefaultScorerConfig()
	}
	return &Scorer{config: config}
}

// Compute derives a MasteryRecord from session statistics.
//
// Missing inputs contribute zero rather than failing: a session with no
// score and no time yields zero mastery with base confidence. MasteryLevel
// and Confidence are always within [0,1] and Recommendations is never empty.
func (s *Scorer) Compute(studentID, topicID string, session SessionData) MasteryRecord {
	normScore := clamp01(session.Score / MaxScore)
	timeFactor := clamp01(float64(session.TimeSpent) / s.config.TargetSessionSeconds)

	mastery := clamp01(s.config.ScoreWeight*normScore + s.config.TimeWeight*timeFactor)
	confidence := clamp01(s.config.BaseConfidence + 0.5*timeFactor + 0.2*normScore)

	return MasteryRecord{
		StudentID:       studentID,
		TopicID:         topicID,
		MasteryLevel:    mastery,
		Confidence:      confidence,
		Recommendations: s.recommend(topicID, mastery),
		Timestamp:       session.ObservedAt,
	}
}

// recommend picks recommendations by thresholding over the mastery level.
// Always returns at least one entry.
func (s *Scorer) recommend(topicID string, mastery float64) []string {
	switch {
	case mastery < s.config.RemedialThreshold:
		return []string{
			fmt.Sprintf("Revisit the fundamentals of %s", topicID),
			fmt.Sprintf("Request a guided walkthrough of %s from the concepts agent", topicID),
		}
	case mastery < s.config.AdvanceThreshold:
		return []string{
			fmt.Sprintf("Keep practicing %s with mixed exercises", topicID),
		}
	default:
		return []string{
			"Advance to the next topic",
			fmt.Sprintf("Attempt a challenge exercise for %s", topicID),
		}
	}
}

// Trend computes the mastery trend for a (student, topic) pair from its
// record history. Callers window the history before passing it in, via
// WindowStart and the history store. With no history it returns a flat zero
// trend rather than failing; with a single record the rate is zero and the
// prediction is that record's mastery. The prediction is clamped to [0,1].
func (s *Scorer) Trend(studentID, topicID string, history []MasteryRecord) TrendSummary {
	summary := TrendSummary{
		StudentID: studentID,
		TopicID:   topicID,
		Samples:   len(history),
	}
	if len(history) == 0 {
		return summary
	}

	records := make([]MasteryRecord, len(history))
	copy(records, history)
	sort.Slice(records, func(i, j int) bool {
		return records[i].Timestamp.Before(records[j].Timestamp)
	})

	latest := records[len(records)-1].MasteryLevel
	if len(records) == 1 {
		summary.PredictedMastery = clamp01(latest)
		return summary
	}

	// Least-squares slope of mastery over days since the first record.
	origin := records[0].Timestamp
	var sumX, sumY, sumXY, sumXX float64
	for _, r := range records {
		x := r.Timestamp.Sub(origin).Hours() / 24
		y := r.MasteryLevel
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}
	n := float64(len(records))
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		// All records share one timestamp; no direction to extract.
		summary.PredictedMastery = clamp01(latest)
		return summary
	}

	rate := (n*sumXY - sumX*sumY) / denom
	summary.ImprovementRate = rate
	summary.PredictedMastery = clamp01(latest + rate*s.config.TrendHorizonDays)
	return summary
}

// WindowStart returns the history cutoff for a trend window ending at ref.
func WindowStart(ref time.Time, windowDays int) time.Time {
	if windowDays <= 0 {
		windowDays = 30
	}
	return ref.AddDate(0, 0, -windowDays)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
