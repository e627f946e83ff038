package progress

import (
	"context"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// PERSISTED RECORDS
// ══════════════════════════════════════════════════════════════════════════════

// MasteryRecord is the per (student, topic) mastery estimate.
// One record exists per pair; each new event overwrites it (last-write-wins,
// no versioning). MasteryLevel and Confidence always lie in [0,1].
type MasteryRecord struct {
	StudentID       string    `json:"student_id"`
	TopicID         string    `json:"topic_id"`
	MasteryLevel    float64   `json:"mastery_level"`
	Confidence      float64   `json:"confidence"`
	Recommendations []string  `json:"recommendations"`
	Timestamp       time.Time `json:"timestamp"`
}

// StudentSnapshot is the per-student rollup, aggregated independently of
// individual mastery records. Created on first write, no expiry.
type StudentSnapshot struct {
	StudentID       string `json:"student_id"`
	TotalTime       int    `json:"total_time"`
	TopicsCompleted int    `json:"topics_completed"`
	TotalSessions   int    `json:"total_sessions"`
}

// TrendSummary describes mastery movement for a (student, topic) pair
// over a time window.
type TrendSummary struct {
	StudentID        string  `json:"student_id"`
	TopicID          string  `json:"topic_id"`
	ImprovementRate  float64 `json:"improvement_rate"`
	PredictedMastery float64 `json:"predicted_mastery"`
	Samples          int     `json:"samples"`
}

// ══════════════════════════════════════════════════════════════════════════════
// STORE INTERFACES
// Implemented by the redis (backed mode) and memory (local mode) adapters.
// The application layer is the only caller; it never bypasses these.
// ══════════════════════════════════════════════════════════════════════════════

// StateStore persists current mastery records and student snapshots.
//
// Writes are last-write-wins; no transactional multi-key guarantee and no
// optimistic-concurrency check is provided. Implementations must be safe for
// concurrent use without external locking. Get methods return (nil, nil)
// when the key is absent; errors are reserved for backend failures and wrap
// shared.ErrStoreUnavailable.
type StateStore interface {
	SaveRecord(ctx context.Context, record *MasteryRecord) error
	GetRecord(ctx context.Context, studentID, topicID string) (*MasteryRecord, error)
	SaveSnapshot(ctx context.Context, snapshot *StudentSnapshot) error
	GetSnapshot(ctx context.Context, studentID string) (*StudentSnapshot, error)
}

// HistoryStore keeps the append-only mastery record history that feeds
// trend analysis. Appends are best-effort from the processor's point of
// view: a history failure never fails event processing.
type HistoryStore interface {
	AppendRecord(ctx context.Context, record *MasteryRecord) error
	RecordsSince(ctx context.Context, studentID, topicID string, since time.Time) ([]MasteryRecord, error)
}
