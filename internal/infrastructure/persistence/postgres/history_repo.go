package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/tutormesh/tutormesh/internal/domain/progress"
)

// HistoryRepository implements progress.HistoryStore using PostgreSQL.
type HistoryRepository struct {
	conn *Connection
}

// NewHistoryRepository creates a new HistoryRepository.
func NewHistoryRepository(conn *Connection) *HistoryRepository {
	return &HistoryRepository{conn: conn}
}

// AppendRecord inserts one history row for a persisted mastery record.
func (r *HistoryRepository) AppendRecord(ctx context.Context, record *progress.MasteryRecord) error {
	ctx, cancel := context.WithTimeout(ctx, r.conn.config.QueryTimeout)
	defer cancel()

	_, err := r.conn.pool.Exec(ctx, `
		INSERT INTO mastery_history
			(student_id, topic_id, mastery_level, confidence, recommendations, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		record.StudentID,
		record.TopicID,
		record.MasteryLevel,
		record.Confidence,
		record.Recommendations,
		record.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("postgres: append mastery history: %w", err)
	}
	return nil
}

// RecordsSince returns the pair's history from the cutoff on, oldest first.
func (r *HistoryRepository) RecordsSince(ctx context.Context, studentID, topicID string, since time.Time) ([]progress.MasteryRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, r.conn.config.QueryTimeout)
	defer cancel()

	rows, err := r.conn.pool.Query(ctx, `
		SELECT student_id, topic_id, mastery_level, confidence, recommendations, recorded_at
		FROM mastery_history
		WHERE student_id = $1 AND topic_id = $2 AND recorded_at >= $3
		ORDER BY recorded_at ASC`,
		studentID, topicID, since,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: query mastery history: %w", err)
	}
	defer rows.Close()

	var records []progress.MasteryRecord
	for rows.Next() {
		var rec progress.MasteryRecord
		if err := rows.Scan(
			&rec.StudentID,
			&rec.TopicID,
			&rec.MasteryLevel,
			&rec.Confidence,
			&rec.Recommendations,
			&rec.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan mastery history: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate mastery history: %w", err)
	}
	return records, nil
}
