package postgres

// migrationTableDDL tracks applied schema versions.
const migrationTableDDL = `
CREATE TABLE IF NOT EXISTS schema_migrations (
    version INTEGER PRIMARY KEY,
    name VARCHAR(100) NOT NULL,
    applied_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: CREATE MASTERY HISTORY
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
-- Migration: Create mastery_history table
-- Version: 001

-- Append-only history of persisted mastery records, one row per processed
-- learning event. Feeds trend analysis (improvement rate, predictions).
CREATE TABLE IF NOT EXISTS mastery_history (
    id BIGSERIAL PRIMARY KEY,
    student_id VARCHAR(100) NOT NULL,
    topic_id VARCHAR(100) NOT NULL,
    mastery_level DOUBLE PRECISION NOT NULL,
    confidence DOUBLE PRECISION NOT NULL,
    recommendations TEXT[] NOT NULL DEFAULT '{}',
    recorded_at TIMESTAMP WITH TIME ZONE NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    -- Constraints for data integrity
    CONSTRAINT valid_mastery_level CHECK (mastery_level >= 0 AND mastery_level <= 1),
    CONSTRAINT valid_confidence CHECK (confidence >= 0 AND confidence <= 1)
);

-- Trend queries read one (student, topic) pair over a time window.
CREATE INDEX IF NOT EXISTS idx_mastery_history_pair_time
    ON mastery_history(student_id, topic_id, recorded_at);
`

type migration struct {
	version int
	name    string
	up      string
}

// migrations lists all schema migrations in order.
var migrations = []migration{
	{version: 1, name: "create_mastery_history", up: migration001Up},
}
