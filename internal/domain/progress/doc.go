// Package progress is the core domain of the tutor mesh progress pipeline.
//
// It models learning events flowing in from the agent services, the mastery
// records derived from them, and the per-student snapshots aggregated on top.
//
// Key types:
//   - LearningEvent: immutable inbound event describing a study session.
//   - SessionData: ephemeral scoring input derived from a learning event.
//   - MasteryRecord: per (student, topic) mastery estimate, last-write-wins.
//   - StudentSnapshot: per-student rollup independent of topic records.
//   - Scorer: deterministic mastery scoring and trend analysis.
//
// Persistence is abstracted behind StateStore (current records and snapshots)
// and HistoryStore (append-only record history used for trend analysis). The
// application layer never writes persisted state except through these
// interfaces.
package progress
