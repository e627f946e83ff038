// Package memory implements local-mode persistence for the progress
// pipeline: unconditional in-process maps used when no distributed state
// backend is configured. Contents do not survive a process restart.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/tutormesh/tutormesh/internal/domain/progress"
)

// ══════════════════════════════════════════════════════════════════════════════
// STATE STORE (local mode)
// ══════════════════════════════════════════════════════════════════════════════

// MasteryStore is the local-mode progress.StateStore. Save and Get never
// fail. Map access is guarded per store, not globally serialized with other
// stores; within a store each operation is individually atomic.
type MasteryStore struct {
	mu        sync.RWMutex
	records   map[string]progress.MasteryRecord
	snapshots map[string]progress.StudentSnapshot
}

// NewMasteryStore creates an empty local-mode store.
func NewMasteryStore() *MasteryStore {
	return &MasteryStore{
		records:   make(map[string]progress.MasteryRecord),
		snapshots: make(map[string]progress.StudentSnapshot),
	}
}

// SaveRecord stores a copy of the record, overwriting any previous value
// for the same (student, topic) pair.
func (s *MasteryStore) SaveRecord(_ context.Context, record *progress.MasteryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[recordKey(record.StudentID, record.TopicID)] = cloneRecord(*record)
	return nil
}

// GetRecord returns the record for the pair, or (nil, nil) when absent.
func (s *MasteryStore) GetRecord(_ context.Context, studentID, topicID string) (*progress.MasteryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[recordKey(studentID, topicID)]
	if !ok {
		return nil, nil
	}
	out := cloneRecord(record)
	return &out, nil
}

// SaveSnapshot stores the snapshot, overwriting any previous value.
func (s *MasteryStore) SaveSnapshot(_ context.Context, snapshot *progress.StudentSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[snapshot.StudentID] = *snapshot
	return nil
}

// GetSnapshot returns the snapshot for the student, or (nil, nil) when absent.
func (s *MasteryStore) GetSnapshot(_ context.Context, studentID string) (*progress.StudentSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snapshot, ok := s.snapshots[studentID]
	if !ok {
		return nil, nil
	}
	out := snapshot
	return &out, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HISTORY STORE (local mode)
// ══════════════════════════════════════════════════════════════════════════════

// HistoryStore is the local-mode progress.HistoryStore: an append-only
// per-pair record list held in memory.
type HistoryStore struct {
	mu      sync.RWMutex
	entries map[string][]progress.MasteryRecord
}

// NewHistoryStore creates an empty local-mode history store.
func NewHistoryStore() *HistoryStore {
	return &HistoryStore{
		entries: make(map[string][]progress.MasteryRecord),
	}
}

// AppendRecord appends a copy of the record to the pair's history.
func (s *HistoryStore) AppendRecord(_ context.Context, record *progress.MasteryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := recordKey(record.StudentID, record.TopicID)
	s.entries[key] = append(s.entries[key], cloneRecord(*record))
	return nil
}

// RecordsSince returns the pair's history from the cutoff on, oldest first.
func (s *HistoryStore) RecordsSince(_ context.Context, studentID, topicID string, since time.Time) ([]progress.MasteryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []progress.MasteryRecord
	for _, record := range s.entries[recordKey(studentID, topicID)] {
		if record.Timestamp.Before(since) {
			continue
		}
		out = append(out, cloneRecord(record))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out, nil
}

// recordKey builds the composite map key. The NUL separator keeps
// ("a:b","c") and ("a","b:c") distinct.
func recordKey(studentID, topicID string) string {
	return studentID + "\x00" + topicID
}

// cloneRecord deep-copies a record so callers cannot alias the stored slice.
func cloneRecord(r progress.MasteryRecord) progress.MasteryRecord {
	if len(r.Recommendations) > 0 {
		recs := make([]string, len(r.Recommendations))
		copy(recs, r.Recommendations)
		r.Recommendations = recs
	}
	return r
}
