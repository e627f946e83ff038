package redis

import (
	"context"
	"errors"
	"time"

	"github.com/tutormesh/tutormesh/internal/domain/progress"
	"github.com/tutormesh/tutormesh/internal/domain/shared"
	"github.com/tutormesh/tutormesh/pkg/circuitbreaker"
)

// Key prefixes for namespacing state keys. The entity type leads the
// composite key, so record types can never collide.
const (
	// PrefixMastery is the prefix for per (student, topic) mastery records.
	PrefixMastery = "mastery:"

	// PrefixSnapshot is the prefix for per-student snapshots.
	PrefixSnapshot = "snapshot:"
)

// MasteryKey builds the composite key for a mastery record.
func MasteryKey(studentID, topicID string) string {
	return PrefixMastery + studentID + ":" + topicID
}

// SnapshotKey builds the key for a student snapshot.
func SnapshotKey(studentID string) string {
	return PrefixSnapshot + studentID
}

// jsonStore is the slice of Client the store depends on.
type jsonStore interface {
	SetJSON(ctx context.Context, key string, value interface{}) error
	GetJSON(ctx context.Context, key string, dest interface{}) error
}

// MasteryStore implements progress.StateStore in backed mode. Every call is
// bounded by OpTimeout and guarded by a circuit breaker so that a dead
// backend fails fast instead of blocking consumer tasks. Backend failures
// surface wrapped in shared.ErrStoreUnavailable; the store itself never
// retries.
type MasteryStore struct {
	client    jsonStore
	breaker   *circuitbreaker.CircuitBreaker
	opTimeout time.Duration
}

// StoreOption configures a MasteryStore.
type StoreOption func(*MasteryStore)

// WithOpTimeout bounds each state call (default 3s).
func WithOpTimeout(d time.Duration) StoreOption {
	return func(s *MasteryStore) {
		if d > 0 {
			s.opTimeout = d
		}
	}
}

// WithBreaker replaces the default circuit breaker.
func WithBreaker(cb *circuitbreaker.CircuitBreaker) StoreOption {
	return func(s *MasteryStore) {
		if cb != nil {
			s.breaker = cb
		}
	}
}

// NewMasteryStore creates the backed-mode state store.
func NewMasteryStore(client jsonStore, opts ...StoreOption) *MasteryStore {
	s := &MasteryStore{
		client: client,
		// A key miss or a bad payload is an answer, not a backend
		// failure; only real backend errors trip the breaker.
		breaker: circuitbreaker.New("state-backend",
			circuitbreaker.WithIsFailure(func(err error) bool {
				return !errors.Is(err, ErrKeyNotFound) && !errors.Is(err, ErrSerialization)
			}),
		),
		opTimeout: 3 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SaveRecord writes the record under its composite key, last-write-wins.
func (s *MasteryStore) SaveRecord(ctx context.Context, record *progress.MasteryRecord) error {
	key := MasteryKey(record.StudentID, record.TopicID)
	err := s.execute(ctx, func(ctx context.Context) error {
		return s.client.SetJSON(ctx, key, record)
	})
	if err != nil {
		return shared.WrapError("statestore", "SaveRecord", shared.ErrStoreUnavailable, key, err)
	}
	return nil
}

// GetRecord reads the record for the pair; (nil, nil) when absent.
func (s *MasteryStore) GetRecord(ctx context.Context, studentID, topicID string) (*progress.MasteryRecord, error) {
	key := MasteryKey(studentID, topicID)
	var record progress.MasteryRecord
	err := s.execute(ctx, func(ctx context.Context) error {
		return s.client.GetJSON(ctx, key, &record)
	})
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return nil, nil
		}
		return nil, shared.WrapError("statestore", "GetRecord", shared.ErrStoreUnavailable, key, err)
	}
	return &record, nil
}

// SaveSnapshot writes the snapshot under its key, last-write-wins.
func (s *MasteryStore) SaveSnapshot(ctx context.Context, snapshot *progress.StudentSnapshot) error {
	key := SnapshotKey(snapshot.StudentID)
	err := s.execute(ctx, func(ctx context.Context) error {
		return s.client.SetJSON(ctx, key, snapshot)
	})
	if err != nil {
		return shared.WrapError("statestore", "SaveSnapshot", shared.ErrStoreUnavailable, key, err)
	}
	return nil
}

// GetSnapshot reads the snapshot for the student; (nil, nil) when absent.
func (s *MasteryStore) GetSnapshot(ctx context.Context, studentID string) (*progress.StudentSnapshot, error) {
	key := SnapshotKey(studentID)
	var snapshot progress.StudentSnapshot
	err := s.execute(ctx, func(ctx context.Context) error {
		return s.client.GetJSON(ctx, key, &snapshot)
	})
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return nil, nil
		}
		return nil, shared.WrapError("statestore", "GetSnapshot", shared.ErrStoreUnavailable, key, err)
	}
	return &snapshot, nil
}

// execute runs one state call under the per-call timeout and the breaker.
func (s *MasteryStore) execute(ctx context.Context, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()
	return s.breaker.Execute(ctx, fn)
}
