package redis

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/tutormesh/tutormesh/internal/domain/progress"
	"github.com/tutormesh/tutormesh/internal/domain/shared"
	"github.com/tutormesh/tutormesh/pkg/circuitbreaker"
)

// fakeBackend implements jsonStore over an in-process map, mirroring the
// Client contract: absent keys surface ErrKeyNotFound, and a configured
// failure is returned from every call.
type fakeBackend struct {
	data map[string][]byte
	err  error
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{data: make(map[string][]byte)}
}

func (f *fakeBackend) SetJSON(_ context.Context, key string, value interface{}) error {
	if f.err != nil {
		return f.err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return ErrSerialization
	}
	f.data[key] = raw
	return nil
}

func (f *fakeBackend) GetJSON(_ context.Context, key string, dest interface{}) error {
	if f.err != nil {
		return f.err
	}
	raw, ok := f.data[key]
	if !ok {
		return ErrKeyNotFound
	}
	return json.Unmarshal(raw, dest)
}

func TestMasteryKey(t *testing.T) {
	assert.Equal(t, "mastery:student-1:recursion", MasteryKey("student-1", "recursion"))
}

func TestSnapshotKey(t *testing.T) {
	assert.Equal(t, "snapshot:student-1", SnapshotKey("student-1"))
}

func TestConfigAddr(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Host = "redis.internal"
	cfg.Port = 6380
	assert.Equal(t, "redis.internal:6380", cfg.Addr())
}

func TestMasteryStoreRecordRoundTrip(t *testing.T) {
	store := NewMasteryStore(newFakeBackend())
	record := &progress.MasteryRecord{
		StudentID:       "student-1",
		TopicID:         "recursion",
		MasteryLevel:    0.72,
		Confidence:      0.61,
		Recommendations: []string{"continue_topic"},
		Timestamp:       time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC),
	}

	assert.NoError(t, store.SaveRecord(context.Background(), record))

	got, err := store.GetRecord(context.Background(), "student-1", "recursion")
	assert.NoError(t, err)
	assert.Equal(t, record, got)
}

func TestMasteryStoreSnapshotRoundTrip(t *testing.T) {
	store := NewMasteryStore(newFakeBackend())
	snapshot := &progress.StudentSnapshot{
		StudentID:       "student-1",
		TotalTime:       540,
		TopicsCompleted: 2,
		TotalSessions:   9,
	}

	assert.NoError(t, store.SaveSnapshot(context.Background(), snapshot))

	got, err := store.GetSnapshot(context.Background(), "student-1")
	assert.NoError(t, err)
	assert.Equal(t, snapshot, got)
}

func TestMasteryStoreMissReturnsNilNil(t *testing.T) {
	store := NewMasteryStore(newFakeBackend())

	record, err := store.GetRecord(context.Background(), "student-1", "recursion")
	assert.NoError(t, err)
	assert.Nil(t, record)

	snapshot, err := store.GetSnapshot(context.Background(), "student-1")
	assert.NoError(t, err)
	assert.Nil(t, snapshot)
}

func TestMasteryStoreBackendFailureWrapsStoreUnavailable(t *testing.T) {
	backend := newFakeBackend()
	backend.err = ErrConnection
	store := NewMasteryStore(backend)
	record := &progress.MasteryRecord{StudentID: "student-1", TopicID: "recursion"}

	err := store.SaveRecord(context.Background(), record)
	assert.ErrorIs(t, err, shared.ErrStoreUnavailable)

	_, err = store.GetRecord(context.Background(), "student-1", "recursion")
	assert.ErrorIs(t, err, shared.ErrStoreUnavailable)

	err = store.SaveSnapshot(context.Background(), &progress.StudentSnapshot{StudentID: "student-1"})
	assert.ErrorIs(t, err, shared.ErrStoreUnavailable)

	_, err = store.GetSnapshot(context.Background(), "student-1")
	assert.ErrorIs(t, err, shared.ErrStoreUnavailable)
}

func TestMasteryStoreBreakerIgnoresKeyMisses(t *testing.T) {
	breaker := circuitbreaker.New("test-backend",
		circuitbreaker.WithFailureThreshold(2),
		circuitbreaker.WithIsFailure(func(err error) bool {
			return !errors.Is(err, ErrKeyNotFound) && !errors.Is(err, ErrSerialization)
		}),
	)
	store := NewMasteryStore(newFakeBackend(), WithBreaker(breaker))

	for i := 0; i < 10; i++ {
		record, err := store.GetRecord(context.Background(), "student-1", "recursion")
		assert.NoError(t, err)
		assert.Nil(t, record)
	}
	assert.Equal(t, circuitbreaker.StateClosed, breaker.State())
}

func TestMasteryStoreBreakerOpensOnBackendFailures(t *testing.T) {
	backend := newFakeBackend()
	backend.err = ErrConnection
	breaker := circuitbreaker.New("test-backend",
		circuitbreaker.WithFailureThreshold(2),
	)
	store := NewMasteryStore(backend, WithBreaker(breaker))

	for i := 0; i < 2; i++ {
		_, err := store.GetRecord(context.Background(), "student-1", "recursion")
		assert.ErrorIs(t, err, shared.ErrStoreUnavailable)
	}
	assert.Equal(t, circuitbreaker.StateOpen, breaker.State())

	// The open breaker short-circuits without touching the backend, and
	// the caller still sees the store-unavailable kind.
	_, err := store.GetRecord(context.Background(), "student-1", "recursion")
	assert.ErrorIs(t, err, shared.ErrStoreUnavailable)
	assert.ErrorIs(t, err, circuitbreaker.ErrCircuitOpen)
}
