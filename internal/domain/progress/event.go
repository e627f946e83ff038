package progress

import (
	"encoding/json"
	"time"

	"github.com/tutormesh/tutormesh/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEARNING EVENT
// The only bit-exact wire contract the pipeline depends on. Produced by the
// agent services, consumed exactly once, discarded after processing.
// ══════════════════════════════════════════════════════════════════════════════

// Action identifies what kind of learning activity produced an event.
type Action string

// Known learning event actions. The action set is open: validation only
// requires the field to be non-empty so that new agents can introduce
// actions without a coordinated schema change.
const (
	ActionSessionCompleted  Action = "session_completed"
	ActionExerciseSubmitted Action = "exercise_submitted"
	ActionConceptReviewed   Action = "concept_reviewed"
	ActionDebugResolved     Action = "debug_resolved"
)

// Score bounds for inbound events.
const (
	MinScore = 0.0
	MaxScore = 100.0
)

// LearningEvent is an immutable event describing a single learning activity.
// Unknown JSON fields are ignored for forward compatibility.
type LearningEvent struct {
	// EventID is an optional producer-assigned identifier. The consumer
	// assigns one when absent, for dead-letter correlation.
	EventID string `json:"event_id,omitempty"`

	// StudentID identifies the student. Required.
	StudentID string `json:"student_id"`

	// TopicID identifies the topic being studied. Required.
	TopicID string `json:"topic_id"`

	// Timestamp is when the activity occurred, RFC3339. Required.
	Timestamp string `json:"timestamp"`

	// Action is the activity type. Required, open enum.
	Action string `json:"action"`

	// Score is the session score in [0,100]. Required; a pointer so that
	// an absent field is distinguishable from an explicit zero.
	Score *float64 `json:"score"`

	// TimeSpent is the session duration in seconds. Optional. Encodes as
	// "time_spent"; "time" is accepted on decode as an alias because some
	// producers emit the short form.
	TimeSpent int `json:"time_spent,omitempty"`
}

// UnmarshalJSON decodes an event, treating "time" as an alias for
// "time_spent". When both are present, "time_spent" wins.
func (e *LearningEvent) UnmarshalJSON(data []byte) error {
	type plain LearningEvent
	aux := struct {
		*plain
		Time int `json:"time"`
	}{plain: (*plain)(e)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if e.TimeSpent == 0 && aux.Time > 0 {
		e.TimeSpent = aux.Time
	}
	return nil
}

// Validate checks that all required fields are present and well-formed.
// It returns an error wrapping shared.ErrValidation; the caller decides
// whether to drop or dead-letter the event. Validation never mutates state.
func (e *LearningEvent) Validate() error {
	if e == nil {
		return shared.NewDomainError("progress", "Validate", shared.ErrValidation, "event is nil")
	}
	if e.StudentID == "" {
		return shared.NewDomainError("progress", "Validate", shared.ErrValidation, "student_id is required")
	}
	if e.TopicID == "" {
		return shared.NewDomainError("progress", "Validate", shared.ErrValidation, "topic_id is required")
	}
	if e.Action == "" {
		return shared.NewDomainError("progress", "Validate", shared.ErrValidation, "action is required")
	}
	if e.Timestamp == "" {
		return shared.NewDomainError("progress", "Validate", shared.ErrValidation, "timestamp is required")
	}
	if _, err := time.Parse(time.RFC3339, e.Timestamp); err != nil {
		return shared.WrapError("progress", "Validate", shared.ErrValidation, "timestamp is not RFC3339", err)
	}
	if e.Score == nil {
		return shared.NewDomainError("progress", "Validate", shared.ErrValidation, "score is required")
	}
	if *e.Score < MinScore || *e.Score > MaxScore {
		return shared.NewDomainError("progress", "Validate", shared.ErrValueOutOfRange, "score must be within [0,100]")
	}
	return nil
}

// IsValid reports whether the event passes validation.
func (e *LearningEvent) IsValid() bool {
	return e.Validate() == nil
}

// OccurredAt returns the parsed event timestamp. Call after Validate.
func (e *LearningEvent) OccurredAt() time.Time {
	t, _ := time.Parse(time.RFC3339, e.Timestamp)
	return t
}

// SessionData derives the ephemeral scoring input from the event.
// Call after Validate; a nil score contributes zero.
func (e *LearningEvent) SessionData() SessionData {
	var score float64
	if e.Score != nil {
		score = *e.Score
	}
	return SessionData{
		Score:      score,
		TimeSpent:  e.TimeSpent,
		ObservedAt: e.OccurredAt(),
	}
}

// DecodeLearningEvent parses a raw broker message into a LearningEvent.
// A parse failure is a DecodeError, never a crash of the consumer loop.
func DecodeLearningEvent(data []byte) (*LearningEvent, error) {
	var event LearningEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, shared.WrapError("progress", "Decode", shared.ErrDecode, "malformed learning event", err)
	}
	return &event, nil
}

// SessionData is the ephemeral input consumed only by the Scorer.
// Missing values default to zero contribution rather than failing.
// It is never persisted directly.
type SessionData struct {
	// Score in [0,100]; zero when the event carried none.
	Score float64

	// TimeSpent in seconds; zero when unknown.
	TimeSpent int

	// ObservedAt is the event timestamp, carried through so that scoring
	// stays deterministic for identical input.
	ObservedAt time.Time
}
