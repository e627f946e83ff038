package progress

import (
	"github.com/tutormesh/tutormesh/internal/domain/shared"
)

// MasteryUpdatedEvent is emitted after a mastery record has been persisted.
// It drives the snapshot aggregation path; record and snapshot writes are
// independent last-write-wins cells, so handlers must tolerate races.
type MasteryUpdatedEvent struct {
	shared.BaseEvent

	StudentID    string  `json:"student_id"`
	TopicID      string  `json:"topic_id"`
	MasteryLevel float64 `json:"mastery_level"`
	Confidence   float64 `json:"confidence"`

	// SessionSeconds is the time spent in the session that produced
	// the update, for snapshot time accounting.
	SessionSeconds int `json:"session_seconds"`

	// PreviousMastery and HadPrior describe the record that was
	// overwritten, so handlers can detect a topic crossing the
	// completion threshold exactly once.
	PreviousMastery float64 `json:"previous_mastery"`
	HadPrior        bool    `json:"had_prior"`
}

// NewMasteryUpdatedEvent creates the event for a freshly persisted record.
// prior may be nil when this is the first record for the pair.
func NewMasteryUpdatedEvent(record *MasteryRecord, prior *MasteryRecord, sessionSeconds int) *MasteryUpdatedEvent {
	e := &MasteryUpdatedEvent{
		BaseEvent:      shared.NewBaseEvent(shared.EventMasteryUpdated, record.StudentID),
		StudentID:      record.StudentID,
		TopicID:        record.TopicID,
		MasteryLevel:   record.MasteryLevel,
		Confidence:     record.Confidence,
		SessionSeconds: sessionSeconds,
	}
	if prior != nil {
		e.HadPrior = true
		e.PreviousMastery = prior.MasteryLevel
	}
	return e
}

// Payload implements shared.Event.
func (e *MasteryUpdatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"student_id":      e.StudentID,
		"topic_id":        e.TopicID,
		"mastery_level":   e.MasteryLevel,
		"confidence":      e.Confidence,
		"session_seconds": e.SessionSeconds,
		"had_prior":       e.HadPrior,
	}
}
