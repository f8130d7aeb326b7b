package events

import (
	"time"

	"github.com/Ramsey-B/clover/pkg/models"
)

// SchemaVersion is the current event schema version
const SchemaVersion = "1.0"

// EventType defines the type of event
type EventType string

const (
	EventTypeAccountMerged EventType = "account.merged"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventType     EventType `json:"event_type"`
	SchemaVersion string    `json:"schema_version"`
	Timestamp     time.Time `json:"timestamp"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// AccountMergedEvent is emitted after a merge commits
type AccountMergedEvent struct {
	BaseEvent
	TargetID    string            `json:"target_id"`
	SourceID    string            `json:"source_id"`
	SourceEmail string            `json:"source_email"`
	MergedBy    string            `json:"merged_by"`
	AuditNoteID string            `json:"audit_note_id"`
	Stats       models.MergeStats `json:"stats"`
}
