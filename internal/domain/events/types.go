package events

import (
	"encoding/json"
	"time"
)

// EventType defines the type of event in the system
type EventType string

const (
	// RecordChanged is published after a successful insert, update or delete.
	RecordChanged EventType = "record.changed"
	// TaskDue is published by the reminder job for tasks due soon.
	TaskDue EventType = "task.due"
)

// String returns the string representation of the event type
func (e EventType) String() string {
	return string(e)
}

// ChangeType mirrors the database change kinds delivered to subscribers.
type ChangeType string

const (
	Insert ChangeType = "INSERT"
	Update ChangeType = "UPDATE"
	Delete ChangeType = "DELETE"
)

// Change is the payload of RecordChanged and TaskDue. It is also the wire
// shape on the realtime stream and the Redis relay channel.
type Change struct {
	Event    EventType       `json:"event"`
	Type     ChangeType      `json:"type,omitempty"`
	Table    string          `json:"table"`
	RecordID string          `json:"record_id"`
	UserID   string          `json:"user_id"`
	Record   json.RawMessage `json:"record,omitempty"`
	At       time.Time       `json:"at"`
}

// NewChange builds a RecordChanged payload. record may be nil for deletes.
func NewChange(kind ChangeType, table, userID, recordID string, record interface{}) Change {
	c := Change{
		Event:    RecordChanged,
		Type:     kind,
		Table:    table,
		RecordID: recordID,
		UserID:   userID,
		At:       time.Now().UTC(),
	}
	if record != nil {
		if raw, err := json.Marshal(record); err == nil {
			c.Record = raw
		}
	}
	return c
}
