package amqp

import (
	"encoding/json"
	"time"
)

// EventType distinguishes backup message kinds.
type EventType string

const (
	EventSync   EventType = "sync"
	EventDelete EventType = "delete"
)

// RecordEvent is a lightweight backup message. It carries only the record
// identity; the worker fetches the full row from the database.
type RecordEvent struct {
	Type       EventType `json:"type"`
	Collection string    `json:"collection"`
	ID         string    `json:"id"`
	Version    int64     `json:"version"`
	Timestamp  time.Time `json:"timestamp"`
}

// NewSyncEvent creates a message asking the worker to mirror a record.
func NewSyncEvent(collection, id string, version int64) *RecordEvent {
	return &RecordEvent{
		Type:       EventSync,
		Collection: collection,
		ID:         id,
		Version:    version,
		Timestamp:  time.Now(),
	}
}

// NewDeleteEvent creates a message asking the worker to drop a mirrored record.
func NewDeleteEvent(collection, id string) *RecordEvent {
	return &RecordEvent{
		Type:       EventDelete,
		Collection: collection,
		ID:         id,
		Timestamp:  time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *RecordEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// RecordEventFromJSON creates a message from JSON bytes
func RecordEventFromJSON(data []byte) (*RecordEvent, error) {
	var msg RecordEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
