// Package publisher emits pipeline events to downstream consumers.
package publisher

import (
	"context"
	"time"
)

// EventRecordInserted is emitted after a new record is persisted to the store.
const EventRecordInserted = "record.inserted"

// Publisher sends an event payload and returns the message id.
type Publisher interface {
	Publish(ctx context.Context, event string, payload any) (string, error)
}

// RecordInserted is the payload for EventRecordInserted.
type RecordInserted struct {
	RunID      string    `json:"run_id"`
	Category   string    `json:"category"`
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Sources    []string  `json:"sources"`
	InsertedAt time.Time `json:"inserted_at"`
}

// Nop discards every event.
type Nop struct{}

// Publish does nothing.
func (Nop) Publish(context.Context, string, any) (string, error) {
	return "", nil
}
