package publishers

import (
	"time"

	"github.com/google/uuid"
)

// Event kinds.
const (
	KindNotification = "notification"
	KindFeedUpdated  = "feed_updated"
)

// Event is the payload delivered to every sink. Title and Body are empty for feed_updated.
type Event struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Title     string    `json:"title,omitempty"`
	Body      string    `json:"body,omitempty"`
	Count     int       `json:"count,omitempty"`
	EmittedAt time.Time `json:"emitted_at"`
}

// NewEvent stamps a fresh id and emission time.
func NewEvent(kind, title, body string, count int) Event {
	return Event{
		ID:        uuid.NewString(),
		Kind:      kind,
		Title:     title,
		Body:      body,
		Count:     count,
		EmittedAt: time.Now().UTC(),
	}
}
