// Package queue defines the booking events exchanged over the message
// broker, the publishers that emit them and the consumer that records them.
package queue

import "context"

// Queue / topic names double as event types.
const (
	BookingConfirmed = "booking.confirmed"
	BookingCancelled = "booking.cancelled"
)

// BookingEvent is published after a booking commit or cancellation.  It
// carries enough for downstream consumers to log, notify or feed
// analytics without querying the primary database.
type BookingEvent struct {
	Type       string   `json:"type"`
	Reference  string   `json:"reference"`
	UserID     uint64   `json:"user_id"`
	EventID    uint64   `json:"event_id"`
	Seats      []string `json:"seats"`
	TotalCents int64    `json:"total_cents"`
	OccurredAt string   `json:"occurred_at"`
}

// Publisher emits booking events.  Delivery is best-effort: callers log
// failures and carry on.
type Publisher interface {
	Publish(ctx context.Context, ev BookingEvent) error
	Close() error
}

// NopPublisher drops every event.  Used when EVENT_BROKER=none.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, BookingEvent) error { return nil }
func (NopPublisher) Close() error                                { return nil }
