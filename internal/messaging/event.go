// Package messaging carries dispatch events to interested parties.
package messaging

import (
	"context"
	"time"
)

// Event types published on ride and driver activity.
const (
	EventRideRequested         = "ride.requested"
	EventRideAccepted          = "ride.accepted"
	EventRideStarted           = "ride.started"
	EventRideCompleted         = "ride.completed"
	EventRideCancelled         = "ride.cancelled"
	EventDriverLocationUpdated = "driver.locationUpdated"
)

// Event is a fire-and-forget notification.
//
// RecipientID addresses a single user. Audience lists users a broadcast is
// aimed at. Both are empty for a global broadcast.
type Event struct {
	ID          string         `json:"id"`
	Type        string         `json:"type"`
	RecipientID string         `json:"recipient_id,omitempty"`
	Audience    []string       `json:"audience,omitempty"`
	Payload     map[string]any `json:"payload"`
	OccurredAt  time.Time      `json:"occurred_at"`
}

// Publisher delivers events. Delivery is at most once.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}
