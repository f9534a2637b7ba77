package messaging

import (
	"context"

	"github.com/sirupsen/logrus"
)

// LogPublisher writes events to the log. It is used when no broker is configured.
type LogPublisher struct {
	log logrus.FieldLogger
}

// NewLogPublisher creates a new LogPublisher.
func NewLogPublisher(log logrus.FieldLogger) *LogPublisher {
	return &LogPublisher{log: log}
}

// Publish logs the event.
func (p *LogPublisher) Publish(ctx context.Context, event Event) error {
	p.log.WithFields(logrus.Fields{
		"event":     event.Type,
		"event_id":  event.ID,
		"recipient": event.RecipientID,
		"audience":  len(event.Audience),
		"payload":   event.Payload,
	}).Info("[NOTIFICATION]")
	return nil
}

// Close is a no-op.
func (p *LogPublisher) Close() error {
	return nil
}
