package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"ridedispatch/internal/domain"
	"ridedispatch/internal/messaging"
)

const publishTimeout = 5 * time.Second

// NotificationService fans dispatch events out to a publisher.
//
// Events are queued and published by a background worker. State transitions
// never wait for delivery; when the queue is full the event is dropped.
type NotificationService struct {
	publisher messaging.Publisher
	log       logrus.FieldLogger

	mu     sync.RWMutex
	closed bool
	queue  chan messaging.Event
	wg     sync.WaitGroup
}

// NewNotificationService creates a new NotificationService with a queue of queueSize events.
func NewNotificationService(publisher messaging.Publisher, queueSize int, log logrus.FieldLogger) *NotificationService {
	if queueSize <= 0 {
		queueSize = 1
	}
	return &NotificationService{
		publisher: publisher,
		log:       log,
		queue:     make(chan messaging.Event, queueSize),
	}
}

// Start launches the publishing worker.
func (s *NotificationService) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for event := range s.queue {
			s.publish(event)
		}
	}()
}

// Close stops accepting events and waits until queued ones are published.
func (s *NotificationService) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.queue)
	s.mu.Unlock()

	s.wg.Wait()
}

func (s *NotificationService) publish(event messaging.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	if err := s.publisher.Publish(ctx, event); err != nil {
		s.log.WithError(err).WithField("event", event.Type).Warn("failed to publish event")
	}
}

func (s *NotificationService) enqueue(event messaging.Event) {
	event.ID = uuid.New().String()
	event.OccurredAt = time.Now().UTC()

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return
	}

	select {
	case s.queue <- event:
	default:
		s.log.WithField("event", event.Type).Warn("notification queue full, dropping event")
	}
}

// NotifyRideRequested broadcasts a new ride request to nearby drivers.
func (s *NotificationService) NotifyRideRequested(ride *domain.Ride, riderName string, nearbyDriverIDs []string) {
	s.enqueue(messaging.Event{
		Type:     messaging.EventRideRequested,
		Audience: nearbyDriverIDs,
		Payload: map[string]any{
			"ride_id":    ride.ID,
			"pickup_lat": ride.PickupLat,
			"pickup_lng": ride.PickupLng,
			"ride_class": ride.RideClass,
			"fare":       ride.FareAmount,
			"distance":   ride.DistanceKm,
			"rider_name": riderName,
		},
	})
}

// NotifyRideAccepted tells the rider who is coming.
func (s *NotificationService) NotifyRideAccepted(ride *domain.Ride, driver *domain.DriverSummary) {
	s.enqueue(messaging.Event{
		Type:        messaging.EventRideAccepted,
		RecipientID: ride.RiderID,
		Payload: map[string]any{
			"ride_id": ride.ID,
			"driver":  driver,
		},
	})
}

// NotifyRideStarted tells the rider the ride has started.
func (s *NotificationService) NotifyRideStarted(ride *domain.Ride) {
	s.enqueue(messaging.Event{
		Type:        messaging.EventRideStarted,
		RecipientID: ride.RiderID,
		Payload:     map[string]any{"ride_id": ride.ID},
	})
}

// NotifyRideCompleted tells the rider the final fare.
func (s *NotificationService) NotifyRideCompleted(ride *domain.Ride) {
	s.enqueue(messaging.Event{
		Type:        messaging.EventRideCompleted,
		RecipientID: ride.RiderID,
		Payload: map[string]any{
			"ride_id": ride.ID,
			"fare":    ride.FareAmount,
		},
	})
}

// NotifyRideCancelled tells the other participant that the ride was cancelled.
func (s *NotificationService) NotifyRideCancelled(ride *domain.Ride) {
	recipientID := ride.DriverID
	if ride.CancelledBy == domain.CancelledByDriver {
		recipientID = ride.RiderID
	}
	if recipientID == "" {
		return
	}

	s.enqueue(messaging.Event{
		Type:        messaging.EventRideCancelled,
		RecipientID: recipientID,
		Payload: map[string]any{
			"ride_id":      ride.ID,
			"reason":       ride.CancelReason,
			"cancelled_by": ride.CancelledBy,
		},
	})
}

// NotifyDriverLocation broadcasts a driver's new position.
func (s *NotificationService) NotifyDriverLocation(driverID string, loc domain.Location) {
	s.enqueue(messaging.Event{
		Type: messaging.EventDriverLocationUpdated,
		Payload: map[string]any{
			"driver_id": driverID,
			"lat":       loc.Lat,
			"lng":       loc.Lng,
		},
	})
}
