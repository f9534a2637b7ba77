package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	logtest "github.com/sirupsen/logrus/hooks/test"

	"ridedispatch/internal/domain"
	"ridedispatch/internal/messaging"
	"ridedispatch/internal/repository"
	"ridedispatch/internal/repository/memory"
	"ridedispatch/internal/service"
)

// Pickup and destination in central Bangalore, roughly 4.8 km apart.
const (
	pickupLat = 12.9716
	pickupLng = 77.5946
	destLat   = 12.9352
	destLng   = 77.6245
)

// recordingPublisher is a thread-safe publisher that keeps every event.
type recordingPublisher struct {
	mu     sync.Mutex
	events []messaging.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, event messaging.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) Events() []messaging.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]messaging.Event, len(p.events))
	copy(out, p.events)
	return out
}

func (p *recordingPublisher) OfType(eventType string) []messaging.Event {
	var out []messaging.Event
	for _, e := range p.Events() {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

// fixture wires every service over the in-memory store.
type fixture struct {
	repos    repository.Repositories
	tx       repository.Transactor
	index    *memory.LocationIndex
	pub      *recordingPublisher
	notifier *service.NotificationService
	drivers  *service.DriverService
	matching *service.MatchingService
	promos   *service.PromoService
	payments *service.PaymentService
	rides    *service.RideService
}

func newFixture(t *testing.T, opts service.RideOptions) *fixture {
	t.Helper()

	log, _ := logtest.NewNullLogger()
	store := memory.NewStore()
	repos := store.Repositories()
	index := memory.NewLocationIndex()
	pub := &recordingPublisher{}

	notifier := service.NewNotificationService(pub, 256, log)
	notifier.Start()
	t.Cleanup(notifier.Close)

	matching := service.NewMatchingService(repos.Drivers, index, service.DefaultSearchRadiusKm, service.DefaultMaxCandidates)
	drivers := service.NewDriverService(repos, store, index, nil, notifier, log)
	promos := service.NewPromoService(repos, store)
	payments := service.NewPaymentService(repos, store, promos, service.NewLocalLedger(), domain.PaymentMethodCard)
	rides := service.NewRideService(repos, store, matching, drivers, payments, notifier, opts, log)

	return &fixture{
		repos:    repos,
		tx:       store,
		index:    index,
		pub:      pub,
		notifier: notifier,
		drivers:  drivers,
		matching: matching,
		promos:   promos,
		payments: payments,
		rides:    rides,
	}
}

// events flushes the notification queue and returns what was published.
func (f *fixture) events() *recordingPublisher {
	f.notifier.Close()
	return f.pub
}

func (f *fixture) addUser(t *testing.T, id string) *domain.User {
	t.Helper()

	user := &domain.User{
		ID:        id,
		Name:      "User " + id,
		Phone:     "+91-" + id,
		CreatedAt: time.Now().UTC(),
	}
	if err := f.repos.Users.Create(context.Background(), user); err != nil {
		t.Fatalf("failed to create user %s: %v", id, err)
	}
	return user
}

// addDriver registers an available driver of the given class at lat/lng.
func (f *fixture) addDriver(t *testing.T, id string, lat, lng float64, class domain.RideClass) *domain.Driver {
	t.Helper()
	ctx := context.Background()

	f.addUser(t, id)
	if _, err := f.drivers.Register(ctx, service.RegisterDriverRequest{
		UserID:       id,
		VehicleType:  string(class),
		VehicleMake:  "Toyota",
		VehicleModel: "Etios",
		VehicleColor: "White",
		LicensePlate: "KA-01-" + id,
	}); err != nil {
		t.Fatalf("failed to register driver %s: %v", id, err)
	}

	driver, err := f.drivers.UpdateAvailability(ctx, service.AvailabilityRequest{
		DriverID:  id,
		Available: true,
		Location:  &domain.Location{Lat: lat, Lng: lng},
	})
	if err != nil {
		t.Fatalf("failed to make driver %s available: %v", id, err)
	}
	return driver
}

func (f *fixture) requestRide(t *testing.T, riderID string) *domain.Ride {
	t.Helper()

	ride, err := f.rides.CreateRide(context.Background(), rideRequest(riderID))
	if err != nil {
		t.Fatalf("failed to create ride: %v", err)
	}
	return ride
}

// completedRide drives a fresh ride from request to completion.
func (f *fixture) completedRide(t *testing.T, riderID, driverID string) *domain.Ride {
	t.Helper()
	ctx := context.Background()

	ride := f.requestRide(t, riderID)
	if _, err := f.rides.AcceptRide(ctx, ride.ID, driverID); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if _, err := f.rides.StartRide(ctx, ride.ID, driverID); err != nil {
		t.Fatalf("start: %v", err)
	}
	completed, err := f.rides.CompleteRide(ctx, ride.ID, driverID)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	return completed
}

func (f *fixture) driver(t *testing.T, id string) *domain.Driver {
	t.Helper()

	d, err := f.repos.Drivers.GetByUserID(context.Background(), id)
	if err != nil {
		t.Fatalf("failed to load driver %s: %v", id, err)
	}
	return d
}

func rideRequest(riderID string) service.CreateRideRequest {
	return service.CreateRideRequest{
		RiderID:            riderID,
		PickupLat:          pickupLat,
		PickupLng:          pickupLng,
		PickupAddress:      "MG Road",
		DestinationLat:     destLat,
		DestinationLng:     destLng,
		DestinationAddress: "Koramangala",
	}
}
