package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	logtest "github.com/sirupsen/logrus/hooks/test"

	"ridedispatch/internal/domain"
	"ridedispatch/internal/messaging"
	"ridedispatch/internal/service"
)

func TestDriverRegister_StartsUnavailable(t *testing.T) {
	t.Parallel()
	f := newFixture(t, service.RideOptions{})
	f.addUser(t, "driver-1")

	driver, err := f.drivers.Register(context.Background(), service.RegisterDriverRequest{
		UserID:       "driver-1",
		VehicleType:  "comfort",
		VehicleMake:  "Honda",
		VehicleModel: "City",
		LicensePlate: "KA-05-1234",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if driver.IsAvailable || driver.Location != nil {
		t.Errorf("expected new driver unavailable without location, got %+v", driver)
	}
	if driver.VehicleType != domain.RideClassComfort || driver.Rating != 5.0 {
		t.Errorf("unexpected driver: type=%s rating=%v", driver.VehicleType, driver.Rating)
	}
	if driver.Name != "User driver-1" {
		t.Errorf("expected name copied from user, got %q", driver.Name)
	}
}

func TestDriverRegister_Rejections(t *testing.T) {
	t.Parallel()
	f := newFixture(t, service.RideOptions{})
	ctx := context.Background()
	f.addDriver(t, "driver-1", pickupLat, pickupLng, domain.RideClassEconomy)
	f.addUser(t, "driver-2")

	valid := service.RegisterDriverRequest{UserID: "driver-2", VehicleMake: "Maruti", VehicleModel: "Swift", LicensePlate: "KA-02-0002"}

	testCases := []struct {
		name    string
		mutate  func(*service.RegisterDriverRequest)
		wantErr error
	}{
		{"missing user", func(r *service.RegisterDriverRequest) { r.UserID = "" }, service.ErrInvalidUserID},
		{"unknown user", func(r *service.RegisterDriverRequest) { r.UserID = "ghost" }, service.ErrUserNotFound},
		{"missing plate", func(r *service.RegisterDriverRequest) { r.LicensePlate = "" }, service.ErrInvalidVehicle},
		{"missing make", func(r *service.RegisterDriverRequest) { r.VehicleMake = "" }, service.ErrInvalidVehicle},
		{"already a driver", func(r *service.RegisterDriverRequest) { r.UserID = "driver-1" }, service.ErrDriverAlreadyRegistered},
		{"plate taken", func(r *service.RegisterDriverRequest) { r.LicensePlate = "KA-01-driver-1" }, service.ErrDriverAlreadyRegistered},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := valid
			tc.mutate(&req)
			if _, err := f.drivers.Register(ctx, req); !errors.Is(err, tc.wantErr) {
				t.Errorf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestDriverAvailability_OfflineDriverSkippedByMatching(t *testing.T) {
	t.Parallel()
	f := newFixture(t, service.RideOptions{})
	ctx := context.Background()
	f.addDriver(t, "driver-1", pickupLat, pickupLng, domain.RideClassEconomy)

	driver, err := f.drivers.UpdateAvailability(ctx, service.AvailabilityRequest{DriverID: "driver-1", Available: false})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if driver.IsAvailable {
		t.Error("expected driver unavailable")
	}

	hits, err := f.matching.FindNearby(ctx, service.NearbyQuery{Lat: pickupLat, Lng: pickupLng})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hits) != 0 {
		t.Errorf("expected no hits for an offline driver, got %d", len(hits))
	}
}

func TestDriverAvailability_ReleasedAfterGoingOffline_MatchableAgain(t *testing.T) {
	t.Parallel()
	f := newFixture(t, service.RideOptions{})
	ctx := context.Background()
	f.addUser(t, "rider-1")
	f.addDriver(t, "driver-1", pickupLat, pickupLng, domain.RideClassEconomy)

	ride := f.requestRide(t, "rider-1")
	if _, err := f.rides.AcceptRide(ctx, ride.ID, "driver-1"); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if _, err := f.drivers.UpdateAvailability(ctx, service.AvailabilityRequest{DriverID: "driver-1", Available: false}); err != nil {
		t.Fatalf("go offline: %v", err)
	}
	if _, err := f.rides.CancelRide(ctx, service.CancelRideRequest{RideID: ride.ID, ActorID: "rider-1"}); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	if !f.driver(t, "driver-1").IsAvailable {
		t.Fatal("expected cancel to release the driver")
	}
	hits, err := f.matching.FindNearby(ctx, service.NearbyQuery{Lat: pickupLat, Lng: pickupLng})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hits) != 1 || hits[0].Driver.UserID != "driver-1" {
		t.Errorf("expected driver-1 to be matchable, got %d hits", len(hits))
	}
}

func TestDriverAvailability_RacesAccept_NeverAvailableWithActiveRide(t *testing.T) {
	t.Parallel()
	f := newFixture(t, service.RideOptions{})
	ctx := context.Background()
	f.addUser(t, "rider-1")

	for i := 0; i < 20; i++ {
		driverID := fmt.Sprintf("driver-%d", i)
		f.addDriver(t, driverID, pickupLat, pickupLng, domain.RideClassEconomy)
		ride := f.requestRide(t, "rider-1")

		var wg sync.WaitGroup
		var acceptErr, availErr error
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, acceptErr = f.rides.AcceptRide(ctx, ride.ID, driverID)
		}()
		go func() {
			defer wg.Done()
			_, availErr = f.drivers.UpdateAvailability(ctx, service.AvailabilityRequest{DriverID: driverID, Available: true})
		}()
		wg.Wait()

		if acceptErr != nil {
			t.Fatalf("round %d: expected accept to succeed, got %v", i, acceptErr)
		}
		if availErr != nil && !errors.Is(availErr, service.ErrDriverHasActiveRide) {
			t.Errorf("round %d: unexpected availability error %v", i, availErr)
		}
		if f.driver(t, driverID).IsAvailable {
			t.Errorf("round %d: driver is available while holding an accepted ride", i)
		}

		// Either way the driver cannot take a second ride.
		other := f.requestRide(t, "rider-1")
		if _, err := f.rides.AcceptRide(ctx, other.ID, driverID); !errors.Is(err, service.ErrDriverUnavailable) {
			t.Errorf("round %d: expected ErrDriverUnavailable on second accept, got %v", i, err)
		}
		if _, err := f.rides.CancelRide(ctx, service.CancelRideRequest{RideID: other.ID, ActorID: "rider-1"}); err != nil {
			t.Fatalf("round %d: cancel spare ride: %v", i, err)
		}
	}
}

func TestDriverAvailability_OfflineRacesAccept_Consistent(t *testing.T) {
	t.Parallel()
	f := newFixture(t, service.RideOptions{})
	ctx := context.Background()
	f.addUser(t, "rider-1")

	for i := 0; i < 20; i++ {
		driverID := fmt.Sprintf("driver-%d", i)
		f.addDriver(t, driverID, pickupLat, pickupLng, domain.RideClassEconomy)
		ride := f.requestRide(t, "rider-1")

		var wg sync.WaitGroup
		var acceptErr, offlineErr error
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, acceptErr = f.rides.AcceptRide(ctx, ride.ID, driverID)
		}()
		go func() {
			defer wg.Done()
			_, offlineErr = f.drivers.UpdateAvailability(ctx, service.AvailabilityRequest{DriverID: driverID, Available: false})
		}()
		wg.Wait()

		if offlineErr != nil {
			t.Fatalf("round %d: going offline must succeed, got %v", i, offlineErr)
		}
		stored, _ := f.rides.GetRide(ctx, ride.ID)
		if acceptErr == nil {
			if stored.Status != domain.RideStatusAccepted || stored.DriverID != driverID {
				t.Errorf("round %d: accept won but ride is %s/%s", i, stored.Status, stored.DriverID)
			}
		} else {
			if !errors.Is(acceptErr, service.ErrDriverUnavailable) {
				t.Errorf("round %d: expected ErrDriverUnavailable, got %v", i, acceptErr)
			}
			if stored.Status != domain.RideStatusRequested || stored.DriverID != "" {
				t.Errorf("round %d: accept lost but ride is %s/%s", i, stored.Status, stored.DriverID)
			}
			if _, err := f.rides.CancelRide(ctx, service.CancelRideRequest{RideID: ride.ID, ActorID: "rider-1"}); err != nil {
				t.Fatalf("round %d: cancel leftover ride: %v", i, err)
			}
		}
		if f.driver(t, driverID).IsAvailable {
			t.Errorf("round %d: expected driver unavailable", i)
		}
	}
}

func TestDriverAvailability_ActiveRide_Conflict(t *testing.T) {
	t.Parallel()
	f := newFixture(t, service.RideOptions{})
	ctx := context.Background()
	f.addUser(t, "rider-1")
	f.addDriver(t, "driver-1", pickupLat, pickupLng, domain.RideClassEconomy)
	ride := f.requestRide(t, "rider-1")
	if _, err := f.rides.AcceptRide(ctx, ride.ID, "driver-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err := f.drivers.UpdateAvailability(ctx, service.AvailabilityRequest{DriverID: "driver-1", Available: true})
	if !errors.Is(err, service.ErrDriverHasActiveRide) {
		t.Fatalf("expected ErrDriverHasActiveRide, got %v", err)
	}
	if !errors.Is(err, service.ErrConflict) {
		t.Errorf("expected a conflict, got %v", err)
	}
	if f.driver(t, "driver-1").IsAvailable {
		t.Error("expected driver to stay unavailable")
	}

	// Going offline is always allowed.
	if _, err := f.drivers.UpdateAvailability(ctx, service.AvailabilityRequest{DriverID: "driver-1", Available: false}); err != nil {
		t.Errorf("expected going offline to succeed, got %v", err)
	}
}

func TestDriverAvailability_Rejections(t *testing.T) {
	t.Parallel()
	f := newFixture(t, service.RideOptions{})
	ctx := context.Background()
	f.addDriver(t, "driver-1", pickupLat, pickupLng, domain.RideClassEconomy)

	if _, err := f.drivers.UpdateAvailability(ctx, service.AvailabilityRequest{Available: true}); !errors.Is(err, service.ErrInvalidDriverID) {
		t.Errorf("expected ErrInvalidDriverID, got %v", err)
	}
	if _, err := f.drivers.UpdateAvailability(ctx, service.AvailabilityRequest{DriverID: "ghost", Available: true}); !errors.Is(err, service.ErrDriverNotFound) {
		t.Errorf("expected ErrDriverNotFound, got %v", err)
	}
	bad := &domain.Location{Lat: 12, Lng: 200}
	if _, err := f.drivers.UpdateAvailability(ctx, service.AvailabilityRequest{DriverID: "driver-1", Available: true, Location: bad}); !errors.Is(err, service.ErrInvalidLocation) {
		t.Errorf("expected ErrInvalidLocation, got %v", err)
	}
}

func TestDriverLocationUpdate_StoresAndBroadcasts(t *testing.T) {
	t.Parallel()
	f := newFixture(t, service.RideOptions{})
	ctx := context.Background()
	f.addDriver(t, "driver-1", pickupLat, pickupLng, domain.RideClassEconomy)

	if err := f.drivers.UpdateLocation(ctx, "driver-1", destLat, destLng); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	driver := f.driver(t, "driver-1")
	if driver.Location == nil || driver.Location.Lat != destLat || driver.Location.Lng != destLng {
		t.Errorf("expected stored location at destination, got %+v", driver.Location)
	}
	if !driver.IsAvailable {
		t.Error("expected location update to leave availability alone")
	}

	ids, _ := f.index.FindNearby(ctx, destLat, destLng, 0.1)
	if len(ids) != 1 || ids[0] != "driver-1" {
		t.Errorf("expected index to follow the driver, got %v", ids)
	}

	events := f.events().OfType(messaging.EventDriverLocationUpdated)
	if len(events) != 1 || events[0].Payload["driver_id"] != "driver-1" {
		t.Errorf("expected one driver.locationUpdated event, got %+v", events)
	}
}

func TestDriverLocationUpdate_Rejections(t *testing.T) {
	t.Parallel()
	f := newFixture(t, service.RideOptions{})
	ctx := context.Background()

	testCases := []struct {
		name     string
		driverID string
		lat, lng float64
		wantErr  error
	}{
		{"missing driver", "", 12, 77, service.ErrInvalidDriverID},
		{"latitude too high", "driver-1", 91, 77, service.ErrInvalidLocation},
		{"latitude too low", "driver-1", -91, 77, service.ErrInvalidLocation},
		{"longitude too high", "driver-1", 12, 181, service.ErrInvalidLocation},
		{"unknown driver", "ghost", 12, 77, service.ErrDriverNotFound},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if err := f.drivers.UpdateLocation(ctx, tc.driverID, tc.lat, tc.lng); !errors.Is(err, tc.wantErr) {
				t.Errorf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}
}

// summaryCache is a thread-safe DriverCache that counts hits.
type summaryCache struct {
	mu      sync.Mutex
	entries map[string]*domain.DriverSummary
	hits    int
}

func (c *summaryCache) GetDriverSummary(ctx context.Context, driverID string) (*domain.DriverSummary, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.entries[driverID]
	if ok {
		c.hits++
	}
	return s, nil
}

func (c *summaryCache) SetDriverSummary(ctx context.Context, summary *domain.DriverSummary) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[summary.DriverID] = summary
	return nil
}

func (c *summaryCache) InvalidateDriver(ctx context.Context, driverID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, driverID)
	return nil
}

func TestDriverSummary_CachedUntilInvalidated(t *testing.T) {
	t.Parallel()
	f := newFixture(t, service.RideOptions{})
	f.addDriver(t, "driver-1", pickupLat, pickupLng, domain.RideClassEconomy)

	log, _ := logtest.NewNullLogger()
	cache := &summaryCache{entries: make(map[string]*domain.DriverSummary)}
	drivers := service.NewDriverService(f.repos, f.tx, f.index, cache, f.notifier, log)
	ctx := context.Background()

	first, err := drivers.GetSummary(ctx, "driver-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.DriverID != "driver-1" || first.LicensePlate != "KA-01-driver-1" {
		t.Errorf("unexpected summary: %+v", first)
	}
	if cache.hits != 0 {
		t.Errorf("expected a cache miss first, got %d hits", cache.hits)
	}

	if _, err := drivers.GetSummary(ctx, "driver-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cache.hits != 1 {
		t.Errorf("expected second read from cache, got %d hits", cache.hits)
	}

	drivers.InvalidateSummary(ctx, "driver-1")
	if _, err := drivers.GetSummary(ctx, "driver-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cache.hits != 1 {
		t.Errorf("expected a miss after invalidation, got %d hits", cache.hits)
	}

	if _, err := drivers.GetSummary(ctx, "ghost"); !errors.Is(err, service.ErrDriverNotFound) {
		t.Errorf("expected ErrDriverNotFound, got %v", err)
	}
}
