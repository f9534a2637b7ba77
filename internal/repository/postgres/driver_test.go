package postgres_test

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"ridedispatch/internal/domain"
	"ridedispatch/internal/repository"
	"ridedispatch/internal/repository/postgres"
)

// openTestDB connects to the database named by RIDEDISPATCH_TEST_DSN and
// applies the schema. Tests are skipped when it is unset.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	dsn := os.Getenv("RIDEDISPATCH_TEST_DSN")
	if dsn == "" {
		t.Skip("RIDEDISPATCH_TEST_DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := postgres.Migrate(context.Background(), db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedUser(t *testing.T, repos repository.Repositories) string {
	t.Helper()

	id := uuid.New().String()
	err := repos.Users.Create(context.Background(), &domain.User{
		ID:        id,
		Name:      "user " + id[:8],
		Phone:     "+91-" + id,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return id
}

func seedDriver(t *testing.T, repos repository.Repositories) string {
	t.Helper()
	ctx := context.Background()

	id := seedUser(t, repos)
	err := repos.Drivers.Create(ctx, &domain.Driver{
		UserID:       id,
		VehicleType:  domain.RideClassEconomy,
		VehicleMake:  "Toyota",
		VehicleModel: "Etios",
		LicensePlate: "KA-" + id,
		Rating:       5.0,
		CreatedAt:    time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("create driver: %v", err)
	}
	if ok, err := repos.Drivers.SetAvailability(ctx, id, true, &domain.Location{Lat: 12.9716, Lng: 77.5946}); err != nil || !ok {
		t.Fatalf("make driver available: ok=%v err=%v", ok, err)
	}
	return id
}

func seedRide(t *testing.T, repos repository.Repositories, riderID string) string {
	t.Helper()

	id := uuid.New().String()
	err := repos.Rides.Create(context.Background(), &domain.Ride{
		ID:                 id,
		RiderID:            riderID,
		PickupLat:          12.9716,
		PickupLng:          77.5946,
		PickupAddress:      "MG Road",
		DestinationLat:     12.9352,
		DestinationLng:     77.6245,
		DestinationAddress: "Koramangala",
		RideClass:          domain.RideClassEconomy,
		Status:             domain.RideStatusRequested,
		FareAmount:         8.72,
		DistanceKm:         5.18,
		PaymentStatus:      domain.PaymentStatusPending,
		RequestedAt:        time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("create ride: %v", err)
	}
	return id
}

// completeRide walks a requested ride through to completion.
func completeRide(t *testing.T, repos repository.Repositories, rideID, driverID string) {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()

	if ok, err := repos.Rides.Accept(ctx, rideID, driverID, now); err != nil || !ok {
		t.Fatalf("accept: ok=%v err=%v", ok, err)
	}
	if ok, err := repos.Rides.Start(ctx, rideID, driverID, now); err != nil || !ok {
		t.Fatalf("start: ok=%v err=%v", ok, err)
	}
	if ok, err := repos.Rides.Complete(ctx, rideID, driverID, now); err != nil || !ok {
		t.Fatalf("complete: ok=%v err=%v", ok, err)
	}
}

func TestSetAvailability_UnderLock_SeesAcceptCommittedWhileWaiting(t *testing.T) {
	db := openTestDB(t)
	repos := postgres.NewRepositories(db)
	tx := postgres.NewTransactor(db)
	ctx := context.Background()

	riderID := seedUser(t, repos)
	driverID := seedDriver(t, repos)
	rideID := seedRide(t, repos, riderID)

	claimed := make(chan struct{})
	commit := make(chan struct{})
	acceptDone := make(chan error, 1)
	go func() {
		acceptDone <- tx.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
			if ok, err := repos.Rides.Accept(ctx, rideID, driverID, time.Now().UTC()); err != nil || !ok {
				t.Errorf("accept: ok=%v err=%v", ok, err)
			}
			if ok, err := repos.Drivers.Claim(ctx, driverID); err != nil || !ok {
				t.Errorf("claim: ok=%v err=%v", ok, err)
			}
			close(claimed)
			<-commit
			return nil
		})
	}()

	<-claimed
	availDone := make(chan bool, 1)
	go func() {
		var updated bool
		err := tx.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
			if err := repos.Drivers.Lock(ctx, driverID); err != nil {
				return err
			}
			var err error
			updated, err = repos.Drivers.SetAvailability(ctx, driverID, true, nil)
			return err
		})
		if err != nil {
			t.Errorf("set availability: %v", err)
		}
		availDone <- updated
	}()

	// Let the availability update queue on the driver row before the accept commits.
	time.Sleep(200 * time.Millisecond)
	close(commit)
	if err := <-acceptDone; err != nil {
		t.Fatalf("accept tx: %v", err)
	}

	if <-availDone {
		t.Error("expected going available to be refused while the accepted ride is active")
	}
	driver, err := repos.Drivers.GetByUserID(ctx, driverID)
	if err != nil {
		t.Fatalf("load driver: %v", err)
	}
	if driver.IsAvailable {
		t.Error("driver is available while holding an accepted ride")
	}
}

func TestRecomputeRating_UnderLock_CountsRatingCommittedWhileWaiting(t *testing.T) {
	db := openTestDB(t)
	repos := postgres.NewRepositories(db)
	tx := postgres.NewTransactor(db)
	ctx := context.Background()

	driverID := seedDriver(t, repos)
	riderA, riderB := seedUser(t, repos), seedUser(t, repos)
	rideA, rideB := seedRide(t, repos, riderA), seedRide(t, repos, riderB)
	completeRide(t, repos, rideA, driverID)
	completeRide(t, repos, rideB, driverID)

	rate := func(ctx context.Context, repos repository.Repositories, rideID, raterID string, score int) (float64, error) {
		err := repos.Ratings.Create(ctx, &domain.Rating{
			ID:        uuid.New().String(),
			RideID:    rideID,
			RaterID:   raterID,
			RatedID:   driverID,
			Score:     score,
			CreatedAt: time.Now().UTC(),
		})
		if err != nil {
			return 0, err
		}
		if err := repos.Drivers.Lock(ctx, driverID); err != nil {
			return 0, err
		}
		return repos.Drivers.RecomputeRating(ctx, driverID)
	}

	locked := make(chan struct{})
	commit := make(chan struct{})
	firstDone := make(chan error, 1)
	go func() {
		firstDone <- tx.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
			_, err := rate(ctx, repos, rideA, riderA, 5)
			close(locked)
			if err != nil {
				return err
			}
			<-commit
			return nil
		})
	}()

	<-locked
	secondDone := make(chan float64, 1)
	go func() {
		var avg float64
		err := tx.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
			var err error
			avg, err = rate(ctx, repos, rideB, riderB, 2)
			return err
		})
		if err != nil {
			t.Errorf("second rating: %v", err)
		}
		secondDone <- avg
	}()

	time.Sleep(200 * time.Millisecond)
	close(commit)
	if err := <-firstDone; err != nil {
		t.Fatalf("first rating: %v", err)
	}

	if avg := <-secondDone; avg != 3.5 {
		t.Errorf("expected average 3.5 over both ratings, got %v", avg)
	}
	driver, err := repos.Drivers.GetByUserID(ctx, driverID)
	if err != nil {
		t.Fatalf("load driver: %v", err)
	}
	if driver.Rating != 3.5 {
		t.Errorf("expected stored rating 3.5, got %v", driver.Rating)
	}
}

func TestLock_UnknownDriver_NotFound(t *testing.T) {
	db := openTestDB(t)
	tx := postgres.NewTransactor(db)

	err := tx.WithinTx(context.Background(), func(ctx context.Context, repos repository.Repositories) error {
		return repos.Drivers.Lock(ctx, uuid.New().String())
	})
	if !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
