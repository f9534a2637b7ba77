package postgres

import (
	"context"
	"database/sql"
	"time"

	"ridedispatch/internal/domain"
)

// RideRepository is a PostgreSQL implementation of repository.RideRepository.
type RideRepository struct {
	q Querier
}

const rideColumns = `
	id, rider_id, driver_id, pickup_lat, pickup_lng, pickup_address,
	destination_lat, destination_lng, destination_address, ride_class, status,
	fare_amount, distance_km, rating, payment_status, requested_at,
	accepted_at, started_at, completed_at, cancelled_at, cancel_reason, cancelled_by`

func scanRide(row rowScanner) (*domain.Ride, error) {
	var ride domain.Ride
	var driverID, cancelReason, cancelledBy sql.NullString
	var rating sql.NullInt64
	var acceptedAt, startedAt, completedAt, cancelledAt sql.NullTime

	err := row.Scan(
		&ride.ID,
		&ride.RiderID,
		&driverID,
		&ride.PickupLat,
		&ride.PickupLng,
		&ride.PickupAddress,
		&ride.DestinationLat,
		&ride.DestinationLng,
		&ride.DestinationAddress,
		&ride.RideClass,
		&ride.Status,
		&ride.FareAmount,
		&ride.DistanceKm,
		&rating,
		&ride.PaymentStatus,
		&ride.RequestedAt,
		&acceptedAt,
		&startedAt,
		&completedAt,
		&cancelledAt,
		&cancelReason,
		&cancelledBy,
	)
	if err != nil {
		return nil, err
	}

	ride.DriverID = driverID.String
	ride.Rating = int(rating.Int64)
	ride.AcceptedAt = acceptedAt.Time
	ride.StartedAt = startedAt.Time
	ride.CompletedAt = completedAt.Time
	ride.CancelledAt = cancelledAt.Time
	ride.CancelReason = cancelReason.String
	ride.CancelledBy = domain.CancelActor(cancelledBy.String)

	return &ride, nil
}

// Create persists a new ride.
func (r *RideRepository) Create(ctx context.Context, ride *domain.Ride) error {
	query := `
		INSERT INTO rides (id, rider_id, pickup_lat, pickup_lng, pickup_address, destination_lat, destination_lng, destination_address, ride_class, status, fare_amount, distance_km, payment_status, requested_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	_, err := r.q.ExecContext(ctx, query,
		ride.ID,
		ride.RiderID,
		ride.PickupLat,
		ride.PickupLng,
		ride.PickupAddress,
		ride.DestinationLat,
		ride.DestinationLng,
		ride.DestinationAddress,
		ride.RideClass,
		ride.Status,
		ride.FareAmount,
		ride.DistanceKm,
		ride.PaymentStatus,
		ride.RequestedAt,
	)
	return mapError(err)
}

// GetByID retrieves a ride by ID.
func (r *RideRepository) GetByID(ctx context.Context, id string) (*domain.Ride, error) {
	query := `SELECT ` + rideColumns + ` FROM rides WHERE id = $1`

	ride, err := scanRide(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, mapError(err)
	}
	return ride, nil
}

// GetByIDForUpdate retrieves a ride and holds its row lock until the transaction ends.
func (r *RideRepository) GetByIDForUpdate(ctx context.Context, id string) (*domain.Ride, error) {
	query := `SELECT ` + rideColumns + ` FROM rides WHERE id = $1 FOR UPDATE`

	ride, err := scanRide(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, mapError(err)
	}
	return ride, nil
}

// ListByUser retrieves the most recent rides where the user is rider or driver.
func (r *RideRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*domain.Ride, error) {
	query := `SELECT ` + rideColumns + ` FROM rides WHERE rider_id = $1 OR driver_id = $1 ORDER BY requested_at DESC LIMIT $2`

	rows, err := r.q.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rides []*domain.Ride
	for rows.Next() {
		ride, err := scanRide(rows)
		if err != nil {
			return nil, err
		}
		rides = append(rides, ride)
	}
	return rides, rows.Err()
}

// Accept moves a requested ride to accepted and assigns driverID.
func (r *RideRepository) Accept(ctx context.Context, rideID, driverID string, at time.Time) (bool, error) {
	query := `
		UPDATE rides SET status = 'accepted', driver_id = $2, accepted_at = $3
		WHERE id = $1 AND status = 'requested'
	`
	return r.exec(ctx, query, rideID, driverID, at)
}

// Start moves an accepted ride of driverID to in_progress.
func (r *RideRepository) Start(ctx context.Context, rideID, driverID string, at time.Time) (bool, error) {
	query := `
		UPDATE rides SET status = 'in_progress', started_at = $3
		WHERE id = $1 AND driver_id = $2 AND status = 'accepted'
	`
	return r.exec(ctx, query, rideID, driverID, at)
}

// Complete moves an in-progress ride of driverID to completed.
func (r *RideRepository) Complete(ctx context.Context, rideID, driverID string, at time.Time) (bool, error) {
	query := `
		UPDATE rides SET status = 'completed', completed_at = $3
		WHERE id = $1 AND driver_id = $2 AND status = 'in_progress'
	`
	return r.exec(ctx, query, rideID, driverID, at)
}

// Cancel moves a ride that is still in status from to cancelled.
func (r *RideRepository) Cancel(ctx context.Context, rideID string, from domain.RideStatus, by domain.CancelActor, reason string, at time.Time) (bool, error) {
	query := `
		UPDATE rides SET status = 'cancelled', cancelled_by = $3, cancel_reason = $4, cancelled_at = $5
		WHERE id = $1 AND status = $2
	`
	return r.exec(ctx, query, rideID, from, by, reason, at)
}

// SetRating stores the latest score given on the ride.
func (r *RideRepository) SetRating(ctx context.Context, rideID string, score int) error {
	_, err := r.q.ExecContext(ctx, `UPDATE rides SET rating = $2 WHERE id = $1`, rideID, score)
	return err
}

// SetPaymentStatus updates the ride's payment status.
func (r *RideRepository) SetPaymentStatus(ctx context.Context, rideID string, status domain.PaymentStatus) error {
	_, err := r.q.ExecContext(ctx, `UPDATE rides SET payment_status = $2 WHERE id = $1`, rideID, status)
	return err
}

func (r *RideRepository) exec(ctx context.Context, query string, args ...any) (bool, error) {
	result, err := r.q.ExecContext(ctx, query, args...)
	if err != nil {
		return false, err
	}
	return affected(result)
}
