package repository

import (
	"context"
	"time"

	"ridedispatch/internal/domain"
)

// RideRepository defines the persistence operations for rides.
//
// Transition methods are conditional updates: they return false when the
// ride is no longer in the status the transition requires.
type RideRepository interface {
	// Create persists a new ride.
	Create(ctx context.Context, ride *domain.Ride) error

	// GetByID retrieves a ride by ID.
	GetByID(ctx context.Context, id string) (*domain.Ride, error)

	// GetByIDForUpdate retrieves a ride and locks it until the transaction ends.
	GetByIDForUpdate(ctx context.Context, id string) (*domain.Ride, error)

	// ListByUser retrieves the most recent rides where the user is rider or driver.
	ListByUser(ctx context.Context, userID string, limit int) ([]*domain.Ride, error)

	// Accept moves a requested ride to accepted and assigns driverID.
	Accept(ctx context.Context, rideID, driverID string, at time.Time) (bool, error)

	// Start moves an accepted ride of driverID to in_progress.
	Start(ctx context.Context, rideID, driverID string, at time.Time) (bool, error)

	// Complete moves an in-progress ride of driverID to completed.
	Complete(ctx context.Context, rideID, driverID string, at time.Time) (bool, error)

	// Cancel moves a ride that is still in status from to cancelled.
	Cancel(ctx context.Context, rideID string, from domain.RideStatus, by domain.CancelActor, reason string, at time.Time) (bool, error)

	// SetRating stores the latest score given on the ride.
	SetRating(ctx context.Context, rideID string, score int) error

	// SetPaymentStatus updates the ride's payment status.
	SetPaymentStatus(ctx context.Context, rideID string, status domain.PaymentStatus) error
}
