package repository

import (
	"context"

	"ridedispatch/internal/domain"
)

// PaymentRepository defines the persistence operations for payments.
type PaymentRepository interface {
	// GetByRideID retrieves the payment of a ride.
	GetByRideID(ctx context.Context, rideID string) (*domain.Payment, error)

	// CreatePending records a pending payment unless the ride already has one.
	CreatePending(ctx context.Context, payment *domain.Payment) error

	// Upsert writes the payment keyed by ride, never overwriting a completed one.
	// Returns false if a completed payment already existed.
	Upsert(ctx context.Context, payment *domain.Payment) (bool, error)
}
