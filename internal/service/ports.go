package service

import (
	"context"

	"ridedispatch/internal/domain"
)

// LocationIndex is a geo index of driver positions used to pre-select candidates.
// It may hold drivers that are currently unavailable.
type LocationIndex interface {
	UpdateLocation(ctx context.Context, driverID string, lat, lng float64) error
	FindNearby(ctx context.Context, lat, lng, radiusKm float64) ([]string, error)
}

// DriverCache caches rider-facing driver summaries.
type DriverCache interface {
	GetDriverSummary(ctx context.Context, driverID string) (*domain.DriverSummary, error)
	SetDriverSummary(ctx context.Context, summary *domain.DriverSummary) error
	InvalidateDriver(ctx context.Context, driverID string) error
}
