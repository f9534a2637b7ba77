package repository

import (
	"context"

	"ridedispatch/internal/domain"
)

// DriverRepository defines the persistence operations for driver availability records.
type DriverRepository interface {
	// Create adds a new driver record. Returns ErrDuplicate if the user or plate is taken.
	Create(ctx context.Context, driver *domain.Driver) error

	// GetByUserID retrieves a driver by user ID.
	GetByUserID(ctx context.Context, userID string) (*domain.Driver, error)

	// GetByUserIDs retrieves the drivers that exist among userIDs.
	GetByUserIDs(ctx context.Context, userIDs []string) ([]*domain.Driver, error)

	// Lock takes the driver's row lock for the rest of the enclosing transaction.
	// Statements issued afterwards see every write committed before the lock was granted.
	Lock(ctx context.Context, userID string) error

	// Claim flips an available driver to unavailable.
	// Returns false if the driver was not available.
	Claim(ctx context.Context, userID string) (bool, error)

	// Release makes the driver available again, counting a finished ride if completed is set.
	Release(ctx context.Context, userID string, completed bool) error

	// SetAvailability sets the availability flag and, when loc is non-nil, the location.
	// Going available returns false while the driver holds an accepted or in-progress ride.
	// Callers hold Lock so the ride check cannot miss an accept committed meanwhile.
	SetAvailability(ctx context.Context, userID string, available bool, loc *domain.Location) (bool, error)

	// UpdateLocation stores the driver's last known coordinates.
	UpdateLocation(ctx context.Context, userID string, loc domain.Location) error

	// RecomputeRating sets the driver's rating to the mean of ratings they received.
	// Callers hold Lock so concurrent raters are all counted.
	RecomputeRating(ctx context.Context, userID string) (float64, error)
}
