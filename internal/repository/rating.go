package repository

import (
	"context"

	"ridedispatch/internal/domain"
)

// RatingRepository defines the persistence operations for ratings.
type RatingRepository interface {
	// Create persists a rating. Returns ErrDuplicate if the rater already rated the ride.
	Create(ctx context.Context, rating *domain.Rating) error
}
