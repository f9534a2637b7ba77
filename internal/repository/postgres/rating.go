package postgres

import (
	"context"

	"ridedispatch/internal/domain"
)

// RatingRepository is a PostgreSQL implementation of repository.RatingRepository.
type RatingRepository struct {
	q Querier
}

// Create persists a rating.
func (r *RatingRepository) Create(ctx context.Context, rating *domain.Rating) error {
	query := `
		INSERT INTO ratings (id, ride_id, rater_id, rated_id, score, review, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.q.ExecContext(ctx, query,
		rating.ID,
		rating.RideID,
		rating.RaterID,
		rating.RatedID,
		rating.Score,
		nullString(rating.Review),
		rating.CreatedAt,
	)
	return mapError(err)
}
