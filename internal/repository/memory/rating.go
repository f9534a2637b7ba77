package memory

import (
	"context"

	"ridedispatch/internal/domain"
	"ridedispatch/internal/repository"
)

type ratingRepository struct {
	v *view
}

func (r *ratingRepository) Create(ctx context.Context, rating *domain.Rating) error {
	return r.v.do(func(d *dataset) error {
		key := ratingKey{rideID: rating.RideID, raterID: rating.RaterID}
		if _, ok := d.ratings[key]; ok {
			return repository.ErrDuplicate
		}
		d.ratings[key] = *rating
		return nil
	})
}
