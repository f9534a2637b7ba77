package memory

import (
	"context"
	"sort"
	"time"

	"ridedispatch/internal/domain"
	"ridedispatch/internal/repository"
)

type rideRepository struct {
	v *view
}

func (r *rideRepository) Create(ctx context.Context, ride *domain.Ride) error {
	return r.v.do(func(d *dataset) error {
		if _, ok := d.rides[ride.ID]; ok {
			return repository.ErrDuplicate
		}
		d.rides[ride.ID] = *ride
		return nil
	})
}

func (r *rideRepository) GetByID(ctx context.Context, id string) (*domain.Ride, error) {
	var out *domain.Ride
	err := r.v.do(func(d *dataset) error {
		ride, ok := d.rides[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = &ride
		return nil
	})
	return out, err
}

// GetByIDForUpdate needs no row lock here since transactions are serialized.
func (r *rideRepository) GetByIDForUpdate(ctx context.Context, id string) (*domain.Ride, error) {
	return r.GetByID(ctx, id)
}

func (r *rideRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*domain.Ride, error) {
	var out []*domain.Ride
	err := r.v.do(func(d *dataset) error {
		for _, ride := range d.rides {
			if ride.RiderID == userID || ride.DriverID == userID {
				ride := ride
				out = append(out, &ride)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].RequestedAt.After(out[j].RequestedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, err
}

// transition applies mutate when the ride passes guard.
func (r *rideRepository) transition(rideID string, guard func(domain.Ride) bool, mutate func(*domain.Ride)) (bool, error) {
	var ok bool
	err := r.v.do(func(d *dataset) error {
		ride, found := d.rides[rideID]
		if !found || !guard(ride) {
			return nil
		}
		mutate(&ride)
		d.rides[rideID] = ride
		ok = true
		return nil
	})
	return ok, err
}

func (r *rideRepository) Accept(ctx context.Context, rideID, driverID string, at time.Time) (bool, error) {
	return r.transition(rideID,
		func(ride domain.Ride) bool { return ride.Status == domain.RideStatusRequested },
		func(ride *domain.Ride) {
			ride.Status = domain.RideStatusAccepted
			ride.DriverID = driverID
			ride.AcceptedAt = at
		})
}

func (r *rideRepository) Start(ctx context.Context, rideID, driverID string, at time.Time) (bool, error) {
	return r.transition(rideID,
		func(ride domain.Ride) bool {
			return ride.Status == domain.RideStatusAccepted && ride.DriverID == driverID
		},
		func(ride *domain.Ride) {
			ride.Status = domain.RideStatusInProgress
			ride.StartedAt = at
		})
}

func (r *rideRepository) Complete(ctx context.Context, rideID, driverID string, at time.Time) (bool, error) {
	return r.transition(rideID,
		func(ride domain.Ride) bool {
			return ride.Status == domain.RideStatusInProgress && ride.DriverID == driverID
		},
		func(ride *domain.Ride) {
			ride.Status = domain.RideStatusCompleted
			ride.CompletedAt = at
		})
}

func (r *rideRepository) Cancel(ctx context.Context, rideID string, from domain.RideStatus, by domain.CancelActor, reason string, at time.Time) (bool, error) {
	return r.transition(rideID,
		func(ride domain.Ride) bool { return ride.Status == from },
		func(ride *domain.Ride) {
			ride.Status = domain.RideStatusCancelled
			ride.CancelledBy = by
			ride.CancelReason = reason
			ride.CancelledAt = at
		})
}

func (r *rideRepository) SetRating(ctx context.Context, rideID string, score int) error {
	return r.v.do(func(d *dataset) error {
		ride, ok := d.rides[rideID]
		if !ok {
			return repository.ErrNotFound
		}
		ride.Rating = score
		d.rides[rideID] = ride
		return nil
	})
}

func (r *rideRepository) SetPaymentStatus(ctx context.Context, rideID string, status domain.PaymentStatus) error {
	return r.v.do(func(d *dataset) error {
		ride, ok := d.rides[rideID]
		if !ok {
			return repository.ErrNotFound
		}
		ride.PaymentStatus = status
		d.rides[rideID] = ride
		return nil
	})
}
