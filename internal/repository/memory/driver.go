package memory

import (
	"context"

	"ridedispatch/internal/domain"
	"ridedispatch/internal/geo"
	"ridedispatch/internal/repository"
)

type driverRepository struct {
	v *view
}

// withUser returns a copy of the driver with the user's name and phone filled in.
func withUser(d *dataset, driver domain.Driver) *domain.Driver {
	out := copyDriver(driver)
	if u, ok := d.users[driver.UserID]; ok {
		out.Name = u.Name
		out.Phone = u.Phone
	}
	return &out
}

func (r *driverRepository) Create(ctx context.Context, driver *domain.Driver) error {
	return r.v.do(func(d *dataset) error {
		if _, ok := d.drivers[driver.UserID]; ok {
			return repository.ErrDuplicate
		}
		for _, existing := range d.drivers {
			if existing.LicensePlate == driver.LicensePlate {
				return repository.ErrDuplicate
			}
		}
		d.drivers[driver.UserID] = copyDriver(*driver)
		return nil
	})
}

func (r *driverRepository) GetByUserID(ctx context.Context, userID string) (*domain.Driver, error) {
	var out *domain.Driver
	err := r.v.do(func(d *dataset) error {
		driver, ok := d.drivers[userID]
		if !ok {
			return repository.ErrNotFound
		}
		out = withUser(d, driver)
		return nil
	})
	return out, err
}

func (r *driverRepository) GetByUserIDs(ctx context.Context, userIDs []string) ([]*domain.Driver, error) {
	var out []*domain.Driver
	err := r.v.do(func(d *dataset) error {
		for _, id := range userIDs {
			if driver, ok := d.drivers[id]; ok {
				out = append(out, withUser(d, driver))
			}
		}
		return nil
	})
	return out, err
}

// Lock only checks existence; transactions already run one at a time.
func (r *driverRepository) Lock(ctx context.Context, userID string) error {
	return r.v.do(func(d *dataset) error {
		if _, ok := d.drivers[userID]; !ok {
			return repository.ErrNotFound
		}
		return nil
	})
}

func (r *driverRepository) Claim(ctx context.Context, userID string) (bool, error) {
	var claimed bool
	err := r.v.do(func(d *dataset) error {
		driver, ok := d.drivers[userID]
		if !ok || !driver.IsAvailable {
			return nil
		}
		driver.IsAvailable = false
		d.drivers[userID] = driver
		claimed = true
		return nil
	})
	return claimed, err
}

func (r *driverRepository) Release(ctx context.Context, userID string, completed bool) error {
	return r.v.do(func(d *dataset) error {
		driver, ok := d.drivers[userID]
		if !ok {
			return repository.ErrNotFound
		}
		driver.IsAvailable = true
		if completed {
			driver.TotalRides++
		}
		d.drivers[userID] = driver
		return nil
	})
}

func (r *driverRepository) SetAvailability(ctx context.Context, userID string, available bool, loc *domain.Location) (bool, error) {
	var updated bool
	err := r.v.do(func(d *dataset) error {
		driver, ok := d.drivers[userID]
		if !ok {
			return nil
		}
		if available && hasActiveRide(d, userID) {
			return nil
		}
		driver.IsAvailable = available
		if loc != nil {
			l := *loc
			driver.Location = &l
		}
		d.drivers[userID] = driver
		updated = true
		return nil
	})
	return updated, err
}

func hasActiveRide(d *dataset, driverID string) bool {
	for _, ride := range d.rides {
		if ride.DriverID == driverID &&
			(ride.Status == domain.RideStatusAccepted || ride.Status == domain.RideStatusInProgress) {
			return true
		}
	}
	return false
}

func (r *driverRepository) UpdateLocation(ctx context.Context, userID string, loc domain.Location) error {
	return r.v.do(func(d *dataset) error {
		driver, ok := d.drivers[userID]
		if !ok {
			return repository.ErrNotFound
		}
		driver.Location = &loc
		d.drivers[userID] = driver
		return nil
	})
}

func (r *driverRepository) RecomputeRating(ctx context.Context, userID string) (float64, error) {
	var rating float64
	err := r.v.do(func(d *dataset) error {
		driver, ok := d.drivers[userID]
		if !ok {
			return repository.ErrNotFound
		}

		var sum, n int
		for _, rt := range d.ratings {
			if rt.RatedID == userID {
				sum += rt.Score
				n++
			}
		}
		if n > 0 {
			driver.Rating = geo.RoundMoney(float64(sum) / float64(n))
			d.drivers[userID] = driver
		}
		rating = driver.Rating
		return nil
	})
	return rating, err
}
