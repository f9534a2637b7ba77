package postgres

import (
	"context"
	"database/sql"

	"github.com/lib/pq"

	"ridedispatch/internal/domain"
	"ridedispatch/internal/repository"
)

// DriverRepository is a PostgreSQL implementation of repository.DriverRepository.
type DriverRepository struct {
	q Querier
}

const driverColumns = `
	d.user_id, u.name, u.phone, d.is_available, d.current_lat, d.current_lng,
	d.vehicle_type, d.vehicle_make, d.vehicle_model, d.vehicle_color, d.license_plate,
	d.rating, d.total_rides, d.created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDriver(row rowScanner) (*domain.Driver, error) {
	var driver domain.Driver
	var lat, lng sql.NullFloat64

	err := row.Scan(
		&driver.UserID,
		&driver.Name,
		&driver.Phone,
		&driver.IsAvailable,
		&lat,
		&lng,
		&driver.VehicleType,
		&driver.VehicleMake,
		&driver.VehicleModel,
		&driver.VehicleColor,
		&driver.LicensePlate,
		&driver.Rating,
		&driver.TotalRides,
		&driver.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if lat.Valid && lng.Valid {
		driver.Location = &domain.Location{Lat: lat.Float64, Lng: lng.Float64}
	}
	return &driver, nil
}

// Create adds a new driver.
func (r *DriverRepository) Create(ctx context.Context, driver *domain.Driver) error {
	query := `
		INSERT INTO drivers (user_id, is_available, vehicle_type, vehicle_make, vehicle_model, vehicle_color, license_plate, rating, total_rides, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.q.ExecContext(ctx, query,
		driver.UserID,
		driver.IsAvailable,
		driver.VehicleType,
		driver.VehicleMake,
		driver.VehicleModel,
		driver.VehicleColor,
		driver.LicensePlate,
		driver.Rating,
		driver.TotalRides,
		driver.CreatedAt,
	)
	return mapError(err)
}

// GetByUserID retrieves a driver by user ID.
func (r *DriverRepository) GetByUserID(ctx context.Context, userID string) (*domain.Driver, error) {
	query := `SELECT ` + driverColumns + ` FROM drivers d JOIN users u ON u.id = d.user_id WHERE d.user_id = $1`

	driver, err := scanDriver(r.q.QueryRowContext(ctx, query, userID))
	if err != nil {
		return nil, mapError(err)
	}
	return driver, nil
}

// GetByUserIDs retrieves the drivers that exist among userIDs.
func (r *DriverRepository) GetByUserIDs(ctx context.Context, userIDs []string) ([]*domain.Driver, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}

	query := `SELECT ` + driverColumns + ` FROM drivers d JOIN users u ON u.id = d.user_id WHERE d.user_id = ANY($1)`
	rows, err := r.q.QueryContext(ctx, query, pq.Array(userIDs))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var drivers []*domain.Driver
	for rows.Next() {
		driver, err := scanDriver(rows)
		if err != nil {
			return nil, err
		}
		drivers = append(drivers, driver)
	}
	return drivers, rows.Err()
}

// Lock takes the driver's row lock until the enclosing transaction ends.
func (r *DriverRepository) Lock(ctx context.Context, userID string) error {
	var one int
	err := r.q.QueryRowContext(ctx, `SELECT 1 FROM drivers WHERE user_id = $1 FOR UPDATE`, userID).Scan(&one)
	return mapError(err)
}

// Claim flips an available driver to unavailable.
func (r *DriverRepository) Claim(ctx context.Context, userID string) (bool, error) {
	query := `UPDATE drivers SET is_available = FALSE, updated_at = NOW() WHERE user_id = $1 AND is_available`

	result, err := r.q.ExecContext(ctx, query, userID)
	if err != nil {
		return false, err
	}
	return affected(result)
}

// Release makes the driver available again.
func (r *DriverRepository) Release(ctx context.Context, userID string, completed bool) error {
	query := `
		UPDATE drivers
		SET is_available = TRUE,
		    total_rides = total_rides + CASE WHEN $2 THEN 1 ELSE 0 END,
		    updated_at = NOW()
		WHERE user_id = $1
	`

	result, err := r.q.ExecContext(ctx, query, userID, completed)
	if err != nil {
		return err
	}

	ok, err := affected(result)
	if err != nil {
		return err
	}
	if !ok {
		return repository.ErrNotFound
	}
	return nil
}

// SetAvailability sets the availability flag and optionally the location.
func (r *DriverRepository) SetAvailability(ctx context.Context, userID string, available bool, loc *domain.Location) (bool, error) {
	query := `
		UPDATE drivers
		SET is_available = $2,
		    current_lat = COALESCE($3, current_lat),
		    current_lng = COALESCE($4, current_lng),
		    updated_at = NOW()
		WHERE user_id = $1
		  AND (NOT $2 OR NOT EXISTS (
		      SELECT 1 FROM rides
		      WHERE rides.driver_id = $1 AND rides.status IN ('accepted', 'in_progress')
		  ))
	`

	var lat, lng sql.NullFloat64
	if loc != nil {
		lat = sql.NullFloat64{Float64: loc.Lat, Valid: true}
		lng = sql.NullFloat64{Float64: loc.Lng, Valid: true}
	}

	result, err := r.q.ExecContext(ctx, query, userID, available, lat, lng)
	if err != nil {
		return false, err
	}
	return affected(result)
}

// UpdateLocation stores the driver's last known coordinates.
func (r *DriverRepository) UpdateLocation(ctx context.Context, userID string, loc domain.Location) error {
	query := `UPDATE drivers SET current_lat = $2, current_lng = $3, updated_at = NOW() WHERE user_id = $1`

	result, err := r.q.ExecContext(ctx, query, userID, loc.Lat, loc.Lng)
	if err != nil {
		return err
	}

	ok, err := affected(result)
	if err != nil {
		return err
	}
	if !ok {
		return repository.ErrNotFound
	}
	return nil
}

// RecomputeRating sets the driver's rating to the mean of the ratings they received.
func (r *DriverRepository) RecomputeRating(ctx context.Context, userID string) (float64, error) {
	query := `
		UPDATE drivers
		SET rating = COALESCE(
		        (SELECT ROUND(AVG(score)::numeric, 2) FROM ratings WHERE rated_id = $1),
		        rating),
		    updated_at = NOW()
		WHERE user_id = $1
		RETURNING rating
	`

	var rating float64
	if err := r.q.QueryRowContext(ctx, query, userID).Scan(&rating); err != nil {
		return 0, mapError(err)
	}
	return rating, nil
}
