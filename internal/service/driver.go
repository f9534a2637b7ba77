package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"ridedispatch/internal/domain"
	"ridedispatch/internal/repository"
)

// DriverService handles driver self-service operations.
type DriverService struct {
	users         repository.UserRepository
	drivers       repository.DriverRepository
	tx            repository.Transactor
	locationIndex LocationIndex
	cache         DriverCache
	notifier      *NotificationService
	log           logrus.FieldLogger
}

// NewDriverService creates a new DriverService. cache may be nil.
func NewDriverService(
	repos repository.Repositories,
	tx repository.Transactor,
	locationIndex LocationIndex,
	cache DriverCache,
	notifier *NotificationService,
	log logrus.FieldLogger,
) *DriverService {
	return &DriverService{
		users:         repos.Users,
		drivers:       repos.Drivers,
		tx:            tx,
		locationIndex: locationIndex,
		cache:         cache,
		notifier:      notifier,
		log:           log,
	}
}

// RegisterDriverRequest contains the parameters for registering as a driver.
type RegisterDriverRequest struct {
	UserID       string `validate:"required"`
	VehicleType  string
	VehicleMake  string `validate:"required"`
	VehicleModel string `validate:"required"`
	VehicleColor string
	LicensePlate string `validate:"required"`
}

// Register creates the driver record of an existing user. The driver starts unavailable.
func (s *DriverService) Register(ctx context.Context, req RegisterDriverRequest) (*domain.Driver, error) {
	if err := validateStruct(req, fieldErrors{
		"UserID":  ErrInvalidUserID,
		"Vehicle": ErrInvalidVehicle,
		"License": ErrInvalidVehicle,
	}); err != nil {
		return nil, err
	}

	user, err := s.users.GetByID(ctx, req.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	driver := &domain.Driver{
		UserID:       user.ID,
		Name:         user.Name,
		Phone:        user.Phone,
		VehicleType:  domain.ParseRideClass(req.VehicleType),
		VehicleMake:  req.VehicleMake,
		VehicleModel: req.VehicleModel,
		VehicleColor: req.VehicleColor,
		LicensePlate: req.LicensePlate,
		Rating:       5.0,
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.drivers.Create(ctx, driver); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrDriverAlreadyRegistered
		}
		return nil, err
	}

	return driver, nil
}

// GetDriver retrieves a driver record.
func (s *DriverService) GetDriver(ctx context.Context, userID string) (*domain.Driver, error) {
	if userID == "" {
		return nil, ErrInvalidDriverID
	}

	driver, err := s.drivers.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrDriverNotFound
		}
		return nil, err
	}
	return driver, nil
}

// AvailabilityRequest contains the parameters for toggling availability.
type AvailabilityRequest struct {
	DriverID  string
	Available bool
	Location  *domain.Location // optional
}

// UpdateAvailability sets whether the driver accepts rides.
// A driver holding an accepted or in-progress ride cannot go available.
//
// The location index keeps every driver with a known position whatever the
// flag says; matching reads availability from the driver record.
func (s *DriverService) UpdateAvailability(ctx context.Context, req AvailabilityRequest) (*domain.Driver, error) {
	if req.DriverID == "" {
		return nil, ErrInvalidDriverID
	}
	if req.Location != nil && (!isValidLatitude(req.Location.Lat) || !isValidLongitude(req.Location.Lng)) {
		return nil, ErrInvalidLocation
	}

	driver, err := s.GetDriver(ctx, req.DriverID)
	if err != nil {
		return nil, err
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		if err := repos.Drivers.Lock(ctx, req.DriverID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrDriverNotFound
			}
			return err
		}
		ok, err := repos.Drivers.SetAvailability(ctx, req.DriverID, req.Available, req.Location)
		if err != nil {
			return err
		}
		if !ok {
			return ErrDriverHasActiveRide
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	driver.IsAvailable = req.Available
	if req.Location != nil {
		driver.Location = req.Location
	}

	if driver.Location != nil {
		if err := s.locationIndex.UpdateLocation(ctx, req.DriverID, driver.Location.Lat, driver.Location.Lng); err != nil {
			return nil, fmt.Errorf("update location index: %w", err)
		}
	}

	s.log.WithFields(logrus.Fields{"driver_id": req.DriverID, "available": req.Available}).Info("driver availability updated")
	return driver, nil
}

// UpdateLocation stores the driver's position and broadcasts it.
// The availability flag is left untouched.
func (s *DriverService) UpdateLocation(ctx context.Context, driverID string, lat, lng float64) error {
	if driverID == "" {
		return ErrInvalidDriverID
	}
	if !isValidLatitude(lat) || !isValidLongitude(lng) {
		return ErrInvalidLocation
	}

	loc := domain.Location{Lat: lat, Lng: lng}
	if err := s.drivers.UpdateLocation(ctx, driverID, loc); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrDriverNotFound
		}
		return err
	}

	if err := s.locationIndex.UpdateLocation(ctx, driverID, lat, lng); err != nil {
		return fmt.Errorf("update location index: %w", err)
	}

	s.notifier.NotifyDriverLocation(driverID, loc)
	return nil
}

// GetSummary returns the rider-facing view of a driver, served from cache when possible.
func (s *DriverService) GetSummary(ctx context.Context, driverID string) (*domain.DriverSummary, error) {
	if s.cache != nil {
		if cached, err := s.cache.GetDriverSummary(ctx, driverID); err == nil && cached != nil {
			return cached, nil
		}
	}

	driver, err := s.GetDriver(ctx, driverID)
	if err != nil {
		return nil, err
	}

	summary := driver.Summary()
	if s.cache != nil {
		if err := s.cache.SetDriverSummary(ctx, summary); err != nil {
			s.log.WithError(err).WithField("driver_id", driverID).Warn("failed to cache driver summary")
		}
	}
	return summary, nil
}

// InvalidateSummary drops the cached summary after the driver's profile or rating changed.
func (s *DriverService) InvalidateSummary(ctx context.Context, driverID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateDriver(ctx, driverID); err != nil {
		s.log.WithError(err).WithField("driver_id", driverID).Warn("failed to invalidate driver summary")
	}
}
