package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"ridedispatch/internal/domain"
	"ridedispatch/internal/geo"
	"ridedispatch/internal/repository"
)

// DriverFinder defines the matching contract used at ride creation.
type DriverFinder interface {
	FindNearby(ctx context.Context, q NearbyQuery) ([]NearbyDriver, error)
}

// Ensure MatchingService implements DriverFinder.
var _ DriverFinder = (*MatchingService)(nil)

const defaultCancelReason = "No reason provided"

// RideOptions tunes the ride lifecycle.
type RideOptions struct {
	// AutoSettle settles payment as soon as a ride completes. When false a
	// pending payment is opened and the rider pays through checkout.
	AutoSettle bool
}

// RideService drives a ride through its lifecycle.
//
// Every transition is a conditional update: the stored status is checked by
// the write itself, so of two racing calls only the first to commit wins.
type RideService struct {
	rides    repository.RideRepository
	users    repository.UserRepository
	tx       repository.Transactor
	finder   DriverFinder
	drivers  *DriverService
	payments *PaymentService
	notifier *NotificationService
	opts     RideOptions
	log      logrus.FieldLogger
}

// NewRideService creates a new RideService.
func NewRideService(
	repos repository.Repositories,
	tx repository.Transactor,
	finder DriverFinder,
	drivers *DriverService,
	payments *PaymentService,
	notifier *NotificationService,
	opts RideOptions,
	log logrus.FieldLogger,
) *RideService {
	return &RideService{
		rides:    repos.Rides,
		users:    repos.Users,
		tx:       tx,
		finder:   finder,
		drivers:  drivers,
		payments: payments,
		notifier: notifier,
		opts:     opts,
		log:      log,
	}
}

// CreateRideRequest contains the parameters for requesting a ride.
// A zero coordinate counts as missing.
type CreateRideRequest struct {
	RiderID            string  `validate:"required"`
	PickupLat          float64 `validate:"required,gte=-90,lte=90"`
	PickupLng          float64 `validate:"required,gte=-180,lte=180"`
	PickupAddress      string  `validate:"required"`
	DestinationLat     float64 `validate:"required,gte=-90,lte=90"`
	DestinationLng     float64 `validate:"required,gte=-180,lte=180"`
	DestinationAddress string  `validate:"required"`
	RideClass          string  // empty or unknown means economy
}

// CreateRide prices and records a new ride and broadcasts it to nearby drivers.
func (s *RideService) CreateRide(ctx context.Context, req CreateRideRequest) (*domain.Ride, error) {
	if err := validateStruct(req, fieldErrors{
		"Rider":       ErrInvalidRiderID,
		"Pickup":      ErrInvalidPickupLocation,
		"Destination": ErrInvalidDestinationLocation,
	}); err != nil {
		return nil, err
	}

	rider, err := s.users.GetByID(ctx, req.RiderID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	class := domain.ParseRideClass(req.RideClass)
	distance := geo.Distance(req.PickupLat, req.PickupLng, req.DestinationLat, req.DestinationLng)

	ride := &domain.Ride{
		ID:                 uuid.New().String(),
		RiderID:            req.RiderID,
		PickupLat:          req.PickupLat,
		PickupLng:          req.PickupLng,
		PickupAddress:      req.PickupAddress,
		DestinationLat:     req.DestinationLat,
		DestinationLng:     req.DestinationLng,
		DestinationAddress: req.DestinationAddress,
		RideClass:          class,
		Status:             domain.RideStatusRequested,
		FareAmount:         geo.Fare(distance, class),
		DistanceKm:         geo.RoundMoney(distance),
		PaymentStatus:      domain.PaymentStatusPending,
		RequestedAt:        time.Now().UTC(),
	}

	if err := s.rides.Create(ctx, ride); err != nil {
		return nil, err
	}

	var audience []string
	nearby, err := s.finder.FindNearby(ctx, NearbyQuery{Lat: ride.PickupLat, Lng: ride.PickupLng, RideClass: class})
	if err != nil {
		s.log.WithError(err).WithField("ride_id", ride.ID).Warn("failed to find nearby drivers")
	}
	for _, n := range nearby {
		audience = append(audience, n.Driver.UserID)
	}

	s.notifier.NotifyRideRequested(ride, rider.Name, audience)
	s.log.WithFields(logrus.Fields{
		"ride_id":    ride.ID,
		"ride_class": class,
		"fare":       ride.FareAmount,
		"audience":   len(audience),
	}).Info("ride requested")

	return ride, nil
}

// GetRide retrieves a ride.
func (s *RideService) GetRide(ctx context.Context, rideID string) (*domain.Ride, error) {
	if rideID == "" {
		return nil, ErrInvalidRideID
	}

	ride, err := s.rides.GetByID(ctx, rideID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrRideNotFound
		}
		return nil, err
	}
	return ride, nil
}

// ListRides returns the user's most recent rides.
func (s *RideService) ListRides(ctx context.Context, userID string, limit int) ([]*domain.Ride, error) {
	if userID == "" {
		return nil, ErrInvalidUserID
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.rides.ListByUser(ctx, userID, limit)
}

// AcceptRide assigns the driver to a requested ride.
//
// The ride update and the driver claim share one transaction, ride first.
// Losing either race rolls both back: ErrRideNotRequested if another driver
// got the ride, ErrDriverUnavailable if this driver is not available.
func (s *RideService) AcceptRide(ctx context.Context, rideID, driverID string) (*domain.Ride, error) {
	if rideID == "" {
		return nil, ErrInvalidRideID
	}
	if driverID == "" {
		return nil, ErrInvalidDriverID
	}

	ride, err := s.GetRide(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if ride.Status != domain.RideStatusRequested {
		return nil, ErrRideNotRequested
	}

	if _, err := s.drivers.GetDriver(ctx, driverID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	err = s.tx.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		accepted, err := repos.Rides.Accept(ctx, rideID, driverID, now)
		if err != nil {
			return err
		}
		if !accepted {
			return ErrRideNotRequested
		}

		claimed, err := repos.Drivers.Claim(ctx, driverID)
		if err != nil {
			return err
		}
		if !claimed {
			return ErrDriverUnavailable
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	ride.Status = domain.RideStatusAccepted
	ride.DriverID = driverID
	ride.AcceptedAt = now

	summary, err := s.drivers.GetSummary(ctx, driverID)
	if err != nil {
		s.log.WithError(err).WithField("driver_id", driverID).Warn("failed to load driver summary")
		summary = &domain.DriverSummary{DriverID: driverID}
	}
	s.notifier.NotifyRideAccepted(ride, summary)

	s.log.WithFields(logrus.Fields{"ride_id": rideID, "driver_id": driverID}).Info("ride accepted")
	return ride, nil
}

// StartRide moves an accepted ride to in progress.
func (s *RideService) StartRide(ctx context.Context, rideID, driverID string) (*domain.Ride, error) {
	ride, err := s.driverRide(ctx, rideID, driverID)
	if err != nil {
		return nil, err
	}
	if ride.Status != domain.RideStatusAccepted {
		return nil, ErrRideNotAccepted
	}

	now := time.Now().UTC()
	started, err := s.rides.Start(ctx, rideID, driverID, now)
	if err != nil {
		return nil, err
	}
	if !started {
		return nil, ErrRideNotAccepted
	}

	ride.Status = domain.RideStatusInProgress
	ride.StartedAt = now

	s.notifier.NotifyRideStarted(ride)
	s.log.WithFields(logrus.Fields{"ride_id": rideID, "driver_id": driverID}).Info("ride started")
	return ride, nil
}

// CompleteRide finishes an in-progress ride, frees the driver and settles payment.
//
// Settlement runs after the ride commits. A failed settlement is logged and
// can be retried through checkout; it never undoes the completion.
func (s *RideService) CompleteRide(ctx context.Context, rideID, driverID string) (*domain.Ride, error) {
	ride, err := s.driverRide(ctx, rideID, driverID)
	if err != nil {
		return nil, err
	}
	if ride.Status != domain.RideStatusInProgress {
		return nil, ErrRideNotInProgress
	}

	now := time.Now().UTC()
	err = s.tx.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		completed, err := repos.Rides.Complete(ctx, rideID, driverID, now)
		if err != nil {
			return err
		}
		if !completed {
			return ErrRideNotInProgress
		}
		return repos.Drivers.Release(ctx, driverID, true)
	})
	if err != nil {
		return nil, err
	}

	ride.Status = domain.RideStatusCompleted
	ride.CompletedAt = now

	logger := s.log.WithFields(logrus.Fields{"ride_id": rideID, "driver_id": driverID})
	if s.opts.AutoSettle {
		payment, err := s.payments.Settle(ctx, SettleRequest{RideID: rideID, Amount: ride.FareAmount})
		if err != nil {
			logger.WithError(err).Error("failed to settle payment")
		} else {
			ride.PaymentStatus = payment.Status
		}
	} else if err := s.payments.Open(ctx, rideID, ride.FareAmount); err != nil {
		logger.WithError(err).Error("failed to open payment")
	}

	s.notifier.NotifyRideCompleted(ride)
	logger.WithField("fare", ride.FareAmount).Info("ride completed")
	return ride, nil
}

// CancelRideRequest contains the parameters for cancelling a ride.
type CancelRideRequest struct {
	RideID  string
	ActorID string
	Reason  string
}

// CancelRide cancels a ride that has not started.
// The assigned driver, if any, becomes available again in the same transaction.
func (s *RideService) CancelRide(ctx context.Context, req CancelRideRequest) (*domain.Ride, error) {
	if req.ActorID == "" {
		return nil, ErrInvalidUserID
	}

	ride, err := s.GetRide(ctx, req.RideID)
	if err != nil {
		return nil, err
	}

	var by domain.CancelActor
	switch {
	case req.ActorID == ride.RiderID:
		by = domain.CancelledByRider
	case ride.DriverID != "" && req.ActorID == ride.DriverID:
		by = domain.CancelledByDriver
	default:
		return nil, ErrNotRideParticipant
	}

	if !domain.CanTransition(ride.Status, domain.RideStatusCancelled) {
		return nil, ErrRideCannotBeCancelled
	}

	reason := req.Reason
	if reason == "" {
		reason = defaultCancelReason
	}

	now := time.Now().UTC()
	observed := ride.Status
	err = s.tx.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		cancelled, err := repos.Rides.Cancel(ctx, ride.ID, observed, by, reason, now)
		if err != nil {
			return err
		}
		if !cancelled {
			return ErrRideCannotBeCancelled
		}
		if ride.DriverID != "" {
			return repos.Drivers.Release(ctx, ride.DriverID, false)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	ride.Status = domain.RideStatusCancelled
	ride.CancelledBy = by
	ride.CancelReason = reason
	ride.CancelledAt = now

	s.notifier.NotifyRideCancelled(ride)
	s.log.WithFields(logrus.Fields{"ride_id": ride.ID, "cancelled_by": by}).Info("ride cancelled")
	return ride, nil
}

// RateRideRequest contains the parameters for rating a ride.
type RateRideRequest struct {
	RideID  string
	RaterID string
	Score   int `validate:"min=1,max=5"`
	Review  string
}

// RateRideResult is the outcome of a rating.
type RateRideResult struct {
	Rating       *domain.Rating
	DriverRating float64 // driver's new average, set when the rider rated
}

// RateRide records one participant's rating of the other and stores the score
// on the ride, so the latest rating wins. When the rider rates, the driver's
// average is recomputed in the same transaction.
func (s *RideService) RateRide(ctx context.Context, req RateRideRequest) (*RateRideResult, error) {
	if err := validateStruct(req, fieldErrors{"Score": ErrInvalidScore}); err != nil {
		return nil, err
	}
	if req.RaterID == "" {
		return nil, ErrInvalidUserID
	}

	ride, err := s.GetRide(ctx, req.RideID)
	if err != nil {
		return nil, err
	}
	if !ride.IsParticipant(req.RaterID) {
		return nil, ErrNotRideParticipant
	}
	if ride.Status != domain.RideStatusCompleted {
		return nil, ErrRideNotCompleted
	}

	byRider := req.RaterID == ride.RiderID
	rating := &domain.Rating{
		ID:        uuid.New().String(),
		RideID:    ride.ID,
		RaterID:   req.RaterID,
		RatedID:   ride.RiderID,
		Score:     req.Score,
		Review:    req.Review,
		CreatedAt: time.Now().UTC(),
	}
	if byRider {
		rating.RatedID = ride.DriverID
	}

	result := &RateRideResult{Rating: rating}
	err = s.tx.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		if err := repos.Ratings.Create(ctx, rating); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return ErrAlreadyRated
			}
			return err
		}
		if err := repos.Rides.SetRating(ctx, ride.ID, req.Score); err != nil {
			return err
		}
		if !byRider {
			return nil
		}
		// The average is read after the lock so it includes ratings committed meanwhile.
		if err := repos.Drivers.Lock(ctx, ride.DriverID); err != nil {
			return err
		}
		avg, err := repos.Drivers.RecomputeRating(ctx, ride.DriverID)
		if err != nil {
			return err
		}
		result.DriverRating = avg
		return nil
	})
	if err != nil {
		return nil, err
	}

	if byRider {
		s.drivers.InvalidateSummary(ctx, ride.DriverID)
	}
	return result, nil
}

// driverRide loads a ride and checks that driverID is its driver.
func (s *RideService) driverRide(ctx context.Context, rideID, driverID string) (*domain.Ride, error) {
	if driverID == "" {
		return nil, ErrInvalidDriverID
	}

	ride, err := s.GetRide(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if ride.DriverID != driverID {
		return nil, ErrDriverNotAssignedToRide
	}
	return ride, nil
}
