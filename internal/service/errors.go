package service

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by a service operation wraps exactly one of these.
var (
	ErrValidation         = errors.New("validation error")
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("conflict")
	ErrForbidden          = errors.New("forbidden")
	ErrDriverUnavailable  = errors.New("driver unavailable")
	ErrPromoAlreadyUsed   = errors.New("promo code already used")
	ErrPromoMinimumNotMet = errors.New("minimum ride amount not met")
	ErrAlreadyRated       = errors.New("ride already rated")
	ErrAlreadyPaid        = errors.New("ride already paid")
)

var (
	// ErrInvalidRiderID is returned when rider ID is empty.
	ErrInvalidRiderID = fmt.Errorf("%w: invalid rider id", ErrValidation)

	// ErrInvalidDriverID is returned when driver ID is empty.
	ErrInvalidDriverID = fmt.Errorf("%w: invalid driver id", ErrValidation)

	// ErrInvalidRideID is returned when ride ID is empty.
	ErrInvalidRideID = fmt.Errorf("%w: invalid ride id", ErrValidation)

	// ErrInvalidUserID is returned when user ID is empty.
	ErrInvalidUserID = fmt.Errorf("%w: invalid user id", ErrValidation)

	// ErrInvalidPickupLocation is returned when pickup coordinates or address are missing or out of range.
	ErrInvalidPickupLocation = fmt.Errorf("%w: invalid pickup location", ErrValidation)

	// ErrInvalidDestinationLocation is returned when destination coordinates or address are missing or out of range.
	ErrInvalidDestinationLocation = fmt.Errorf("%w: invalid destination location", ErrValidation)

	// ErrInvalidLocation is returned when location coordinates are invalid.
	ErrInvalidLocation = fmt.Errorf("%w: invalid location", ErrValidation)

	// ErrInvalidScore is returned when a rating is outside 1-5.
	ErrInvalidScore = fmt.Errorf("%w: score must be between 1 and 5", ErrValidation)

	// ErrInvalidPaymentMethod is returned when payment method is not supported.
	ErrInvalidPaymentMethod = fmt.Errorf("%w: invalid payment method", ErrValidation)

	// ErrInvalidAmount is returned when an amount is negative.
	ErrInvalidAmount = fmt.Errorf("%w: invalid amount", ErrValidation)

	// ErrInvalidPromo is returned when a promo code definition is malformed.
	ErrInvalidPromo = fmt.Errorf("%w: invalid promo code", ErrValidation)

	// ErrInvalidVehicle is returned when driver registration lacks vehicle details.
	ErrInvalidVehicle = fmt.Errorf("%w: invalid vehicle details", ErrValidation)
)

var (
	// ErrRideNotFound is returned when the ride does not exist.
	ErrRideNotFound = fmt.Errorf("%w: ride", ErrNotFound)

	// ErrDriverNotFound is returned when the user has no driver record.
	ErrDriverNotFound = fmt.Errorf("%w: driver", ErrNotFound)

	// ErrUserNotFound is returned when the user does not exist.
	ErrUserNotFound = fmt.Errorf("%w: user", ErrNotFound)

	// ErrPromoNotFound is returned when no redeemable promo code matches.
	ErrPromoNotFound = fmt.Errorf("%w: promo code not found or expired", ErrNotFound)

	// ErrPaymentNotFound is returned when the ride has no payment.
	ErrPaymentNotFound = fmt.Errorf("%w: payment", ErrNotFound)
)

var (
	// ErrRideNotRequested is returned when a ride is no longer waiting for a driver.
	ErrRideNotRequested = fmt.Errorf("%w: ride is no longer requested", ErrConflict)

	// ErrRideNotAccepted is returned when starting a ride that is not accepted.
	ErrRideNotAccepted = fmt.Errorf("%w: ride is not accepted", ErrConflict)

	// ErrRideNotInProgress is returned when completing a ride that is not in progress.
	ErrRideNotInProgress = fmt.Errorf("%w: ride is not in progress", ErrConflict)

	// ErrRideNotCompleted is returned when rating or paying for an unfinished ride.
	ErrRideNotCompleted = fmt.Errorf("%w: ride is not completed", ErrConflict)

	// ErrRideCannotBeCancelled is returned when ride is in a state that cannot be cancelled.
	ErrRideCannotBeCancelled = fmt.Errorf("%w: ride cannot be cancelled in current state", ErrConflict)

	// ErrDriverHasActiveRide is returned when a driver with an ongoing ride tries to go available.
	ErrDriverHasActiveRide = fmt.Errorf("%w: driver has an active ride", ErrConflict)

	// ErrDriverAlreadyRegistered is returned when the user or plate already has a driver record.
	ErrDriverAlreadyRegistered = fmt.Errorf("%w: driver already registered", ErrConflict)

	// ErrPromoCodeExists is returned when creating a promo code that already exists.
	ErrPromoCodeExists = fmt.Errorf("%w: promo code already exists", ErrConflict)
)

var (
	// ErrDriverNotAssignedToRide is returned when driver is not assigned to the ride.
	ErrDriverNotAssignedToRide = fmt.Errorf("%w: driver not assigned to this ride", ErrForbidden)

	// ErrNotRideParticipant is returned when the actor is neither rider nor driver of the ride.
	ErrNotRideParticipant = fmt.Errorf("%w: not a participant of this ride", ErrForbidden)

	// ErrNotRideRider is returned when someone other than the rider pays for a ride.
	ErrNotRideRider = fmt.Errorf("%w: only the rider can pay for this ride", ErrForbidden)
)

// ErrPromoExhausted is returned when the promo reached its usage limit mid-redemption.
var ErrPromoExhausted = fmt.Errorf("%w: promo code usage limit reached", ErrNotFound)
