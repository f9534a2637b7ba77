package domain

import "time"

// RideStatus represents the current stage of a ride.
type RideStatus string

const (
	RideStatusRequested  RideStatus = "requested"
	RideStatusAccepted   RideStatus = "accepted"
	RideStatusInProgress RideStatus = "in_progress"
	RideStatusCompleted  RideStatus = "completed"
	RideStatusCancelled  RideStatus = "cancelled"
)

// AllowedTransitions lists the statuses each status may move to.
var AllowedTransitions = map[RideStatus][]RideStatus{
	RideStatusRequested:  {RideStatusAccepted, RideStatusCancelled},
	RideStatusAccepted:   {RideStatusInProgress, RideStatusCancelled},
	RideStatusInProgress: {RideStatusCompleted},
}

// CanTransition reports whether a ride may move from one status to another.
func CanTransition(from, to RideStatus) bool {
	for _, next := range AllowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is possible.
func (s RideStatus) IsTerminal() bool {
	return s == RideStatusCompleted || s == RideStatusCancelled
}

// HasDriver reports whether a ride in this status must carry a driver.
func (s RideStatus) HasDriver() bool {
	return s == RideStatusAccepted || s == RideStatusInProgress || s == RideStatusCompleted
}

// RideClass is the service tier requested by the rider.
type RideClass string

const (
	RideClassEconomy RideClass = "economy"
	RideClassComfort RideClass = "comfort"
	RideClassPremium RideClass = "premium"
	RideClassSUV     RideClass = "suv"
)

// ParseRideClass returns the ride class for s, falling back to economy.
func ParseRideClass(s string) RideClass {
	switch c := RideClass(s); c {
	case RideClassEconomy, RideClassComfort, RideClassPremium, RideClassSUV:
		return c
	default:
		return RideClassEconomy
	}
}

// CancelActor identifies which participant cancelled a ride.
type CancelActor string

const (
	CancelledByRider  CancelActor = "rider"
	CancelledByDriver CancelActor = "driver"
)

// Ride represents a ride from request to completion or cancellation.
type Ride struct {
	ID                 string
	RiderID            string
	DriverID           string
	PickupLat          float64
	PickupLng          float64
	PickupAddress      string
	DestinationLat     float64
	DestinationLng     float64
	DestinationAddress string
	RideClass          RideClass
	Status             RideStatus
	FareAmount         float64 // fixed at creation
	DistanceKm         float64
	Rating             int // latest score from either participant, 0 until rated
	PaymentStatus      PaymentStatus
	RequestedAt        time.Time
	AcceptedAt         time.Time
	StartedAt          time.Time
	CompletedAt        time.Time
	CancelledAt        time.Time
	CancelReason       string
	CancelledBy        CancelActor
}

// IsParticipant reports whether userID is the rider or the assigned driver.
func (r *Ride) IsParticipant(userID string) bool {
	return userID != "" && (userID == r.RiderID || userID == r.DriverID)
}
