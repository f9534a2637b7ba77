package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"ridedispatch/internal/domain"
	"ridedispatch/internal/middleware"
	"ridedispatch/internal/service"
)

// RideHandler handles HTTP requests for rides.
type RideHandler struct {
	rideService *service.RideService
}

// NewRideHandler creates a new RideHandler.
func NewRideHandler(rideService *service.RideService) *RideHandler {
	return &RideHandler{rideService: rideService}
}

// CreateRideRequest is the HTTP request body for requesting a ride.
type CreateRideRequest struct {
	PickupLat          float64 `json:"pickup_lat"`
	PickupLng          float64 `json:"pickup_lng"`
	PickupAddress      string  `json:"pickup_address"`
	DestinationLat     float64 `json:"destination_lat"`
	DestinationLng     float64 `json:"destination_lng"`
	DestinationAddress string  `json:"destination_address"`
	RideClass          string  `json:"ride_class,omitempty"`
}

// CancelRideRequest is the HTTP request body for cancelling a ride.
type CancelRideRequest struct {
	Reason string `json:"reason,omitempty"`
}

// RateRideRequest is the HTTP request body for rating a ride.
type RateRideRequest struct {
	Score  int    `json:"score"`
	Review string `json:"review,omitempty"`
}

// RideResponse is the HTTP representation of a ride.
type RideResponse struct {
	ID                 string  `json:"id"`
	RiderID            string  `json:"rider_id"`
	DriverID           string  `json:"driver_id,omitempty"`
	PickupLat          float64 `json:"pickup_lat"`
	PickupLng          float64 `json:"pickup_lng"`
	PickupAddress      string  `json:"pickup_address"`
	DestinationLat     float64 `json:"destination_lat"`
	DestinationLng     float64 `json:"destination_lng"`
	DestinationAddress string  `json:"destination_address"`
	RideClass          string  `json:"ride_class"`
	Status             string  `json:"status"`
	FareAmount         float64 `json:"fare_amount"`
	DistanceKm         float64 `json:"distance_km"`
	Rating             int     `json:"rating,omitempty"`
	PaymentStatus      string  `json:"payment_status"`
	RequestedAt        string  `json:"requested_at"`
	AcceptedAt         string  `json:"accepted_at,omitempty"`
	StartedAt          string  `json:"started_at,omitempty"`
	CompletedAt        string  `json:"completed_at,omitempty"`
	CancelledAt        string  `json:"cancelled_at,omitempty"`
	CancelReason       string  `json:"cancel_reason,omitempty"`
	CancelledBy        string  `json:"cancelled_by,omitempty"`
}

// RatingResponse is the HTTP response for a rating.
type RatingResponse struct {
	ID           string  `json:"id"`
	RideID       string  `json:"ride_id"`
	RatedID      string  `json:"rated_id"`
	Score        int     `json:"score"`
	Review       string  `json:"review,omitempty"`
	DriverRating float64 `json:"driver_rating,omitempty"`
}

func newRideResponse(r *domain.Ride) RideResponse {
	return RideResponse{
		ID:                 r.ID,
		RiderID:            r.RiderID,
		DriverID:           r.DriverID,
		PickupLat:          r.PickupLat,
		PickupLng:          r.PickupLng,
		PickupAddress:      r.PickupAddress,
		DestinationLat:     r.DestinationLat,
		DestinationLng:     r.DestinationLng,
		DestinationAddress: r.DestinationAddress,
		RideClass:          string(r.RideClass),
		Status:             string(r.Status),
		FareAmount:         r.FareAmount,
		DistanceKm:         r.DistanceKm,
		Rating:             r.Rating,
		PaymentStatus:      string(r.PaymentStatus),
		RequestedAt:        formatTime(r.RequestedAt),
		AcceptedAt:         formatTime(r.AcceptedAt),
		StartedAt:          formatTime(r.StartedAt),
		CompletedAt:        formatTime(r.CompletedAt),
		CancelledAt:        formatTime(r.CancelledAt),
		CancelReason:       r.CancelReason,
		CancelledBy:        string(r.CancelledBy),
	}
}

// CreateRide handles POST /v1/rides
func (h *RideHandler) CreateRide(c *gin.Context) {
	var req CreateRideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	ride, err := h.rideService.CreateRide(c.Request.Context(), service.CreateRideRequest{
		RiderID:            middleware.UserID(c),
		PickupLat:          req.PickupLat,
		PickupLng:          req.PickupLng,
		PickupAddress:      req.PickupAddress,
		DestinationLat:     req.DestinationLat,
		DestinationLng:     req.DestinationLng,
		DestinationAddress: req.DestinationAddress,
		RideClass:          req.RideClass,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, newRideResponse(ride))
}

// GetRide handles GET /v1/rides/:id
func (h *RideHandler) GetRide(c *gin.Context) {
	ride, err := h.rideService.GetRide(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	if !ride.IsParticipant(middleware.UserID(c)) && ride.Status != domain.RideStatusRequested {
		respondError(c, service.ErrNotRideParticipant)
		return
	}

	respondJSON(c, http.StatusOK, newRideResponse(ride))
}

// ListRides handles GET /v1/rides
func (h *RideHandler) ListRides(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))

	rides, err := h.rideService.ListRides(c.Request.Context(), middleware.UserID(c), limit)
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]RideResponse, 0, len(rides))
	for _, r := range rides {
		response = append(response, newRideResponse(r))
	}
	respondJSON(c, http.StatusOK, response)
}

// AcceptRide handles POST /v1/rides/:id/accept
func (h *RideHandler) AcceptRide(c *gin.Context) {
	ride, err := h.rideService.AcceptRide(c.Request.Context(), c.Param("id"), middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, newRideResponse(ride))
}

// StartRide handles POST /v1/rides/:id/start
func (h *RideHandler) StartRide(c *gin.Context) {
	ride, err := h.rideService.StartRide(c.Request.Context(), c.Param("id"), middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, newRideResponse(ride))
}

// CompleteRide handles POST /v1/rides/:id/complete
func (h *RideHandler) CompleteRide(c *gin.Context) {
	ride, err := h.rideService.CompleteRide(c.Request.Context(), c.Param("id"), middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, newRideResponse(ride))
}

// CancelRide handles POST /v1/rides/:id/cancel
func (h *RideHandler) CancelRide(c *gin.Context) {
	var req CancelRideRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid request body")
			return
		}
	}

	ride, err := h.rideService.CancelRide(c.Request.Context(), service.CancelRideRequest{
		RideID:  c.Param("id"),
		ActorID: middleware.UserID(c),
		Reason:  req.Reason,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, newRideResponse(ride))
}

// RateRide handles POST /v1/rides/:id/rate
func (h *RideHandler) RateRide(c *gin.Context) {
	var req RateRideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	result, err := h.rideService.RateRide(c.Request.Context(), service.RateRideRequest{
		RideID:  c.Param("id"),
		RaterID: middleware.UserID(c),
		Score:   req.Score,
		Review:  req.Review,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, RatingResponse{
		ID:           result.Rating.ID,
		RideID:       result.Rating.RideID,
		RatedID:      result.Rating.RatedID,
		Score:        result.Rating.Score,
		Review:       result.Rating.Review,
		DriverRating: result.DriverRating,
	})
}
