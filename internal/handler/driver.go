package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"ridedispatch/internal/domain"
	"ridedispatch/internal/middleware"
	"ridedispatch/internal/service"
)

// DriverHandler handles HTTP requests for drivers.
type DriverHandler struct {
	driverService   *service.DriverService
	matchingService *service.MatchingService
}

// NewDriverHandler creates a new DriverHandler.
func NewDriverHandler(driverService *service.DriverService, matchingService *service.MatchingService) *DriverHandler {
	return &DriverHandler{
		driverService:   driverService,
		matchingService: matchingService,
	}
}

// RegisterDriverRequest is the HTTP request body for driver registration.
type RegisterDriverRequest struct {
	VehicleType  string `json:"vehicle_type"`
	VehicleMake  string `json:"vehicle_make"`
	VehicleModel string `json:"vehicle_model"`
	VehicleColor string `json:"vehicle_color"`
	LicensePlate string `json:"license_plate"`
}

// AvailabilityRequest is the HTTP request body for toggling availability.
type AvailabilityRequest struct {
	Available *bool            `json:"available"`
	Location  *domain.Location `json:"location,omitempty"`
}

// UpdateLocationRequest is the HTTP request body for updating driver location.
type UpdateLocationRequest struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// DriverResponse is the HTTP response for driver data.
type DriverResponse struct {
	ID           string           `json:"id"`
	Name         string           `json:"name"`
	Phone        string           `json:"phone"`
	IsAvailable  bool             `json:"is_available"`
	Location     *domain.Location `json:"location,omitempty"`
	VehicleType  string           `json:"vehicle_type"`
	VehicleMake  string           `json:"vehicle_make"`
	VehicleModel string           `json:"vehicle_model"`
	VehicleColor string           `json:"vehicle_color,omitempty"`
	LicensePlate string           `json:"license_plate"`
	Rating       float64          `json:"rating"`
	TotalRides   int              `json:"total_rides"`
}

// NearbyDriverResponse is a single hit of a nearby search.
type NearbyDriverResponse struct {
	DriverResponse
	DistanceKm float64 `json:"distance_km"`
}

func newDriverResponse(d *domain.Driver) DriverResponse {
	return DriverResponse{
		ID:           d.UserID,
		Name:         d.Name,
		Phone:        d.Phone,
		IsAvailable:  d.IsAvailable,
		Location:     d.Location,
		VehicleType:  string(d.VehicleType),
		VehicleMake:  d.VehicleMake,
		VehicleModel: d.VehicleModel,
		VehicleColor: d.VehicleColor,
		LicensePlate: d.LicensePlate,
		Rating:       d.Rating,
		TotalRides:   d.TotalRides,
	}
}

// Register handles POST /v1/drivers/register
func (h *DriverHandler) Register(c *gin.Context) {
	var req RegisterDriverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	driver, err := h.driverService.Register(c.Request.Context(), service.RegisterDriverRequest{
		UserID:       middleware.UserID(c),
		VehicleType:  req.VehicleType,
		VehicleMake:  req.VehicleMake,
		VehicleModel: req.VehicleModel,
		VehicleColor: req.VehicleColor,
		LicensePlate: req.LicensePlate,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, newDriverResponse(driver))
}

// Me handles GET /v1/drivers/me
func (h *DriverHandler) Me(c *gin.Context) {
	driver, err := h.driverService.GetDriver(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, newDriverResponse(driver))
}

// GetSummary handles GET /v1/drivers/:id/summary
func (h *DriverHandler) GetSummary(c *gin.Context) {
	summary, err := h.driverService.GetSummary(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, summary)
}

// UpdateAvailability handles PUT /v1/drivers/availability
func (h *DriverHandler) UpdateAvailability(c *gin.Context) {
	var req AvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	if req.Available == nil {
		badRequest(c, "available is required")
		return
	}

	driver, err := h.driverService.UpdateAvailability(c.Request.Context(), service.AvailabilityRequest{
		DriverID:  middleware.UserID(c),
		Available: *req.Available,
		Location:  req.Location,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, newDriverResponse(driver))
}

// UpdateLocation handles PUT /v1/drivers/location
func (h *DriverHandler) UpdateLocation(c *gin.Context) {
	var req UpdateLocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	if err := h.driverService.UpdateLocation(c.Request.Context(), middleware.UserID(c), req.Lat, req.Lng); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// Nearby handles GET /v1/drivers/nearby?lat=&lng=&radius=&ride_class=
func (h *DriverHandler) Nearby(c *gin.Context) {
	lat, errLat := strconv.ParseFloat(c.Query("lat"), 64)
	lng, errLng := strconv.ParseFloat(c.Query("lng"), 64)
	if errLat != nil || errLng != nil {
		respondError(c, service.ErrInvalidLocation)
		return
	}

	var radius float64
	if v := c.Query("radius"); v != "" {
		r, err := strconv.ParseFloat(v, 64)
		if err != nil || r < 0 {
			badRequest(c, "invalid radius")
			return
		}
		radius = r
	}

	var class domain.RideClass
	if v := c.Query("ride_class"); v != "" {
		class = domain.ParseRideClass(v)
	}

	hits, err := h.matchingService.FindNearby(c.Request.Context(), service.NearbyQuery{
		Lat:       lat,
		Lng:       lng,
		RadiusKm:  radius,
		RideClass: class,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]NearbyDriverResponse, 0, len(hits))
	for _, hit := range hits {
		response = append(response, NearbyDriverResponse{
			DriverResponse: newDriverResponse(hit.Driver),
			DistanceKm:     hit.DistanceKm,
		})
	}
	respondJSON(c, http.StatusOK, response)
}
