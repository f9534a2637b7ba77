package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ridedispatch/internal/domain"
	"ridedispatch/internal/middleware"
	"ridedispatch/internal/service"
)

// PaymentHandler handles HTTP requests for payments.
type PaymentHandler struct {
	paymentService *service.PaymentService
	rideService    *service.RideService
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(paymentService *service.PaymentService, rideService *service.RideService) *PaymentHandler {
	return &PaymentHandler{
		paymentService: paymentService,
		rideService:    rideService,
	}
}

// CheckoutRequest is the HTTP request body for paying a completed ride.
type CheckoutRequest struct {
	RideID    string `json:"ride_id"`
	Method    string `json:"payment_method,omitempty"`
	PromoCode string `json:"promo_code,omitempty"`
}

// PaymentResponse is the HTTP response for payment operations.
type PaymentResponse struct {
	ID             string  `json:"id"`
	RideID         string  `json:"ride_id"`
	BaseAmount     float64 `json:"base_amount"`
	Discount       float64 `json:"discount"`
	Amount         float64 `json:"amount"`
	PromoCode      string  `json:"promo_code,omitempty"`
	Method         string  `json:"payment_method"`
	Status         string  `json:"status"`
	TransactionRef string  `json:"transaction_ref,omitempty"`
	ProcessedAt    string  `json:"processed_at,omitempty"`
}

func newPaymentResponse(p *domain.Payment) PaymentResponse {
	return PaymentResponse{
		ID:             p.ID,
		RideID:         p.RideID,
		BaseAmount:     p.BaseAmount,
		Discount:       p.Discount,
		Amount:         p.Amount,
		PromoCode:      p.PromoCode,
		Method:         string(p.Method),
		Status:         string(p.Status),
		TransactionRef: p.TransactionRef,
		ProcessedAt:    formatTime(p.ProcessedAt),
	}
}

// Checkout handles POST /v1/payments/checkout
func (h *PaymentHandler) Checkout(c *gin.Context) {
	var req CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	payment, err := h.paymentService.Checkout(c.Request.Context(), service.CheckoutRequest{
		RideID:    req.RideID,
		RiderID:   middleware.UserID(c),
		Method:    domain.PaymentMethod(req.Method),
		PromoCode: req.PromoCode,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, newPaymentResponse(payment))
}

// GetByRide handles GET /v1/payments/rides/:rideId
func (h *PaymentHandler) GetByRide(c *gin.Context) {
	rideID := c.Param("rideId")

	ride, err := h.rideService.GetRide(c.Request.Context(), rideID)
	if err != nil {
		respondError(c, err)
		return
	}
	if !ride.IsParticipant(middleware.UserID(c)) {
		respondError(c, service.ErrNotRideParticipant)
		return
	}

	payment, err := h.paymentService.GetByRide(c.Request.Context(), rideID)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, newPaymentResponse(payment))
}
