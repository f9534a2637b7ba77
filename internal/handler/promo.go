package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"ridedispatch/internal/domain"
	"ridedispatch/internal/middleware"
	"ridedispatch/internal/service"
)

// PromoHandler handles HTTP requests for promo codes.
type PromoHandler struct {
	promoService *service.PromoService
}

// NewPromoHandler creates a new PromoHandler.
func NewPromoHandler(promoService *service.PromoService) *PromoHandler {
	return &PromoHandler{promoService: promoService}
}

// CreatePromoRequest is the HTTP request body for creating a promo code.
type CreatePromoRequest struct {
	Code          string    `json:"code"`
	Description   string    `json:"description,omitempty"`
	DiscountType  string    `json:"discount_type"`
	DiscountValue float64   `json:"discount_value"`
	MaxDiscount   float64   `json:"max_discount,omitempty"`
	MinRideAmount float64   `json:"min_ride_amount,omitempty"`
	ValidFrom     time.Time `json:"valid_from,omitempty"`
	ValidUntil    time.Time `json:"valid_until"`
	UsageLimit    int       `json:"usage_limit"`
}

// ValidatePromoRequest is the HTTP request body for pricing a promo code.
type ValidatePromoRequest struct {
	Code       string  `json:"code"`
	RideAmount float64 `json:"ride_amount"`
}

// PromoResponse is the HTTP representation of a promo code.
type PromoResponse struct {
	ID            string  `json:"id"`
	Code          string  `json:"code"`
	Description   string  `json:"description,omitempty"`
	DiscountType  string  `json:"discount_type"`
	DiscountValue float64 `json:"discount_value"`
	MaxDiscount   float64 `json:"max_discount,omitempty"`
	MinRideAmount float64 `json:"min_ride_amount"`
	ValidFrom     string  `json:"valid_from"`
	ValidUntil    string  `json:"valid_until"`
	UsageLimit    int     `json:"usage_limit"`
	UsedCount     int     `json:"used_count"`
	AlreadyUsed   bool    `json:"already_used,omitempty"`
}

// DiscountResponse is the HTTP response of a promo validation.
type DiscountResponse struct {
	Valid          bool    `json:"valid"`
	Code           string  `json:"code"`
	DiscountType   string  `json:"discount_type"`
	DiscountValue  float64 `json:"discount_value"`
	OriginalAmount float64 `json:"original_amount"`
	DiscountAmount float64 `json:"discount_amount"`
	FinalAmount    float64 `json:"final_amount"`
}

func newPromoResponse(p *domain.PromoCode) PromoResponse {
	return PromoResponse{
		ID:            p.ID,
		Code:          p.Code,
		Description:   p.Description,
		DiscountType:  string(p.DiscountType),
		DiscountValue: p.DiscountValue,
		MaxDiscount:   p.MaxDiscount,
		MinRideAmount: p.MinRideAmount,
		ValidFrom:     formatTime(p.ValidFrom),
		ValidUntil:    formatTime(p.ValidUntil),
		UsageLimit:    p.UsageLimit,
		UsedCount:     p.UsedCount,
	}
}

// Create handles POST /v1/promo-codes
func (h *PromoHandler) Create(c *gin.Context) {
	var req CreatePromoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	promo, err := h.promoService.Create(c.Request.Context(), service.CreatePromoRequest{
		Code:          req.Code,
		Description:   req.Description,
		DiscountType:  req.DiscountType,
		DiscountValue: req.DiscountValue,
		MaxDiscount:   req.MaxDiscount,
		MinRideAmount: req.MinRideAmount,
		ValidFrom:     req.ValidFrom,
		ValidUntil:    req.ValidUntil,
		UsageLimit:    req.UsageLimit,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, newPromoResponse(promo))
}

// Validate handles POST /v1/promo-codes/validate
func (h *PromoHandler) Validate(c *gin.Context) {
	var req ValidatePromoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	breakdown, err := h.promoService.Validate(c.Request.Context(), service.ValidatePromoRequest{
		Code:       req.Code,
		UserID:     middleware.UserID(c),
		RideAmount: req.RideAmount,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, DiscountResponse{
		Valid:          true,
		Code:           breakdown.Code,
		DiscountType:   string(breakdown.DiscountType),
		DiscountValue:  breakdown.DiscountValue,
		OriginalAmount: breakdown.OriginalAmount,
		DiscountAmount: breakdown.DiscountAmount,
		FinalAmount:    breakdown.FinalAmount,
	})
}

// Available handles GET /v1/promo-codes/available
func (h *PromoHandler) Available(c *gin.Context) {
	promos, err := h.promoService.ListAvailable(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]PromoResponse, 0, len(promos))
	for _, p := range promos {
		r := newPromoResponse(p.Promo)
		r.AlreadyUsed = p.Used
		response = append(response, r)
	}
	respondJSON(c, http.StatusOK, response)
}
