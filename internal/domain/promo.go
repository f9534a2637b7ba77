package domain

import "time"

// DiscountType is how a promo code reduces the fare.
type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFlat       DiscountType = "flat"
)

// PromoCode is a discount that riders may redeem once each.
type PromoCode struct {
	ID            string
	Code          string
	Description   string
	DiscountType  DiscountType
	DiscountValue float64
	MaxDiscount   float64 // percentage only, 0 means uncapped
	MinRideAmount float64
	ValidFrom     time.Time
	ValidUntil    time.Time
	IsActive      bool
	UsageLimit    int
	UsedCount     int
	CreatedAt     time.Time
}

// IsRedeemableAt reports whether the code can still be redeemed at t.
func (p *PromoCode) IsRedeemableAt(t time.Time) bool {
	return p.IsActive &&
		!t.Before(p.ValidFrom) &&
		!t.After(p.ValidUntil) &&
		p.UsedCount < p.UsageLimit
}

// UserPromoUsage records that a user redeemed a promo code.
type UserPromoUsage struct {
	UserID          string
	PromoID         string
	RideID          string
	DiscountApplied float64
	CreatedAt       time.Time
}
