package repository

import (
	"context"
	"time"

	"ridedispatch/internal/domain"
)

// PromoRepository defines the persistence operations for promo codes and their usage.
type PromoRepository interface {
	// Create persists a new promo code. Returns ErrDuplicate if the code exists.
	Create(ctx context.Context, promo *domain.PromoCode) error

	// GetByID retrieves a promo code by ID.
	GetByID(ctx context.Context, id string) (*domain.PromoCode, error)

	// GetRedeemableByCode retrieves a code that is active, in its window and under its limit at now.
	GetRedeemableByCode(ctx context.Context, code string, now time.Time) (*domain.PromoCode, error)

	// ListRedeemable retrieves all codes redeemable at now.
	ListRedeemable(ctx context.Context, now time.Time) ([]*domain.PromoCode, error)

	// HasUsage reports whether the user already redeemed the promo.
	HasUsage(ctx context.Context, userID, promoID string) (bool, error)

	// InsertUsage records a redemption. Returns ErrDuplicate if one exists for the user and promo.
	InsertUsage(ctx context.Context, usage *domain.UserPromoUsage) error

	// IncrementUsage bumps used_count while it is below usage_limit.
	// Returns false if the limit was already reached.
	IncrementUsage(ctx context.Context, promoID string) (bool, error)
}
