package postgres

import (
	"context"
	"strings"
	"time"

	"ridedispatch/internal/domain"
)

// PromoRepository is a PostgreSQL implementation of repository.PromoRepository.
type PromoRepository struct {
	q Querier
}

const promoColumns = `
	id, code, description, discount_type, discount_value, max_discount, min_ride_amount,
	valid_from, valid_until, is_active, usage_limit, used_count, created_at`

func scanPromo(row rowScanner) (*domain.PromoCode, error) {
	var p domain.PromoCode
	err := row.Scan(
		&p.ID,
		&p.Code,
		&p.Description,
		&p.DiscountType,
		&p.DiscountValue,
		&p.MaxDiscount,
		&p.MinRideAmount,
		&p.ValidFrom,
		&p.ValidUntil,
		&p.IsActive,
		&p.UsageLimit,
		&p.UsedCount,
		&p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Create persists a new promo code.
func (r *PromoRepository) Create(ctx context.Context, p *domain.PromoCode) error {
	query := `
		INSERT INTO promo_codes (id, code, description, discount_type, discount_value, max_discount, min_ride_amount, valid_from, valid_until, is_active, usage_limit, used_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := r.q.ExecContext(ctx, query,
		p.ID,
		strings.ToUpper(p.Code),
		p.Description,
		p.DiscountType,
		p.DiscountValue,
		p.MaxDiscount,
		p.MinRideAmount,
		p.ValidFrom,
		p.ValidUntil,
		p.IsActive,
		p.UsageLimit,
		p.UsedCount,
		p.CreatedAt,
	)
	return mapError(err)
}

// GetByID retrieves a promo code by ID.
func (r *PromoRepository) GetByID(ctx context.Context, id string) (*domain.PromoCode, error) {
	query := `SELECT ` + promoColumns + ` FROM promo_codes WHERE id = $1`

	p, err := scanPromo(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, mapError(err)
	}
	return p, nil
}

// GetRedeemableByCode retrieves a code that can be redeemed at now.
func (r *PromoRepository) GetRedeemableByCode(ctx context.Context, code string, now time.Time) (*domain.PromoCode, error) {
	query := `
		SELECT ` + promoColumns + ` FROM promo_codes
		WHERE code = $1 AND is_active AND valid_from <= $2 AND valid_until >= $2 AND used_count < usage_limit
	`

	p, err := scanPromo(r.q.QueryRowContext(ctx, query, strings.ToUpper(code), now))
	if err != nil {
		return nil, mapError(err)
	}
	return p, nil
}

// ListRedeemable retrieves all codes redeemable at now.
func (r *PromoRepository) ListRedeemable(ctx context.Context, now time.Time) ([]*domain.PromoCode, error) {
	query := `
		SELECT ` + promoColumns + ` FROM promo_codes
		WHERE is_active AND valid_from <= $1 AND valid_until >= $1 AND used_count < usage_limit
		ORDER BY created_at DESC
	`

	rows, err := r.q.QueryContext(ctx, query, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var promos []*domain.PromoCode
	for rows.Next() {
		p, err := scanPromo(rows)
		if err != nil {
			return nil, err
		}
		promos = append(promos, p)
	}
	return promos, rows.Err()
}

// HasUsage reports whether the user already redeemed the promo.
func (r *PromoRepository) HasUsage(ctx context.Context, userID, promoID string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM user_promo_usage WHERE user_id = $1 AND promo_id = $2)`

	var exists bool
	if err := r.q.QueryRowContext(ctx, query, userID, promoID).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// InsertUsage records a redemption.
func (r *PromoRepository) InsertUsage(ctx context.Context, usage *domain.UserPromoUsage) error {
	query := `
		INSERT INTO user_promo_usage (user_id, promo_id, ride_id, discount_applied, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.q.ExecContext(ctx, query, usage.UserID, usage.PromoID, nullString(usage.RideID), usage.DiscountApplied, usage.CreatedAt)
	return mapError(err)
}

// IncrementUsage bumps used_count while it is below usage_limit.
func (r *PromoRepository) IncrementUsage(ctx context.Context, promoID string) (bool, error) {
	query := `UPDATE promo_codes SET used_count = used_count + 1 WHERE id = $1 AND used_count < usage_limit`

	result, err := r.q.ExecContext(ctx, query, promoID)
	if err != nil {
		return false, err
	}
	return affected(result)
}
