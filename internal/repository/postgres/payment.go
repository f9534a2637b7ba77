package postgres

import (
	"context"
	"database/sql"

	"ridedispatch/internal/domain"
)

// PaymentRepository is a PostgreSQL implementation of repository.PaymentRepository.
type PaymentRepository struct {
	q Querier
}

// GetByRideID retrieves the payment of a ride.
func (r *PaymentRepository) GetByRideID(ctx context.Context, rideID string) (*domain.Payment, error) {
	query := `
		SELECT id, ride_id, base_amount, discount, amount, promo_code, method, status, transaction_ref, processed_at, created_at
		FROM payments WHERE ride_id = $1
	`

	var payment domain.Payment
	var promoCode, txnRef sql.NullString
	var processedAt sql.NullTime

	err := r.q.QueryRowContext(ctx, query, rideID).Scan(
		&payment.ID,
		&payment.RideID,
		&payment.BaseAmount,
		&payment.Discount,
		&payment.Amount,
		&promoCode,
		&payment.Method,
		&payment.Status,
		&txnRef,
		&processedAt,
		&payment.CreatedAt,
	)
	if err != nil {
		return nil, mapError(err)
	}

	payment.PromoCode = promoCode.String
	payment.TransactionRef = txnRef.String
	payment.ProcessedAt = processedAt.Time

	return &payment, nil
}

// CreatePending records a pending payment unless the ride already has one.
func (r *PaymentRepository) CreatePending(ctx context.Context, payment *domain.Payment) error {
	query := `
		INSERT INTO payments (id, ride_id, base_amount, discount, amount, method, status, created_at)
		VALUES ($1, $2, $3, 0, $3, $4, 'pending', $5)
		ON CONFLICT (ride_id) DO NOTHING
	`
	_, err := r.q.ExecContext(ctx, query, payment.ID, payment.RideID, payment.BaseAmount, payment.Method, payment.CreatedAt)
	return mapError(err)
}

// Upsert writes the payment keyed by ride without touching a completed one.
func (r *PaymentRepository) Upsert(ctx context.Context, payment *domain.Payment) (bool, error) {
	query := `
		INSERT INTO payments (id, ride_id, base_amount, discount, amount, promo_code, method, status, transaction_ref, processed_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (ride_id) DO UPDATE
		SET base_amount = EXCLUDED.base_amount,
		    discount = EXCLUDED.discount,
		    amount = EXCLUDED.amount,
		    promo_code = EXCLUDED.promo_code,
		    method = EXCLUDED.method,
		    status = EXCLUDED.status,
		    transaction_ref = EXCLUDED.transaction_ref,
		    processed_at = EXCLUDED.processed_at
		WHERE payments.status <> 'completed'
	`

	var processedAt sql.NullTime
	if !payment.ProcessedAt.IsZero() {
		processedAt = sql.NullTime{Time: payment.ProcessedAt, Valid: true}
	}

	result, err := r.q.ExecContext(ctx, query,
		payment.ID,
		payment.RideID,
		payment.BaseAmount,
		payment.Discount,
		payment.Amount,
		nullString(payment.PromoCode),
		payment.Method,
		payment.Status,
		nullString(payment.TransactionRef),
		processedAt,
		payment.CreatedAt,
	)
	if err != nil {
		return false, mapError(err)
	}
	return affected(result)
}
