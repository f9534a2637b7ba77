package memory

import (
	"context"

	"ridedispatch/internal/domain"
	"ridedispatch/internal/repository"
)

type paymentRepository struct {
	v *view
}

func (r *paymentRepository) GetByRideID(ctx context.Context, rideID string) (*domain.Payment, error) {
	var out *domain.Payment
	err := r.v.do(func(d *dataset) error {
		p, ok := d.payments[rideID]
		if !ok {
			return repository.ErrNotFound
		}
		out = &p
		return nil
	})
	return out, err
}

func (r *paymentRepository) CreatePending(ctx context.Context, payment *domain.Payment) error {
	return r.v.do(func(d *dataset) error {
		if _, ok := d.payments[payment.RideID]; ok {
			return nil
		}
		p := *payment
		p.Status = domain.PaymentStatusPending
		p.Amount = p.BaseAmount
		p.Discount = 0
		d.payments[payment.RideID] = p
		return nil
	})
}

func (r *paymentRepository) Upsert(ctx context.Context, payment *domain.Payment) (bool, error) {
	var written bool
	err := r.v.do(func(d *dataset) error {
		p := *payment
		if existing, ok := d.payments[payment.RideID]; ok {
			if existing.Status == domain.PaymentStatusCompleted {
				return nil
			}
			p.ID = existing.ID
			p.CreatedAt = existing.CreatedAt
		}
		d.payments[payment.RideID] = p
		written = true
		return nil
	})
	return written, err
}
