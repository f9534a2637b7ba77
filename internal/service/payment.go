package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"ridedispatch/internal/domain"
	"ridedispatch/internal/geo"
	"ridedispatch/internal/repository"
)

// Processor records a charge and returns its transaction reference.
type Processor interface {
	Charge(ctx context.Context, payment *domain.Payment) (string, error)
}

// LocalLedger is a Processor that charges nothing and issues unique references.
type LocalLedger struct{}

// NewLocalLedger creates a new LocalLedger.
func NewLocalLedger() *LocalLedger {
	return &LocalLedger{}
}

// Charge issues a reference of the form txn_<unix millis>_<random>.
func (l *LocalLedger) Charge(ctx context.Context, payment *domain.Payment) (string, error) {
	return fmt.Sprintf("txn_%d_%s", time.Now().UnixMilli(), strings.ReplaceAll(uuid.New().String(), "-", "")[:12]), nil
}

// PaymentService settles rides exactly once.
type PaymentService struct {
	rides         repository.RideRepository
	payments      repository.PaymentRepository
	tx            repository.Transactor
	promos        *PromoService
	processor     Processor
	defaultMethod domain.PaymentMethod
}

// NewPaymentService creates a new PaymentService.
func NewPaymentService(
	repos repository.Repositories,
	tx repository.Transactor,
	promos *PromoService,
	processor Processor,
	defaultMethod domain.PaymentMethod,
) *PaymentService {
	if !defaultMethod.IsValid() {
		defaultMethod = domain.PaymentMethodCard
	}
	return &PaymentService{
		rides:         repos.Rides,
		payments:      repos.Payments,
		tx:            tx,
		promos:        promos,
		processor:     processor,
		defaultMethod: defaultMethod,
	}
}

// SettleRequest contains the parameters for settling a ride.
type SettleRequest struct {
	RideID    string
	Amount    float64
	Method    domain.PaymentMethod // empty uses the default method
	PromoCode string               // optional
}

// Settle records the completed payment of a ride.
//
// Settling an already paid ride returns the existing payment when the request
// matches it and ErrAlreadyPaid otherwise. Concurrent calls for one ride are
// serialized on the ride row.
func (s *PaymentService) Settle(ctx context.Context, req SettleRequest) (*domain.Payment, error) {
	if req.RideID == "" {
		return nil, ErrInvalidRideID
	}
	if req.Amount < 0 {
		return nil, ErrInvalidAmount
	}
	if req.Method == "" {
		req.Method = s.defaultMethod
	}
	if !req.Method.IsValid() {
		return nil, ErrInvalidPaymentMethod
	}
	req.Amount = geo.RoundMoney(req.Amount)
	req.PromoCode = strings.ToUpper(strings.TrimSpace(req.PromoCode))

	var result *domain.Payment
	err := s.tx.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		ride, err := repos.Rides.GetByIDForUpdate(ctx, req.RideID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrRideNotFound
			}
			return err
		}

		existing, err := repos.Payments.GetByRideID(ctx, req.RideID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return err
		}
		if existing != nil && existing.Status == domain.PaymentStatusCompleted {
			if !sameSettlement(existing, req) {
				return ErrAlreadyPaid
			}
			result = existing
			return nil
		}

		now := time.Now().UTC()
		payment := &domain.Payment{
			ID:         uuid.New().String(),
			RideID:     req.RideID,
			BaseAmount: req.Amount,
			Amount:     req.Amount,
			Method:     req.Method,
			Status:     domain.PaymentStatusCompleted,
			CreatedAt:  now,
		}
		if existing != nil {
			payment.ID = existing.ID
			payment.CreatedAt = existing.CreatedAt
		}

		if req.PromoCode != "" {
			breakdown, err := s.promos.ApplyTx(ctx, repos, ApplyPromoRequest{
				Code:       req.PromoCode,
				RideID:     req.RideID,
				UserID:     ride.RiderID,
				RideAmount: req.Amount,
			})
			if err != nil {
				return err
			}
			payment.PromoCode = breakdown.Code
			payment.Discount = breakdown.DiscountAmount
			payment.Amount = breakdown.FinalAmount
		}

		ref, err := s.processor.Charge(ctx, payment)
		if err != nil {
			return fmt.Errorf("charge ride %s: %w", req.RideID, err)
		}
		payment.TransactionRef = ref
		payment.ProcessedAt = now

		written, err := repos.Payments.Upsert(ctx, payment)
		if err != nil {
			return err
		}
		if !written {
			return ErrAlreadyPaid
		}

		if err := repos.Rides.SetPaymentStatus(ctx, req.RideID, domain.PaymentStatusCompleted); err != nil {
			return err
		}

		result = payment
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// sameSettlement reports whether req asks for what p already settled.
func sameSettlement(p *domain.Payment, req SettleRequest) bool {
	return p.BaseAmount == req.Amount &&
		p.Method == req.Method &&
		strings.EqualFold(p.PromoCode, req.PromoCode)
}

// CheckoutRequest contains the parameters for a rider paying for their ride.
type CheckoutRequest struct {
	RideID    string
	RiderID   string
	Method    domain.PaymentMethod
	PromoCode string
}

// Checkout settles a completed ride at its stored fare on behalf of its rider.
func (s *PaymentService) Checkout(ctx context.Context, req CheckoutRequest) (*domain.Payment, error) {
	if req.RideID == "" {
		return nil, ErrInvalidRideID
	}
	if req.RiderID == "" {
		return nil, ErrInvalidRiderID
	}

	ride, err := s.rides.GetByID(ctx, req.RideID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrRideNotFound
		}
		return nil, err
	}
	if ride.RiderID != req.RiderID {
		return nil, ErrNotRideRider
	}
	if ride.Status != domain.RideStatusCompleted {
		return nil, ErrRideNotCompleted
	}

	return s.Settle(ctx, SettleRequest{
		RideID:    req.RideID,
		Amount:    ride.FareAmount,
		Method:    req.Method,
		PromoCode: req.PromoCode,
	})
}

// Open records a pending payment for a ride that will be settled later.
func (s *PaymentService) Open(ctx context.Context, rideID string, amount float64) error {
	return s.payments.CreatePending(ctx, &domain.Payment{
		ID:         uuid.New().String(),
		RideID:     rideID,
		BaseAmount: geo.RoundMoney(amount),
		Amount:     geo.RoundMoney(amount),
		Method:     s.defaultMethod,
		Status:     domain.PaymentStatusPending,
		CreatedAt:  time.Now().UTC(),
	})
}

// DefaultMethod returns the method used when a settlement names none.
func (s *PaymentService) DefaultMethod() domain.PaymentMethod {
	return s.defaultMethod
}

// GetByRide retrieves the payment of a ride.
func (s *PaymentService) GetByRide(ctx context.Context, rideID string) (*domain.Payment, error) {
	if rideID == "" {
		return nil, ErrInvalidRideID
	}

	payment, err := s.payments.GetByRideID(ctx, rideID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	return payment, nil
}
