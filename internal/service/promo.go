package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"ridedispatch/internal/domain"
	"ridedispatch/internal/repository"
)

// PromoService validates and redeems promo codes.
type PromoService struct {
	promos repository.PromoRepository
	tx     repository.Transactor
	now    func() time.Time
}

// NewPromoService creates a new PromoService.
func NewPromoService(repos repository.Repositories, tx repository.Transactor) *PromoService {
	return &PromoService{
		promos: repos.Promos,
		tx:     tx,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// DiscountBreakdown is the priced result of a promo code against an amount.
type DiscountBreakdown struct {
	PromoID        string
	Code           string
	DiscountType   domain.DiscountType
	DiscountValue  float64
	OriginalAmount float64
	DiscountAmount float64
	FinalAmount    float64
}

// CalculateDiscount prices promo p against amount. Both results are rounded to cents.
func CalculateDiscount(p *domain.PromoCode, amount float64) (discount, final float64) {
	amt := decimal.NewFromFloat(amount)

	var d decimal.Decimal
	switch p.DiscountType {
	case domain.DiscountPercentage:
		d = amt.Mul(decimal.NewFromFloat(p.DiscountValue)).Div(decimal.NewFromInt(100))
		limit := amt
		if p.MaxDiscount > 0 {
			limit = decimal.NewFromFloat(p.MaxDiscount)
		}
		d = decimal.Min(d, limit)
	default:
		d = decimal.Min(decimal.NewFromFloat(p.DiscountValue), amt)
	}

	d = d.Round(2)
	f := decimal.Max(decimal.Zero, amt.Sub(d)).Round(2)
	return d.InexactFloat64(), f.InexactFloat64()
}

// CreatePromoRequest contains the parameters for creating a promo code.
type CreatePromoRequest struct {
	Code          string `validate:"required,max=32"`
	Description   string
	DiscountType  string  `validate:"required,oneof=percentage flat"`
	DiscountValue float64 `validate:"gt=0"`
	MaxDiscount   float64 `validate:"gte=0"`
	MinRideAmount float64 `validate:"gte=0"`
	ValidFrom     time.Time
	ValidUntil    time.Time `validate:"required"`
	UsageLimit    int       `validate:"gt=0"`
}

// Create adds a new promo code.
func (s *PromoService) Create(ctx context.Context, req CreatePromoRequest) (*domain.PromoCode, error) {
	if err := validateStruct(req, nil); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPromo, err)
	}

	now := s.now()
	validFrom := req.ValidFrom
	if validFrom.IsZero() {
		validFrom = now
	}
	if !req.ValidUntil.After(validFrom) {
		return nil, fmt.Errorf("%w: valid_until must be after valid_from", ErrInvalidPromo)
	}
	if req.DiscountType == string(domain.DiscountPercentage) && req.DiscountValue > 100 {
		return nil, fmt.Errorf("%w: percentage above 100", ErrInvalidPromo)
	}

	promo := &domain.PromoCode{
		ID:            uuid.New().String(),
		Code:          strings.ToUpper(req.Code),
		Description:   req.Description,
		DiscountType:  domain.DiscountType(req.DiscountType),
		DiscountValue: req.DiscountValue,
		MaxDiscount:   req.MaxDiscount,
		MinRideAmount: req.MinRideAmount,
		ValidFrom:     validFrom,
		ValidUntil:    req.ValidUntil,
		IsActive:      true,
		UsageLimit:    req.UsageLimit,
		CreatedAt:     now,
	}

	if err := s.promos.Create(ctx, promo); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrPromoCodeExists
		}
		return nil, err
	}
	return promo, nil
}

// ValidatePromoRequest contains the parameters for checking a promo code.
type ValidatePromoRequest struct {
	Code       string
	UserID     string
	RideAmount float64
}

// Validate prices a promo code for a user without redeeming it.
func (s *PromoService) Validate(ctx context.Context, req ValidatePromoRequest) (*DiscountBreakdown, error) {
	if err := checkPromoInput(req.Code, req.UserID, req.RideAmount); err != nil {
		return nil, err
	}
	return evaluate(ctx, s.promos, req.Code, req.UserID, req.RideAmount, s.now())
}

// ApplyPromoRequest contains the parameters for redeeming a promo code.
type ApplyPromoRequest struct {
	Code       string
	RideID     string
	UserID     string
	RideAmount float64
}

// Apply redeems a promo code in its own transaction.
func (s *PromoService) Apply(ctx context.Context, req ApplyPromoRequest) (*DiscountBreakdown, error) {
	var breakdown *DiscountBreakdown
	err := s.tx.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		var err error
		breakdown, err = s.ApplyTx(ctx, repos, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	return breakdown, nil
}

// ApplyTx redeems a promo code using repositories of an open transaction.
// The usage record and the bounded counter increment succeed or fail together
// with the caller's transaction.
func (s *PromoService) ApplyTx(ctx context.Context, repos repository.Repositories, req ApplyPromoRequest) (*DiscountBreakdown, error) {
	if err := checkPromoInput(req.Code, req.UserID, req.RideAmount); err != nil {
		return nil, err
	}

	now := s.now()
	breakdown, err := evaluate(ctx, repos.Promos, req.Code, req.UserID, req.RideAmount, now)
	if err != nil {
		return nil, err
	}

	err = repos.Promos.InsertUsage(ctx, &domain.UserPromoUsage{
		UserID:          req.UserID,
		PromoID:         breakdown.PromoID,
		RideID:          req.RideID,
		DiscountApplied: breakdown.DiscountAmount,
		CreatedAt:       now,
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrPromoAlreadyUsed
		}
		return nil, err
	}

	ok, err := repos.Promos.IncrementUsage(ctx, breakdown.PromoID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrPromoExhausted
	}

	return breakdown, nil
}

// AvailablePromo is a redeemable promo code and whether the user already used it.
type AvailablePromo struct {
	Promo *domain.PromoCode
	Used  bool
}

// ListAvailable returns the currently redeemable promo codes for a user.
func (s *PromoService) ListAvailable(ctx context.Context, userID string) ([]AvailablePromo, error) {
	if userID == "" {
		return nil, ErrInvalidUserID
	}

	promos, err := s.promos.ListRedeemable(ctx, s.now())
	if err != nil {
		return nil, err
	}

	out := make([]AvailablePromo, 0, len(promos))
	for _, p := range promos {
		used, err := s.promos.HasUsage(ctx, userID, p.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, AvailablePromo{Promo: p, Used: used})
	}
	return out, nil
}

func checkPromoInput(code, userID string, amount float64) error {
	if strings.TrimSpace(code) == "" {
		return fmt.Errorf("%w: promo code is required", ErrValidation)
	}
	if userID == "" {
		return ErrInvalidUserID
	}
	if amount < 0 {
		return ErrInvalidAmount
	}
	return nil
}

// evaluate checks eligibility in order: existence, prior use, minimum amount.
func evaluate(ctx context.Context, promos repository.PromoRepository, code, userID string, amount float64, now time.Time) (*DiscountBreakdown, error) {
	promo, err := promos.GetRedeemableByCode(ctx, strings.TrimSpace(code), now)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPromoNotFound
		}
		return nil, err
	}

	used, err := promos.HasUsage(ctx, userID, promo.ID)
	if err != nil {
		return nil, err
	}
	if used {
		return nil, ErrPromoAlreadyUsed
	}

	if amount < promo.MinRideAmount {
		return nil, fmt.Errorf("%w: minimum ride amount is %.2f", ErrPromoMinimumNotMet, promo.MinRideAmount)
	}

	discount, final := CalculateDiscount(promo, amount)
	return &DiscountBreakdown{
		PromoID:        promo.ID,
		Code:           promo.Code,
		DiscountType:   promo.DiscountType,
		DiscountValue:  promo.DiscountValue,
		OriginalAmount: amount,
		DiscountAmount: discount,
		FinalAmount:    final,
	}, nil
}
