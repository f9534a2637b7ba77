package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"ridedispatch/internal/domain"
	"ridedispatch/internal/service"
)

func TestCalculateDiscount(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name         string
		promo        domain.PromoCode
		amount       float64
		wantDiscount float64
		wantFinal    float64
	}{
		{
			name:         "percentage capped",
			promo:        domain.PromoCode{DiscountType: domain.DiscountPercentage, DiscountValue: 10, MaxDiscount: 5},
			amount:       60,
			wantDiscount: 5,
			wantFinal:    55,
		},
		{
			name:         "percentage under cap",
			promo:        domain.PromoCode{DiscountType: domain.DiscountPercentage, DiscountValue: 10, MaxDiscount: 5},
			amount:       30,
			wantDiscount: 3,
			wantFinal:    27,
		},
		{
			name:         "percentage uncapped",
			promo:        domain.PromoCode{DiscountType: domain.DiscountPercentage, DiscountValue: 15},
			amount:       12.34,
			wantDiscount: 1.85,
			wantFinal:    10.49,
		},
		{
			name:         "flat",
			promo:        domain.PromoCode{DiscountType: domain.DiscountFlat, DiscountValue: 4},
			amount:       17,
			wantDiscount: 4,
			wantFinal:    13,
		},
		{
			name:         "flat larger than amount",
			promo:        domain.PromoCode{DiscountType: domain.DiscountFlat, DiscountValue: 20},
			amount:       8.5,
			wantDiscount: 8.5,
			wantFinal:    0,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			discount, final := service.CalculateDiscount(&tc.promo, tc.amount)
			if discount != tc.wantDiscount || final != tc.wantFinal {
				t.Errorf("expected %.2f/%.2f, got %.2f/%.2f", tc.wantDiscount, tc.wantFinal, discount, final)
			}
		})
	}
}

func createPromo(t *testing.T, f *fixture, req service.CreatePromoRequest) *domain.PromoCode {
	t.Helper()

	if req.ValidUntil.IsZero() {
		req.ValidUntil = time.Now().Add(24 * time.Hour)
	}
	if req.UsageLimit == 0 {
		req.UsageLimit = 100
	}
	promo, err := f.promos.Create(context.Background(), req)
	if err != nil {
		t.Fatalf("failed to create promo: %v", err)
	}
	return promo
}

func TestPromoCreate_NormalizesAndRejectsDuplicates(t *testing.T) {
	t.Parallel()
	f := newFixture(t, service.RideOptions{})
	ctx := context.Background()

	promo := createPromo(t, f, service.CreatePromoRequest{Code: "save10", DiscountType: "percentage", DiscountValue: 10})
	if promo.Code != "SAVE10" || !promo.IsActive || promo.UsedCount != 0 {
		t.Errorf("unexpected promo: %+v", promo)
	}

	_, err := f.promos.Create(ctx, service.CreatePromoRequest{
		Code:          "SAVE10",
		DiscountType:  "flat",
		DiscountValue: 1,
		ValidUntil:    time.Now().Add(time.Hour),
		UsageLimit:    1,
	})
	if !errors.Is(err, service.ErrPromoCodeExists) {
		t.Errorf("expected ErrPromoCodeExists, got %v", err)
	}
}

func TestPromoCreate_InvalidDefinitions(t *testing.T) {
	t.Parallel()
	f := newFixture(t, service.RideOptions{})
	future := time.Now().Add(time.Hour)

	testCases := []struct {
		name string
		req  service.CreatePromoRequest
	}{
		{"missing code", service.CreatePromoRequest{DiscountType: "flat", DiscountValue: 1, ValidUntil: future, UsageLimit: 1}},
		{"unknown type", service.CreatePromoRequest{Code: "X", DiscountType: "bogo", DiscountValue: 1, ValidUntil: future, UsageLimit: 1}},
		{"zero value", service.CreatePromoRequest{Code: "X", DiscountType: "flat", ValidUntil: future, UsageLimit: 1}},
		{"percentage over 100", service.CreatePromoRequest{Code: "X", DiscountType: "percentage", DiscountValue: 150, ValidUntil: future, UsageLimit: 1}},
		{"no usage limit", service.CreatePromoRequest{Code: "X", DiscountType: "flat", DiscountValue: 1, ValidUntil: future}},
		{"already expired", service.CreatePromoRequest{Code: "X", DiscountType: "flat", DiscountValue: 1, ValidUntil: time.Now().Add(-time.Hour), UsageLimit: 1}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.promos.Create(context.Background(), tc.req)
			if !errors.Is(err, service.ErrInvalidPromo) {
				t.Errorf("expected ErrInvalidPromo, got %v", err)
			}
		})
	}
}

func TestPromoValidate_PricesWithoutRedeeming(t *testing.T) {
	t.Parallel()
	f := newFixture(t, service.RideOptions{})
	ctx := context.Background()
	createPromo(t, f, service.CreatePromoRequest{Code: "SAVE10", DiscountType: "percentage", DiscountValue: 10, MaxDiscount: 5})

	breakdown, err := f.promos.Validate(ctx, service.ValidatePromoRequest{Code: "SAVE10", UserID: "rider-1", RideAmount: 60})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if breakdown.DiscountAmount != 5 || breakdown.FinalAmount != 55 || breakdown.OriginalAmount != 60 {
		t.Errorf("unexpected breakdown: %+v", breakdown)
	}

	available, err := f.promos.ListAvailable(ctx, "rider-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(available) != 1 || available[0].Used || available[0].Promo.UsedCount != 0 {
		t.Errorf("expected unredeemed promo, got %+v", available)
	}
}

func TestPromoValidate_EligibilityOrder(t *testing.T) {
	t.Parallel()
	f := newFixture(t, service.RideOptions{})
	ctx := context.Background()
	createPromo(t, f, service.CreatePromoRequest{Code: "BIG", DiscountType: "flat", DiscountValue: 3, MinRideAmount: 20})

	if _, err := f.promos.Validate(ctx, service.ValidatePromoRequest{Code: "NOPE", UserID: "rider-1", RideAmount: 50}); !errors.Is(err, service.ErrPromoNotFound) {
		t.Errorf("unknown code: expected ErrPromoNotFound, got %v", err)
	}
	if _, err := f.promos.Validate(ctx, service.ValidatePromoRequest{Code: "BIG", UserID: "rider-1", RideAmount: 19.99}); !errors.Is(err, service.ErrPromoMinimumNotMet) {
		t.Errorf("below minimum: expected ErrPromoMinimumNotMet, got %v", err)
	}

	if _, err := f.promos.Apply(ctx, service.ApplyPromoRequest{Code: "BIG", RideID: "ride-1", UserID: "rider-1", RideAmount: 25}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Prior use is reported before the minimum amount.
	if _, err := f.promos.Validate(ctx, service.ValidatePromoRequest{Code: "BIG", UserID: "rider-1", RideAmount: 5}); !errors.Is(err, service.ErrPromoAlreadyUsed) {
		t.Errorf("reuse: expected ErrPromoAlreadyUsed, got %v", err)
	}
	if _, err := f.promos.Validate(ctx, service.ValidatePromoRequest{Code: "", UserID: "rider-1", RideAmount: 5}); !errors.Is(err, service.ErrValidation) {
		t.Errorf("empty code: expected validation error, got %v", err)
	}
}

func TestPromoValidate_ExpiredOrNotYetValid(t *testing.T) {
	t.Parallel()
	f := newFixture(t, service.RideOptions{})
	ctx := context.Background()
	createPromo(t, f, service.CreatePromoRequest{
		Code:          "LATER",
		DiscountType:  "flat",
		DiscountValue: 2,
		ValidFrom:     time.Now().Add(time.Hour),
		ValidUntil:    time.Now().Add(2 * time.Hour),
	})

	if _, err := f.promos.Validate(ctx, service.ValidatePromoRequest{Code: "LATER", UserID: "rider-1", RideAmount: 10}); !errors.Is(err, service.ErrPromoNotFound) {
		t.Errorf("expected ErrPromoNotFound, got %v", err)
	}
}

func TestPromoApply_RecordsUsageOnce(t *testing.T) {
	t.Parallel()
	f := newFixture(t, service.RideOptions{})
	ctx := context.Background()
	promo := createPromo(t, f, service.CreatePromoRequest{Code: "SAVE10", DiscountType: "percentage", DiscountValue: 10, MaxDiscount: 5})

	breakdown, err := f.promos.Apply(ctx, service.ApplyPromoRequest{Code: "save10", RideID: "ride-1", UserID: "rider-1", RideAmount: 60})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if breakdown.FinalAmount != 55 {
		t.Errorf("expected final 55, got %.2f", breakdown.FinalAmount)
	}

	_, err = f.promos.Apply(ctx, service.ApplyPromoRequest{Code: "SAVE10", RideID: "ride-2", UserID: "rider-1", RideAmount: 60})
	if !errors.Is(err, service.ErrPromoAlreadyUsed) {
		t.Errorf("expected ErrPromoAlreadyUsed, got %v", err)
	}

	stored, err := f.repos.Promos.GetByID(ctx, promo.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stored.UsedCount != 1 {
		t.Errorf("expected used count 1, got %d", stored.UsedCount)
	}

	available, _ := f.promos.ListAvailable(ctx, "rider-1")
	if len(available) != 1 || !available[0].Used {
		t.Errorf("expected promo marked used for rider-1, got %+v", available)
	}
}

func TestPromoApply_ConcurrentRedemptions_NeverExceedLimit(t *testing.T) {
	t.Parallel()
	f := newFixture(t, service.RideOptions{})
	ctx := context.Background()

	const limit = 5
	const attempts = limit + 3
	promo := createPromo(t, f, service.CreatePromoRequest{Code: "FIRST5", DiscountType: "flat", DiscountValue: 2, UsageLimit: limit})

	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.promos.Apply(ctx, service.ApplyPromoRequest{
				Code:       "FIRST5",
				RideID:     fmt.Sprintf("ride-%d", i),
				UserID:     fmt.Sprintf("rider-%d", i),
				RideAmount: 10,
			})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for i, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		if !errors.Is(err, service.ErrNotFound) {
			t.Errorf("attempt %d: expected exhausted promo, got %v", i, err)
		}
	}
	if succeeded != limit {
		t.Errorf("expected %d redemptions, got %d", limit, succeeded)
	}

	stored, _ := f.repos.Promos.GetByID(ctx, promo.ID)
	if stored.UsedCount != limit {
		t.Errorf("expected used count %d, got %d", limit, stored.UsedCount)
	}

	available, _ := f.promos.ListAvailable(ctx, "newcomer")
	if len(available) != 0 {
		t.Errorf("expected exhausted promo to be unavailable, got %d", len(available))
	}
}
