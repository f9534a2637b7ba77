package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"ridedispatch/internal/domain"
	"ridedispatch/internal/repository"
)

type promoRepository struct {
	v *view
}

func (r *promoRepository) Create(ctx context.Context, p *domain.PromoCode) error {
	return r.v.do(func(d *dataset) error {
		code := strings.ToUpper(p.Code)
		for _, existing := range d.promos {
			if existing.Code == code || existing.ID == p.ID {
				return repository.ErrDuplicate
			}
		}
		stored := *p
		stored.Code = code
		d.promos[p.ID] = stored
		return nil
	})
}

func (r *promoRepository) GetByID(ctx context.Context, id string) (*domain.PromoCode, error) {
	var out *domain.PromoCode
	err := r.v.do(func(d *dataset) error {
		p, ok := d.promos[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = &p
		return nil
	})
	return out, err
}

func (r *promoRepository) GetRedeemableByCode(ctx context.Context, code string, now time.Time) (*domain.PromoCode, error) {
	var out *domain.PromoCode
	code = strings.ToUpper(code)
	err := r.v.do(func(d *dataset) error {
		for _, p := range d.promos {
			if p.Code == code && p.IsRedeemableAt(now) {
				p := p
				out = &p
				return nil
			}
		}
		return repository.ErrNotFound
	})
	return out, err
}

func (r *promoRepository) ListRedeemable(ctx context.Context, now time.Time) ([]*domain.PromoCode, error) {
	var out []*domain.PromoCode
	err := r.v.do(func(d *dataset) error {
		for _, p := range d.promos {
			if p.IsRedeemableAt(now) {
				p := p
				out = append(out, &p)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, err
}

func (r *promoRepository) HasUsage(ctx context.Context, userID, promoID string) (bool, error) {
	var used bool
	err := r.v.do(func(d *dataset) error {
		_, used = d.usages[usageKey{userID: userID, promoID: promoID}]
		return nil
	})
	return used, err
}

func (r *promoRepository) InsertUsage(ctx context.Context, usage *domain.UserPromoUsage) error {
	return r.v.do(func(d *dataset) error {
		key := usageKey{userID: usage.UserID, promoID: usage.PromoID}
		if _, ok := d.usages[key]; ok {
			return repository.ErrDuplicate
		}
		d.usages[key] = *usage
		return nil
	})
}

func (r *promoRepository) IncrementUsage(ctx context.Context, promoID string) (bool, error) {
	var ok bool
	err := r.v.do(func(d *dataset) error {
		p, found := d.promos[promoID]
		if !found || p.UsedCount >= p.UsageLimit {
			return nil
		}
		p.UsedCount++
		d.promos[promoID] = p
		ok = true
		return nil
	})
	return ok, err
}
