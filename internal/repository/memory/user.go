package memory

import (
	"context"
	"sort"

	"ridedispatch/internal/domain"
	"ridedispatch/internal/repository"
)

type userRepository struct {
	v *view
}

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	return r.v.do(func(d *dataset) error {
		if _, ok := d.users[user.ID]; ok {
			return repository.ErrDuplicate
		}
		for _, u := range d.users {
			if u.Phone == user.Phone {
				return repository.ErrDuplicate
			}
		}
		d.users[user.ID] = *user
		return nil
	})
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	var out *domain.User
	err := r.v.do(func(d *dataset) error {
		u, ok := d.users[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = &u
		return nil
	})
	return out, err
}

func (r *userRepository) GetByPhone(ctx context.Context, phone string) (*domain.User, error) {
	var out *domain.User
	err := r.v.do(func(d *dataset) error {
		for _, u := range d.users {
			if u.Phone == phone {
				u := u
				out = &u
				return nil
			}
		}
		return repository.ErrNotFound
	})
	return out, err
}

func (r *userRepository) GetAll(ctx context.Context) ([]*domain.User, error) {
	var out []*domain.User
	err := r.v.do(func(d *dataset) error {
		for _, u := range d.users {
			u := u
			out = append(out, &u)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, err
}
