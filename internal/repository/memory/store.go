// Package memory is an in-process implementation of the repository interfaces.
//
// Transactions are serialized on a single mutex. Each one works on a copy of
// the data that replaces the live copy only when the transaction succeeds.
package memory

import (
	"context"
	"sync"

	"ridedispatch/internal/domain"
	"ridedispatch/internal/repository"
)

type usageKey struct {
	userID  string
	promoID string
}

type ratingKey struct {
	rideID  string
	raterID string
}

type dataset struct {
	users    map[string]domain.User
	drivers  map[string]domain.Driver
	rides    map[string]domain.Ride
	promos   map[string]domain.PromoCode
	usages   map[usageKey]domain.UserPromoUsage
	payments map[string]domain.Payment // keyed by ride ID
	ratings  map[ratingKey]domain.Rating
}

func newDataset() *dataset {
	return &dataset{
		users:    make(map[string]domain.User),
		drivers:  make(map[string]domain.Driver),
		rides:    make(map[string]domain.Ride),
		promos:   make(map[string]domain.PromoCode),
		usages:   make(map[usageKey]domain.UserPromoUsage),
		payments: make(map[string]domain.Payment),
		ratings:  make(map[ratingKey]domain.Rating),
	}
}

func (d *dataset) clone() *dataset {
	c := newDataset()
	for k, v := range d.users {
		c.users[k] = v
	}
	for k, v := range d.drivers {
		c.drivers[k] = copyDriver(v)
	}
	for k, v := range d.rides {
		c.rides[k] = v
	}
	for k, v := range d.promos {
		c.promos[k] = v
	}
	for k, v := range d.usages {
		c.usages[k] = v
	}
	for k, v := range d.payments {
		c.payments[k] = v
	}
	for k, v := range d.ratings {
		c.ratings[k] = v
	}
	return c
}

func copyDriver(d domain.Driver) domain.Driver {
	if d.Location != nil {
		loc := *d.Location
		d.Location = &loc
	}
	return d
}

// Store holds all entities in memory.
type Store struct {
	mu   sync.Mutex
	data *dataset
}

// Ensure Store satisfies the transactor contract.
var _ repository.Transactor = (*Store)(nil)

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{data: newDataset()}
}

// Repositories returns repositories that operate on the live data.
func (s *Store) Repositories() repository.Repositories {
	return bind(&view{store: s})
}

// WithinTx runs fn against a private copy of the data and publishes it if fn succeeds.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, repos repository.Repositories) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	snapshot := s.data.clone()
	if err := fn(ctx, bind(&view{tx: snapshot})); err != nil {
		return err
	}

	s.data = snapshot
	return nil
}

// view routes repository calls to either the live data or a transaction snapshot.
type view struct {
	store *Store
	tx    *dataset
}

func (v *view) do(fn func(d *dataset) error) error {
	if v.tx != nil {
		return fn(v.tx)
	}
	v.store.mu.Lock()
	defer v.store.mu.Unlock()
	return fn(v.store.data)
}

func bind(v *view) repository.Repositories {
	return repository.Repositories{
		Users:    &userRepository{v: v},
		Drivers:  &driverRepository{v: v},
		Rides:    &rideRepository{v: v},
		Promos:   &promoRepository{v: v},
		Payments: &paymentRepository{v: v},
		Ratings:  &ratingRepository{v: v},
	}
}
