package repository

import "context"

// Repositories groups the repositories bound to one connection or transaction.
type Repositories struct {
	Users    UserRepository
	Drivers  DriverRepository
	Rides    RideRepository
	Promos   PromoRepository
	Payments PaymentRepository
	Ratings  RatingRepository
}

// Transactor runs a function inside a single transaction.
//
// The repositories passed to fn share the transaction. If fn returns an error
// every write made through them is rolled back.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
}
