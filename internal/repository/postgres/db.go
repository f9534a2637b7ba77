package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"ridedispatch/internal/repository"
)

// Querier is an interface satisfied by both *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Ensure interfaces are satisfied.
var (
	_ Querier = (*sql.DB)(nil)
	_ Querier = (*sql.Tx)(nil)

	_ repository.Transactor        = (*Transactor)(nil)
	_ repository.UserRepository    = (*UserRepository)(nil)
	_ repository.DriverRepository  = (*DriverRepository)(nil)
	_ repository.RideRepository    = (*RideRepository)(nil)
	_ repository.PromoRepository   = (*PromoRepository)(nil)
	_ repository.PaymentRepository = (*PaymentRepository)(nil)
	_ repository.RatingRepository  = (*RatingRepository)(nil)
)

const uniqueViolation = "23505"

// mapError translates driver errors into repository errors.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return repository.ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", repository.ErrDuplicate, pqErr.Constraint)
	}
	return err
}

// affected reports whether result changed at least one row.
func affected(result sql.Result) (bool, error) {
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// NewRepositories returns repositories bound to db.
func NewRepositories(db *sql.DB) repository.Repositories {
	return bind(db)
}

func bind(q Querier) repository.Repositories {
	return repository.Repositories{
		Users:    &UserRepository{q: q},
		Drivers:  &DriverRepository{q: q},
		Rides:    &RideRepository{q: q},
		Promos:   &PromoRepository{q: q},
		Payments: &PaymentRepository{q: q},
		Ratings:  &RatingRepository{q: q},
	}
}

// Transactor runs work in READ COMMITTED transactions.
type Transactor struct {
	db *sql.DB
}

// NewTransactor creates a new Transactor.
func NewTransactor(db *sql.DB) *Transactor {
	return &Transactor{db: db}
}

// WithinTx runs fn with repositories bound to a new transaction.
// The transaction commits if fn returns nil and rolls back otherwise.
func (t *Transactor) WithinTx(ctx context.Context, fn func(ctx context.Context, repos repository.Repositories) error) (err error) {
	tx, err := t.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(ctx, bind(tx)); err != nil {
		return err
	}

	return tx.Commit()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
