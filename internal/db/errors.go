package db

import (
	"errors"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
)

var (
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is a unique constraint violation. For registration rows it
	// means the payment intent item was already processed.
	ErrDuplicate = errors.New("duplicate record")
	// ErrConflict is returned when a one-time association is already set to a
	// different value.
	ErrConflict = errors.New("conflicting update")
	// ErrLimit is returned when a write would push a bounded value past its
	// maximum, such as a cart line's quantity.
	ErrLimit = errors.New("limit exceeded")
)

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

func classify(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case uniqueViolation:
			return ErrDuplicate
		case foreignKeyViolation:
			return ErrNotFound
		}
	}
	return err
}
