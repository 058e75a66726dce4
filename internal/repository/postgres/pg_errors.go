package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Cloud-Computing-Blue-Cloud/Booking-Service/internal/repository"
)

// IsRetryable reports whether the error is a serialization failure or
// deadlock that a caller may safely retry.
func IsRetryable(err error) bool {
	var pgErr *pgconn.PgError

	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01":
			return true
		}
	}

	return false
}

func translateDBErr(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return repository.ErrNotFound
	}

	var pge *pgconn.PgError
	if errors.As(err, &pge) {
		// unique_violation: the partial unique index on active claims.
		if pge.Code == "23505" {
			return repository.ErrConflict
		}
	}

	return err
}
