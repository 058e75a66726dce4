package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Cloud-Computing-Blue-Cloud/Booking-Service/internal/domain"
)

// ShowtimeRepo maintains the local reference rows for showtimes owned by the
// Theatre Service. The engine never creates or deletes showtimes upstream;
// it caches the grid shape here and bumps the booked-seat counter as a side
// effect of claim transitions.
type ShowtimeRepo struct {
	pool *pgxpool.Pool
}

// Ensure upserts the reference row, refreshing the grid shape from the
// upstream lookup while preserving the local booked-seat counter.
func (r *ShowtimeRepo) Ensure(ctx context.Context, st domain.ShowtimeRef) error {
	const op = "postgres.ShowtimeRepo.Ensure"

	db := r.pool

	if _, err := db.Exec(ctx,
		`INSERT INTO showtimes(id, seat_rows, cols, seats_booked)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO UPDATE
		    SET seat_rows = EXCLUDED.seat_rows, cols = EXCLUDED.cols, updated_at = now()`,
		st.ID, strings.Join(st.Rows, ","), st.Cols, st.SeatsBooked,
	); err != nil {
		return fmt.Errorf("%s: %w", op, translateDBErr(err))
	}

	return nil
}

func (r *ShowtimeRepo) Get(ctx context.Context, id int64) (*domain.ShowtimeRef, error) {
	const op = "postgres.ShowtimeRepo.Get"

	db := r.pool

	var st domain.ShowtimeRef
	var rowsCSV string

	err := db.QueryRow(ctx,
		`SELECT id, seat_rows, cols, seats_booked
		   FROM showtimes
		  WHERE id = $1 AND NOT is_deleted`,
		id,
	).Scan(&st.ID, &rowsCSV, &st.Cols, &st.SeatsBooked)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, translateDBErr(err))
	}

	if rowsCSV != "" {
		st.Rows = strings.Split(rowsCSV, ",")
	}

	return &st, nil
}
