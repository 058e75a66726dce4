package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Cloud-Computing-Blue-Cloud/Booking-Service/internal/domain"
)

// BookingRepo serves the read side: bookings with their seats and payment,
// user booking lists and the active claims of a showtime.
type BookingRepo struct {
	pool *pgxpool.Pool
}

// Get retrieves a booking together with its active seat claims and the
// attached payment, if any.
//
// Parameters:
//   - ctx: request-scoped context for cancellation and timeouts.
//   - id: booking ID.
//   - includeDeleted: when true, soft-deleted bookings are returned too.
//
// Returns:
//   - *domain.BookingWithSeats: the booking when found.
//   - error: repository.ErrNotFound if the booking is absent.
func (r *BookingRepo) Get(ctx context.Context, id uuid.UUID, includeDeleted bool) (*domain.BookingWithSeats, error) {
	const op = "postgres.BookingRepo.Get"

	db := r.pool

	var out domain.BookingWithSeats
	b := &out.Booking

	q := `SELECT id, user_id, showtime_id, payment_id, status, booking_time, created_at, updated_at, is_deleted
	        FROM bookings
	       WHERE id = $1`
	if !includeDeleted {
		q += ` AND NOT is_deleted`
	}

	err := db.QueryRow(ctx, q, id).Scan(
		&b.ID, &b.UserID, &b.ShowtimeID, &b.PaymentID,
		&b.Status, &b.BookingTime, &b.CreatedAt, &b.UpdatedAt, &b.Deleted,
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, translateDBErr(err))
	}

	rows, err := db.Query(ctx,
		`SELECT id, booking_id, showtime_id, seat_row, seat_col, status, hold_expires_at, created_at, updated_at
		   FROM booked_seats
		  WHERE booking_id = $1 AND NOT is_deleted
		  ORDER BY seat_row, seat_col`,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, translateDBErr(err))
	}

	defer rows.Close()

	for rows.Next() {
		var c domain.SeatClaim
		if err := rows.Scan(
			&c.ID, &c.BookingID, &c.ShowtimeID, &c.Seat.Row, &c.Seat.Col,
			&c.Status, &c.HoldExpiresAt, &c.CreatedAt, &c.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("%s: %w", op, translateDBErr(err))
		}
		out.Seats = append(out.Seats, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if b.PaymentID != nil {
		var p domain.Payment
		err := db.QueryRow(ctx,
			`SELECT id, amount_cents, status, created_by, booking_id, created_at, updated_at
			   FROM payments
			  WHERE id = $1 AND NOT is_deleted`,
			*b.PaymentID,
		).Scan(&p.ID, &p.AmountCents, &p.Status, &p.CreatedBy, &p.BookingID, &p.CreatedAt, &p.UpdatedAt)
		if err == nil {
			out.Payment = &p
		}
	}

	return &out, nil
}

// ListByUser lists a user's bookings, most recent first. Cancelled bookings
// are filtered out unless includeCancelled is set.
func (r *BookingRepo) ListByUser(ctx context.Context, userID int64, includeCancelled bool) ([]domain.Booking, error) {
	const op = "postgres.BookingRepo.ListByUser"

	db := r.pool

	q := `SELECT id, user_id, showtime_id, payment_id, status, booking_time, created_at, updated_at
	        FROM bookings
	       WHERE user_id = $1 AND NOT is_deleted`
	if !includeCancelled {
		q += ` AND status <> 'cancelled'`
	}
	q += ` ORDER BY booking_time DESC`

	rows, err := db.Query(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, translateDBErr(err))
	}

	defer rows.Close()

	var out []domain.Booking
	for rows.Next() {
		var b domain.Booking
		if err := rows.Scan(
			&b.ID, &b.UserID, &b.ShowtimeID, &b.PaymentID,
			&b.Status, &b.BookingTime, &b.CreatedAt, &b.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("%s: %w", op, translateDBErr(err))
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return out, nil
}

// ActiveClaims lists the live claims of a showtime. Holds already past their
// deadline are treated as free and skipped; physically releasing them is the
// sweeper's job.
func (r *BookingRepo) ActiveClaims(ctx context.Context, showtimeID int64) ([]domain.SeatClaim, error) {
	const op = "postgres.BookingRepo.ActiveClaims"

	db := r.pool

	rows, err := db.Query(ctx,
		`SELECT id, booking_id, showtime_id, seat_row, seat_col, status, hold_expires_at, created_at, updated_at
		   FROM booked_seats
		  WHERE showtime_id = $1
		    AND NOT is_deleted
		    AND status IN ('on_hold', 'booked')
		    AND NOT (status = 'on_hold' AND hold_expires_at < now())
		  ORDER BY seat_row, seat_col`,
		showtimeID,
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, translateDBErr(err))
	}

	defer rows.Close()

	var out []domain.SeatClaim
	for rows.Next() {
		var c domain.SeatClaim
		if err := rows.Scan(
			&c.ID, &c.BookingID, &c.ShowtimeID, &c.Seat.Row, &c.Seat.Col,
			&c.Status, &c.HoldExpiresAt, &c.CreatedAt, &c.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("%s: %w", op, translateDBErr(err))
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return out, nil
}

// ConflictingSeats reports which of the given seats carry a live claim for
// the showtime, ignoring holds that have already expired.
func (r *BookingRepo) ConflictingSeats(ctx context.Context, showtimeID int64, seats []domain.Seat) ([]domain.Seat, error) {
	const op = "postgres.BookingRepo.ConflictingSeats"

	db := r.pool

	rows, cols := seatArrays(seats)

	res, err := db.Query(ctx,
		`SELECT seat_row, seat_col
		   FROM booked_seats
		  WHERE showtime_id = $1
		    AND NOT is_deleted
		    AND status IN ('on_hold', 'booked')
		    AND NOT (status = 'on_hold' AND hold_expires_at < now())
		    AND (seat_row, seat_col) IN (SELECT * FROM unnest($2::text[], $3::int[]))
		  ORDER BY seat_row, seat_col`,
		showtimeID, rows, cols,
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, translateDBErr(err))
	}

	defer res.Close()

	var out []domain.Seat
	for res.Next() {
		var s domain.Seat
		if err := res.Scan(&s.Row, &s.Col); err != nil {
			return nil, fmt.Errorf("%s: %w", op, translateDBErr(err))
		}
		out = append(out, s)
	}
	if err := res.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return out, nil
}
