package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Cloud-Computing-Blue-Cloud/Booking-Service/internal/domain"
	"github.com/Cloud-Computing-Blue-Cloud/Booking-Service/internal/repository"
)

// LedgerRepo owns the booked_seats claim ledger and the compound booking
// transitions that must commit atomically with it. Every public method runs
// as a single serializable transaction; concurrent writers touching the same
// seats fail fast with repository.ErrConflict instead of blocking.
type LedgerRepo struct {
	store *Store
	pool  *pgxpool.Pool
}

func (r *LedgerRepo) runTx(ctx context.Context, fn func(ctx context.Context, tx DB) error) error {
	return r.store.RunTx(ctx, nil, fn)
}

// PlaceHold atomically claims every requested seat for a new pending booking.
// The booking row and its on_hold claims are committed together or not at
// all, so an interrupted request never leaves an orphaned claim.
//
// Parameters:
//   - ctx: request-scoped context for cancellation and timeouts.
//   - b: the pending booking to insert; b.ID and b.ShowtimeID must be set.
//   - seats: seats to claim; the caller has already validated them.
//   - ttl: hold duration; claims expire at now+ttl.
//
// Returns:
//   - time.Time: the hold expiry shared by every claim.
//   - error: *repository.SeatsConflictError naming the seats that already
//     carry an active claim, or repository.ErrConflict when a concurrent
//     writer won the race on the unique index.
func (r *LedgerRepo) PlaceHold(
	ctx context.Context,
	b *domain.Booking,
	seats []domain.Seat,
	ttl time.Duration,
) (time.Time, error) {
	const op = "postgres.LedgerRepo.PlaceHold"

	expires := time.Now().UTC().Add(ttl)
	rows, cols := seatArrays(seats)

	err := r.runTx(ctx, func(ctx context.Context, tx DB) error {
		// Lazily release holds on the requested seats that have already
		// expired, so an expired hold never blocks a new claim.
		if _, err := tx.Exec(ctx,
			`UPDATE booked_seats
			    SET status = 'released', is_deleted = TRUE, updated_at = now()
			  WHERE showtime_id = $1
			    AND NOT is_deleted
			    AND status = 'on_hold'
			    AND hold_expires_at <= now()
			    AND (seat_row, seat_col) IN (SELECT * FROM unnest($2::text[], $3::int[]))`,
			b.ShowtimeID, rows, cols,
		); err != nil {
			return err
		}

		conflicts, err := r.activeClaimsAmong(ctx, tx, b.ShowtimeID, rows, cols)
		if err != nil {
			return err
		}
		if len(conflicts) > 0 {
			return &repository.SeatsConflictError{Seats: conflicts}
		}

		if _, err := tx.Exec(ctx,
			`INSERT INTO bookings(id, user_id, showtime_id, status, booking_time)
			 VALUES ($1, $2, $3, $4, $5)`,
			b.ID, b.UserID, b.ShowtimeID, domain.BookingPending, b.BookingTime,
		); err != nil {
			return err
		}

		batch := &pgx.Batch{}
		for _, seat := range seats {
			batch.Queue(
				`INSERT INTO booked_seats(id, booking_id, showtime_id, seat_row, seat_col, status, hold_expires_at)
				 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
				uuid.New(), b.ID, b.ShowtimeID, seat.Row, seat.Col, domain.ClaimOnHold, expires,
			)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return err
		}

		return nil
	})
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: %w", op, translateDBErr(err))
	}

	return expires, nil
}

// Confirm upgrades every on_hold claim of the booking to booked, attaches the
// payment and bumps the showtime booked-seat counter, all in one transaction.
// The payment-status read and the booking write share the transaction so a
// payment cannot change state mid-confirmation.
//
// Confirming an already-confirmed booking is a no-op success.
//
// Returns:
//   - *domain.Booking: the booking after the transition.
//   - error: repository.ErrNotFound for an unknown booking,
//     repository.ErrPaymentNotFound for an unknown payment,
//     repository.ErrInvalidTransition when the booking is cancelled,
//     repository.ErrPaymentIncomplete when the payment is not completed.
func (r *LedgerRepo) Confirm(ctx context.Context, bookingID, paymentID uuid.UUID) (*domain.Booking, error) {
	const op = "postgres.LedgerRepo.Confirm"

	var out domain.Booking

	err := r.runTx(ctx, func(ctx context.Context, tx DB) error {
		b, err := r.lockBooking(ctx, tx, bookingID)
		if err != nil {
			return err
		}

		if b.Status == domain.BookingConfirmed {
			out = *b
			return nil
		}

		if !b.Status.CanTransitionTo(domain.BookingConfirmed) {
			return repository.ErrInvalidTransition
		}

		var payStatus domain.PaymentStatus
		if err := tx.QueryRow(ctx,
			`SELECT status FROM payments WHERE id = $1 AND NOT is_deleted`,
			paymentID,
		).Scan(&payStatus); err != nil {
			if err == pgx.ErrNoRows {
				return repository.ErrPaymentNotFound
			}
			return err
		}

		if payStatus != domain.PaymentCompleted {
			return repository.ErrPaymentIncomplete
		}

		tag, err := tx.Exec(ctx,
			`UPDATE booked_seats
			    SET status = 'booked', hold_expires_at = NULL, updated_at = now()
			  WHERE booking_id = $1 AND status = 'on_hold' AND NOT is_deleted`,
			bookingID,
		)
		if err != nil {
			return err
		}

		upgraded := tag.RowsAffected()
		if upgraded == 0 {
			return repository.ErrNoActiveHold
		}

		if _, err := tx.Exec(ctx,
			`UPDATE showtimes
			    SET seats_booked = seats_booked + $2, updated_at = now()
			  WHERE id = $1`,
			b.ShowtimeID, upgraded,
		); err != nil {
			return err
		}

		if _, err := tx.Exec(ctx,
			`UPDATE bookings
			    SET status = $2, payment_id = $3, updated_at = now()
			  WHERE id = $1`,
			bookingID, domain.BookingConfirmed, paymentID,
		); err != nil {
			return err
		}

		if _, err := tx.Exec(ctx,
			`UPDATE payments SET booking_id = $1, updated_at = now() WHERE id = $2`,
			bookingID, paymentID,
		); err != nil {
			return err
		}

		out = *b
		out.Status = domain.BookingConfirmed
		out.PaymentID = &paymentID

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, translateDBErr(err))
	}

	return &out, nil
}

// Cancel transitions the booking to cancelled, soft-deletes every owned
// claim and, when a completed payment is attached, marks it refunded as part
// of the same transaction. A confirmed booking also gives its seats back to
// the showtime counter.
//
// Returns:
//   - *domain.Booking: the booking after the transition.
//   - *uuid.UUID: the refunded payment ID, or nil when nothing was refunded.
//   - error: repository.ErrNotFound or repository.ErrInvalidTransition when
//     the booking is already cancelled.
func (r *LedgerRepo) Cancel(ctx context.Context, bookingID uuid.UUID) (*domain.Booking, *uuid.UUID, error) {
	const op = "postgres.LedgerRepo.Cancel"

	var out domain.Booking
	var refunded *uuid.UUID

	err := r.runTx(ctx, func(ctx context.Context, tx DB) error {
		b, err := r.lockBooking(ctx, tx, bookingID)
		if err != nil {
			return err
		}

		if !b.Status.CanTransitionTo(domain.BookingCancelled) {
			return repository.ErrInvalidTransition
		}

		released, err := r.releaseClaims(ctx, tx, bookingID)
		if err != nil {
			return err
		}

		if b.Status == domain.BookingConfirmed && released > 0 {
			if _, err := tx.Exec(ctx,
				`UPDATE showtimes
				    SET seats_booked = GREATEST(seats_booked - $2, 0), updated_at = now()
				  WHERE id = $1`,
				b.ShowtimeID, released,
			); err != nil {
				return err
			}
		}

		if b.PaymentID != nil {
			tag, err := tx.Exec(ctx,
				`UPDATE payments
				    SET status = $2, updated_at = now()
				  WHERE id = $1 AND status = $3 AND NOT is_deleted`,
				*b.PaymentID, domain.PaymentRefunded, domain.PaymentCompleted,
			)
			if err != nil {
				return err
			}
			if tag.RowsAffected() == 1 {
				refunded = b.PaymentID
			}
		}

		if _, err := tx.Exec(ctx,
			`UPDATE bookings SET status = $2, updated_at = now() WHERE id = $1`,
			bookingID, domain.BookingCancelled,
		); err != nil {
			return err
		}

		out = *b
		out.Status = domain.BookingCancelled

		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, translateDBErr(err))
	}

	return &out, refunded, nil
}

// ExtendHold pushes the expiry of every held claim of the booking to
// max(current_expiry, now) + delta. It fails closed: when any owned seat is
// already booked or any hold has expired, nothing is extended.
//
// Returns:
//   - time.Time: the new shared expiry.
//   - int64: the showtime the hold belongs to, for cache invalidation.
//   - error: repository.ErrNoActiveHold when the booking owns no active
//     claims, repository.ErrHoldNotExtendable otherwise on precondition
//     failure.
func (r *LedgerRepo) ExtendHold(ctx context.Context, bookingID uuid.UUID, delta time.Duration) (time.Time, int64, error) {
	const op = "postgres.LedgerRepo.ExtendHold"

	var newExpiry time.Time
	var showtimeID int64

	err := r.runTx(ctx, func(ctx context.Context, tx DB) error {
		rows, err := tx.Query(ctx,
			`SELECT status, hold_expires_at, showtime_id
			   FROM booked_seats
			  WHERE booking_id = $1 AND NOT is_deleted`,
			bookingID,
		)
		if err != nil {
			return err
		}

		defer rows.Close()

		now := time.Now().UTC()
		latest := now
		var count int

		for rows.Next() {
			var status domain.ClaimStatus
			var expiresAt *time.Time
			if err := rows.Scan(&status, &expiresAt, &showtimeID); err != nil {
				return err
			}

			count++

			if status != domain.ClaimOnHold {
				return repository.ErrHoldNotExtendable
			}
			if expiresAt == nil || expiresAt.Before(now) {
				return repository.ErrHoldNotExtendable
			}
			if expiresAt.After(latest) {
				latest = *expiresAt
			}
		}
		if err := rows.Err(); err != nil {
			return err
		}

		if count == 0 {
			return repository.ErrNoActiveHold
		}

		newExpiry = latest.Add(delta)

		if _, err := tx.Exec(ctx,
			`UPDATE booked_seats
			    SET hold_expires_at = $2, updated_at = now()
			  WHERE booking_id = $1 AND status = 'on_hold' AND NOT is_deleted`,
			bookingID, newExpiry,
		); err != nil {
			return err
		}

		return nil
	})
	if err != nil {
		return time.Time{}, 0, fmt.Errorf("%s: %w", op, translateDBErr(err))
	}

	return newExpiry, showtimeID, nil
}

// ExpiredHoldBookings lists the pending bookings whose hold has fully lapsed:
// no owned claim is booked or still within its deadline. This also catches
// bookings whose last expired claim was lazily released by a competing
// PlaceHold, leaving them with no claim rows at all. Expired bookings are
// idempotently re-discoverable, so a failed sweep is retried naturally on the
// next cycle.
func (r *LedgerRepo) ExpiredHoldBookings(ctx context.Context) ([]uuid.UUID, error) {
	const op = "postgres.LedgerRepo.ExpiredHoldBookings"

	rows, err := r.pool.Query(ctx,
		`SELECT b.id
		   FROM bookings b
		  WHERE b.status = 'pending'
		    AND NOT b.is_deleted
		    AND NOT EXISTS (
		          SELECT 1
		            FROM booked_seats s
		           WHERE s.booking_id = b.id
		             AND NOT s.is_deleted
		             AND (s.status = 'booked'
		                  OR (s.status = 'on_hold' AND s.hold_expires_at >= now()))
		        )`,
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, translateDBErr(err))
	}

	defer rows.Close()

	var out []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%s: %w", op, translateDBErr(err))
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return out, nil
}

// ExpireBooking cancels a pending booking whose hold has lapsed and releases
// every claim it owns. The transition is guarded by the expected current
// state, so a sweep racing a user-initiated confirm or cancel simply loses:
// the second writer observes a terminal state and no-ops.
//
// Returns:
//   - bool: true when this call performed the transition, false when another
//     writer got there first.
//   - int64: the showtime the booking belongs to, for cache invalidation.
func (r *LedgerRepo) ExpireBooking(ctx context.Context, bookingID uuid.UUID) (bool, int64, error) {
	const op = "postgres.LedgerRepo.ExpireBooking"

	var swept bool
	var showtimeID int64

	err := r.runTx(ctx, func(ctx context.Context, tx DB) error {
		err := tx.QueryRow(ctx,
			`UPDATE bookings
			    SET status = $2, updated_at = now()
			  WHERE id = $1 AND status = $3 AND NOT is_deleted
			  RETURNING showtime_id`,
			bookingID, domain.BookingCancelled, domain.BookingPending,
		).Scan(&showtimeID)
		if err == pgx.ErrNoRows {
			return nil
		}
		if err != nil {
			return err
		}

		if _, err := r.releaseClaims(ctx, tx, bookingID); err != nil {
			return err
		}

		swept = true
		return nil
	})
	if err != nil {
		return false, 0, fmt.Errorf("%s: %w", op, translateDBErr(err))
	}

	return swept, showtimeID, nil
}

// SoftDelete marks the booking deleted for audit retention and releases all
// of its claims. A confirmed booking gives its seats back to the counter.
func (r *LedgerRepo) SoftDelete(ctx context.Context, bookingID uuid.UUID) error {
	const op = "postgres.LedgerRepo.SoftDelete"

	err := r.runTx(ctx, func(ctx context.Context, tx DB) error {
		b, err := r.lockBooking(ctx, tx, bookingID)
		if err != nil {
			return err
		}

		released, err := r.releaseClaims(ctx, tx, bookingID)
		if err != nil {
			return err
		}

		if b.Status == domain.BookingConfirmed && released > 0 {
			if _, err := tx.Exec(ctx,
				`UPDATE showtimes
				    SET seats_booked = GREATEST(seats_booked - $2, 0), updated_at = now()
				  WHERE id = $1`,
				b.ShowtimeID, released,
			); err != nil {
				return err
			}
		}

		if _, err := tx.Exec(ctx,
			`UPDATE bookings SET is_deleted = TRUE, updated_at = now() WHERE id = $1`,
			bookingID,
		); err != nil {
			return err
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, translateDBErr(err))
	}

	return nil
}

func (r *LedgerRepo) lockBooking(ctx context.Context, tx DB, bookingID uuid.UUID) (*domain.Booking, error) {
	var b domain.Booking
	err := tx.QueryRow(ctx,
		`SELECT id, user_id, showtime_id, payment_id, status, booking_time, created_at, updated_at
		   FROM bookings
		  WHERE id = $1 AND NOT is_deleted`,
		bookingID,
	).Scan(&b.ID, &b.UserID, &b.ShowtimeID, &b.PaymentID, &b.Status, &b.BookingTime, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *LedgerRepo) releaseClaims(ctx context.Context, tx DB, bookingID uuid.UUID) (int64, error) {
	tag, err := tx.Exec(ctx,
		`UPDATE booked_seats
		    SET status = 'released', is_deleted = TRUE, updated_at = now()
		  WHERE booking_id = $1 AND NOT is_deleted`,
		bookingID,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *LedgerRepo) activeClaimsAmong(
	ctx context.Context,
	tx DB,
	showtimeID int64,
	rows []string,
	cols []int,
) ([]domain.Seat, error) {
	res, err := tx.Query(ctx,
		`SELECT seat_row, seat_col
		   FROM booked_seats
		  WHERE showtime_id = $1
		    AND NOT is_deleted
		    AND status IN ('on_hold', 'booked')
		    AND (seat_row, seat_col) IN (SELECT * FROM unnest($2::text[], $3::int[]))
		  ORDER BY seat_row, seat_col`,
		showtimeID, rows, cols,
	)
	if err != nil {
		return nil, err
	}

	defer res.Close()

	var out []domain.Seat
	for res.Next() {
		var s domain.Seat
		if err := res.Scan(&s.Row, &s.Col); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := res.Err(); err != nil {
		return nil, err
	}

	return out, nil
}

func seatArrays(seats []domain.Seat) ([]string, []int) {
	rows := make([]string, len(seats))
	cols := make([]int, len(seats))
	for i, s := range seats {
		rows[i] = s.Row
		cols[i] = s.Col
	}
	return rows, cols
}
