package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Cloud-Computing-Blue-Cloud/Booking-Service/internal/domain"
)

type PaymentRepo struct {
	pool *pgxpool.Pool
}

func (r *PaymentRepo) Insert(ctx context.Context, p *domain.Payment) error {
	const op = "postgres.PaymentRepo.Insert"

	db := r.pool

	if _, err := db.Exec(ctx,
		`INSERT INTO payments(id, amount_cents, status, created_by)
		 VALUES ($1, $2, $3, $4)`,
		p.ID, p.AmountCents, p.Status, p.CreatedBy,
	); err != nil {
		return fmt.Errorf("%s: %w", op, translateDBErr(err))
	}

	return nil
}

func (r *PaymentRepo) Get(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	const op = "postgres.PaymentRepo.Get"

	db := r.pool

	var p domain.Payment
	err := db.QueryRow(ctx,
		`SELECT id, amount_cents, status, created_by, booking_id, created_at, updated_at
		   FROM payments
		  WHERE id = $1 AND NOT is_deleted`,
		id,
	).Scan(&p.ID, &p.AmountCents, &p.Status, &p.CreatedBy, &p.BookingID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, translateDBErr(err))
	}

	return &p, nil
}

// TransitionStatus moves the payment from one expected status to another.
// The guard on the current status makes the transition atomic and idempotent
// on retry: a concurrent writer that already moved the payment causes a
// zero-row update, reported as false.
//
// Returns:
//   - bool: true when this call performed the transition.
//   - error: repository.ErrNotFound when the payment does not exist at all.
func (r *PaymentRepo) TransitionStatus(
	ctx context.Context,
	id uuid.UUID,
	from, to domain.PaymentStatus,
) (bool, error) {
	const op = "postgres.PaymentRepo.TransitionStatus"

	db := r.pool

	tag, err := db.Exec(ctx,
		`UPDATE payments
		    SET status = $3, updated_at = now()
		  WHERE id = $1 AND status = $2 AND NOT is_deleted`,
		id, from, to,
	)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, translateDBErr(err))
	}

	return tag.RowsAffected() == 1, nil
}
