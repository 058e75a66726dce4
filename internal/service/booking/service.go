package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Cloud-Computing-Blue-Cloud/Booking-Service/internal/clients"
	"github.com/Cloud-Computing-Blue-Cloud/Booking-Service/internal/config"
	"github.com/Cloud-Computing-Blue-Cloud/Booking-Service/internal/domain"
	"github.com/Cloud-Computing-Blue-Cloud/Booking-Service/internal/repository"
	"github.com/Cloud-Computing-Blue-Cloud/Booking-Service/internal/service/payment"
)

// Ledger is the atomic claim-ledger contract. Every method commits or rolls
// back a booking together with its seat claims.
type Ledger interface {
	PlaceHold(ctx context.Context, b *domain.Booking, seats []domain.Seat, ttl time.Duration) (time.Time, error)
	Confirm(ctx context.Context, bookingID, paymentID uuid.UUID) (*domain.Booking, error)
	Cancel(ctx context.Context, bookingID uuid.UUID) (*domain.Booking, *uuid.UUID, error)
	SoftDelete(ctx context.Context, bookingID uuid.UUID) error
}

// Reader serves booking lookups and seat-conflict queries.
type Reader interface {
	Get(ctx context.Context, id uuid.UUID, includeDeleted bool) (*domain.BookingWithSeats, error)
	ListByUser(ctx context.Context, userID int64, includeCancelled bool) ([]domain.Booking, error)
	ConflictingSeats(ctx context.Context, showtimeID int64, seats []domain.Seat) ([]domain.Seat, error)
}

// Showtimes upserts the local showtime reference rows.
type Showtimes interface {
	Ensure(ctx context.Context, ref domain.ShowtimeRef) error
}

// Theatre resolves showtime grids from the Theatre Service.
type Theatre interface {
	GetShowtime(ctx context.Context, showtimeID int64) (*domain.ShowtimeRef, error)
}

// Users answers existence checks against the User Service.
type Users interface {
	UserExists(ctx context.Context, userID int64) (bool, error)
}

// Payments is the slice of the payment service the orchestrator drives.
type Payments interface {
	Create(ctx context.Context, amountCents int64, createdBy int64) (*domain.Payment, error)
	Process(ctx context.Context, id uuid.UUID) (*domain.Payment, error)
}

// Invalidator drops cached seat state after a committed claim change.
type Invalidator interface {
	InvalidateShowtime(ctx context.Context, showtimeID int64) error
}

// Publisher broadcasts claim changes to other instances.
type Publisher interface {
	PublishShowtimeChanged(ctx context.Context, showtimeID int64) error
}

// Service orchestrates the booking lifecycle: hold placement, payment-backed
// confirmation, cancellation with refund and soft deletion. Atomicity lives in
// the ledger; the service validates, sequences the payment step and fans out
// cache invalidation after commit.
type Service struct {
	cfg       config.BookingConfig
	ledger    Ledger
	reader    Reader
	showtimes Showtimes
	theatre   Theatre
	users     Users
	payments  Payments
	cache     Invalidator
	events    Publisher
	log       *slog.Logger
}

func New(
	cfg config.BookingConfig,
	ledger Ledger,
	reader Reader,
	showtimes Showtimes,
	theatre Theatre,
	users Users,
	payments Payments,
	cache Invalidator,
	events Publisher,
	log *slog.Logger,
) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		cfg:       cfg,
		ledger:    ledger,
		reader:    reader,
		showtimes: showtimes,
		theatre:   theatre,
		users:     users,
		payments:  payments,
		cache:     cache,
		events:    events,
		log:       log,
	}
}

// CreateResult is the outcome of a successful hold placement.
type CreateResult struct {
	Booking    domain.Booking
	Seats      []domain.Seat
	ExpiresAt  time.Time
	TotalCents int64
}

// Create places a hold on every requested seat and records a pending booking.
// The operation is all-or-nothing: one unavailable seat fails the whole
// request and the conflicting seats are reported back.
//
// Parameters:
//   - ctx: request-scoped context for cancellation and timeouts.
//   - userID: the requesting user; must exist upstream.
//   - showtimeID: the showtime to book; its grid bounds the seats.
//   - seats: requested seats, at most MaxSeats, no duplicates.
//
// Returns:
//   - *CreateResult: the pending booking, its seats and the hold expiry.
//   - error: *ValidationError, ErrUserNotFound, ErrShowtimeNotFound or
//     *SeatsConflictError.
func (s *Service) Create(ctx context.Context, userID, showtimeID int64, seats []domain.Seat) (*CreateResult, error) {
	const op = "booking.Service.Create"

	seats, err := s.validateSeats(seats)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	exists, err := s.users.UserExists(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !exists {
		return nil, fmt.Errorf("%s: user %d: %w", op, userID, ErrUserNotFound)
	}

	ref, err := s.theatre.GetShowtime(ctx, showtimeID)
	if err != nil {
		if errors.Is(err, clients.ErrShowtimeNotFound) {
			return nil, fmt.Errorf("%s: showtime %d: %w", op, showtimeID, ErrShowtimeNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	for _, seat := range seats {
		if !ref.Contains(seat) {
			return nil, fmt.Errorf("%s: %w", op,
				validationf("seat %s is outside the showtime grid", seat))
		}
	}

	if err := s.showtimes.Ensure(ctx, *ref); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	b := &domain.Booking{
		ID:          uuid.New(),
		UserID:      userID,
		ShowtimeID:  showtimeID,
		Status:      domain.BookingPending,
		BookingTime: time.Now().UTC(),
	}

	expires, err := s.ledger.PlaceHold(ctx, b, seats, s.cfg.HoldTTL)
	if err != nil {
		var sce *repository.SeatsConflictError
		if errors.As(err, &sce) {
			return nil, fmt.Errorf("%s: %w", op, &SeatsConflictError{Seats: sce.Seats})
		}
		if errors.Is(err, repository.ErrConflict) {
			// A concurrent writer won the unique-index race after our
			// availability check. Best effort: name the seats it took.
			taken, qerr := s.reader.ConflictingSeats(ctx, showtimeID, seats)
			if qerr != nil || len(taken) == 0 {
				taken = seats
			}
			return nil, fmt.Errorf("%s: %w", op, &SeatsConflictError{Seats: taken})
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.notifyShowtime(ctx, showtimeID)

	return &CreateResult{
		Booking:    *b,
		Seats:      seats,
		ExpiresAt:  expires,
		TotalCents: int64(len(seats)) * s.cfg.SeatPriceCents,
	}, nil
}

// Confirm upgrades a pending booking to confirmed against a completed
// payment. Confirming an already-confirmed booking is a no-op success.
//
// Returns:
//   - *domain.Booking: the booking after the transition.
//   - error: ErrBookingNotFound, ErrPaymentNotFound, ErrInvalidTransition,
//     ErrPaymentIncomplete or ErrHoldExpired when the seats were already
//     released.
func (s *Service) Confirm(ctx context.Context, bookingID, paymentID uuid.UUID) (*domain.Booking, error) {
	const op = "booking.Service.Confirm"

	b, err := s.ledger.Confirm(ctx, bookingID, paymentID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, s.mapLedgerErr(err))
	}

	s.notifyShowtime(ctx, b.ShowtimeID)

	return b, nil
}

// Cancel transitions a pending or confirmed booking to cancelled, releases
// its seats and refunds an attached completed payment.
//
// Returns:
//   - *domain.Booking: the cancelled booking.
//   - *uuid.UUID: the refunded payment ID, or nil when nothing was refunded.
func (s *Service) Cancel(ctx context.Context, bookingID uuid.UUID) (*domain.Booking, *uuid.UUID, error) {
	const op = "booking.Service.Cancel"

	b, refunded, err := s.ledger.Cancel(ctx, bookingID)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, s.mapLedgerErr(err))
	}

	if refunded != nil {
		s.log.InfoContext(ctx, "payment refunded on cancellation",
			slog.String("booking_id", bookingID.String()),
			slog.String("payment_id", refunded.String()),
		)
	}

	s.notifyShowtime(ctx, b.ShowtimeID)

	return b, refunded, nil
}

// Complete runs the one-shot checkout: create a payment for the booking's
// held seats, process it, and confirm the booking with the completed payment.
// It fails closed like ExtendHold: any lapsed hold aborts the checkout, so
// the amount charged always covers every seat the confirmation will book. A
// declined payment leaves the booking pending with its hold intact.
//
// Returns:
//   - *domain.BookingWithSeats: the confirmed booking with seats and payment.
//   - error: *PaymentFailedError carrying the failed payment on decline,
//     ErrBookingNotFound, ErrInvalidTransition or ErrHoldExpired.
func (s *Service) Complete(ctx context.Context, bookingID uuid.UUID) (*domain.BookingWithSeats, error) {
	const op = "booking.Service.Complete"

	bw, err := s.reader.Get(ctx, bookingID, false)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrBookingNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	switch bw.Booking.Status {
	case domain.BookingConfirmed:
		return bw, nil
	case domain.BookingCancelled:
		return nil, fmt.Errorf("%s: booking is cancelled: %w", op, ErrInvalidTransition)
	}

	held := 0
	now := time.Now().UTC()
	for _, c := range bw.Seats {
		if c.Status != domain.ClaimOnHold {
			continue
		}
		if c.HoldExpired(now) {
			return nil, fmt.Errorf("%s: %w", op, ErrHoldExpired)
		}
		held++
	}
	if held == 0 {
		return nil, fmt.Errorf("%s: %w", op, ErrHoldExpired)
	}

	p, err := s.payments.Create(ctx, int64(held)*s.cfg.SeatPriceCents, bw.Booking.UserID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	processed, err := s.payments.Process(ctx, p.ID)
	if err != nil {
		if errors.Is(err, payment.ErrPaymentDeclined) {
			s.log.WarnContext(ctx, "payment declined, booking stays pending",
				slog.String("booking_id", bookingID.String()),
				slog.String("payment_id", p.ID.String()),
			)
			return nil, fmt.Errorf("%s: %w", op, &PaymentFailedError{Payment: processed})
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	b, err := s.ledger.Confirm(ctx, bookingID, processed.ID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, s.mapLedgerErr(err))
	}

	s.notifyShowtime(ctx, b.ShowtimeID)

	out := &domain.BookingWithSeats{
		Booking: *b,
		Seats:   make([]domain.SeatClaim, len(bw.Seats)),
		Payment: processed,
	}
	for i, c := range bw.Seats {
		c.Status = domain.ClaimBooked
		c.HoldExpiresAt = nil
		out.Seats[i] = c
	}

	return out, nil
}

// Get retrieves a booking with its seats and payment.
func (s *Service) Get(ctx context.Context, bookingID uuid.UUID) (*domain.BookingWithSeats, error) {
	const op = "booking.Service.Get"

	bw, err := s.reader.Get(ctx, bookingID, false)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrBookingNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return bw, nil
}

// ListByUser lists a user's bookings, most recent first.
func (s *Service) ListByUser(ctx context.Context, userID int64, includeCancelled bool) ([]domain.Booking, error) {
	const op = "booking.Service.ListByUser"

	list, err := s.reader.ListByUser(ctx, userID, includeCancelled)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return list, nil
}

// Delete soft-deletes a booking and releases its claims. The row stays
// around for audit; reads exclude it.
func (s *Service) Delete(ctx context.Context, bookingID uuid.UUID) error {
	const op = "booking.Service.Delete"

	bw, err := s.reader.Get(ctx, bookingID, false)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%s: %w", op, ErrBookingNotFound)
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := s.ledger.SoftDelete(ctx, bookingID); err != nil {
		return fmt.Errorf("%s: %w", op, s.mapLedgerErr(err))
	}

	s.notifyShowtime(ctx, bw.Booking.ShowtimeID)

	return nil
}

func (s *Service) validateSeats(seats []domain.Seat) ([]domain.Seat, error) {
	if len(seats) == 0 {
		return nil, validationf("at least one seat is required")
	}
	if len(seats) > s.cfg.MaxSeats {
		return nil, validationf("at most %d seats per booking", s.cfg.MaxSeats)
	}

	out := make([]domain.Seat, len(seats))
	seen := make(map[string]struct{}, len(seats))
	for i, seat := range seats {
		seat.Row = strings.ToUpper(strings.TrimSpace(seat.Row))
		if len(seat.Row) != 1 || seat.Row[0] < 'A' || seat.Row[0] > 'Z' {
			return nil, validationf("seat row must be a single letter, got %q", seat.Row)
		}
		if seat.Col < 1 {
			return nil, validationf("seat column must be positive, got %d", seat.Col)
		}
		key := seat.String()
		if _, dup := seen[key]; dup {
			return nil, validationf("duplicate seat %s", key)
		}
		seen[key] = struct{}{}
		out[i] = seat
	}

	return out, nil
}

func (s *Service) mapLedgerErr(err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return ErrBookingNotFound
	case errors.Is(err, repository.ErrPaymentNotFound):
		return ErrPaymentNotFound
	case errors.Is(err, repository.ErrInvalidTransition):
		return ErrInvalidTransition
	case errors.Is(err, repository.ErrPaymentIncomplete):
		return ErrPaymentIncomplete
	case errors.Is(err, repository.ErrNoActiveHold):
		return ErrHoldExpired
	default:
		return err
	}
}

// notifyShowtime runs after a committed claim change. Failures only cost
// cache freshness, so they are logged and swallowed.
func (s *Service) notifyShowtime(ctx context.Context, showtimeID int64) {
	if s.cache != nil {
		if err := s.cache.InvalidateShowtime(ctx, showtimeID); err != nil {
			s.log.WarnContext(ctx, "seat cache invalidation failed",
				slog.Int64("showtime_id", showtimeID),
				slog.Any("error", err),
			)
		}
	}
	if s.events != nil {
		if err := s.events.PublishShowtimeChanged(ctx, showtimeID); err != nil {
			s.log.WarnContext(ctx, "showtime change publish failed",
				slog.Int64("showtime_id", showtimeID),
				slog.Any("error", err),
			)
		}
	}
}
