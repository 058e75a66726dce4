package sweeper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Ledger is the slice of the claim ledger the sweeper drives. ExpireBooking
// is guarded by the expected current state, so the sweeper can lose a race
// against a user-initiated confirm or cancel without harm.
type Ledger interface {
	ExpiredHoldBookings(ctx context.Context) ([]uuid.UUID, error)
	ExpireBooking(ctx context.Context, bookingID uuid.UUID) (bool, int64, error)
}

// Invalidator drops cached seat state after a committed claim change.
type Invalidator interface {
	InvalidateShowtime(ctx context.Context, showtimeID int64) error
}

// Publisher broadcasts claim changes to other instances.
type Publisher interface {
	PublishShowtimeChanged(ctx context.Context, showtimeID int64) error
}

// Sweeper periodically cancels pending bookings whose holds have lapsed and
// releases their seats. One stuck booking never blocks the rest of a cycle,
// and a failed cycle retries naturally on the next tick because expired holds
// stay discoverable until released.
type Sweeper struct {
	ledger   Ledger
	cache    Invalidator
	events   Publisher
	interval time.Duration
	log      *slog.Logger
}

func New(ledger Ledger, cache Invalidator, events Publisher, interval time.Duration, log *slog.Logger) *Sweeper {
	if log == nil {
		log = slog.Default()
	}
	return &Sweeper{
		ledger:   ledger,
		cache:    cache,
		events:   events,
		interval: interval,
		log:      log,
	}
}

// Run sweeps once immediately, then on every tick until the context is
// cancelled.
func (s *Sweeper) Run(ctx context.Context) error {
	s.log.InfoContext(ctx, "hold sweeper started",
		slog.Duration("interval", s.interval),
	)

	if _, err := s.Sweep(ctx); err != nil {
		s.log.ErrorContext(ctx, "sweep cycle failed", slog.Any("error", err))
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.InfoContext(ctx, "hold sweeper stopped")
			return nil
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil {
				s.log.ErrorContext(ctx, "sweep cycle failed", slog.Any("error", err))
			}
		}
	}
}

// Sweep runs a single cycle and reports how many bookings were expired.
// Per-booking failures are logged and skipped.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	const op = "sweeper.Sweeper.Sweep"

	ids, err := s.ledger.ExpiredHoldBookings(ctx)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	var swept int
	touched := make(map[int64]struct{})

	for _, id := range ids {
		done, showtimeID, err := s.ledger.ExpireBooking(ctx, id)
		if err != nil {
			s.log.WarnContext(ctx, "failed to expire booking",
				slog.String("booking_id", id.String()),
				slog.Any("error", err),
			)
			continue
		}
		if !done {
			// Another writer moved the booking first.
			continue
		}

		swept++
		touched[showtimeID] = struct{}{}

		s.log.InfoContext(ctx, "expired hold released",
			slog.String("booking_id", id.String()),
			slog.Int64("showtime_id", showtimeID),
		)
	}

	for showtimeID := range touched {
		s.notifyShowtime(ctx, showtimeID)
	}

	return swept, nil
}

func (s *Sweeper) notifyShowtime(ctx context.Context, showtimeID int64) {
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
