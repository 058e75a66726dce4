package seats

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Cloud-Computing-Blue-Cloud/Booking-Service/internal/clients"
	"github.com/Cloud-Computing-Blue-Cloud/Booking-Service/internal/domain"
	redisx "github.com/Cloud-Computing-Blue-Cloud/Booking-Service/internal/redis"
	"github.com/Cloud-Computing-Blue-Cloud/Booking-Service/internal/repository"
	redisrepo "github.com/Cloud-Computing-Blue-Cloud/Booking-Service/internal/repository/redis"
)

// Cached seat views are short-lived; invalidation on claim changes keeps them
// honest, the TTL bounds staleness when an invalidation is lost.
const seatViewTTL = 30 * time.Second

// Ledger extends seat holds atomically across all claims of a booking.
type Ledger interface {
	ExtendHold(ctx context.Context, bookingID uuid.UUID, delta time.Duration) (time.Time, int64, error)
}

// ClaimReader serves live claim listings for a showtime.
type ClaimReader interface {
	ActiveClaims(ctx context.Context, showtimeID int64) ([]domain.SeatClaim, error)
	ConflictingSeats(ctx context.Context, showtimeID int64, seats []domain.Seat) ([]domain.Seat, error)
}

// Theatre resolves showtime grids from the Theatre Service.
type Theatre interface {
	GetShowtime(ctx context.Context, showtimeID int64) (*domain.ShowtimeRef, error)
}

// Publisher broadcasts claim changes to other instances.
type Publisher interface {
	PublishShowtimeChanged(ctx context.Context, showtimeID int64) error
}

// Service answers seat-state questions for showtimes and manages hold
// lifetimes. Reads are best effort and cacheable; an expired hold reads as
// free before the sweeper physically releases it.
type Service struct {
	ledger  Ledger
	claims  ClaimReader
	theatre Theatre
	cache   *redisrepo.Cache
	events  Publisher
	log     *slog.Logger
}

func New(
	ledger Ledger,
	claims ClaimReader,
	theatre Theatre,
	cache *redisrepo.Cache,
	events Publisher,
	log *slog.Logger,
) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		ledger:  ledger,
		claims:  claims,
		theatre: theatre,
		cache:   cache,
		events:  events,
		log:     log,
	}
}

// ExtendHold pushes the hold deadline of a pending booking by delta, measured
// from the later of the current expiry and now. It fails closed: a booking
// with any booked seat or any lapsed hold is not extended.
//
// Returns:
//   - time.Time: the new shared expiry.
//   - error: ErrInvalidDuration, ErrBookingNotFound, ErrNoActiveHold or
//     ErrHoldNotExtendable.
func (s *Service) ExtendHold(ctx context.Context, bookingID uuid.UUID, delta time.Duration) (time.Time, error) {
	const op = "seats.Service.ExtendHold"

	if delta <= 0 {
		return time.Time{}, fmt.Errorf("%s: %w", op, ErrInvalidDuration)
	}

	expiry, showtimeID, err := s.ledger.ExtendHold(ctx, bookingID, delta)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return time.Time{}, fmt.Errorf("%s: %w", op, ErrBookingNotFound)
		case errors.Is(err, repository.ErrNoActiveHold):
			return time.Time{}, fmt.Errorf("%s: %w", op, ErrNoActiveHold)
		case errors.Is(err, repository.ErrHoldNotExtendable):
			return time.Time{}, fmt.Errorf("%s: %w", op, ErrHoldNotExtendable)
		}
		return time.Time{}, fmt.Errorf("%s: %w", op, err)
	}

	s.notifyShowtime(ctx, showtimeID)

	return expiry, nil
}

// CheckAvailability reports whether every requested seat is free right now.
// The answer is advisory: only placing the hold decides.
//
// Returns:
//   - bool: true when no requested seat carries a live claim.
//   - []domain.Seat: the seats that are taken, empty when available.
func (s *Service) CheckAvailability(ctx context.Context, showtimeID int64, seats []domain.Seat) (bool, []domain.Seat, error) {
	const op = "seats.Service.CheckAvailability"

	if _, err := s.showtime(ctx, showtimeID); err != nil {
		return false, nil, fmt.Errorf("%s: %w", op, err)
	}

	taken, err := s.claims.ConflictingSeats(ctx, showtimeID, seats)
	if err != nil {
		return false, nil, fmt.Errorf("%s: %w", op, err)
	}

	return len(taken) == 0, taken, nil
}

// SeatMap renders the full grid of a showtime with the state of every
// position. Callers may override the grid shape with rows/cols; otherwise it
// is resolved from the Theatre Service. The result is cached briefly per
// showtime, keyed only when the upstream grid is used.
func (s *Service) SeatMap(ctx context.Context, showtimeID int64, rows []string, cols int) ([]domain.SeatMapEntry, error) {
	const op = "seats.Service.SeatMap"

	override := len(rows) > 0 && cols > 0

	var ref *domain.ShowtimeRef
	if override {
		ref = &domain.ShowtimeRef{ID: showtimeID, Rows: rows, Cols: cols}
	} else {
		var err error
		ref, err = s.showtime(ctx, showtimeID)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	loader := func(ctx context.Context) ([]domain.SeatMapEntry, error) {
		return s.buildSeatMap(ctx, ref)
	}

	var out []domain.SeatMapEntry
	var err error
	if s.cache != nil && !override {
		out, err = redisrepo.GetOrSetJSON(ctx, s.cache, redisx.KeySeatMap(showtimeID), seatViewTTL, loader)
	} else {
		out, err = loader(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return out, nil
}

// ClaimedSeats lists only the grid positions that carry a live claim, with
// their projected state. The result is cached briefly per showtime.
func (s *Service) ClaimedSeats(ctx context.Context, showtimeID int64) ([]domain.SeatMapEntry, error) {
	const op = "seats.Service.ClaimedSeats"

	loader := func(ctx context.Context) ([]domain.SeatMapEntry, error) {
		claims, err := s.claims.ActiveClaims(ctx, showtimeID)
		if err != nil {
			return nil, err
		}
		out := make([]domain.SeatMapEntry, 0, len(claims))
		for _, c := range claims {
			out = append(out, domain.SeatMapEntry{
				Row:    c.Seat.Row,
				Col:    c.Seat.Col,
				Status: projectState(c.Status),
			})
		}
		return out, nil
	}

	var out []domain.SeatMapEntry
	var err error
	if s.cache != nil {
		out, err = redisrepo.GetOrSetJSON(ctx, s.cache, redisx.KeyBookedSeats(showtimeID), seatViewTTL, loader)
	} else {
		out, err = loader(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return out, nil
}

func (s *Service) showtime(ctx context.Context, showtimeID int64) (*domain.ShowtimeRef, error) {
	ref, err := s.theatre.GetShowtime(ctx, showtimeID)
	if err != nil {
		if errors.Is(err, clients.ErrShowtimeNotFound) {
			return nil, fmt.Errorf("showtime %d: %w", showtimeID, ErrShowtimeNotFound)
		}
		return nil, err
	}
	return ref, nil
}

func (s *Service) buildSeatMap(ctx context.Context, ref *domain.ShowtimeRef) ([]domain.SeatMapEntry, error) {
	claims, err := s.claims.ActiveClaims(ctx, ref.ID)
	if err != nil {
		return nil, err
	}

	states := make(map[string]domain.SeatState, len(claims))
	for _, c := range claims {
		states[c.Seat.String()] = projectState(c.Status)
	}

	out := make([]domain.SeatMapEntry, 0, len(ref.Rows)*ref.Cols)
	for _, row := range ref.Rows {
		for col := 1; col <= ref.Cols; col++ {
			seat := domain.Seat{Row: row, Col: col}
			state, claimed := states[seat.String()]
			if !claimed {
				state = domain.SeatFree
			}
			out = append(out, domain.SeatMapEntry{Row: row, Col: col, Status: state})
		}
	}

	return out, nil
}

func projectState(cs domain.ClaimStatus) domain.SeatState {
	switch cs {
	case domain.ClaimBooked:
		return domain.SeatBooked
	case domain.ClaimOnHold:
		return domain.SeatOnHold
	default:
		return domain.SeatFree
	}
}

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
