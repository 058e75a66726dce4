package seats

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Cloud-Computing-Blue-Cloud/Booking-Service/internal/domain"
	"github.com/Cloud-Computing-Blue-Cloud/Booking-Service/internal/repository"
)

type ledgerMock struct {
	mock.Mock
}

func (m *ledgerMock) ExtendHold(ctx context.Context, bookingID uuid.UUID, delta time.Duration) (time.Time, int64, error) {
	args := m.Called(ctx, bookingID, delta)
	return args.Get(0).(time.Time), args.Get(1).(int64), args.Error(2)
}

type claimsMock struct {
	mock.Mock
}

func (m *claimsMock) ActiveClaims(ctx context.Context, showtimeID int64) ([]domain.SeatClaim, error) {
	args := m.Called(ctx, showtimeID)
	if c := args.Get(0); c != nil {
		return c.([]domain.SeatClaim), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *claimsMock) ConflictingSeats(ctx context.Context, showtimeID int64, seats []domain.Seat) ([]domain.Seat, error) {
	args := m.Called(ctx, showtimeID, seats)
	if s := args.Get(0); s != nil {
		return s.([]domain.Seat), args.Error(1)
	}
	return nil, args.Error(1)
}

type theatreMock struct {
	mock.Mock
}

func (m *theatreMock) GetShowtime(ctx context.Context, showtimeID int64) (*domain.ShowtimeRef, error) {
	args := m.Called(ctx, showtimeID)
	if ref := args.Get(0); ref != nil {
		return ref.(*domain.ShowtimeRef), args.Error(1)
	}
	return nil, args.Error(1)
}

func newService(ledger *ledgerMock, claims *claimsMock, theatre *theatreMock) *Service {
	return New(ledger, claims, theatre, nil, nil, nil)
}

func TestExtendHold(t *testing.T) {
	ctx := context.Background()
	bookingID := uuid.New()

	t.Run("pushes the expiry forward", func(t *testing.T) {
		ledger := new(ledgerMock)
		newExpiry := time.Now().UTC().Add(15 * time.Minute)
		ledger.On("ExtendHold", ctx, bookingID, 5*time.Minute).
			Return(newExpiry, int64(7), nil)

		svc := newService(ledger, new(claimsMock), new(theatreMock))

		got, err := svc.ExtendHold(ctx, bookingID, 5*time.Minute)
		require.NoError(t, err)
		assert.Equal(t, newExpiry, got)
		ledger.AssertExpectations(t)
	})

	t.Run("rejects non-positive extensions", func(t *testing.T) {
		svc := newService(new(ledgerMock), new(claimsMock), new(theatreMock))

		_, err := svc.ExtendHold(ctx, bookingID, 0)
		assert.ErrorIs(t, err, ErrInvalidDuration)
	})

	t.Run("fails closed on partially booked claims", func(t *testing.T) {
		ledger := new(ledgerMock)
		ledger.On("ExtendHold", ctx, bookingID, 5*time.Minute).
			Return(time.Time{}, int64(0), repository.ErrHoldNotExtendable)

		svc := newService(ledger, new(claimsMock), new(theatreMock))

		_, err := svc.ExtendHold(ctx, bookingID, 5*time.Minute)
		assert.ErrorIs(t, err, ErrHoldNotExtendable)
	})

	t.Run("no active hold", func(t *testing.T) {
		ledger := new(ledgerMock)
		ledger.On("ExtendHold", ctx, bookingID, 5*time.Minute).
			Return(time.Time{}, int64(0), repository.ErrNoActiveHold)

		svc := newService(ledger, new(claimsMock), new(theatreMock))

		_, err := svc.ExtendHold(ctx, bookingID, 5*time.Minute)
		assert.ErrorIs(t, err, ErrNoActiveHold)
	})
}

func TestCheckAvailability(t *testing.T) {
	ctx := context.Background()
	ref := &domain.ShowtimeRef{ID: 7, Rows: []string{"A", "B"}, Cols: 4}
	seats := []domain.Seat{{Row: "A", Col: 1}, {Row: "A", Col: 2}}

	t.Run("all free", func(t *testing.T) {
		theatre := new(theatreMock)
		theatre.On("GetShowtime", ctx, int64(7)).Return(ref, nil)
		claims := new(claimsMock)
		claims.On("ConflictingSeats", ctx, int64(7), seats).Return([]domain.Seat{}, nil)

		svc := newService(new(ledgerMock), claims, theatre)

		ok, taken, err := svc.CheckAvailability(ctx, 7, seats)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Empty(t, taken)
	})

	t.Run("reports taken seats", func(t *testing.T) {
		theatre := new(theatreMock)
		theatre.On("GetShowtime", ctx, int64(7)).Return(ref, nil)
		claims := new(claimsMock)
		claims.On("ConflictingSeats", ctx, int64(7), seats).
			Return([]domain.Seat{{Row: "A", Col: 2}}, nil)

		svc := newService(new(ledgerMock), claims, theatre)

		ok, taken, err := svc.CheckAvailability(ctx, 7, seats)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Equal(t, []domain.Seat{{Row: "A", Col: 2}}, taken)
	})
}

func TestSeatMap(t *testing.T) {
	ctx := context.Background()
	ref := &domain.ShowtimeRef{ID: 7, Rows: []string{"A", "B"}, Cols: 2}

	theatre := new(theatreMock)
	theatre.On("GetShowtime", ctx, int64(7)).Return(ref, nil)

	claims := new(claimsMock)
	claims.On("ActiveClaims", ctx, int64(7)).Return([]domain.SeatClaim{
		{Seat: domain.Seat{Row: "A", Col: 1}, Status: domain.ClaimBooked},
		{Seat: domain.Seat{Row: "B", Col: 2}, Status: domain.ClaimOnHold},
	}, nil)

	svc := newService(new(ledgerMock), claims, theatre)

	entries, err := svc.SeatMap(ctx, 7, nil, 0)
	require.NoError(t, err)
	require.Len(t, entries, 4)

	byName := make(map[string]domain.SeatState, len(entries))
	for _, e := range entries {
		byName[domain.Seat{Row: e.Row, Col: e.Col}.String()] = e.Status
	}
	assert.Equal(t, domain.SeatBooked, byName["A1"])
	assert.Equal(t, domain.SeatFree, byName["A2"])
	assert.Equal(t, domain.SeatFree, byName["B1"])
	assert.Equal(t, domain.SeatOnHold, byName["B2"])
}

func TestSeatMap_GridOverrideSkipsUpstream(t *testing.T) {
	ctx := context.Background()

	claims := new(claimsMock)
	claims.On("ActiveClaims", ctx, int64(7)).Return([]domain.SeatClaim{}, nil)

	theatre := new(theatreMock)
	svc := newService(new(ledgerMock), claims, theatre)

	entries, err := svc.SeatMap(ctx, 7, []string{"A"}, 2)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
	theatre.AssertNotCalled(t, "GetShowtime", mock.Anything, mock.Anything)
}

func TestClaimedSeats(t *testing.T) {
	ctx := context.Background()

	claims := new(claimsMock)
	claims.On("ActiveClaims", ctx, int64(7)).Return([]domain.SeatClaim{
		{Seat: domain.Seat{Row: "C", Col: 3}, Status: domain.ClaimBooked},
	}, nil)

	svc := newService(new(ledgerMock), claims, new(theatreMock))

	entries, err := svc.ClaimedSeats(ctx, 7)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "C", entries[0].Row)
	assert.Equal(t, 3, entries[0].Col)
	assert.Equal(t, domain.SeatBooked, entries[0].Status)
}
