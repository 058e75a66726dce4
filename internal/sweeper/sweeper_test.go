package sweeper

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type ledgerMock struct {
	mock.Mock
}

func (m *ledgerMock) ExpiredHoldBookings(ctx context.Context) ([]uuid.UUID, error) {
	args := m.Called(ctx)
	if ids := args.Get(0); ids != nil {
		return ids.([]uuid.UUID), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *ledgerMock) ExpireBooking(ctx context.Context, bookingID uuid.UUID) (bool, int64, error) {
	args := m.Called(ctx, bookingID)
	return args.Bool(0), args.Get(1).(int64), args.Error(2)
}

func TestSweep_ExpiresLapsedHolds(t *testing.T) {
	ctx := context.Background()
	a, b := uuid.New(), uuid.New()

	ledger := new(ledgerMock)
	ledger.On("ExpiredHoldBookings", ctx).Return([]uuid.UUID{a, b}, nil)
	ledger.On("ExpireBooking", ctx, a).Return(true, int64(7), nil)
	ledger.On("ExpireBooking", ctx, b).Return(true, int64(7), nil)

	s := New(ledger, nil, nil, time.Minute, nil)

	swept, err := s.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, swept)
	ledger.AssertExpectations(t)
}

func TestSweep_LosesRaceGracefully(t *testing.T) {
	ctx := context.Background()
	a := uuid.New()

	ledger := new(ledgerMock)
	ledger.On("ExpiredHoldBookings", ctx).Return([]uuid.UUID{a}, nil)
	// A user confirmed the booking between the listing and the sweep.
	ledger.On("ExpireBooking", ctx, a).Return(false, int64(0), nil)

	s := New(ledger, nil, nil, time.Minute, nil)

	swept, err := s.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, swept)
}

func TestSweep_OneFailureDoesNotBlockTheRest(t *testing.T) {
	ctx := context.Background()
	a, b := uuid.New(), uuid.New()

	ledger := new(ledgerMock)
	ledger.On("ExpiredHoldBookings", ctx).Return([]uuid.UUID{a, b}, nil)
	ledger.On("ExpireBooking", ctx, a).Return(false, int64(0), errors.New("db hiccup"))
	ledger.On("ExpireBooking", ctx, b).Return(true, int64(9), nil)

	s := New(ledger, nil, nil, time.Minute, nil)

	swept, err := s.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, swept)
	ledger.AssertExpectations(t)
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	ledger := new(ledgerMock)
	ledger.On("ExpiredHoldBookings", mock.Anything).Return([]uuid.UUID{}, nil)

	s := New(ledger, nil, nil, 10*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop after cancellation")
	}
}
