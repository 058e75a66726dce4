package booking

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Cloud-Computing-Blue-Cloud/Booking-Service/internal/config"
	"github.com/Cloud-Computing-Blue-Cloud/Booking-Service/internal/domain"
	"github.com/Cloud-Computing-Blue-Cloud/Booking-Service/internal/repository"
	"github.com/Cloud-Computing-Blue-Cloud/Booking-Service/internal/service/payment"
)

type ledgerMock struct {
	mock.Mock
}

func (m *ledgerMock) PlaceHold(ctx context.Context, b *domain.Booking, seats []domain.Seat, ttl time.Duration) (time.Time, error) {
	args := m.Called(ctx, b, seats, ttl)
	return args.Get(0).(time.Time), args.Error(1)
}

func (m *ledgerMock) Confirm(ctx context.Context, bookingID, paymentID uuid.UUID) (*domain.Booking, error) {
	args := m.Called(ctx, bookingID, paymentID)
	if b := args.Get(0); b != nil {
		return b.(*domain.Booking), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *ledgerMock) Cancel(ctx context.Context, bookingID uuid.UUID) (*domain.Booking, *uuid.UUID, error) {
	args := m.Called(ctx, bookingID)
	var b *domain.Booking
	if v := args.Get(0); v != nil {
		b = v.(*domain.Booking)
	}
	var refunded *uuid.UUID
	if v := args.Get(1); v != nil {
		refunded = v.(*uuid.UUID)
	}
	return b, refunded, args.Error(2)
}

func (m *ledgerMock) SoftDelete(ctx context.Context, bookingID uuid.UUID) error {
	args := m.Called(ctx, bookingID)
	return args.Error(0)
}

type readerMock struct {
	mock.Mock
}

func (m *readerMock) Get(ctx context.Context, id uuid.UUID, includeDeleted bool) (*domain.BookingWithSeats, error) {
	args := m.Called(ctx, id, includeDeleted)
	if bw := args.Get(0); bw != nil {
		return bw.(*domain.BookingWithSeats), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *readerMock) ListByUser(ctx context.Context, userID int64, includeCancelled bool) ([]domain.Booking, error) {
	args := m.Called(ctx, userID, includeCancelled)
	if list := args.Get(0); list != nil {
		return list.([]domain.Booking), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *readerMock) ConflictingSeats(ctx context.Context, showtimeID int64, seats []domain.Seat) ([]domain.Seat, error) {
	args := m.Called(ctx, showtimeID, seats)
	if s := args.Get(0); s != nil {
		return s.([]domain.Seat), args.Error(1)
	}
	return nil, args.Error(1)
}

type showtimesMock struct {
	mock.Mock
}

func (m *showtimesMock) Ensure(ctx context.Context, ref domain.ShowtimeRef) error {
	args := m.Called(ctx, ref)
	return args.Error(0)
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

type usersMock struct {
	mock.Mock
}

func (m *usersMock) UserExists(ctx context.Context, userID int64) (bool, error) {
	args := m.Called(ctx, userID)
	return args.Bool(0), args.Error(1)
}

type paymentsMock struct {
	mock.Mock
}

func (m *paymentsMock) Create(ctx context.Context, amountCents int64, createdBy int64) (*domain.Payment, error) {
	args := m.Called(ctx, amountCents, createdBy)
	if p := args.Get(0); p != nil {
		return p.(*domain.Payment), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *paymentsMock) Process(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	args := m.Called(ctx, id)
	if p := args.Get(0); p != nil {
		return p.(*domain.Payment), args.Error(1)
	}
	return nil, args.Error(1)
}

type fixture struct {
	ledger    *ledgerMock
	reader    *readerMock
	showtimes *showtimesMock
	theatre   *theatreMock
	users     *usersMock
	payments  *paymentsMock
	svc       *Service
}

func newFixture() *fixture {
	f := &fixture{
		ledger:    new(ledgerMock),
		reader:    new(readerMock),
		showtimes: new(showtimesMock),
		theatre:   new(theatreMock),
		users:     new(usersMock),
		payments:  new(paymentsMock),
	}
	cfg := config.BookingConfig{
		HoldTTL:        10 * time.Minute,
		MaxSeats:       10,
		SeatPriceCents: 1000,
	}
	f.svc = New(cfg, f.ledger, f.reader, f.showtimes, f.theatre, f.users, f.payments, nil, nil, nil)
	return f
}

func grid() *domain.ShowtimeRef {
	return &domain.ShowtimeRef{
		ID:   7,
		Rows: []string{"A", "B", "C"},
		Cols: 10,
	}
}

func TestCreate_PlacesHold(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	seats := []domain.Seat{{Row: "A", Col: 1}, {Row: "A", Col: 2}}
	expires := time.Now().UTC().Add(10 * time.Minute)

	f.users.On("UserExists", ctx, int64(42)).Return(true, nil)
	f.theatre.On("GetShowtime", ctx, int64(7)).Return(grid(), nil)
	f.showtimes.On("Ensure", ctx, *grid()).Return(nil)
	f.ledger.On("PlaceHold", ctx, mock.AnythingOfType("*domain.Booking"), seats, 10*time.Minute).
		Return(expires, nil)

	res, err := f.svc.Create(ctx, 42, 7, seats)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingPending, res.Booking.Status)
	assert.Equal(t, int64(42), res.Booking.UserID)
	assert.Equal(t, expires, res.ExpiresAt)
	assert.Equal(t, int64(2000), res.TotalCents)
	f.ledger.AssertExpectations(t)
}

func TestCreate_Validation(t *testing.T) {
	ctx := context.Background()

	cases := []struct {
		name  string
		seats []domain.Seat
	}{
		{"no seats", nil},
		{"duplicate seats", []domain.Seat{{Row: "A", Col: 1}, {Row: "A", Col: 1}}},
		{"bad row", []domain.Seat{{Row: "AA", Col: 1}}},
		{"bad column", []domain.Seat{{Row: "A", Col: 0}}},
		{"too many seats", func() []domain.Seat {
			out := make([]domain.Seat, 11)
			for i := range out {
				out[i] = domain.Seat{Row: "A", Col: i + 1}
			}
			return out
		}()},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture()
			_, err := f.svc.Create(ctx, 42, 7, tc.seats)
			var ve *ValidationError
			assert.ErrorAs(t, err, &ve)
			f.ledger.AssertNotCalled(t, "PlaceHold",
				mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestCreate_SeatOutsideGrid(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	f.users.On("UserExists", ctx, int64(42)).Return(true, nil)
	f.theatre.On("GetShowtime", ctx, int64(7)).Return(grid(), nil)

	_, err := f.svc.Create(ctx, 42, 7, []domain.Seat{{Row: "Z", Col: 1}})
	var ve *ValidationError
	assert.ErrorAs(t, err, &ve)
}

func TestCreate_UnknownUser(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	f.users.On("UserExists", ctx, int64(42)).Return(false, nil)

	_, err := f.svc.Create(ctx, 42, 7, []domain.Seat{{Row: "A", Col: 1}})
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestCreate_AllOrNothingConflict(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	seats := []domain.Seat{{Row: "A", Col: 1}, {Row: "A", Col: 2}}
	taken := []domain.Seat{{Row: "A", Col: 2}}

	f.users.On("UserExists", ctx, int64(42)).Return(true, nil)
	f.theatre.On("GetShowtime", ctx, int64(7)).Return(grid(), nil)
	f.showtimes.On("Ensure", ctx, *grid()).Return(nil)
	f.ledger.On("PlaceHold", ctx, mock.Anything, seats, mock.Anything).
		Return(time.Time{}, &repository.SeatsConflictError{Seats: taken})

	_, err := f.svc.Create(ctx, 42, 7, seats)

	var sce *SeatsConflictError
	require.ErrorAs(t, err, &sce)
	assert.Equal(t, taken, sce.Seats)
	assert.ErrorIs(t, err, ErrSeatsUnavailable)
}

func TestCreate_UniqueIndexRace(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	seats := []domain.Seat{{Row: "B", Col: 3}}

	f.users.On("UserExists", ctx, int64(42)).Return(true, nil)
	f.theatre.On("GetShowtime", ctx, int64(7)).Return(grid(), nil)
	f.showtimes.On("Ensure", ctx, *grid()).Return(nil)
	f.ledger.On("PlaceHold", ctx, mock.Anything, seats, mock.Anything).
		Return(time.Time{}, repository.ErrConflict)
	f.reader.On("ConflictingSeats", ctx, int64(7), seats).Return(seats, nil)

	_, err := f.svc.Create(ctx, 42, 7, seats)

	var sce *SeatsConflictError
	require.ErrorAs(t, err, &sce)
	assert.Equal(t, seats, sce.Seats)
}

func TestConfirm(t *testing.T) {
	ctx := context.Background()
	bookingID := uuid.New()
	paymentID := uuid.New()

	t.Run("maps ledger errors", func(t *testing.T) {
		cases := []struct {
			name string
			in   error
			want error
		}{
			{"unknown booking", repository.ErrNotFound, ErrBookingNotFound},
			{"unknown payment", repository.ErrPaymentNotFound, ErrPaymentNotFound},
			{"cancelled booking", repository.ErrInvalidTransition, ErrInvalidTransition},
			{"pending payment", repository.ErrPaymentIncomplete, ErrPaymentIncomplete},
			{"hold already released", repository.ErrNoActiveHold, ErrHoldExpired},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				f := newFixture()
				f.ledger.On("Confirm", ctx, bookingID, paymentID).Return(nil, tc.in)

				_, err := f.svc.Confirm(ctx, bookingID, paymentID)
				assert.ErrorIs(t, err, tc.want)
			})
		}
	})

	t.Run("returns the confirmed booking", func(t *testing.T) {
		f := newFixture()
		confirmed := &domain.Booking{
			ID:         bookingID,
			ShowtimeID: 7,
			Status:     domain.BookingConfirmed,
			PaymentID:  &paymentID,
		}
		f.ledger.On("Confirm", ctx, bookingID, paymentID).Return(confirmed, nil)

		b, err := f.svc.Confirm(ctx, bookingID, paymentID)
		require.NoError(t, err)
		assert.Equal(t, domain.BookingConfirmed, b.Status)
	})
}

func TestCancel_RefundsCompletedPayment(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	bookingID := uuid.New()
	paymentID := uuid.New()

	cancelled := &domain.Booking{ID: bookingID, ShowtimeID: 7, Status: domain.BookingCancelled}
	f.ledger.On("Cancel", ctx, bookingID).Return(cancelled, &paymentID, nil)

	b, refunded, err := f.svc.Cancel(ctx, bookingID)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingCancelled, b.Status)
	require.NotNil(t, refunded)
	assert.Equal(t, paymentID, *refunded)
}

func TestCancel_AlreadyCancelled(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	bookingID := uuid.New()

	f.ledger.On("Cancel", ctx, bookingID).Return(nil, nil, repository.ErrInvalidTransition)

	_, _, err := f.svc.Cancel(ctx, bookingID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func heldBooking(bookingID uuid.UUID) *domain.BookingWithSeats {
	expires := time.Now().UTC().Add(5 * time.Minute)
	return &domain.BookingWithSeats{
		Booking: domain.Booking{
			ID:         bookingID,
			UserID:     42,
			ShowtimeID: 7,
			Status:     domain.BookingPending,
		},
		Seats: []domain.SeatClaim{
			{Seat: domain.Seat{Row: "A", Col: 1}, Status: domain.ClaimOnHold, HoldExpiresAt: &expires},
			{Seat: domain.Seat{Row: "A", Col: 2}, Status: domain.ClaimOnHold, HoldExpiresAt: &expires},
		},
	}
}

func TestComplete_ConfirmsWithCompletedPayment(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	bookingID := uuid.New()
	bw := heldBooking(bookingID)

	p := &domain.Payment{ID: uuid.New(), AmountCents: 2000, Status: domain.PaymentPending, CreatedBy: 42}
	completed := *p
	completed.Status = domain.PaymentCompleted

	f.reader.On("Get", ctx, bookingID, false).Return(bw, nil)
	f.payments.On("Create", ctx, int64(2000), int64(42)).Return(p, nil)
	f.payments.On("Process", ctx, p.ID).Return(&completed, nil)

	confirmed := bw.Booking
	confirmed.Status = domain.BookingConfirmed
	confirmed.PaymentID = &p.ID
	f.ledger.On("Confirm", ctx, bookingID, p.ID).Return(&confirmed, nil)

	out, err := f.svc.Complete(ctx, bookingID)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingConfirmed, out.Booking.Status)
	require.NotNil(t, out.Payment)
	assert.Equal(t, domain.PaymentCompleted, out.Payment.Status)
	for _, c := range out.Seats {
		assert.Equal(t, domain.ClaimBooked, c.Status)
		assert.Nil(t, c.HoldExpiresAt)
	}
}

func TestComplete_DeclinedPaymentLeavesBookingPending(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	bookingID := uuid.New()
	bw := heldBooking(bookingID)

	p := &domain.Payment{ID: uuid.New(), AmountCents: 2000, Status: domain.PaymentPending, CreatedBy: 42}
	failed := *p
	failed.Status = domain.PaymentFailed

	f.reader.On("Get", ctx, bookingID, false).Return(bw, nil)
	f.payments.On("Create", ctx, int64(2000), int64(42)).Return(p, nil)
	f.payments.On("Process", ctx, p.ID).Return(&failed, payment.ErrPaymentDeclined)

	_, err := f.svc.Complete(ctx, bookingID)

	var pfe *PaymentFailedError
	require.ErrorAs(t, err, &pfe)
	assert.Equal(t, domain.PaymentFailed, pfe.Payment.Status)
	f.ledger.AssertNotCalled(t, "Confirm", mock.Anything, mock.Anything, mock.Anything)
}

func TestComplete_AlreadyConfirmedIsNoOp(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	bookingID := uuid.New()

	bw := heldBooking(bookingID)
	bw.Booking.Status = domain.BookingConfirmed

	f.reader.On("Get", ctx, bookingID, false).Return(bw, nil)

	out, err := f.svc.Complete(ctx, bookingID)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingConfirmed, out.Booking.Status)
	f.payments.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
}

func TestComplete_ExpiredHold(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	bookingID := uuid.New()

	bw := heldBooking(bookingID)
	past := time.Now().UTC().Add(-time.Minute)
	for i := range bw.Seats {
		bw.Seats[i].HoldExpiresAt = &past
	}

	f.reader.On("Get", ctx, bookingID, false).Return(bw, nil)

	_, err := f.svc.Complete(ctx, bookingID)
	assert.ErrorIs(t, err, ErrHoldExpired)
	f.payments.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
}

func TestComplete_PartiallyExpiredHoldFailsClosed(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	bookingID := uuid.New()

	bw := heldBooking(bookingID)
	past := time.Now().UTC().Add(-time.Minute)
	bw.Seats[1].HoldExpiresAt = &past

	f.reader.On("Get", ctx, bookingID, false).Return(bw, nil)

	_, err := f.svc.Complete(ctx, bookingID)
	assert.ErrorIs(t, err, ErrHoldExpired)
	f.payments.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
	f.ledger.AssertNotCalled(t, "Confirm", mock.Anything, mock.Anything, mock.Anything)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	bookingID := uuid.New()
	bw := heldBooking(bookingID)

	f.reader.On("Get", ctx, bookingID, false).Return(bw, nil)
	f.ledger.On("SoftDelete", ctx, bookingID).Return(nil)

	err := f.svc.Delete(ctx, bookingID)
	require.NoError(t, err)
	f.ledger.AssertExpectations(t)
}
