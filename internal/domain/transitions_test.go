package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBookingTransitions(t *testing.T) {
	cases := []struct {
		from, to BookingStatus
		want     bool
	}{
		{BookingPending, BookingConfirmed, true},
		{BookingPending, BookingCancelled, true},
		{BookingConfirmed, BookingCancelled, true},
		{BookingConfirmed, BookingConfirmed, false},
		{BookingCancelled, BookingPending, false},
		{BookingCancelled, BookingConfirmed, false},
		{BookingCancelled, BookingCancelled, false},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, tc.from.CanTransitionTo(tc.to),
			"%s -> %s", tc.from, tc.to)
	}

	assert.False(t, BookingPending.Terminal())
	assert.False(t, BookingConfirmed.Terminal())
	assert.True(t, BookingCancelled.Terminal())
}

func TestPaymentTransitions(t *testing.T) {
	cases := []struct {
		from, to PaymentStatus
		want     bool
	}{
		{PaymentPending, PaymentCompleted, true},
		{PaymentPending, PaymentFailed, true},
		{PaymentCompleted, PaymentRefunded, true},
		{PaymentPending, PaymentRefunded, false},
		{PaymentFailed, PaymentCompleted, false},
		{PaymentRefunded, PaymentCompleted, false},
		{PaymentCompleted, PaymentPending, false},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, tc.from.CanTransitionTo(tc.to),
			"%s -> %s", tc.from, tc.to)
	}

	assert.True(t, PaymentFailed.Terminal())
	assert.True(t, PaymentRefunded.Terminal())
	assert.False(t, PaymentPending.Terminal())
}

func TestSeatString(t *testing.T) {
	assert.Equal(t, "A1", Seat{Row: "A", Col: 1}.String())
	assert.Equal(t, "C12", Seat{Row: "C", Col: 12}.String())
}

func TestShowtimeRefContains(t *testing.T) {
	ref := ShowtimeRef{ID: 1, Rows: []string{"A", "B"}, Cols: 5}

	assert.True(t, ref.Contains(Seat{Row: "A", Col: 1}))
	assert.True(t, ref.Contains(Seat{Row: "B", Col: 5}))
	assert.False(t, ref.Contains(Seat{Row: "C", Col: 1}))
	assert.False(t, ref.Contains(Seat{Row: "A", Col: 0}))
	assert.False(t, ref.Contains(Seat{Row: "A", Col: 6}))
}

func TestSeatClaimHoldExpired(t *testing.T) {
	now := time.Now().UTC()
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	assert.True(t, SeatClaim{Status: ClaimOnHold, HoldExpiresAt: &past}.HoldExpired(now))
	assert.False(t, SeatClaim{Status: ClaimOnHold, HoldExpiresAt: &future}.HoldExpired(now))
	assert.False(t, SeatClaim{Status: ClaimBooked}.HoldExpired(now))
	assert.False(t, SeatClaim{Status: ClaimOnHold}.HoldExpired(now))
}
