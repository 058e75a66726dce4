package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type ClaimStatus string

const (
	ClaimOnHold   ClaimStatus = "on_hold"
	ClaimBooked   ClaimStatus = "booked"
	ClaimReleased ClaimStatus = "released"
)

type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
	PaymentRefunded  PaymentStatus = "refunded"
)

// SeatState is the client-visible state of a grid position. A seat with no
// active claim is free; active claims project onto on_hold or booked.
type SeatState string

const (
	SeatFree   SeatState = "free"
	SeatOnHold SeatState = "on_hold"
	SeatBooked SeatState = "booked"
)

// Seat identifies a grid position within a showtime: a row letter and a
// 1-based column number.
type Seat struct {
	Row string `json:"row"`
	Col int    `json:"col"`
}

func (s Seat) String() string {
	return fmt.Sprintf("%s%d", s.Row, s.Col)
}

// SeatClaim is the ledger record asserting a seat is not free for a showtime.
// At most one active (non-deleted) claim may exist per (showtime, row, col).
type SeatClaim struct {
	ID            uuid.UUID
	BookingID     uuid.UUID
	ShowtimeID    int64
	Seat          Seat
	Status        ClaimStatus
	HoldExpiresAt *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
	Deleted       bool
}

// HoldExpired reports whether the claim is a hold whose deadline has passed.
func (c SeatClaim) HoldExpired(now time.Time) bool {
	return c.Status == ClaimOnHold && c.HoldExpiresAt != nil && c.HoldExpiresAt.Before(now)
}

type Booking struct {
	ID          uuid.UUID
	UserID      int64
	ShowtimeID  int64
	PaymentID   *uuid.UUID
	Status      BookingStatus
	BookingTime time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Deleted     bool
}

// BookingWithSeats aggregates a booking with its active seat claims and the
// attached payment, if any.
type BookingWithSeats struct {
	Booking Booking
	Seats   []SeatClaim
	Payment *Payment
}

type Payment struct {
	ID          uuid.UUID
	AmountCents int64
	Status      PaymentStatus
	CreatedBy   int64
	BookingID   *uuid.UUID
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Deleted     bool
}

// ShowtimeRef is the local reference to a showtime owned by the Theatre
// Service. Only the grid shape and the booked-seat counter are consumed here.
type ShowtimeRef struct {
	ID          int64
	Rows        []string
	Cols        int
	SeatsBooked int
}

// Contains reports whether the seat lies within the showtime grid.
func (s ShowtimeRef) Contains(seat Seat) bool {
	if seat.Col < 1 || seat.Col > s.Cols {
		return false
	}
	for _, r := range s.Rows {
		if r == seat.Row {
			return true
		}
	}
	return false
}

// SeatMapEntry is one cell of a showtime seat map.
type SeatMapEntry struct {
	Row    string    `json:"row"`
	Col    int       `json:"col"`
	Status SeatState `json:"status"`
}
