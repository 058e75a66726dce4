package httpgin

import (
	"time"

	"github.com/Cloud-Computing-Blue-Cloud/Booking-Service/internal/domain"
)

type SeatInput struct {
	Row string `json:"row" binding:"required"`
	Col int    `json:"col" binding:"required,gt=0"`
}

func toDomainSeats(in []SeatInput) []domain.Seat {
	out := make([]domain.Seat, len(in))
	for i, s := range in {
		out[i] = domain.Seat{Row: s.Row, Col: s.Col}
	}
	return out
}

func fromDomainSeats(in []domain.Seat) []SeatInput {
	out := make([]SeatInput, len(in))
	for i, s := range in {
		out[i] = SeatInput{Row: s.Row, Col: s.Col}
	}
	return out
}

type CreateBookingRequest struct {
	UserID     int64       `json:"user_id" binding:"required"`
	ShowtimeID int64       `json:"showtime_id" binding:"required"`
	Seats      []SeatInput `json:"seats" binding:"required,min=1,dive"`
}

type CreateBookingResponse struct {
	BookingID     string      `json:"booking_id"`
	Status        string      `json:"status"`
	Seats         []SeatInput `json:"seats"`
	HoldExpiresAt time.Time   `json:"hold_expires_at"`
	TotalCents    int64       `json:"total_cents"`
}

type ConfirmBookingRequest struct {
	PaymentID string `json:"payment_id" binding:"required,uuid"`
}

type ExtendHoldRequest struct {
	Minutes int `json:"minutes" binding:"required,gt=0"`
}

type ExtendHoldResponse struct {
	BookingID     string    `json:"booking_id"`
	HoldExpiresAt time.Time `json:"hold_expires_at"`
}

type CheckAvailabilityRequest struct {
	Seats []SeatInput `json:"seats" binding:"required,min=1,dive"`
}

type CheckAvailabilityResponse struct {
	Available        bool        `json:"available"`
	UnavailableSeats []SeatInput `json:"unavailable_seats"`
}

type CreatePaymentRequest struct {
	UserID      int64 `json:"user_id" binding:"required"`
	AmountCents int64 `json:"amount_cents" binding:"required,gt=0"`
}

type SeatClaimView struct {
	Row           string     `json:"row"`
	Col           int        `json:"col"`
	Status        string     `json:"status"`
	HoldExpiresAt *time.Time `json:"hold_expires_at,omitempty"`
}

type PaymentResponse struct {
	PaymentID   string `json:"payment_id"`
	AmountCents int64  `json:"amount_cents"`
	Status      string `json:"status"`
	CreatedBy   int64  `json:"created_by"`
	BookingID   string `json:"booking_id,omitempty"`
}

type BookingResponse struct {
	BookingID   string           `json:"booking_id"`
	UserID      int64            `json:"user_id"`
	ShowtimeID  int64            `json:"showtime_id"`
	Status      string           `json:"status"`
	BookingTime time.Time        `json:"booking_time"`
	Seats       []SeatClaimView  `json:"seats"`
	Payment     *PaymentResponse `json:"payment,omitempty"`
}

type BookingSummary struct {
	BookingID   string    `json:"booking_id"`
	ShowtimeID  int64     `json:"showtime_id"`
	Status      string    `json:"status"`
	BookingTime time.Time `json:"booking_time"`
}

type ErrorResponse struct {
	Error string      `json:"error"`
	Seats []SeatInput `json:"seats,omitempty"`
}

func toPaymentResponse(p *domain.Payment) *PaymentResponse {
	if p == nil {
		return nil
	}
	out := &PaymentResponse{
		PaymentID:   p.ID.String(),
		AmountCents: p.AmountCents,
		Status:      string(p.Status),
		CreatedBy:   p.CreatedBy,
	}
	if p.BookingID != nil {
		out.BookingID = p.BookingID.String()
	}
	return out
}

func toBookingResponse(bw *domain.BookingWithSeats) BookingResponse {
	out := BookingResponse{
		BookingID:   bw.Booking.ID.String(),
		UserID:      bw.Booking.UserID,
		ShowtimeID:  bw.Booking.ShowtimeID,
		Status:      string(bw.Booking.Status),
		BookingTime: bw.Booking.BookingTime,
		Seats:       make([]SeatClaimView, len(bw.Seats)),
		Payment:     toPaymentResponse(bw.Payment),
	}
	for i, c := range bw.Seats {
		out.Seats[i] = SeatClaimView{
			Row:           c.Seat.Row,
			Col:           c.Seat.Col,
			Status:        string(c.Status),
			HoldExpiresAt: c.HoldExpiresAt,
		}
	}
	return out
}

func toBookingSummaries(list []domain.Booking) []BookingSummary {
	out := make([]BookingSummary, len(list))
	for i, b := range list {
		out[i] = BookingSummary{
			BookingID:   b.ID.String(),
			ShowtimeID:  b.ShowtimeID,
			Status:      string(b.Status),
			BookingTime: b.BookingTime,
		}
	}
	return out
}
