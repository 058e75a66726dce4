package booking

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Cloud-Computing-Blue-Cloud/Booking-Service/internal/domain"
)

var (
	ErrBookingNotFound   = errors.New("booking not found")
	ErrShowtimeNotFound  = errors.New("showtime not found")
	ErrUserNotFound      = errors.New("user not found")
	ErrInvalidTransition = errors.New("invalid booking transition")
	ErrPaymentNotFound   = errors.New("payment not found")
	ErrPaymentIncomplete = errors.New("payment is not completed")
	ErrHoldExpired       = errors.New("seat hold has expired")
	ErrSeatsUnavailable  = errors.New("seats unavailable")
	ErrPaymentFailed     = errors.New("payment failed")
)

// ValidationError reports a malformed request: no seats, too many seats,
// duplicates, or a seat outside the showtime grid.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func validationf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// SeatsConflictError names the seats that blocked an all-or-nothing hold.
type SeatsConflictError struct {
	Seats []domain.Seat
}

func (e *SeatsConflictError) Error() string {
	names := make([]string, len(e.Seats))
	for i, s := range e.Seats {
		names[i] = s.String()
	}
	return fmt.Sprintf("seats unavailable: %s", strings.Join(names, ", "))
}

func (e *SeatsConflictError) Unwrap() error { return ErrSeatsUnavailable }

// PaymentFailedError carries the failed payment so the caller can report it.
// The booking itself stays pending with its hold intact.
type PaymentFailedError struct {
	Payment *domain.Payment
}

func (e *PaymentFailedError) Error() string {
	if e.Payment != nil {
		return fmt.Sprintf("payment %s declined", e.Payment.ID)
	}
	return "payment declined"
}

func (e *PaymentFailedError) Unwrap() error { return ErrPaymentFailed }
