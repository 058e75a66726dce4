package repository

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Cloud-Computing-Blue-Cloud/Booking-Service/internal/domain"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrPaymentNotFound   = errors.New("payment not found")
	ErrConflict          = errors.New("conflict")
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrPaymentIncomplete = errors.New("payment is not completed")
	ErrHoldNotExtendable = errors.New("hold is not extendable")
	ErrNoActiveHold      = errors.New("no active hold for booking")
)

// SeatsConflictError reports which requested seats already carry an active
// claim. It wraps ErrConflict so callers can match either way.
type SeatsConflictError struct {
	Seats []domain.Seat
}

func (e *SeatsConflictError) Error() string {
	names := make([]string, len(e.Seats))
	for i, s := range e.Seats {
		names[i] = s.String()
	}
	return fmt.Sprintf("seats already claimed: %s", strings.Join(names, ", "))
}

func (e *SeatsConflictError) Unwrap() error { return ErrConflict }
