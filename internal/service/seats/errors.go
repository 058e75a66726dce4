package seats

import "errors"

var (
	ErrBookingNotFound   = errors.New("booking not found")
	ErrShowtimeNotFound  = errors.New("showtime not found")
	ErrNoActiveHold      = errors.New("no active hold for booking")
	ErrHoldNotExtendable = errors.New("hold is not extendable")
	ErrInvalidDuration   = errors.New("extension must be positive")
)
