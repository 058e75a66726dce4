package redisx

import "fmt"

const ns = "booking:v1"

func KeySeatMap(showtimeID int64) string {
	return fmt.Sprintf("%s:showtime:%d:seatmap", ns, showtimeID)
}

func KeyBookedSeats(showtimeID int64) string {
	return fmt.Sprintf("%s:showtime:%d:claims", ns, showtimeID)
}

func KeyIdemBooking(showtimeID int64, idemKey string) string {
	return fmt.Sprintf("%s:idem:bookings:%d:%s", ns, showtimeID, idemKey)
}

func KeyRateLimit(scope, id string) string {
	return fmt.Sprintf("%s:rl:%s:%s", ns, scope, id)
}

func ChannelShowtimesChanged() string {
	return ns + ":showtimes:changed"
}
