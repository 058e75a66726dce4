package service

import (
	"log/slog"

	"github.com/Cloud-Computing-Blue-Cloud/Booking-Service/internal/clients"
	"github.com/Cloud-Computing-Blue-Cloud/Booking-Service/internal/config"
	redisx "github.com/Cloud-Computing-Blue-Cloud/Booking-Service/internal/redis"
	postgresrepo "github.com/Cloud-Computing-Blue-Cloud/Booking-Service/internal/repository/postgres"
	redisrepo "github.com/Cloud-Computing-Blue-Cloud/Booking-Service/internal/repository/redis"
	"github.com/Cloud-Computing-Blue-Cloud/Booking-Service/internal/service/booking"
	"github.com/Cloud-Computing-Blue-Cloud/Booking-Service/internal/service/payment"
	"github.com/Cloud-Computing-Blue-Cloud/Booking-Service/internal/service/seats"
)

type Services struct {
	Booking  *booking.Service
	Payments *payment.Service
	Seats    *seats.Service
}

func NewServices(
	store *postgresrepo.Store,
	cache *redisrepo.Cache,
	pubsub *redisx.ShowtimesPubSub,
	theatre *clients.TheatreClient,
	users *clients.UserClient,
	cfg config.BookingConfig,
	log *slog.Logger,
) *Services {
	payments := payment.New(store.Payments(), &payment.SimulatedGateway{Decline: cfg.PaymentDecline})

	return &Services{
		Booking: booking.New(
			cfg,
			store.Ledger(),
			store.Bookings(),
			store.Showtimes(),
			theatre,
			users,
			payments,
			cache,
			pubsub,
			log,
		),
		Payments: payments,
		Seats: seats.New(
			store.Ledger(),
			store.Bookings(),
			theatre,
			cache,
			pubsub,
			log,
		),
	}
}
