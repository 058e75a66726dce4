package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Booking  BookingConfig
	Services ServicesConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type PostgresConfig struct {
	User     string
	Password string
	Name     string
	Host     string
	Port     int
	SSLMode  string
}

// BookingConfig carries the reservation-engine knobs: hold TTL, request
// limits, pricing and the sweep cadence.
type BookingConfig struct {
	HoldTTL        time.Duration
	MaxSeats       int
	SeatPriceCents int64
	SweepInterval  time.Duration
	PaymentDecline bool
}

// ServicesConfig points at the upstream collaborators. The engine only
// consumes narrow read contracts from them.
type ServicesConfig struct {
	TheatreURL string
	UserURL    string
}

func New() (*Config, error) {
	const op = "config.New"

	_ = godotenv.Load()

	serverHost := os.Getenv("SERVER_HOST")
	if serverHost == "" {
		serverHost = "localhost"
	}

	serverPortStr := os.Getenv("SERVER_PORT")
	if serverPortStr == "" {
		serverPortStr = "8080"
	}

	serverPort, err := strconv.Atoi(serverPortStr)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid SERVER_PORT: %w", op, err)
	}

	serverCfg := ServerConfig{
		Host: serverHost,
		Port: serverPort,
	}

	postgresHost := os.Getenv("POSTGRES_HOST")
	if postgresHost == "" {
		postgresHost = "localhost"
	}

	postgresPortStr := os.Getenv("POSTGRES_PORT")
	if postgresPortStr == "" {
		postgresPortStr = "5432"
	}

	postgresPort, err := strconv.Atoi(postgresPortStr)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid POSTGRES_PORT: %w", op, err)
	}

	postgresUser := os.Getenv("POSTGRES_USER")
	if postgresUser == "" {
		return nil, fmt.Errorf("%s: missing POSTGRES_USER", op)
	}

	postgresPassword := os.Getenv("POSTGRES_PASSWORD")
	if postgresPassword == "" {
		return nil, fmt.Errorf("%s: missing POSTGRES_PASSWORD", op)
	}

	postgresDB := os.Getenv("POSTGRES_DB")
	if postgresDB == "" {
		return nil, fmt.Errorf("%s: missing POSTGRES_DB", op)
	}

	postgresSSLMode := os.Getenv("POSTGRES_SSLMODE")
	if postgresSSLMode == "" {
		postgresSSLMode = "disable"
	}

	postgresCfg := PostgresConfig{
		User:     postgresUser,
		Password: postgresPassword,
		Name:     postgresDB,
		Host:     postgresHost,
		Port:     postgresPort,
		SSLMode:  postgresSSLMode,
	}

	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}

	redisCfg := RedisConfig{
		Addr:     redisAddr,
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       0,
	}

	holdMinutes, err := envInt("SEAT_HOLD_TTL_MINUTES", 10)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	maxSeats, err := envInt("MAX_SEATS_PER_BOOKING", 10)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	seatPrice, err := envInt("SEAT_PRICE_CENTS", 1000)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	sweepSeconds, err := envInt("SWEEP_INTERVAL_SECONDS", 60)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	bookingCfg := BookingConfig{
		HoldTTL:        time.Duration(holdMinutes) * time.Minute,
		MaxSeats:       maxSeats,
		SeatPriceCents: int64(seatPrice),
		SweepInterval:  time.Duration(sweepSeconds) * time.Second,
		PaymentDecline: os.Getenv("PAYMENT_DECLINE") == "true",
	}

	theatreURL := os.Getenv("THEATRE_SERVICE_URL")
	if theatreURL == "" {
		theatreURL = "http://localhost:5002"
	}

	userURL := os.Getenv("USER_SERVICE_URL")
	if userURL == "" {
		userURL = "http://localhost:5004"
	}

	servicesCfg := ServicesConfig{
		TheatreURL: theatreURL,
		UserURL:    userURL,
	}

	return &Config{
		Server:   serverCfg,
		Postgres: postgresCfg,
		Redis:    redisCfg,
		Booking:  bookingCfg,
		Services: servicesCfg,
	}, nil
}

func envInt(name string, def int) (int, error) {
	s := os.Getenv(name)
	if s == "" {
		return def, nil
	}

	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}

	return v, nil
}
