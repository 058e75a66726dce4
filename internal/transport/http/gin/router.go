package httpgin

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	redisx "github.com/Cloud-Computing-Blue-Cloud/Booking-Service/internal/redis"
	redisrepo "github.com/Cloud-Computing-Blue-Cloud/Booking-Service/internal/repository/redis"
	"github.com/Cloud-Computing-Blue-Cloud/Booking-Service/internal/service"
	"github.com/Cloud-Computing-Blue-Cloud/Booking-Service/internal/service/booking"
	"github.com/Cloud-Computing-Blue-Cloud/Booking-Service/internal/service/payment"
	"github.com/Cloud-Computing-Blue-Cloud/Booking-Service/internal/service/seats"
)

func NewRouter(
	svcs *service.Services,
	idem *redisrepo.IdempotencyStore,
	limiter *redisrepo.SlidingWindowLimiter,
	logger *slog.Logger,
	middlewares ...gin.HandlerFunc,
) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery(), LoggingMiddleware(logger), RequestIDMiddleware(), CORS())
	for _, m := range middlewares {
		if m != nil {
			r.Use(m)
		}
	}

	// Swagger UI
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// health
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	{
		api.POST("/bookings", RateLimitMiddleware(limiter), handleCreateBooking(svcs, idem))
		api.GET("/bookings/:id", handleGetBooking(svcs))
		api.DELETE("/bookings/:id", handleDeleteBooking(svcs))
		api.POST("/bookings/:id/confirm", handleConfirmBooking(svcs))
		api.POST("/bookings/:id/cancel", handleCancelBooking(svcs))
		api.POST("/bookings/:id/complete", handleCompleteBooking(svcs))
		api.POST("/bookings/:id/extend-hold", handleExtendHold(svcs))

		api.GET("/users/:id/bookings", handleListUserBookings(svcs))

		api.GET("/showtimes/:id/seat-map", handleSeatMap(svcs))
		api.GET("/showtimes/:id/seats", handleClaimedSeats(svcs))
		api.POST("/showtimes/:id/check-availability", handleCheckAvailability(svcs))

		api.POST("/payments", handleCreatePayment(svcs))
		api.GET("/payments/:id", handleGetPayment(svcs))
		api.POST("/payments/:id/process", handleProcessPayment(svcs))
		api.POST("/payments/:id/fail", handleFailPayment(svcs))
		api.POST("/payments/:id/refund", handleRefundPayment(svcs))
	}

	return r
}

// --- Handlers with Swagger annotations ---

// @Summary  Create booking with seat holds (idempotent)
// @Param    req body  CreateBookingRequest true "payload"
// @Header   202 {string} Idempotency-Key "echo"
// @Success  202 {object} CreateBookingResponse
// @Failure  400 {object} ErrorResponse
// @Failure  404 {object} ErrorResponse "user or showtime not found"
// @Failure  409 {object} ErrorResponse "seats unavailable / idem in progress"
// @Failure  429 {object} ErrorResponse "rate limited"
// @Router   /api/bookings [post]
func handleCreateBooking(
	svcs *service.Services,
	idem *redisrepo.IdempotencyStore,
) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateBookingRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		idemKey := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
		var idemStorageKey string
		if idem != nil && idemKey != "" {
			idemStorageKey = redisx.KeyIdemBooking(req.ShowtimeID, idemKey)

			if payload, ok, _ := idem.GetResult(
				c.Request.Context(),
				idemStorageKey,
			); ok {
				c.Header("Idempotency-Key", idemKey)
				c.Data(
					http.StatusAccepted,
					"application/json; charset=utf-8",
					[]byte(payload),
				)
				return
			}

			locked, err := idem.AcquireLock(
				c.Request.Context(),
				idemStorageKey,
				60*time.Second,
			)
			if err != nil {
				respondErr(c, err)
				return
			}
			if !locked {
				if payload, ok, _ := idem.GetResult(
					c.Request.Context(),
					idemStorageKey,
				); ok {
					c.Header("Idempotency-Key", idemKey)
					c.Data(
						http.StatusAccepted,
						"application/json; charset=utf-8",
						[]byte(payload),
					)
					return
				}
				c.Header("Retry-After", "1")
				c.JSON(
					http.StatusConflict,
					ErrorResponse{Error: "idempotency key in progress"},
				)
				return
			}
		}

		res, err := svcs.Booking.Create(
			c.Request.Context(),
			req.UserID,
			req.ShowtimeID,
			toDomainSeats(req.Seats),
		)
		if err != nil {
			if idemStorageKey != "" && idem != nil {
				_ = idem.Release(c.Request.Context(), idemStorageKey)
			}
			respondErr(c, err)
			return
		}

		resp := CreateBookingResponse{
			BookingID:     res.Booking.ID.String(),
			Status:        string(res.Booking.Status),
			Seats:         fromDomainSeats(res.Seats),
			HoldExpiresAt: res.ExpiresAt,
			TotalCents:    res.TotalCents,
		}

		if idemStorageKey != "" && idem != nil {
			b, _ := json.Marshal(resp)
			_ = idem.SaveResult(c.Request.Context(), idemStorageKey, string(b))
			c.Header("Idempotency-Key", idemKey)
		}

		c.JSON(http.StatusAccepted, resp)
	}
}

// @Summary  Get booking with seats and payment
// @Param    id  path  string  true  "Booking ID (uuid)"
// @Success  200 {object} BookingResponse
// @Failure  404 {object} ErrorResponse
// @Router   /api/bookings/{id} [get]
func handleGetBooking(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		bookingID, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		bw, err := svcs.Booking.Get(c.Request.Context(), bookingID)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, toBookingResponse(bw))
	}
}

// @Summary  Soft-delete booking
// @Param    id  path  string  true  "Booking ID (uuid)"
// @Success  204
// @Failure  404 {object} ErrorResponse
// @Router   /api/bookings/{id} [delete]
func handleDeleteBooking(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		bookingID, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		if err := svcs.Booking.Delete(c.Request.Context(), bookingID); err != nil {
			respondErr(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// @Summary  Confirm booking against a completed payment
// @Param    id  path  string  true  "Booking ID (uuid)"
// @Param    req body  ConfirmBookingRequest true "payload"
// @Success  200 {object} BookingResponse
// @Failure  404 {object} ErrorResponse
// @Failure  409 {object} ErrorResponse "invalid transition / payment incomplete"
// @Router   /api/bookings/{id}/confirm [post]
func handleConfirmBooking(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		bookingID, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		var req ConfirmBookingRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		paymentID, err := uuid.Parse(req.PaymentID)
		if err != nil {
			badRequest(c, "invalid payment_id")
			return
		}
		if _, err := svcs.Booking.Confirm(c.Request.Context(), bookingID, paymentID); err != nil {
			respondErr(c, err)
			return
		}
		bw, err := svcs.Booking.Get(c.Request.Context(), bookingID)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, toBookingResponse(bw))
	}
}

// @Summary  Cancel booking, refunding a completed payment
// @Param    id  path  string  true  "Booking ID (uuid)"
// @Success  200 {object} BookingResponse
// @Failure  404 {object} ErrorResponse
// @Failure  409 {object} ErrorResponse "already cancelled"
// @Router   /api/bookings/{id}/cancel [post]
func handleCancelBooking(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		bookingID, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		if _, _, err := svcs.Booking.Cancel(c.Request.Context(), bookingID); err != nil {
			respondErr(c, err)
			return
		}
		bw, err := svcs.Booking.Get(c.Request.Context(), bookingID)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, toBookingResponse(bw))
	}
}

// @Summary  One-shot checkout: pay for the held seats and confirm
// @Param    id  path  string  true  "Booking ID (uuid)"
// @Success  200 {object} BookingResponse
// @Failure  402 {object} ErrorResponse "payment declined, booking stays pending"
// @Failure  404 {object} ErrorResponse
// @Failure  409 {object} ErrorResponse "cancelled booking / hold expired"
// @Router   /api/bookings/{id}/complete [post]
func handleCompleteBooking(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		bookingID, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		bw, err := svcs.Booking.Complete(c.Request.Context(), bookingID)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, toBookingResponse(bw))
	}
}

// @Summary  Extend the seat hold of a pending booking
// @Param    id  path  string  true  "Booking ID (uuid)"
// @Param    req body  ExtendHoldRequest true "payload"
// @Success  200 {object} ExtendHoldResponse
// @Failure  404 {object} ErrorResponse
// @Failure  409 {object} ErrorResponse "hold not extendable"
// @Router   /api/bookings/{id}/extend-hold [post]
func handleExtendHold(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		bookingID, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		var req ExtendHoldRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		expiry, err := svcs.Seats.ExtendHold(
			c.Request.Context(),
			bookingID,
			time.Duration(req.Minutes)*time.Minute,
		)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, ExtendHoldResponse{
			BookingID:     bookingID.String(),
			HoldExpiresAt: expiry,
		})
	}
}

// @Summary  List a user's bookings
// @Param    id                 path   int   true   "User ID"
// @Param    include_cancelled  query  bool  false  "include cancelled bookings"
// @Success  200 {array} BookingSummary
// @Router   /api/users/{id}/bookings [get]
func handleListUserBookings(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		includeCancelled := c.Query("include_cancelled") == "true"

		list, err := svcs.Booking.ListByUser(c.Request.Context(), userID, includeCancelled)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, toBookingSummaries(list))
	}
}

// @Summary  Full seat map of a showtime
// @Param    id    path   int     true   "Showtime ID"
// @Param    rows  query  string  false  "override grid rows, comma separated"
// @Param    cols  query  int     false  "override grid columns"
// @Success  200 {array} domain.SeatMapEntry
// @Failure  404 {object} ErrorResponse
// @Router   /api/showtimes/{id}/seat-map [get]
func handleSeatMap(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		showtimeID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		var rows []string
		if raw := c.Query("rows"); raw != "" {
			rows = strings.Split(raw, ",")
		}
		cols := parseIntDefault(c.Query("cols"), 0)

		entries, err := svcs.Seats.SeatMap(c.Request.Context(), showtimeID, rows, cols)
		if err != nil {
			respondErr(c, err)
			return
		}
		// ETag + Cache-Control 15s
		writeJSONWithCache(c, http.StatusOK, entries, "public, max-age=15", true)
	}
}

// @Summary  Seats of a showtime that carry a live claim
// @Param    id  path  int  true  "Showtime ID"
// @Success  200 {array} domain.SeatMapEntry
// @Router   /api/showtimes/{id}/seats [get]
func handleClaimedSeats(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		showtimeID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		entries, err := svcs.Seats.ClaimedSeats(c.Request.Context(), showtimeID)
		if err != nil {
			respondErr(c, err)
			return
		}
		// ETag + Cache-Control 15s
		writeJSONWithCache(c, http.StatusOK, entries, "public, max-age=15", true)
	}
}

// @Summary  Check whether the requested seats are free right now
// @Param    id  path  int  true  "Showtime ID"
// @Param    req body  CheckAvailabilityRequest true "payload"
// @Success  200 {object} CheckAvailabilityResponse
// @Failure  404 {object} ErrorResponse
// @Router   /api/showtimes/{id}/check-availability [post]
func handleCheckAvailability(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		showtimeID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		var req CheckAvailabilityRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		available, taken, err := svcs.Seats.CheckAvailability(
			c.Request.Context(),
			showtimeID,
			toDomainSeats(req.Seats),
		)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, CheckAvailabilityResponse{
			Available:        available,
			UnavailableSeats: fromDomainSeats(taken),
		})
	}
}

// @Summary  Create payment intent
// @Param    req body  CreatePaymentRequest true "payload"
// @Success  201 {object} PaymentResponse
// @Failure  400 {object} ErrorResponse
// @Router   /api/payments [post]
func handleCreatePayment(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreatePaymentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		p, err := svcs.Payments.Create(c.Request.Context(), req.AmountCents, req.UserID)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusCreated, toPaymentResponse(p))
	}
}

// @Summary  Get payment
// @Param    id  path  string  true  "Payment ID (uuid)"
// @Success  200 {object} PaymentResponse
// @Failure  404 {object} ErrorResponse
// @Router   /api/payments/{id} [get]
func handleGetPayment(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		paymentID, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		p, err := svcs.Payments.Get(c.Request.Context(), paymentID)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, toPaymentResponse(p))
	}
}

// @Summary  Process a pending payment through the gateway
// @Param    id  path  string  true  "Payment ID (uuid)"
// @Success  200 {object} PaymentResponse
// @Failure  402 {object} ErrorResponse "declined"
// @Failure  409 {object} ErrorResponse "not pending"
// @Router   /api/payments/{id}/process [post]
func handleProcessPayment(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		paymentID, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		p, err := svcs.Payments.Process(c.Request.Context(), paymentID)
		if err != nil {
			if errors.Is(err, payment.ErrPaymentDeclined) && p != nil {
				c.JSON(http.StatusPaymentRequired, gin.H{
					"error":   "payment declined",
					"payment": toPaymentResponse(p),
				})
				return
			}
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, toPaymentResponse(p))
	}
}

// @Summary  Mark a pending payment as failed
// @Param    id  path  string  true  "Payment ID (uuid)"
// @Success  200 {object} PaymentResponse
// @Failure  404 {object} ErrorResponse
// @Failure  409 {object} ErrorResponse "not pending"
// @Router   /api/payments/{id}/fail [post]
func handleFailPayment(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		paymentID, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		p, err := svcs.Payments.Fail(c.Request.Context(), paymentID)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, toPaymentResponse(p))
	}
}

// @Summary  Refund a completed payment
// @Param    id  path  string  true  "Payment ID (uuid)"
// @Success  200 {object} PaymentResponse
// @Failure  404 {object} ErrorResponse
// @Failure  409 {object} ErrorResponse "not completed"
// @Router   /api/payments/{id}/refund [post]
func handleRefundPayment(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		paymentID, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		p, err := svcs.Payments.Refund(c.Request.Context(), paymentID)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, toPaymentResponse(p))
	}
}

// --- Helpers ---

func parseInt64Param(c *gin.Context, name string) (int64, bool) {
	s := c.Param(name)
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return v, true
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}

func parseUUIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	v, err := uuid.Parse(c.Param(name))
	if err != nil {
		badRequest(c, "invalid "+name)
		return uuid.Nil, false
	}
	return v, true
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg})
}

func respondErr(c *gin.Context, err error) {
	if err == nil {
		c.Status(http.StatusNoContent)
		return
	}

	var ve *booking.ValidationError
	if errors.As(err, &ve) {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: ve.Msg})
		return
	}

	var sce *booking.SeatsConflictError
	if errors.As(err, &sce) {
		c.JSON(http.StatusConflict, ErrorResponse{
			Error: "seats unavailable",
			Seats: fromDomainSeats(sce.Seats),
		})
		return
	}

	var pfe *booking.PaymentFailedError
	if errors.As(err, &pfe) {
		c.JSON(http.StatusPaymentRequired, gin.H{
			"error":   "payment declined",
			"payment": toPaymentResponse(pfe.Payment),
		})
		return
	}

	switch {
	// booking service
	case errors.Is(err, booking.ErrBookingNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "booking not found"})
	case errors.Is(err, booking.ErrShowtimeNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "showtime not found"})
	case errors.Is(err, booking.ErrUserNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "user not found"})
	case errors.Is(err, booking.ErrPaymentNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "payment not found"})
	case errors.Is(err, booking.ErrInvalidTransition):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "invalid booking transition"})
	case errors.Is(err, booking.ErrPaymentIncomplete):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "payment is not completed"})
	case errors.Is(err, booking.ErrHoldExpired):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "seat hold has expired"})
	case errors.Is(err, booking.ErrSeatsUnavailable):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "seats unavailable"})

	// seats service
	case errors.Is(err, seats.ErrBookingNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "booking not found"})
	case errors.Is(err, seats.ErrShowtimeNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "showtime not found"})
	case errors.Is(err, seats.ErrNoActiveHold):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "no active hold for booking"})
	case errors.Is(err, seats.ErrHoldNotExtendable):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "hold is not extendable"})
	case errors.Is(err, seats.ErrInvalidDuration):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "extension must be positive"})

	// payment service
	case errors.Is(err, payment.ErrPaymentNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "payment not found"})
	case errors.Is(err, payment.ErrInvalidAmount):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "amount must be positive"})
	case errors.Is(err, payment.ErrInvalidTransition):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "invalid payment transition"})
	case errors.Is(err, payment.ErrPaymentDeclined):
		c.JSON(http.StatusPaymentRequired, ErrorResponse{Error: "payment declined"})

	default:
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}
}
