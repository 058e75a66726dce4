package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Cloud-Computing-Blue-Cloud/Booking-Service/internal/domain"
	"github.com/Cloud-Computing-Blue-Cloud/Booking-Service/internal/repository"
)

// Store is the persistence contract the payment lifecycle needs. Transitions
// are guarded updates so a retried request can never move a payment twice.
type Store interface {
	Insert(ctx context.Context, p *domain.Payment) error
	Get(ctx context.Context, id uuid.UUID) (*domain.Payment, error)
	TransitionStatus(ctx context.Context, id uuid.UUID, from, to domain.PaymentStatus) (bool, error)
}

// Service owns the payment state machine: pending -> completed | failed,
// completed -> refunded. Failed and refunded are terminal.
type Service struct {
	payments Store
	gateway  Gateway
}

func New(payments Store, gateway Gateway) *Service {
	return &Service{
		payments: payments,
		gateway:  gateway,
	}
}

// Create registers a new pending payment intent.
//
// Returns:
//   - *domain.Payment: the pending payment.
//   - error: ErrInvalidAmount when amountCents is not positive.
func (s *Service) Create(ctx context.Context, amountCents int64, createdBy int64) (*domain.Payment, error) {
	const op = "payment.Service.Create"

	if amountCents <= 0 {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidAmount)
	}

	now := time.Now().UTC()
	p := &domain.Payment{
		ID:          uuid.New(),
		AmountCents: amountCents,
		Status:      domain.PaymentPending,
		CreatedBy:   createdBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.payments.Insert(ctx, p); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return p, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	const op = "payment.Service.Get"

	p, err := s.payments.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrPaymentNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return p, nil
}

// Process submits a pending payment to the gateway and records the outcome.
// A decline is persisted as failed; both outcomes return the payment so the
// caller can report the final state.
//
// Returns:
//   - *domain.Payment: the payment after processing, including on decline.
//   - error: ErrPaymentNotFound, ErrInvalidTransition when the payment is no
//     longer pending, or ErrPaymentDeclined when the gateway refused.
func (s *Service) Process(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	const op = "payment.Service.Process"

	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if !p.Status.CanTransitionTo(domain.PaymentCompleted) {
		return nil, fmt.Errorf("%s: payment is %s: %w", op, p.Status, ErrInvalidTransition)
	}

	if err := s.gateway.Authorize(ctx, p.ID, p.AmountCents); err != nil {
		if errors.Is(err, ErrPaymentDeclined) {
			if _, terr := s.payments.TransitionStatus(ctx, p.ID, domain.PaymentPending, domain.PaymentFailed); terr != nil {
				return nil, fmt.Errorf("%s: %w", op, terr)
			}
			p.Status = domain.PaymentFailed
			return p, fmt.Errorf("%s: %w", op, ErrPaymentDeclined)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	moved, err := s.payments.TransitionStatus(ctx, p.ID, domain.PaymentPending, domain.PaymentCompleted)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !moved {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidTransition)
	}

	p.Status = domain.PaymentCompleted

	return p, nil
}

// Fail marks a pending payment failed without consulting the gateway, for
// callers that learn about the outcome out of band.
//
// Returns:
//   - *domain.Payment: the failed payment.
//   - error: ErrPaymentNotFound, or ErrInvalidTransition when the payment is
//     no longer pending.
func (s *Service) Fail(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	const op = "payment.Service.Fail"

	moved, err := s.payments.TransitionStatus(ctx, id, domain.PaymentPending, domain.PaymentFailed)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if !moved {
		p, gerr := s.Get(ctx, id)
		if gerr != nil {
			return nil, gerr
		}
		return nil, fmt.Errorf("%s: payment is %s: %w", op, p.Status, ErrInvalidTransition)
	}

	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	return p, nil
}

// Refund moves a completed payment to refunded.
//
// Returns:
//   - *domain.Payment: the refunded payment.
//   - error: ErrPaymentNotFound, or ErrInvalidTransition when the payment was
//     never completed.
func (s *Service) Refund(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	const op = "payment.Service.Refund"

	moved, err := s.payments.TransitionStatus(ctx, id, domain.PaymentCompleted, domain.PaymentRefunded)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if !moved {
		p, gerr := s.Get(ctx, id)
		if gerr != nil {
			return nil, gerr
		}
		return nil, fmt.Errorf("%s: payment is %s: %w", op, p.Status, ErrInvalidTransition)
	}

	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	return p, nil
}
