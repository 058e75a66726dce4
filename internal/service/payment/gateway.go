package payment

import (
	"context"

	"github.com/google/uuid"
)

// Gateway authorizes a charge with the payment processor. The engine never
// retries an authorization on its own; the caller decides what a decline
// means for the booking.
type Gateway interface {
	Authorize(ctx context.Context, paymentID uuid.UUID, amountCents int64) error
}

// SimulatedGateway stands in for a real processor. The outcome is fixed at
// construction so decline handling can be exercised end to end.
type SimulatedGateway struct {
	Decline bool
}

func (g *SimulatedGateway) Authorize(_ context.Context, _ uuid.UUID, _ int64) error {
	if g.Decline {
		return ErrPaymentDeclined
	}
	return nil
}
