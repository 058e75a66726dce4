package payment

import "errors"

var (
	ErrPaymentNotFound   = errors.New("payment not found")
	ErrInvalidAmount     = errors.New("amount must be positive")
	ErrInvalidTransition = errors.New("invalid payment transition")
	ErrPaymentDeclined   = errors.New("payment declined")
)
