package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrInvalidParams     = errors.New("invalid generation parameters")
	ErrQuotaExceeded     = errors.New("quota exceeded")
	ErrInvalidTransition = errors.New("invalid order transition")
	ErrOrderClosed       = errors.New("order is closed")
	ErrTaskActive        = errors.New("order already has an active generation task")
	ErrUnknownPlan       = errors.New("unknown plan")
	ErrProviderFailure   = errors.New("provider failure")
	ErrDuplicateEvent    = errors.New("duplicate webhook event")
)
