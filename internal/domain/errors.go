package domain

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrPriceUnavailable   = errors.New("price unavailable")
	ErrShortSeries        = errors.New("insufficient price history")
	ErrLockHeld           = errors.New("lock already held")
	ErrInvalidOpportunity = errors.New("invalid opportunity")
	ErrExecutorRejected   = errors.New("executor rejected trade")
	ErrContextDone        = errors.New("context cancelled")
)
