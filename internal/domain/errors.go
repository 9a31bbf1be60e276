package domain

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrLockHeld     = errors.New("lock already held")
	ErrFeedFailure  = errors.New("price feed failure")
)
