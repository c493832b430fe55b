package domain

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrQuoteUnavailable = errors.New("quote unavailable")
	ErrNotProfitable    = errors.New("not profitable")
	ErrLockHeld         = errors.New("execution lock held")
	ErrConfirmTimeout   = errors.New("confirmation window elapsed")
	ErrFeedExhausted    = errors.New("price feed reconnect attempts exhausted")
	ErrNoSnapshot       = errors.New("no index snapshot built yet")
)
