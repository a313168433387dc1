package domain

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for the failure taxonomy. Handlers map these to stable
// HTTP status/code pairs.
var (
	ErrUnauthorized     = errors.New("unauthorized")
	ErrNotFound         = errors.New("session not found")
	ErrSessionNotActive = errors.New("session not active")
)

// ValidationError reports rejected input. It is detected before any
// mutation takes place.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Reason
}

// Validationf builds a ValidationError from a format string.
func Validationf(format string, args ...interface{}) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// RateLimitedError reports an exhausted rate-limit window. Denial is a
// normal outcome; ResetAt tells the caller when the window reopens.
type RateLimitedError struct {
	Limit     int
	Remaining int
	ResetAt   time.Time
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited until %s", e.ResetAt.UTC().Format(time.RFC3339))
}
