package services

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrRecordNotFound        = errors.New("record not found")
	ErrRecordExists          = errors.New("record already exists")
	ErrProfileNotFound       = errors.New("github profile not found")
	ErrGenerationUnavailable = errors.New("generation backend unavailable")
)

// RateLimitedError is returned when the profile source quota is exhausted.
// RetryAfter is zero when the upstream gave no hint.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
	}
	return "rate limited"
}
