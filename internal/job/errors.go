package job

import (
	"errors"
	"fmt"
	"time"

	"github.com/leadscout/engine/internal/list"
	"github.com/leadscout/engine/internal/ratelimit"
)

var (
	ErrJobNotFound = errors.New("job not found")
	// ErrJobNotFinished is returned when a live job is attached to a list.
	// Its found count is only final once the job is terminal.
	ErrJobNotFinished = errors.New("job is not finished")
	// ErrListNotFound is the list package's sentinel so errors.Is works
	// across both packages.
	ErrListNotFound = list.ErrNotFound
)

// ValidationError reports a bad start parameter.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// RateLimitError is returned by Start when the start quota is exhausted.
type RateLimitError struct {
	Remaining int
	Limit     int
	RetryAt   time.Time
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded: %d of %d starts remaining, retry at %s",
		e.Remaining, e.Limit, e.RetryAt.Format(time.RFC3339))
}

func fromLimiter(err *ratelimit.Error) *RateLimitError {
	return &RateLimitError{Remaining: err.Remaining, Limit: err.Limit, RetryAt: err.RetryAt}
}

// GenerationError is the diagnostic recorded on a job the record source
// failed for.
type GenerationError struct {
	JobID string
	Index int
	Err   error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generate record %d for job %s: %v", e.Index, e.JobID, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

var errMaxDuration = errors.New("exceeded max duration")
