package nextfit

import (
	"errors"
	"fmt"
	"time"
)

// ErrRetriesExhausted wraps the last failure of a request that used up its
// retry budget.
var ErrRetriesExhausted = errors.New("retries exhausted")

// StatusError is a non-2xx response.
type StatusError struct {
	StatusCode int
	Body       string
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.StatusCode, e.URL)
}

// DefaultRetryableStatuses are the rate-limit and gateway statuses worth retrying.
var DefaultRetryableStatuses = []int{429, 500, 502, 503, 504}

// RetryPolicy decides whether and when a read request is retried.
// It holds no per-request state and is safe to share.
type RetryPolicy struct {
	MaxRetries        int
	BackoffFactor     time.Duration
	RetryableStatuses map[int]bool
}

func NewRetryPolicy(maxRetries int, backoffFactor time.Duration, statuses ...int) RetryPolicy {
	if len(statuses) == 0 {
		statuses = DefaultRetryableStatuses
	}
	set := make(map[int]bool, len(statuses))
	for _, s := range statuses {
		set[s] = true
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	return RetryPolicy{MaxRetries: maxRetries, BackoffFactor: backoffFactor, RetryableStatuses: set}
}

// Attempts is the total number of tries, the first one included.
func (p RetryPolicy) Attempts() int {
	return p.MaxRetries + 1
}

// Backoff is the wait before retry n (1-based): factor * 2^(n-1).
func (p RetryPolicy) Backoff(retry int) time.Duration {
	if retry < 1 || p.BackoffFactor <= 0 {
		return 0
	}
	return p.BackoffFactor * time.Duration(1<<uint(retry-1))
}

// ShouldRetry classifies a failed attempt. Status errors are retried only
// for the configured statuses; anything else is a transport error.
func (p RetryPolicy) ShouldRetry(err error) bool {
	if err == nil {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return p.RetryableStatuses[statusErr.StatusCode]
	}
	return true
}
