package assistant

import (
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ErrExhaustedRetries marks a turn that failed with a transient transport
// error on every allowed attempt.
var ErrExhaustedRetries = errors.New("exhausted retries")

// defaultMaxAttempts bounds the attempts for one turn, first try included.
const defaultMaxAttempts = 3

// RetryPolicy reruns a turn when it fails with a transient transport
// error. Any failure the classifier rejects propagates immediately;
// attempts follow each other without delay.
type RetryPolicy struct {
	MaxAttempts int
	// Retryable classifies a failure as transient.
	Retryable func(error) bool
}

// NewRetryPolicy returns the policy used for Assist calls: up to three
// attempts, retrying only on the transport-unavailable status.
func NewRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: defaultMaxAttempts,
		Retryable:   IsTransportUnavailable,
	}
}

// Execute runs attempt until it succeeds, fails fatally, or the attempt
// bound is reached. A successful attempt's outcome is returned unchanged.
func (p RetryPolicy) Execute(attempt func() (bool, error)) (bool, error) {
	var lastErr error
	for i := 0; i < p.MaxAttempts; i++ {
		outcome, err := attempt()
		if err == nil {
			return outcome, nil
		}
		if !p.Retryable(err) {
			return false, err
		}
		lastErr = err
	}
	return false, fmt.Errorf("%w after %d attempts: %w", ErrExhaustedRetries, p.MaxAttempts, lastErr)
}

// IsTransportUnavailable reports whether err is the transient
// service-unavailable transport status.
func IsTransportUnavailable(err error) bool {
	return status.Code(err) == codes.Unavailable
}
