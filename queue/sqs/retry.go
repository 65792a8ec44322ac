package sqs

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/smithy-go"
)

// CustomRetryer implements aws.Retryer with exponential backoff and jitter,
// retrying only SQS throttling and transient service errors.
//
// All fields are set at creation time and never modified, so a CustomRetryer
// is safe for concurrent use.
type CustomRetryer struct {
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
}

// NewCustomRetryer creates a retryer. Non-positive arguments fall back to the
// defaults: 5 attempts, 100ms base delay, 20s maximum delay.
func NewCustomRetryer(maxAttempts int, baseDelay, maxDelay time.Duration) *CustomRetryer {
	r := defaultRetryer()
	if maxAttempts > 0 {
		r.maxAttempts = maxAttempts
	}
	if baseDelay > 0 {
		r.baseDelay = baseDelay
	}
	if maxDelay > 0 {
		r.maxDelay = maxDelay
	}
	return r
}

func defaultRetryer() *CustomRetryer {
	return &CustomRetryer{
		maxAttempts: 5,
		baseDelay:   100 * time.Millisecond,
		maxDelay:    20 * time.Second,
	}
}

// MaxAttempts returns the maximum number of attempts, including the first.
func (r *CustomRetryer) MaxAttempts() int {
	return r.maxAttempts
}

// RetryDelay returns baseDelay * 2^(attempt-1) with ±25% jitter, capped at
// maxDelay.
func (r *CustomRetryer) RetryDelay(attempt int, _ error) (time.Duration, error) {
	delay := time.Duration(math.Pow(2, float64(attempt-1))) * r.baseDelay

	jitterRange := int64(float64(delay) * 0.25)
	if jitterRange > 0 {
		delay += time.Duration(rand.Int63n(2*jitterRange) - jitterRange)
	}

	if delay > r.maxDelay {
		delay = r.maxDelay
	}
	if delay < 0 {
		delay = 0
	}
	return delay, nil
}

// IsErrorRetryable reports whether err is a throttling or transient SQS
// error. Context cancellation and permanent errors are never retried.
func (r *CustomRetryer) IsErrorRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return false
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case codeRequestThrottled,
			codeThrottlingException,
			"KmsThrottled",
			"ServiceUnavailable",
			"InternalError",
			"RequestLimitExceeded":
			return true
		}
		return apiErr.ErrorFault() == smithy.FaultServer
	}

	return false
}

// GetRetryToken always grants a retry; there is no client-side retry quota.
func (r *CustomRetryer) GetRetryToken(context.Context, error) (func(error) error, error) {
	return func(error) error { return nil }, nil
}

// GetInitialToken returns a no-op release function.
func (r *CustomRetryer) GetInitialToken() func(error) error {
	return func(error) error { return nil }
}

var _ aws.Retryer = (*CustomRetryer)(nil)
