// Package poller drives a Dispatcher from a long-running process instead of
// the Lambda event-source mapping. Each received message is wrapped in the
// same single-record envelope Lambda would deliver, so the dispatcher sees
// identical input in both deployments.
package poller

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/input-output-hk/catalyst-forge-libs/splitter"
	"github.com/input-output-hk/catalyst-forge-libs/splitter/envelope"
	"github.com/input-output-hk/catalyst-forge-libs/splitter/errors"
)

// Handler processes one raw payload. *splitter.Dispatcher implements it.
type Handler interface {
	Handle(ctx context.Context, raw []byte) (splitter.Result, error)
}

// outcome of handling one message.
type outcome int

const (
	outcomeDone   outcome = iota // acknowledge
	outcomeRetry                 // leave for redelivery
	outcomePoison                // never succeeds; dead-letter
)

// options shared by all pollers.
type options struct {
	batchSize   int
	waitTime    time.Duration
	concurrency int
	backoff     time.Duration
	maxBackoff  time.Duration
	origin      string
	clock       clockwork.Clock
	logger      *slog.Logger
}

// Option configures a poller.
type Option func(*options)

// WithBatchSize sets how many messages one receive asks for.
func WithBatchSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.batchSize = n
		}
	}
}

// WithWaitTime sets the long-poll duration of one receive.
func WithWaitTime(d time.Duration) Option {
	return func(o *options) {
		if d >= 0 {
			o.waitTime = d
		}
	}
}

// WithConcurrency sets how many messages of a batch are handled at once.
func WithConcurrency(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

// WithBackoff sets the initial and maximum pause after a failed receive.
func WithBackoff(initial, maximum time.Duration) Option {
	return func(o *options) {
		if initial > 0 {
			o.backoff = initial
		}
		if maximum >= o.backoff {
			o.maxBackoff = maximum
		}
	}
}

// WithOrigin sets the eventSource stamped on wrapped messages.
func WithOrigin(origin string) Option {
	return func(o *options) {
		if origin != "" {
			o.origin = origin
		}
	}
}

// WithClock sets the clock used for backoff.
func WithClock(clock clockwork.Clock) Option {
	return func(o *options) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithLogger sets the logger. A nil logger disables logging.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = slog.New(slog.DiscardHandler)
		}
		o.logger = logger
	}
}

func defaultOptions() *options {
	return &options{
		batchSize:   10,
		waitTime:    20 * time.Second,
		concurrency: 4,
		backoff:     time.Second,
		maxBackoff:  time.Minute,
		origin:      envelope.DefaultOrigin,
		clock:       clockwork.NewRealClock(),
		logger:      slog.New(slog.DiscardHandler),
	}
}

func applyOptions(opts []Option) *options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// handle wraps rec, runs it through h and classifies the result.
func handle(ctx context.Context, h Handler, rec envelope.Record, logger *slog.Logger) outcome {
	raw, err := envelope.Encode(rec)
	if err != nil {
		logger.ErrorContext(ctx, "failed to wrap message", "message_id", rec.MessageId, "error", err)
		return outcomeRetry
	}

	result, err := h.Handle(ctx, raw)
	switch {
	case errors.HasCode(err, errors.CodeParseFailed):
		logger.ErrorContext(ctx, "poison message", "message_id", rec.MessageId, "error", err)
		return outcomePoison
	case err != nil:
		logger.ErrorContext(ctx, "failed to handle message", "message_id", rec.MessageId, "error", err)
		return outcomeRetry
	}

	logger.DebugContext(ctx, "message handled",
		"message_id", rec.MessageId,
		"status_code", result.StatusCode,
		"count", result.Count)
	return outcomeDone
}

// backoff tracks the pause between failed receives.
type backoff struct {
	initial, maximum, current time.Duration
}

func (b *backoff) next() time.Duration {
	if b.current == 0 {
		b.current = b.initial
	} else {
		b.current = min(b.current*2, b.maximum)
	}
	return b.current
}

func (b *backoff) reset() {
	b.current = 0
}

// sleep waits for d on clock, returning false if ctx ends first.
func sleep(ctx context.Context, clock clockwork.Clock, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-clock.After(d):
		return true
	}
}
