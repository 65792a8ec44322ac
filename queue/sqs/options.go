package sqs

import (
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/google/uuid"
)

// DefaultCacheTTL is how long resolved queue URLs are kept when no cache is
// configured explicitly.
const DefaultCacheTTL = 15 * time.Minute

// clientOptions holds configuration options for the SQS client.
type clientOptions struct {
	logger  *slog.Logger
	cache   Cache
	retryer aws.Retryer
	newID   func() string
}

// Option is a functional option for configuring the Client.
type Option func(*clientOptions)

// WithLogger configures the client with a custom logger.
// If logger is nil, logging will be disabled.
func WithLogger(logger *slog.Logger) Option {
	return func(opts *clientOptions) {
		opts.logger = logger
	}
}

// WithCache configures the queue URL cache.
// If cache is nil, every Send resolves the queue URL.
func WithCache(cache Cache) Option {
	return func(opts *clientOptions) {
		opts.cache = cache
	}
}

// WithCustomRetryer configures the retryer installed on the SDK client.
// If retryer is nil, the SDK's standard retryer is used.
func WithCustomRetryer(retryer aws.Retryer) Option {
	return func(opts *clientOptions) {
		opts.retryer = retryer
	}
}

// WithIDGenerator replaces the generator of FIFO group and deduplication IDs.
func WithIDGenerator(fn func() string) Option {
	return func(opts *clientOptions) {
		if fn != nil {
			opts.newID = fn
		}
	}
}

// defaultOptions returns the default configuration options.
func defaultOptions() *clientOptions {
	return &clientOptions{
		logger:  nil,
		cache:   NewInMemoryCache(DefaultCacheTTL, 64),
		retryer: defaultRetryer(),
		newID:   uuid.NewString,
	}
}

// applyOptions applies the given options to the client options.
func applyOptions(opts *clientOptions, options []Option) {
	for _, option := range options {
		option(opts)
	}
}
