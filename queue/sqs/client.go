package sqs

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	awssqs "github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/aws/smithy-go"

	"github.com/input-output-hk/catalyst-forge-libs/splitter/queue"
)

const (
	// MaxReceiveBatch is the largest batch ReceiveMessage accepts.
	MaxReceiveBatch = 10

	// MaxWaitTime is the longest long-poll ReceiveMessage accepts.
	MaxWaitTime = 20 * time.Second

	fifoSuffix = ".fifo"
)

// Client sends and receives SQS messages.
//
// The api field is immutable and the SDK client is thread-safe; the cache
// must be thread-safe (see Cache). All methods are safe for concurrent use.
type Client struct {
	api    API
	logger *slog.Logger
	cache  Cache
	newID  func() string
}

var _ queue.Sender = (*Client)(nil)

// NewClient creates a client using the default AWS credential chain.
func NewClient(ctx context.Context, opts ...Option) (*Client, error) {
	if ctx == nil {
		return nil, fmt.Errorf("context cannot be nil")
	}

	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return NewClientWithConfig(ctx, &cfg, opts...)
}

// NewClientWithConfig creates a client from an explicit AWS configuration.
func NewClientWithConfig(ctx context.Context, cfg *aws.Config, opts ...Option) (*Client, error) {
	if ctx == nil {
		return nil, fmt.Errorf("context cannot be nil")
	}
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Region == "" {
		return nil, fmt.Errorf("config region cannot be empty")
	}

	options := defaultOptions()
	applyOptions(options, opts)

	api := awssqs.NewFromConfig(*cfg, func(o *awssqs.Options) {
		if options.retryer != nil {
			o.Retryer = options.retryer
		}
	})
	return newClient(api, options), nil
}

// NewClientWithLocalStack creates a client for a LocalStack endpoint. It is
// intended for integration tests and local development.
func NewClientWithLocalStack(ctx context.Context, endpointURL string, opts ...Option) (*Client, error) {
	if ctx == nil {
		return nil, fmt.Errorf("context cannot be nil")
	}
	if endpointURL == "" {
		return nil, fmt.Errorf("endpoint URL cannot be empty")
	}

	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion("us-east-1"),
		config.WithCredentialsProvider(aws.AnonymousCredentials{}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	options := defaultOptions()
	applyOptions(options, opts)

	api := awssqs.NewFromConfig(cfg, func(o *awssqs.Options) {
		o.BaseEndpoint = aws.String(endpointURL)
		if options.retryer != nil {
			o.Retryer = options.retryer
		}
	})
	return newClient(api, options), nil
}

// NewClientWithAPI creates a client around an existing API implementation.
func NewClientWithAPI(api API, opts ...Option) *Client {
	options := defaultOptions()
	applyOptions(options, opts)
	return newClient(api, options)
}

func newClient(api API, options *clientOptions) *Client {
	return &Client{
		api:    api,
		logger: options.logger,
		cache:  options.cache,
		newID:  options.newID,
	}
}

// Send publishes body to the queue identified by a name or URL.
func (c *Client) Send(ctx context.Context, queueID string, body []byte) error {
	if ctx == nil {
		return fmt.Errorf("context cannot be nil")
	}
	if queueID == "" {
		return fmt.Errorf("queue name cannot be empty")
	}

	url, err := c.QueueURL(ctx, queueID)
	if err != nil {
		return err
	}

	input := &awssqs.SendMessageInput{
		QueueUrl:    aws.String(url),
		MessageBody: aws.String(string(body)),
	}
	if strings.HasSuffix(url, fifoSuffix) {
		input.MessageGroupId = aws.String(c.newID())
		input.MessageDeduplicationId = aws.String(c.newID())
	}

	out, err := c.api.SendMessage(ctx, input)
	if err != nil {
		mapped := c.mapError(err)
		if stderrors.Is(mapped, ErrQueueNotFound) && c.cache != nil {
			c.cache.Delete(queueID)
		}
		if c.logger != nil {
			c.logger.ErrorContext(ctx, "failed to send message",
				"queue", queueID,
				"error", err)
		}
		return c.handleError(mapped, "SendMessage")
	}

	if c.logger != nil {
		c.logger.DebugContext(ctx, "message sent",
			"queue", queueID,
			"message_id", aws.ToString(out.MessageId))
	}
	return nil
}

// QueueURL resolves a queue name to its URL. A value that already is a URL
// is returned unchanged. Resolved names are cached when a cache is configured.
func (c *Client) QueueURL(ctx context.Context, queueID string) (string, error) {
	if isURL(queueID) {
		return queueID, nil
	}

	if c.cache != nil {
		if url, ok := c.cache.Get(queueID); ok {
			return url, nil
		}
	}

	out, err := c.api.GetQueueUrl(ctx, &awssqs.GetQueueUrlInput{QueueName: aws.String(queueID)})
	if err != nil {
		if c.logger != nil {
			c.logger.ErrorContext(ctx, "failed to resolve queue URL",
				"queue", queueID,
				"error", err)
		}
		return "", c.handleError(c.mapError(err), "GetQueueUrl")
	}

	url := aws.ToString(out.QueueUrl)
	if url == "" {
		return "", c.handleError(ErrQueueNotFound, "GetQueueUrl")
	}
	if c.cache != nil {
		c.cache.Set(queueID, url)
	}
	return url, nil
}

// Receive long-polls the queue for up to maxMessages messages, waiting at
// most wait for the first one to arrive. Values above the SQS limits are
// clamped.
func (c *Client) Receive(
	ctx context.Context,
	queueID string,
	maxMessages int,
	wait time.Duration,
) ([]queue.Message, error) {
	if queueID == "" {
		return nil, fmt.Errorf("queue name cannot be empty")
	}

	url, err := c.QueueURL(ctx, queueID)
	if err != nil {
		return nil, err
	}

	maxMessages = min(max(maxMessages, 1), MaxReceiveBatch)
	wait = min(max(wait, 0), MaxWaitTime)

	out, err := c.api.ReceiveMessage(ctx, &awssqs.ReceiveMessageInput{
		QueueUrl:                    aws.String(url),
		MaxNumberOfMessages:         int32(maxMessages), //nolint:gosec // clamped to MaxReceiveBatch
		WaitTimeSeconds:             int32(wait / time.Second),
		MessageSystemAttributeNames: []types.MessageSystemAttributeName{types.MessageSystemAttributeNameAll},
	})
	if err != nil {
		return nil, c.handleError(c.mapError(err), "ReceiveMessage")
	}

	msgs := make([]queue.Message, 0, len(out.Messages))
	for _, m := range out.Messages {
		msgs = append(msgs, queue.Message{
			ID:            aws.ToString(m.MessageId),
			ReceiptHandle: aws.ToString(m.ReceiptHandle),
			Body:          aws.ToString(m.Body),
			Attributes:    m.Attributes,
		})
	}
	return msgs, nil
}

// Delete acknowledges a received message.
func (c *Client) Delete(ctx context.Context, queueID, receiptHandle string) error {
	if receiptHandle == "" {
		return fmt.Errorf("receipt handle cannot be empty")
	}

	url, err := c.QueueURL(ctx, queueID)
	if err != nil {
		return err
	}

	_, err = c.api.DeleteMessage(ctx, &awssqs.DeleteMessageInput{
		QueueUrl:      aws.String(url),
		ReceiptHandle: aws.String(receiptHandle),
	})
	if err != nil {
		return c.handleError(c.mapError(err), "DeleteMessage")
	}
	return nil
}

// mapError translates well-known SQS error codes into package errors.
func (c *Client) mapError(err error) error {
	var apiErr smithy.APIError
	if !stderrors.As(err, &apiErr) {
		return err
	}
	switch apiErr.ErrorCode() {
	case codeNonExistentQueue, codeQueueDoesNotExist:
		return ErrQueueNotFound
	case codeAccessDenied, codeAccessDeniedException:
		return ErrAccessDenied
	case codeRequestThrottled, codeThrottlingException:
		return ErrThrottled
	}
	return err
}

// handleError preserves package errors and wraps everything else with the
// failing operation.
func (c *Client) handleError(err error, operation string) error {
	if err == nil {
		return nil
	}

	if stderrors.Is(err, ErrQueueNotFound) ||
		stderrors.Is(err, ErrAccessDenied) ||
		stderrors.Is(err, ErrThrottled) {
		return fmt.Errorf("%s operation failed: %w", operation, err)
	}

	var apiErr smithy.APIError
	if stderrors.As(err, &apiErr) {
		return fmt.Errorf("%s operation failed: %s: %s",
			operation, apiErr.ErrorCode(), apiErr.ErrorMessage())
	}

	return fmt.Errorf("%s operation failed: %w", operation, err)
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "https://") || strings.HasPrefix(s, "http://")
}
