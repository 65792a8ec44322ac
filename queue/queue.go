// Package queue defines the outbound transport used to re-inject split events.
//
// Implementations live in sub-packages: sqs for Amazon SQS, nats for NATS
// JetStream and memory for an in-process recorder used in tests and dry runs.
package queue

import "context"

// Sender delivers a serialized event to a named queue.
//
// The queue identifier is transport specific: an SQS queue name or URL, or a
// JetStream subject. Implementations must be safe for concurrent use.
type Sender interface {
	Send(ctx context.Context, queue string, body []byte) error
}

// SenderFunc adapts a function to the Sender interface.
type SenderFunc func(ctx context.Context, queue string, body []byte) error

// Send calls f.
func (f SenderFunc) Send(ctx context.Context, queue string, body []byte) error {
	return f(ctx, queue, body)
}

// Message is a message received from a queue by a polling transport.
type Message struct {
	// ID is the broker-assigned message identifier.
	ID string

	// ReceiptHandle identifies this delivery for acknowledgement. For SQS it is
	// the receipt handle; other transports may leave it empty.
	ReceiptHandle string

	// Body is the message payload.
	Body string

	// Attributes holds broker metadata such as ApproximateReceiveCount.
	Attributes map[string]string
}
