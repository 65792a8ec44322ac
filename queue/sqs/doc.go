// Package sqs provides a queue.Sender for Amazon SQS built on the AWS SDK v2,
// with structured logging, queue URL caching and configurable retry behavior.
//
// The client accepts either a queue name or a full queue URL. Names are
// resolved once through GetQueueUrl and the result is cached, so a split of N
// items costs one lookup and N sends. Queues whose name ends in ".fifo" get a
// fresh MessageGroupId and MessageDeduplicationId per message; split items are
// independent, so no ordering is requested between them.
//
// The client also exposes Receive and Delete for long-running pollers that
// replace the Lambda event-source mapping when the splitter runs as a process.
//
// # IAM permissions
//
//   - sqs:GetQueueUrl, sqs:SendMessage for Send
//   - sqs:ReceiveMessage, sqs:DeleteMessage for Receive and Delete
//   - kms:GenerateDataKey, kms:Decrypt when the queue uses a customer-managed key
//
// # Thread safety
//
// All exported client methods are safe for concurrent use. The underlying SDK
// client is thread-safe and the provided InMemoryCache is mutex protected.
package sqs
