package sqs

import "github.com/input-output-hk/catalyst-forge-libs/splitter/errors"

var (
	// ErrQueueNotFound is returned when the queue name or URL does not resolve
	// to an existing queue.
	ErrQueueNotFound = errors.New(errors.CodeNotFound, "queue not found")

	// ErrAccessDenied is returned when the credentials lack the sqs:* (or
	// kms:*) permission the operation needs.
	ErrAccessDenied = errors.New(errors.CodeForbidden, "access denied to queue")

	// ErrThrottled is returned when SQS keeps throttling after the retryer
	// gave up.
	ErrThrottled = errors.New(errors.CodeRateLimit, "queue requests throttled")
)

// AWS error codes returned by SQS. The query protocol reports the legacy
// "AWS.SimpleQueueService.*" codes, the JSON protocol the short forms.
const (
	codeNonExistentQueue      = "AWS.SimpleQueueService.NonExistentQueue"
	codeQueueDoesNotExist     = "QueueDoesNotExist"
	codeAccessDenied          = "AccessDenied"
	codeAccessDeniedException = "AccessDeniedException"
	codeRequestThrottled      = "RequestThrottled"
	codeThrottlingException   = "ThrottlingException"
)
