package sqs

import (
	"context"

	awssqs "github.com/aws/aws-sdk-go-v2/service/sqs"
)

// API is the subset of the AWS SDK v2 SQS client used by Client. It is
// satisfied by *awssqs.Client and by test doubles.
type API interface {
	GetQueueUrl(
		ctx context.Context,
		params *awssqs.GetQueueUrlInput,
		optFns ...func(*awssqs.Options),
	) (*awssqs.GetQueueUrlOutput, error)

	SendMessage(
		ctx context.Context,
		params *awssqs.SendMessageInput,
		optFns ...func(*awssqs.Options),
	) (*awssqs.SendMessageOutput, error)

	ReceiveMessage(
		ctx context.Context,
		params *awssqs.ReceiveMessageInput,
		optFns ...func(*awssqs.Options),
	) (*awssqs.ReceiveMessageOutput, error)

	DeleteMessage(
		ctx context.Context,
		params *awssqs.DeleteMessageInput,
		optFns ...func(*awssqs.Options),
	) (*awssqs.DeleteMessageOutput, error)
}
