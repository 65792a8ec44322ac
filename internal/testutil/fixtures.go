// Package testutil provides fixtures and helpers shared by the splitter tests.
// This package is internal and should only be used for testing within the module.
package testutil

import (
	"encoding/json"
	"fmt"
)

// ResourceID is the EC2 instance the fixture events tag.
const ResourceID = "i-00000000000000000"

// Tag returns the i-th fixture tag (1-based) in CloudTrail tagSet form.
func Tag(i int) map[string]any {
	return map[string]any{
		"key":   fmt.Sprintf("tag-key-%d", i),
		"value": fmt.Sprintf("tag-value-%d", i),
	}
}

// CreateTagsEvent returns the JSON of an EventBridge-delivered CloudTrail
// CreateTags event carrying n tags.
func CreateTagsEvent(n int) []byte {
	return eventJSON("CreateTags", n)
}

// EventNamed returns the JSON of a CloudTrail event with the given eventName
// and n tags.
func EventNamed(name string, n int) []byte {
	return eventJSON(name, n)
}

// SQSRecord returns a single SQS record as delivered to a Lambda function.
func SQSRecord(body string) map[string]any {
	return map[string]any{
		"messageId":      "059f36b4-87a3-44ab-83d2-661975830a7d",
		"receiptHandle":  "AQEBwJnKyrHigUMZj6rYigCgxlaS3SLy0a",
		"body":           body,
		"attributes":     map[string]any{"ApproximateReceiveCount": "1"},
		"eventSource":    "aws:sqs",
		"eventSourceARN": "arn:aws:sqs:us-west-2:123456789012:splitter-queue",
		"awsRegion":      "us-west-2",
	}
}

// Records wraps records into a Lambda event-source payload.
func Records(records ...map[string]any) []byte {
	list := make([]any, len(records))
	for i, r := range records {
		list[i] = r
	}
	return MustJSON(map[string]any{"Records": list})
}

// MustJSON marshals v or panics.
func MustJSON(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}

func eventJSON(name string, n int) []byte {
	tags := make([]any, n)
	for i := range n {
		tags[i] = Tag(i + 1)
	}
	return MustJSON(map[string]any{
		"version":     "0",
		"id":          "6a7e8feb-b491-4cf7-a9f1-bf3703467718",
		"detail-type": "AWS API Call via CloudTrail",
		"source":      "aws.ec2",
		"account":     "123456789012",
		"region":      "us-west-2",
		"detail": map[string]any{
			"eventVersion": "1.08",
			"eventSource":  "ec2.amazonaws.com",
			"eventName":    name,
			"awsRegion":    "us-west-2",
			"requestParameters": map[string]any{
				"resourcesSet": map[string]any{
					"items": []any{map[string]any{"resourceId": ResourceID}},
				},
				"tagSet": map[string]any{
					"items": tags,
				},
			},
		},
	})
}
