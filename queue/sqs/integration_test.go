//go:build integration

// Integration tests for the SQS client against LocalStack. They require Docker
// and only run with:
//
//	go test -tags=integration ./queue/sqs/...
package sqs_test

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	awssqs "github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/docker/go-connections/nat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/localstack"

	"github.com/input-output-hk/catalyst-forge-libs/splitter/queue/sqs"
)

// testContainer manages the LocalStack test container lifecycle
type testContainer struct {
	container *localstack.LocalStackContainer
	uri       string
}

var (
	globalContainer *testContainer
	containerOnce   sync.Once
	containerMutex  sync.Mutex
)

// getTestContainer returns a singleton LocalStack container for all integration tests
func getTestContainer(ctx context.Context) (*testContainer, error) {
	containerMutex.Lock()
	defer containerMutex.Unlock()

	var err error
	containerOnce.Do(func() {
		container, startErr := localstack.Run(ctx, "localstack/localstack:latest")
		if startErr != nil {
			err = fmt.Errorf("failed to start LocalStack container: %w", startErr)
			return
		}

		port, _ := nat.NewPort("tcp", "4566")
		uri, uriErr := container.PortEndpoint(ctx, port, "")
		if uriErr != nil {
			_ = container.Terminate(ctx)
			err = fmt.Errorf("failed to get LocalStack endpoint: %w", uriErr)
			return
		}
		if !strings.HasPrefix(uri, "http://") && !strings.HasPrefix(uri, "https://") {
			uri = "http://" + uri
		}

		globalContainer = &testContainer{container: container, uri: uri}
	})
	if err != nil {
		return nil, err
	}
	return globalContainer, nil
}

func TestMain(m *testing.M) {
	ctx := context.Background()

	tc, err := getTestContainer(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start LocalStack: %v\n", err)
		os.Exit(1)
	}

	code := m.Run()

	if err := tc.container.Terminate(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to terminate LocalStack: %v\n", err)
	}
	os.Exit(code)
}

// createQueue provisions a queue through the raw SDK client; the splitter
// itself never creates queues.
func createQueue(ctx context.Context, t *testing.T, endpoint, name string, fifo bool) string {
	t.Helper()

	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion("us-east-1"),
		config.WithCredentialsProvider(aws.AnonymousCredentials{}),
	)
	require.NoError(t, err)

	api := awssqs.NewFromConfig(cfg, func(o *awssqs.Options) {
		o.BaseEndpoint = aws.String(endpoint)
	})

	input := &awssqs.CreateQueueInput{QueueName: aws.String(name)}
	if fifo {
		input.Attributes = map[string]string{"FifoQueue": "true"}
	}
	out, err := api.CreateQueue(ctx, input)
	require.NoError(t, err)
	return aws.ToString(out.QueueUrl)
}

func TestIntegration_SendReceiveDelete(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	tc, err := getTestContainer(ctx)
	require.NoError(t, err)

	name := fmt.Sprintf("splitter-%d", time.Now().UnixNano())
	createQueue(ctx, t, tc.uri, name, false)

	client, err := sqs.NewClientWithLocalStack(ctx, tc.uri)
	require.NoError(t, err)

	bodies := []string{`{"n":1}`, `{"n":2}`, `{"n":3}`}
	for _, b := range bodies {
		require.NoError(t, client.Send(ctx, name, []byte(b)))
	}

	var received []string
	for len(received) < len(bodies) {
		msgs, err := client.Receive(ctx, name, sqs.MaxReceiveBatch, time.Second)
		require.NoError(t, err)
		for _, m := range msgs {
			received = append(received, m.Body)
			require.NoError(t, client.Delete(ctx, name, m.ReceiptHandle))
		}
	}
	assert.ElementsMatch(t, bodies, received)

	msgs, err := client.Receive(ctx, name, sqs.MaxReceiveBatch, time.Second)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestIntegration_FifoQueue(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	tc, err := getTestContainer(ctx)
	require.NoError(t, err)

	name := fmt.Sprintf("splitter-%d.fifo", time.Now().UnixNano())
	createQueue(ctx, t, tc.uri, name, true)

	client, err := sqs.NewClientWithLocalStack(ctx, tc.uri)
	require.NoError(t, err)

	// identical bodies are not deduplicated because every send gets its own ID
	require.NoError(t, client.Send(ctx, name, []byte(`{"same":true}`)))
	require.NoError(t, client.Send(ctx, name, []byte(`{"same":true}`)))

	var count int
	for attempt := 0; attempt < 5 && count < 2; attempt++ {
		msgs, err := client.Receive(ctx, name, sqs.MaxReceiveBatch, time.Second)
		require.NoError(t, err)
		count += len(msgs)
	}
	assert.Equal(t, 2, count)
}

func TestIntegration_QueueNotFound(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	tc, err := getTestContainer(ctx)
	require.NoError(t, err)

	client, err := sqs.NewClientWithLocalStack(ctx, tc.uri)
	require.NoError(t, err)

	err = client.Send(ctx, "does-not-exist", []byte("x"))
	assert.ErrorIs(t, err, sqs.ErrQueueNotFound)
}
