package poller

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/input-output-hk/catalyst-forge-libs/splitter"
	"github.com/input-output-hk/catalyst-forge-libs/splitter/consumer"
	"github.com/input-output-hk/catalyst-forge-libs/splitter/envelope"
	"github.com/input-output-hk/catalyst-forge-libs/splitter/event"
	"github.com/input-output-hk/catalyst-forge-libs/splitter/internal/testutil"
	"github.com/input-output-hk/catalyst-forge-libs/splitter/queue"
	"github.com/input-output-hk/catalyst-forge-libs/splitter/queue/memory"
)

func recordFor(body string) envelope.Record {
	return envelope.Record{MessageId: "m", ReceiptHandle: "r", Body: body, EventSource: envelope.DefaultOrigin}
}

// fakeSource serves receive results from a function and records deletes.
type fakeSource struct {
	mu        sync.Mutex
	calls     int
	receive   func(ctx context.Context, call int) ([]queue.Message, error)
	deleted   []string
	deleteErr error
	maxSeen   int
	waitSeen  time.Duration
}

func (f *fakeSource) Receive(ctx context.Context, _ string, maxMessages int, wait time.Duration) ([]queue.Message, error) {
	f.mu.Lock()
	f.calls++
	call := f.calls
	f.maxSeen = maxMessages
	f.waitSeen = wait
	f.mu.Unlock()
	return f.receive(ctx, call)
}

func (f *fakeSource) Delete(ctx context.Context, _ string, receiptHandle string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, receiptHandle)
	return nil
}

func (f *fakeSource) Deleted() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deleted...)
}

func (f *fakeSource) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func message(id, body string) queue.Message {
	return queue.Message{ID: id, ReceiptHandle: "rh-" + id, Body: body}
}

func TestSQS_Poll(t *testing.T) {
	rec := &recorder{fail: map[string]bool{"tag-key-9": true}}
	d, q := newDispatcher(t, rec)

	failing := testutil.MustJSON(map[string]any{
		"detail": map[string]any{
			"eventName": "CreateTags",
			"requestParameters": map[string]any{
				"tagSet": map[string]any{"items": []any{testutil.Tag(9)}},
			},
		},
	})

	src := &fakeSource{receive: func(context.Context, int) ([]queue.Message, error) {
		return []queue.Message{
			message("split", string(testutil.CreateTagsEvent(2))),
			message("single", string(testutil.CreateTagsEvent(1))),
			message("poison", "not json"),
			message("failing", string(failing)),
		}, nil
	}}

	p := NewSQS(src, d, testQueue, WithBatchSize(4), WithWaitTime(time.Second), WithConcurrency(2))
	n, err := p.Poll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, n)
	assert.ElementsMatch(t, []string{"rh-split", "rh-single"}, src.Deleted())
	assert.Equal(t, []string{"tag-key-1"}, rec.Keys())
	assert.Equal(t, 2, q.Len())
	assert.Equal(t, 4, src.maxSeen)
	assert.Equal(t, time.Second, src.waitSeen)
}

func TestSQS_Poll_ReceiveError(t *testing.T) {
	d, _ := newDispatcher(t, &recorder{})
	src := &fakeSource{receive: func(context.Context, int) ([]queue.Message, error) {
		return nil, fmt.Errorf("connection refused")
	}}

	n, err := NewSQS(src, d, testQueue).Poll(context.Background())
	assert.Error(t, err)
	assert.Zero(t, n)
}

func TestSQS_Poll_DeleteError(t *testing.T) {
	d, _ := newDispatcher(t, &recorder{})
	src := &fakeSource{
		receive: func(context.Context, int) ([]queue.Message, error) {
			return []queue.Message{message("a", string(testutil.CreateTagsEvent(1)))}, nil
		},
		deleteErr: fmt.Errorf("receipt handle expired"),
	}

	n, err := NewSQS(src, d, testQueue).Poll(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSQS_Run_BacksOffAndStops(t *testing.T) {
	rec := &recorder{}
	d, _ := newDispatcher(t, rec)
	clock := clockwork.NewFakeClock()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	src := &fakeSource{receive: func(ctx context.Context, call int) ([]queue.Message, error) {
		switch call {
		case 1:
			return nil, fmt.Errorf("throttled")
		case 2:
			return []queue.Message{message("a", string(testutil.CreateTagsEvent(1)))}, nil
		default:
			cancel()
			return nil, ctx.Err()
		}
	}}

	p := NewSQS(src, d, testQueue, WithClock(clock), WithBackoff(time.Second, time.Minute))

	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer waitCancel()
	require.NoError(t, clock.BlockUntilContext(waitCtx, 1))
	assert.Equal(t, 1, src.Calls())
	clock.Advance(time.Second)

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("poller did not stop")
	}

	assert.Equal(t, 3, src.Calls())
	assert.Equal(t, []string{"rh-a"}, src.Deleted())
	assert.Equal(t, []string{"tag-key-1"}, rec.Keys())
}

func TestSQS_Run_CancelledDuringBackoff(t *testing.T) {
	d, _ := newDispatcher(t, &recorder{})
	clock := clockwork.NewFakeClock()
	ctx, cancel := context.WithCancel(context.Background())

	src := &fakeSource{receive: func(context.Context, int) ([]queue.Message, error) {
		return nil, fmt.Errorf("unavailable")
	}}

	done := make(chan error, 1)
	go func() { done <- NewSQS(src, d, testQueue, WithClock(clock)).Run(ctx) }()

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer waitCancel()
	require.NoError(t, clock.BlockUntilContext(waitCtx, 1))
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("poller did not stop")
	}
	assert.Equal(t, 1, src.Calls())
}

func TestSQS_Poll_CancelDuringSplitFinishesMessage(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := memory.New()
	sender := queue.SenderFunc(func(ctx context.Context, name string, body []byte) error {
		err := q.Send(ctx, name, body)
		cancel()
		return err
	})
	d := splitter.New(sender, nil, splitter.WithQueue(testQueue))

	src := &fakeSource{receive: func(context.Context, int) ([]queue.Message, error) {
		return []queue.Message{message("split", string(testutil.CreateTagsEvent(3)))}, nil
	}}

	n, err := NewSQS(src, d, testQueue).Poll(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, n)
	assert.Equal(t, 3, q.Len())
	assert.Equal(t, []string{"rh-split"}, src.Deleted())
}

func TestSQS_Poll_CancelDuringConsumerDeletesMessage(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var processed []string
	c := consumer.Func(func(_ context.Context, item event.Item) error {
		processed = append(processed, event.ItemKey(item))
		cancel()
		return nil
	})
	d, _ := newDispatcher(t, c)

	src := &fakeSource{receive: func(context.Context, int) ([]queue.Message, error) {
		return []queue.Message{message("single", string(testutil.CreateTagsEvent(1)))}, nil
	}}

	n, err := NewSQS(src, d, testQueue).Poll(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"tag-key-1"}, processed)
	assert.Equal(t, []string{"rh-single"}, src.Deleted())
}
