package poller

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/input-output-hk/catalyst-forge-libs/splitter"
	"github.com/input-output-hk/catalyst-forge-libs/splitter/consumer"
	"github.com/input-output-hk/catalyst-forge-libs/splitter/event"
	"github.com/input-output-hk/catalyst-forge-libs/splitter/internal/testutil"
	"github.com/input-output-hk/catalyst-forge-libs/splitter/queue/memory"
)

const testQueue = "splitter-queue"

// recorder is a consumer that remembers item keys and fails on request.
type recorder struct {
	mu   sync.Mutex
	keys []string
	fail map[string]bool
}

func (r *recorder) Process(_ context.Context, item event.Item) error {
	key := event.ItemKey(item)
	if r.fail[key] {
		return fmt.Errorf("cannot process %s", key)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keys = append(r.keys, key)
	return nil
}

func (r *recorder) Keys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.keys...)
}

func newDispatcher(t *testing.T, c consumer.Consumer) (*splitter.Dispatcher, *memory.Queue) {
	t.Helper()
	q := memory.New()
	return splitter.New(q, c, splitter.WithQueue(testQueue)), q
}

func TestBackoff(t *testing.T) {
	b := backoff{initial: time.Second, maximum: 5 * time.Second}

	assert.Equal(t, time.Second, b.next())
	assert.Equal(t, 2*time.Second, b.next())
	assert.Equal(t, 4*time.Second, b.next())
	assert.Equal(t, 5*time.Second, b.next())
	assert.Equal(t, 5*time.Second, b.next())

	b.reset()
	assert.Equal(t, time.Second, b.next())
}

func TestOptions(t *testing.T) {
	o := applyOptions([]Option{
		WithBatchSize(0),
		WithConcurrency(-1),
		WithWaitTime(time.Second),
		WithBackoff(2*time.Second, time.Second),
		WithOrigin(""),
		WithClock(nil),
		WithLogger(nil),
	})

	assert.Equal(t, 10, o.batchSize)
	assert.Equal(t, 4, o.concurrency)
	assert.Equal(t, time.Second, o.waitTime)
	assert.Equal(t, 2*time.Second, o.backoff)
	assert.Equal(t, time.Minute, o.maxBackoff)
	assert.Equal(t, "aws:sqs", o.origin)
	assert.NotNil(t, o.clock)
	assert.NotNil(t, o.logger)
}

func TestHandle_Outcomes(t *testing.T) {
	rec := &recorder{fail: map[string]bool{"tag-key-1": true}}
	d, _ := newDispatcher(t, rec)
	ctx := context.Background()
	logger := defaultOptions().logger

	tests := []struct {
		name     string
		body     string
		expected outcome
	}{
		{name: "single tag", body: string(testutil.EventNamed("CreateTags", 1)), expected: outcomeRetry},
		{name: "split", body: string(testutil.CreateTagsEvent(3)), expected: outcomeDone},
		{name: "ignored", body: string(testutil.EventNamed("DeleteTags", 2)), expected: outcomeDone},
		{name: "malformed event", body: `{"detail":{}}`, expected: outcomeDone},
		{name: "poison", body: `some non-json parsable garbage`, expected: outcomePoison},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := handle(ctx, d, recordFor(tt.body), logger)
			assert.Equal(t, tt.expected, got)
		})
	}
}
