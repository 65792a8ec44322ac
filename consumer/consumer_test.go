package consumer

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/input-output-hk/catalyst-forge-libs/splitter/event"
	"github.com/input-output-hk/catalyst-forge-libs/splitter/internal/testutil"
)

func TestFunc(t *testing.T) {
	var got event.Item
	c := Func(func(_ context.Context, item event.Item) error {
		got = item
		return fmt.Errorf("boom")
	})

	err := c.Process(context.Background(), testutil.Tag(1))
	assert.EqualError(t, err, "boom")
	assert.Equal(t, "tag-key-1", event.ItemKey(got))

	assert.NoError(t, Noop.Process(context.Background(), nil))
}

func TestSimulated_WaitsForDelay(t *testing.T) {
	clock := clockwork.NewFakeClock()
	var logs bytes.Buffer
	s := NewSimulated(
		WithClock(clock),
		WithNoun("tag"),
		WithSimulatedLogger(slog.New(slog.NewTextHandler(&logs, nil))),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- s.Process(ctx, testutil.Tag(1))
	}()

	require.NoError(t, clock.BlockUntilContext(ctx, 1))

	clock.Advance(DefaultSimulatedDelay - time.Second)
	select {
	case <-done:
		t.Fatal("returned before the delay elapsed")
	default:
	}

	clock.Advance(time.Second)
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-ctx.Done():
		t.Fatal("did not return after the delay")
	}

	assert.Contains(t, logs.String(), "START processing tag")
	assert.Contains(t, logs.String(), "DONE processing tag")
	assert.Contains(t, logs.String(), "item_key=tag-key-1")
}

func TestSimulated_Noun(t *testing.T) {
	tests := []struct {
		name     string
		opts     []SimulatedOption
		expected string
	}{
		{name: "default", expected: "item"},
		{name: "configured", opts: []SimulatedOption{WithNoun("label")}, expected: "label"},
		{name: "empty keeps default", opts: []SimulatedOption{WithNoun("")}, expected: "item"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var logs bytes.Buffer
			opts := append([]SimulatedOption{
				WithDelay(0),
				WithSimulatedLogger(slog.New(slog.NewTextHandler(&logs, nil))),
			}, tt.opts...)

			require.NoError(t, NewSimulated(opts...).Process(context.Background(), testutil.Tag(1)))
			assert.Contains(t, logs.String(), "START processing "+tt.expected)
			assert.Contains(t, logs.String(), "DONE processing "+tt.expected)
		})
	}
}

func TestSimulated_ContextCancelled(t *testing.T) {
	s := NewSimulated(WithClock(clockwork.NewFakeClock()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, s.Process(ctx, testutil.Tag(1)), context.Canceled)
}

func TestSimulated_NoDelay(t *testing.T) {
	s := NewSimulated(WithDelay(-time.Second))
	assert.NoError(t, s.Process(context.Background(), testutil.Tag(1)))
}
