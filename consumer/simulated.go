package consumer

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/input-output-hk/catalyst-forge-libs/splitter/event"
)

// DefaultSimulatedDelay is how long Simulated pretends to work on an item.
const DefaultSimulatedDelay = 5 * time.Second

// Simulated stands in for a slow downstream: it logs the item, waits for a
// fixed delay and reports success.
type Simulated struct {
	noun   string
	delay  time.Duration
	clock  clockwork.Clock
	logger *slog.Logger
}

// SimulatedOption configures a Simulated consumer.
type SimulatedOption func(*Simulated)

// WithDelay sets the simulated processing time. Negative values mean no delay.
func WithDelay(d time.Duration) SimulatedOption {
	return func(s *Simulated) {
		s.delay = max(d, 0)
	}
}

// WithNoun sets the word logged for one item ("tag"). Defaults to "item".
func WithNoun(noun string) SimulatedOption {
	return func(s *Simulated) {
		if noun != "" {
			s.noun = noun
		}
	}
}

// WithClock sets the clock used to wait.
func WithClock(clock clockwork.Clock) SimulatedOption {
	return func(s *Simulated) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithSimulatedLogger sets the logger. A nil logger disables logging.
func WithSimulatedLogger(logger *slog.Logger) SimulatedOption {
	return func(s *Simulated) {
		s.logger = logger
	}
}

// NewSimulated creates a Simulated consumer with DefaultSimulatedDelay.
func NewSimulated(opts ...SimulatedOption) *Simulated {
	s := &Simulated{
		noun:  "item",
		delay: DefaultSimulatedDelay,
		clock: clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Process implements Consumer. It returns the context error if ctx ends
// before the delay elapses.
func (s *Simulated) Process(ctx context.Context, item event.Item) error {
	key := event.ItemKey(item)
	if s.logger != nil {
		s.logger.InfoContext(ctx, "START processing "+s.noun, "item_key", key, "item", item)
	}

	if s.delay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.clock.After(s.delay):
		}
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "DONE processing "+s.noun, "item_key", key)
	}
	return nil
}
