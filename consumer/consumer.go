// Package consumer defines the singleton consumer: the component that does the
// real work for an event carrying exactly one item.
//
// The dispatcher calls Process synchronously for single-item events; an error
// fails the invocation so the queue redelivers the message.
package consumer

import (
	"context"

	"github.com/input-output-hk/catalyst-forge-libs/splitter/event"
)

// Consumer processes a single item.
type Consumer interface {
	Process(ctx context.Context, item event.Item) error
}

// Func adapts a function to the Consumer interface.
type Func func(ctx context.Context, item event.Item) error

// Process calls f.
func (f Func) Process(ctx context.Context, item event.Item) error {
	return f(ctx, item)
}

// Noop is a Consumer that accepts every item.
var Noop Consumer = Func(func(context.Context, event.Item) error { return nil })
