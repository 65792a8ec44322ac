package splitter

import (
	"context"
	"log/slog"

	"github.com/input-output-hk/catalyst-forge-libs/splitter/consumer"
	"github.com/input-output-hk/catalyst-forge-libs/splitter/envelope"
	"github.com/input-output-hk/catalyst-forge-libs/splitter/errors"
	"github.com/input-output-hk/catalyst-forge-libs/splitter/event"
	"github.com/input-output-hk/catalyst-forge-libs/splitter/queue"
)

// ErrQueueNotConfigured is logged when a split finds no queue to send to.
var ErrQueueNotConfigured = errors.New(errors.CodeInvalidConfig, "queue name is empty")

// Dispatcher routes one event to the consumer or splits it onto the queue.
//
// A Dispatcher holds no per-invocation state and is safe for concurrent use
// as long as its Sender and Consumer are.
type Dispatcher struct {
	sender    queue.Sender
	consumer  consumer.Consumer
	unwrapper *envelope.Unwrapper

	queue    string
	kind     string
	namePath event.Path
	itemPath event.Path
	noun     string
	logger   *slog.Logger
}

// New creates a Dispatcher that sends split events with sender and hands
// single-item events to c.
func New(sender queue.Sender, c consumer.Consumer, opts ...Option) *Dispatcher {
	options := defaultOptions()
	for _, opt := range opts {
		opt(options)
	}

	if sender == nil {
		sender = queue.SenderFunc(func(context.Context, string, []byte) error {
			return errors.New(errors.CodeInvalidConfig, "no queue sender configured")
		})
	}
	if c == nil {
		c = consumer.Noop
	}

	return &Dispatcher{
		sender:    sender,
		consumer:  c,
		unwrapper: options.unwrapper,
		queue:     options.queue,
		kind:      options.kind,
		namePath:  options.namePath,
		itemPath:  options.itemPath,
		noun:      options.noun,
		logger:    options.logger,
	}
}

// Handle dispatches a raw inbound payload. A queue envelope is unwrapped
// first; any other payload is decoded as the event itself. A payload that is
// not a JSON object yields the malformed result. A poison envelope is
// returned as a PARSE_FAILED error.
func (d *Dispatcher) Handle(ctx context.Context, raw []byte) (Result, error) {
	ev, ok, err := d.unwrapper.Unwrap(raw)
	if err != nil {
		d.logger.ErrorContext(ctx, "failed to unwrap queued event",
			"error", err,
			"payload", string(raw))
		return Result{}, err
	}

	if !ok {
		ev, err = event.Decode(raw)
		if err != nil {
			d.logger.ErrorContext(ctx, MessageInvalidEvent,
				"error", err,
				"payload", string(raw))
			return invalidResult(), nil
		}
	}

	return d.Dispatch(ctx, ev)
}

// Dispatch classifies ev and acts on it:
//
//   - no discriminator: 400, nothing done
//   - a kind other than the configured one: 202, nothing done
//   - no item collection: 400, nothing done
//   - exactly one item: the consumer processes it, 200
//   - zero or several items: one message per item is sent, 202
//
// ev is never modified.
func (d *Dispatcher) Dispatch(ctx context.Context, ev event.Event) (Result, error) {
	name, ok := ev.Name(d.namePath)
	if !ok {
		d.logger.ErrorContext(ctx, MessageInvalidEvent,
			"reason", "event name not found",
			"path", d.namePath.String(),
			"event", ev)
		return invalidResult(), nil
	}

	if name != d.kind {
		d.logger.InfoContext(ctx, MessageIgnored, "event_name", name)
		return ignoredResult(), nil
	}

	items, ok := d.itemPath.Lookup(ev)
	if !ok {
		d.logger.ErrorContext(ctx, MessageInvalidEvent,
			"reason", "item collection not found",
			"path", d.itemPath.String(),
			"event_name", name,
			"event", ev)
		return invalidResult(), nil
	}

	if len(items) == 1 {
		return d.handle(ctx, name, items[0])
	}
	return d.split(ctx, ev, name, items)
}

func (d *Dispatcher) handle(ctx context.Context, name string, item event.Item) (Result, error) {
	key := event.ItemKey(item)
	if err := d.consumer.Process(ctx, item); err != nil {
		d.logger.ErrorContext(ctx, "failed to process item",
			"event_name", name,
			"item_key", key,
			"error", err)
		return Result{}, errors.WrapWithContext(err, errors.CodeExecutionFailed,
			"failed to process item", map[string]any{"item_key": key})
	}

	d.logger.DebugContext(ctx, "item handled", "event_name", name, "item_key", key)
	return handledResult(d.noun), nil
}

func (d *Dispatcher) split(ctx context.Context, ev event.Event, name string, items []event.Item) (Result, error) {
	n := len(items)

	if d.queue == "" {
		if n > 0 {
			d.logger.WarnContext(ctx, "skipping send of split events",
				"event_name", name,
				"item_count", n,
				"error", ErrQueueNotConfigured)
		}
		return splitResult(d.noun, n), nil
	}

	for i, item := range items {
		single, err := ev.WithItems(d.itemPath, []event.Item{item})
		if err != nil {
			return partialResult(d.noun, i, n), errors.Wrap(err, errors.CodeInternal, "failed to build split event")
		}
		body, err := single.Marshal()
		if err != nil {
			return partialResult(d.noun, i, n), errors.Wrap(err, errors.CodeInternal, "failed to encode split event")
		}

		if err := d.sender.Send(ctx, d.queue, body); err != nil {
			d.logger.ErrorContext(ctx, "failed to queue split event",
				"event_name", name,
				"queue", d.queue,
				"item_key", event.ItemKey(item),
				"index", i,
				"item_count", n,
				"error", err)
			return partialResult(d.noun, i, n), errors.WrapWithContext(err, errors.CodePublishFailed,
				"failed to queue split event",
				map[string]any{"queue": d.queue, "index": i, "item_count": n})
		}
	}

	d.logger.InfoContext(ctx, "split event",
		"event_name", name,
		"item_count", n,
		"queue", d.queue)
	return splitResult(d.noun, n), nil
}
