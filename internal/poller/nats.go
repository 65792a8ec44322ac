package poller

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"golang.org/x/sync/errgroup"

	"github.com/input-output-hk/catalyst-forge-libs/splitter/envelope"
)

// Msg is the part of jetstream.Msg the NATS poller needs.
type Msg interface {
	Data() []byte
	Headers() nats.Header
	Metadata() (*jetstream.MsgMetadata, error)
	Ack() error
	Nak() error
	Term() error
}

// FetchFunc returns the next batch of messages, waiting up to wait for them.
type FetchFunc func(ctx context.Context, batch int, wait time.Duration) ([]Msg, error)

// JetStreamFetch adapts a JetStream pull consumer to a FetchFunc.
func JetStreamFetch(cons jetstream.Consumer) FetchFunc {
	return func(ctx context.Context, batch int, wait time.Duration) ([]Msg, error) {
		mb, err := cons.Fetch(batch, jetstream.FetchMaxWait(max(wait, time.Second)))
		if err != nil {
			return nil, fmt.Errorf("fetch messages: %w", err)
		}

		var msgs []Msg
		for m := range mb.Messages() {
			msgs = append(msgs, m)
		}
		if err := mb.Error(); err != nil && len(msgs) == 0 && ctx.Err() == nil {
			return nil, fmt.Errorf("fetch messages: %w", err)
		}
		return msgs, nil
	}
}

// NATS pulls messages from a JetStream consumer and hands each one to a
// Handler: handled messages are acked, failures are nakked for redelivery and
// poison messages are terminated.
type NATS struct {
	fetch   FetchFunc
	handler Handler
	opts    *options
}

// NewNATS creates a poller fed by fetch.
func NewNATS(fetch FetchFunc, handler Handler, opts ...Option) *NATS {
	return &NATS{fetch: fetch, handler: handler, opts: applyOptions(opts)}
}

// Run polls until ctx is cancelled. It returns nil on cancellation.
func (p *NATS) Run(ctx context.Context) error {
	b := backoff{initial: p.opts.backoff, maximum: p.opts.maxBackoff}
	for ctx.Err() == nil {
		if _, err := p.Poll(ctx); err != nil {
			if ctx.Err() != nil {
				break
			}
			wait := b.next()
			p.opts.logger.ErrorContext(ctx, "failed to fetch messages", "retry_in", wait, "error", err)
			if !sleep(ctx, p.opts.clock, wait) {
				break
			}
			continue
		}
		b.reset()
	}
	return nil
}

// Poll fetches and handles one batch, returning the number of messages acked.
// Cancelling ctx stops the fetch only; fetched messages are handled and
// acknowledged to completion.
func (p *NATS) Poll(ctx context.Context) (int, error) {
	msgs, err := p.fetch(ctx, p.opts.batchSize, p.opts.waitTime)
	if err != nil {
		return 0, err
	}

	work := context.WithoutCancel(ctx)

	acked := make([]bool, len(msgs))

	var g errgroup.Group
	g.SetLimit(p.opts.concurrency)
	for i, m := range msgs {
		g.Go(func() error {
			id := messageID(m)
			rec := envelope.Record{MessageId: id, Body: string(m.Data()), EventSource: p.opts.origin}

			var err error
			switch handle(work, p.handler, rec, p.opts.logger) {
			case outcomeDone:
				if err = m.Ack(); err == nil {
					acked[i] = true
				}
			case outcomePoison:
				err = m.Term()
			default:
				err = m.Nak()
			}
			if err != nil {
				p.opts.logger.ErrorContext(work, "failed to acknowledge message", "message_id", id, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()

	count := 0
	for _, ok := range acked {
		if ok {
			count++
		}
	}
	return count, nil
}

// messageID returns the publisher's Nats-Msg-Id, falling back to the stream
// sequence.
func messageID(m Msg) string {
	if id := m.Headers().Get(nats.MsgIdHdr); id != "" {
		return id
	}
	if md, err := m.Metadata(); err == nil && md != nil {
		return strconv.FormatUint(md.Sequence.Stream, 10)
	}
	return ""
}
