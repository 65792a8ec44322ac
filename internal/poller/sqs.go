package poller

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/input-output-hk/catalyst-forge-libs/splitter/envelope"
	"github.com/input-output-hk/catalyst-forge-libs/splitter/queue"
)

// Source receives and acknowledges queue messages. *sqs.Client implements it.
type Source interface {
	Receive(ctx context.Context, queue string, maxMessages int, wait time.Duration) ([]queue.Message, error)
	Delete(ctx context.Context, queue, receiptHandle string) error
}

// SQS long-polls a queue and hands every message to a Handler. Handled
// messages are deleted; failed ones are left to become visible again, so the
// queue's redrive policy decides when they are dead-lettered.
type SQS struct {
	src     Source
	handler Handler
	queue   string
	opts    *options
}

// NewSQS creates a poller reading queueName from src.
func NewSQS(src Source, handler Handler, queueName string, opts ...Option) *SQS {
	return &SQS{src: src, handler: handler, queue: queueName, opts: applyOptions(opts)}
}

// Run polls until ctx is cancelled. It returns nil on cancellation.
func (p *SQS) Run(ctx context.Context) error {
	p.opts.logger.InfoContext(ctx, "polling queue",
		"queue", p.queue,
		"batch_size", p.opts.batchSize,
		"concurrency", p.opts.concurrency)

	b := backoff{initial: p.opts.backoff, maximum: p.opts.maxBackoff}
	for ctx.Err() == nil {
		if _, err := p.Poll(ctx); err != nil {
			if ctx.Err() != nil {
				break
			}
			wait := b.next()
			p.opts.logger.ErrorContext(ctx, "failed to receive messages",
				"queue", p.queue,
				"retry_in", wait,
				"error", err)
			if !sleep(ctx, p.opts.clock, wait) {
				break
			}
			continue
		}
		b.reset()
	}

	p.opts.logger.InfoContext(ctx, "stopped polling queue", "queue", p.queue)
	return nil
}

// Poll performs one receive and handles the batch. It returns the number of
// messages deleted. Only receive errors are returned; per-message failures
// are logged.
//
// Cancelling ctx stops the receive only. Messages already received are
// handled and deleted to completion, so a split is never cut short.
func (p *SQS) Poll(ctx context.Context) (int, error) {
	msgs, err := p.src.Receive(ctx, p.queue, p.opts.batchSize, p.opts.waitTime)
	if err != nil {
		return 0, err
	}

	work := context.WithoutCancel(ctx)

	done := make([]bool, len(msgs))

	var g errgroup.Group
	g.SetLimit(p.opts.concurrency)
	for i, m := range msgs {
		g.Go(func() error {
			rec := envelope.Record{
				MessageId:     m.ID,
				ReceiptHandle: m.ReceiptHandle,
				Body:          m.Body,
				Attributes:    m.Attributes,
				EventSource:   p.opts.origin,
			}
			if handle(work, p.handler, rec, p.opts.logger) != outcomeDone {
				return nil
			}

			if err := p.src.Delete(work, p.queue, m.ReceiptHandle); err != nil {
				p.opts.logger.ErrorContext(work, "failed to delete message",
					"queue", p.queue,
					"message_id", m.ID,
					"error", err)
				return nil
			}
			done[i] = true
			return nil
		})
	}
	_ = g.Wait()

	deleted := 0
	for _, ok := range done {
		if ok {
			deleted++
		}
	}
	return deleted, nil
}
