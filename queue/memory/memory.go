// Package memory provides an in-process queue.Sender that records every
// message it is given.
package memory

import (
	"context"
	"slices"
	"sync"
)

// Message is a recorded send.
type Message struct {
	Queue string
	Body  []byte
}

// Queue records sent messages in order. The zero value is ready to use.
type Queue struct {
	mu       sync.Mutex
	messages []Message
	failures map[int]error
	attempts int
}

// New returns an empty Queue.
func New() *Queue {
	return &Queue{}
}

// FailOn makes the n-th send attempt (0-based, counted across all queues)
// return err instead of recording the message.
func (q *Queue) FailOn(n int, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.failures == nil {
		q.failures = make(map[int]error)
	}
	q.failures[n] = err
}

// Send implements queue.Sender.
func (q *Queue) Send(ctx context.Context, queue string, body []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	attempt := q.attempts
	q.attempts++
	if err, ok := q.failures[attempt]; ok {
		return err
	}

	q.messages = append(q.messages, Message{Queue: queue, Body: slices.Clone(body)})
	return nil
}

// Messages returns a copy of everything recorded so far.
func (q *Queue) Messages() []Message {
	q.mu.Lock()
	defer q.mu.Unlock()
	return slices.Clone(q.messages)
}

// Bodies returns the bodies recorded for queue, in send order.
func (q *Queue) Bodies(queue string) [][]byte {
	q.mu.Lock()
	defer q.mu.Unlock()

	var out [][]byte
	for _, m := range q.messages {
		if m.Queue == queue {
			out = append(out, m.Body)
		}
	}
	return out
}

// Len returns the number of recorded messages.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.messages)
}

// Attempts returns the number of Send calls, including failed ones.
func (q *Queue) Attempts() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.attempts
}

// Reset discards recorded messages, attempt counts and injected failures.
func (q *Queue) Reset() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.messages = nil
	q.failures = nil
	q.attempts = 0
}
