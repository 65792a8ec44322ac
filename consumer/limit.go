package consumer

import (
	"context"

	"golang.org/x/sync/semaphore"

	"github.com/input-output-hk/catalyst-forge-libs/splitter/event"
)

// Limited bounds how many items a Consumer processes at once. Callers block
// in Process until a slot is free or ctx ends.
type Limited struct {
	next Consumer
	sem  *semaphore.Weighted
}

// Limit wraps c so that at most n Process calls run concurrently. n < 1 is
// treated as 1.
func Limit(c Consumer, n int64) *Limited {
	return &Limited{next: c, sem: semaphore.NewWeighted(max(n, 1))}
}

// Process implements Consumer.
func (l *Limited) Process(ctx context.Context, item event.Item) error {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer l.sem.Release(1)
	return l.next.Process(ctx, item)
}
