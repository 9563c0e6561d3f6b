package consumer

import (
	"context"
	"errors"
	"sync"
	"time"
)

var ErrBatcherClosed = errors.New("batcher closed")

type enqueue[T any] struct {
	item T
	ack  chan error
}

// Batcher coalesces single events into store flushes. Add blocks until
// the batch holding the item flushed, so the nsq handler inherits the
// flush error and can requeue its message.
type Batcher[T any] struct {
	maxSize       int
	flushInterval time.Duration
	flushTimeout  time.Duration
	flush         func(ctx context.Context, items []T) error

	in     chan enqueue[T]
	stopCh chan struct{}
	doneCh chan struct{}
	stop   sync.Once
}

func NewBatcher[T any](maxSize int, flushInterval, flushTimeout time.Duration, flush func(ctx context.Context, items []T) error) *Batcher[T] {
	if maxSize <= 0 {
		maxSize = 256
	}
	if flushInterval <= 0 {
		flushInterval = 200 * time.Millisecond
	}
	if flushTimeout <= 0 {
		flushTimeout = 10 * time.Second
	}
	if flush == nil {
		panic("flush func is required")
	}

	b := &Batcher[T]{
		maxSize:       maxSize,
		flushInterval: flushInterval,
		flushTimeout:  flushTimeout,
		flush:         flush,
		in:            make(chan enqueue[T], maxSize),
		stopCh:        make(chan struct{}),
		doneCh:        make(chan struct{}),
	}
	go b.run()
	return b
}

// Close flushes whatever is queued and stops the loop. Nil safe.
func (b *Batcher[T]) Close() {
	if b == nil {
		return
	}
	b.stop.Do(func() { close(b.stopCh) })
	<-b.doneCh
}

// Add queues the item and waits for its batch to flush. A cancelled
// context releases the caller; the item itself may still flush, which is
// harmless under the idempotent insert.
func (b *Batcher[T]) Add(ctx context.Context, item T) error {
	if b == nil {
		return ErrBatcherClosed
	}
	ack := make(chan error, 1)

	select {
	case b.in <- enqueue[T]{item: item, ack: ack}:
	case <-b.stopCh:
		return ErrBatcherClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-ack:
		return err
	case <-b.stopCh:
		return ErrBatcherClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *Batcher[T]) run() {
	defer close(b.doneCh)

	var (
		items []T
		acks  []chan error
		due   <-chan time.Time
	)

	settle := func() {
		if len(items) == 0 {
			due = nil
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), b.flushTimeout)
		err := b.flush(ctx, items)
		cancel()

		// Acks are buffered, so a caller that already left on its own
		// context never blocks the loop.
		for _, ack := range acks {
			ack <- err
		}
		items, acks, due = nil, nil, nil
	}

	for {
		select {
		case req := <-b.in:
			if len(items) == 0 {
				due = time.After(b.flushInterval)
			}
			items = append(items, req.item)
			acks = append(acks, req.ack)
			if len(items) >= b.maxSize {
				settle()
			}
		case <-due:
			settle()
		case <-b.stopCh:
			for {
				select {
				case req := <-b.in:
					items = append(items, req.item)
					acks = append(acks, req.ack)
				default:
					settle()
					return
				}
			}
		}
	}
}
