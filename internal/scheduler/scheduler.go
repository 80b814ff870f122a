// Package scheduler executes independent work items on a bounded worker pool
// and streams their results back in completion order.
//
// Items are pulled lazily from an iter.Seq: the feeder blocks whenever every
// worker is busy, so at most workers+1 items are ever taken from the sequence
// ahead of execution. The first failing item cancels the run and ends the
// stream with its error; there are no retries.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"runtime/debug"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// Func processes one item.
type Func[T, R any] func(ctx context.Context, item T) (R, error)

// WorkerCrashError reports a worker that panicked while processing Item.
type WorkerCrashError struct {
	Item  any
	Value any
	Stack []byte
}

func (e *WorkerCrashError) Error() string {
	return fmt.Sprintf("worker crashed on %v: %v", e.Item, e.Value)
}

// Pool runs a Func over a stream of items with a fixed concurrency limit.
type Pool[T, R any] struct {
	workers int
	fn      Func[T, R]
}

// New creates a pool running fn on up to workers items at once.
// A non-positive worker count is treated as 1.
func New[T, R any](workers int, fn Func[T, R]) *Pool[T, R] {
	if workers < 1 {
		workers = 1
	}
	return &Pool[T, R]{workers: workers, fn: fn}
}

// Workers returns the concurrency limit.
func (p *Pool[T, R]) Workers() int { return p.workers }

// Run starts processing items in the background and returns the result
// stream. The caller must drain the stream or call Close.
func (p *Pool[T, R]) Run(ctx context.Context, items iter.Seq[T]) *Results[R] {
	ctx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)

	res := &Results[R]{
		ch:     make(chan R, p.workers),
		cancel: cancel,
	}

	go func() {
		defer close(res.ch)

		for item := range items {
			if gctx.Err() != nil {
				break
			}
			res.submitted.Add(1)
			// Blocks while all workers are busy.
			g.Go(func() (err error) {
				defer func() {
					if v := recover(); v != nil {
						err = &WorkerCrashError{Item: item, Value: v, Stack: debug.Stack()}
					}
				}()

				r, err := p.fn(gctx, item)
				if err != nil {
					return err
				}
				select {
				case res.ch <- r:
					return nil
				case <-gctx.Done():
					return gctx.Err()
				}
			})
		}

		err := g.Wait()
		if err == nil {
			// The parent context may have been cancelled while no item
			// was running.
			err = ctx.Err()
		}
		res.err = err
	}()

	return res
}

// Results is a pull-based stream of results in completion order.
// It is not safe for concurrent use by multiple consumers.
type Results[R any] struct {
	ch        chan R
	cancel    context.CancelFunc
	cur       R
	err       error
	closed    atomic.Bool
	submitted atomic.Int64
	received  int64
}

// Next blocks until the next result is available. It returns false when the
// stream is exhausted or has failed; check Err afterwards.
func (r *Results[R]) Next() bool {
	v, ok := <-r.ch
	if !ok {
		var zero R
		r.cur = zero
		r.cancel()
		return false
	}
	r.cur = v
	r.received++
	return true
}

// Result returns the value read by the last successful Next.
func (r *Results[R]) Result() R { return r.cur }

// Err returns the error that ended the stream, if any. It is only
// meaningful after Next has returned false.
func (r *Results[R]) Err() error {
	if r.closed.Load() && errors.Is(r.err, context.Canceled) {
		return nil
	}
	return r.err
}

// Submitted returns the number of items handed to workers so far.
func (r *Results[R]) Submitted() int64 { return r.submitted.Load() }

// Received returns the number of results read by Next.
func (r *Results[R]) Received() int64 { return r.received }

// Close stops the run early and waits for in-flight workers to finish.
// Closing an exhausted stream is a no-op.
func (r *Results[R]) Close() error {
	r.closed.Store(true)
	r.cancel()
	for range r.ch {
	}
	return r.Err()
}

// All adapts the stream to a range-over-func sequence. A terminal error is
// yielded once, with a zero result, after the last successful result.
// Breaking out of the loop closes the stream.
func (r *Results[R]) All() iter.Seq2[R, error] {
	return func(yield func(R, error) bool) {
		for r.Next() {
			if !yield(r.Result(), nil) {
				r.Close()
				return
			}
		}
		if err := r.Err(); err != nil {
			var zero R
			yield(zero, err)
		}
	}
}
