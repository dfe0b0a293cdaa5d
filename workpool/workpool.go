// Package workpool runs a function over a slice with bounded concurrency
// while keeping results in input order.
package workpool

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/panjf2000/ants/v2"
)

// MaxConcurrency is the default upper bound on concurrent workers per run.
const MaxConcurrency = 10

// ErrNilFunc is returned when Map is called without a function.
var ErrNilFunc = errors.New("workpool: nil function")

// Workers returns the number of workers a run over n items uses.
func Workers(maxConcurrency, n int) int {
	if maxConcurrency < 1 {
		maxConcurrency = 1
	}
	if n < maxConcurrency {
		return n
	}
	return maxConcurrency
}

// Map applies fn to every item and returns the results in input order:
// results[i] is fn's output for items[i] regardless of completion order.
//
// At most min(maxConcurrency, len(items)) workers run at once. Workers pull
// indices from one shared channel, so every index is processed exactly once.
// The first error (or panic) cancels the context handed to fn, stops workers
// from taking new items and is returned.
func Map[T, R any](ctx context.Context, items []T, maxConcurrency int, fn func(ctx context.Context, index int, item T) (R, error)) ([]R, error) {
	if fn == nil {
		return nil, ErrNilFunc
	}
	results := make([]R, len(items))
	if len(items) == 0 {
		return results, nil
	}

	workers := Workers(maxConcurrency, len(items))
	pool, err := ants.NewPool(workers, ants.WithNonblocking(false))
	if err != nil {
		return nil, fmt.Errorf("workpool: creating pool: %w", err)
	}
	defer pool.Release()

	parent := ctx
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	queue := make(chan int, len(items))
	for i := range items {
		queue <- i
	}
	close(queue)

	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)
	fail := func(err error) {
		errOnce.Do(func() {
			firstErr = err
			cancel()
		})
	}

	worker := func() {
		defer wg.Done()
		for idx := range queue {
			if ctx.Err() != nil {
				return
			}
			res, err := call(ctx, idx, items[idx], fn)
			if err != nil {
				fail(err)
				return
			}
			results[idx] = res
		}
	}

	for w := 0; w < workers; w++ {
		wg.Add(1)
		if err := pool.Submit(worker); err != nil {
			wg.Done()
			fail(fmt.Errorf("workpool: submitting worker: %w", err))
			break
		}
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	if err := parent.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func call[T, R any](ctx context.Context, idx int, item T, fn func(context.Context, int, T) (R, error)) (res R, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("workpool: task %d panicked: %v", idx, r)
		}
	}()
	return fn(ctx, idx, item)
}
