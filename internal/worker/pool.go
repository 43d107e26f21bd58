package worker

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

// Task is one input and what processing it produced.
type Task[T any, R any] struct {
	Input  T
	Result R
	Err    error
	// Done is false when the pool was cancelled before the input ran.
	Done bool
}

// ProcessFunc handles a single input.
type ProcessFunc[T any, R any] func(ctx context.Context, input T) (R, error)

// Pool runs a ProcessFunc over many inputs with bounded concurrency, such
// as a directory of maps or icons.
type Pool[T any, R any] struct {
	workers int
	process ProcessFunc[T, R]
}

// NewPool creates a pool of at least one worker.
func NewPool[T any, R any](workers int, fn ProcessFunc[T, R]) *Pool[T, R] {
	if workers < 1 {
		workers = 1
	}
	return &Pool[T, R]{
		workers: workers,
		process: fn,
	}
}

// Execute runs every input and returns tasks in input order. Cancelling
// ctx stops handing out inputs; tasks that never ran have Done unset.
func (p *Pool[T, R]) Execute(ctx context.Context, inputs []T) []Task[T, R] {
	results := make([]Task[T, R], len(inputs))
	for i, in := range inputs {
		results[i].Input = in
	}
	inputCh := make(chan int)

	var wg sync.WaitGroup
	for w, nw := 0, min(p.workers, max(len(inputs), 1)); w < nw; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for idx := range inputCh {
				result, err := p.process(ctx, inputs[idx])
				results[idx].Result, results[idx].Err, results[idx].Done = result, err, true
				if err != nil {
					log.Error().Err(err).Int("worker", workerID).Int("index", idx).Msg("Task failed")
				}
			}
		}(w)
	}

send:
	for i := range inputs {
		select {
		case <-ctx.Done():
			break send
		case inputCh <- i:
		}
	}
	close(inputCh)

	wg.Wait()
	return results
}

// Failed returns the tasks that ran and returned an error.
func Failed[T any, R any](tasks []Task[T, R]) []Task[T, R] {
	var out []Task[T, R]
	for _, t := range tasks {
		if t.Done && t.Err != nil {
			out = append(out, t)
		}
	}
	return out
}

// Batch splits items into consecutive slices of at most batchSize.
func Batch[T any](items []T, batchSize int) [][]T {
	if batchSize <= 0 {
		batchSize = 1
	}
	var batches [][]T
	for i := 0; i < len(items); i += batchSize {
		end := min(i+batchSize, len(items))
		batches = append(batches, items[i:end])
	}
	return batches
}
