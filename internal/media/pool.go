package media

import (
	"context"
	"sync"
)

const DefaultParallelJobs = 4

// FileError records why one input failed.
type FileError struct {
	File string
	Err  error
}

type Summary struct {
	Succeeded []string
	Failed    []FileError
}

// ProcessAll runs fn for every item with at most workers in flight. A failed item is
// recorded and never stops the others; items not started before ctx ends fail with ctx.Err().
func ProcessAll(ctx context.Context, items []string, workers int, fn func(ctx context.Context, item string) error) *Summary {
	if workers <= 0 {
		workers = DefaultParallelJobs
	}
	sem := make(chan struct{}, workers)
	errs := make([]error, len(items))
	var wg sync.WaitGroup

	for i, item := range items {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			errs[i] = ctx.Err()
			continue
		}
		wg.Add(1)

		go func(idx int, item string) {
			defer func() {
				<-sem
				wg.Done()
			}()
			errs[idx] = fn(ctx, item)
		}(i, item)
	}
	wg.Wait()

	summary := &Summary{}
	for i, item := range items {
		if errs[i] != nil {
			summary.Failed = append(summary.Failed, FileError{File: item, Err: errs[i]})
			continue
		}
		summary.Succeeded = append(summary.Succeeded, item)
	}
	return summary
}
