package concurrent

import (
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/orrerysim/orrery/pkg/sequence"
)

// Concurrent runs the action function for each element of the iterator in a
// separate goroutine. It waits for all goroutines to finish. If action returns
// an error, it returns the first error encountered.
func Concurrent[T any](i *sequence.Iterator[T], action func(T) error) error {
	errGroup := errgroup.Group{}
	next, stop := i.Pull()
	defer stop()

	for {
		value, valid := next()
		if !valid {
			break
		}

		errGroup.Go(func() error {
			return action(value)
		})
	}

	return errGroup.Wait()
}

// ConcurrentLimit behaves like Concurrent with at most limit goroutines in
// flight at once.
func ConcurrentLimit[T any](i *sequence.Iterator[T], limit int, action func(T) error) error {
	errGroup := errgroup.Group{}
	errGroup.SetLimit(limit)
	next, stop := i.Pull()
	defer stop()

	for {
		value, valid := next()
		if !valid {
			break
		}

		errGroup.Go(func() error {
			return action(value)
		})
	}

	return errGroup.Wait()
}

// ParallelMap applies the mapFn to each element of the iterator in parallel,
// preserving order. The workers parameter controls the number of goroutines.
func ParallelMap[T any, R any](i *sequence.Iterator[T], workers int, mapFn func(T) R) []R {
	in := i.Collect()
	out := make([]R, len(in))
	var wg sync.WaitGroup
	sem := make(chan struct{}, workers)

	for idx, val := range in {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, v T) {
			defer wg.Done()
			out[i] = mapFn(v)
			<-sem
		}(idx, val)
	}
	wg.Wait()
	return out
}

// Throttle limits the number of concurrent goroutines running action.
func Throttle[T any](i *sequence.Iterator[T], concurrency int, action func(T)) {
	var wg sync.WaitGroup
	sem := make(chan struct{}, concurrency)
	next, stop := i.Pull()
	defer stop()
	for {
		value, valid := next()
		if !valid {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(v T) {
			defer wg.Done()
			action(v)
			<-sem
		}(value)
	}
	wg.Wait()
}

// Batch processes elements in chunks of size batchSize, each chunk in a
// separate goroutine.
func Batch[T any](i *sequence.Iterator[T], batchSize int, action func([]T)) {
	in := i.Collect()
	var wg sync.WaitGroup
	for idx := 0; idx < len(in); idx += batchSize {
		end := idx + batchSize
		if end > len(in) {
			end = len(in)
		}
		wg.Add(1)
		go func(chunk []T) {
			defer wg.Done()
			action(chunk)
		}(in[idx:end])
	}
	wg.Wait()
}
