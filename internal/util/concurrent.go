// Package util holds the ambient helpers shared across components:
// bounded-concurrency fan-out and slog initialization, both grounded on
// the teacher's database/concurrent.go and util/logutil.go.
package util

import (
	"cmp"
	"slices"

	"golang.org/x/sync/errgroup"
)

type concurrentOutput[Tout any] struct {
	order  int
	output Tout
}

// ConcurrentMap applies f to every input with at most `concurrency` calls
// in flight (0 disables concurrency, negative means unlimited), returning
// results in input order. Used by index.Manager.RebuildAll to rebuild one
// table's worth of B-trees per goroutine after loading from disk.
func ConcurrentMap[Tin any, Tout any](inputs []Tin, concurrency int, f func(Tin) (Tout, error)) ([]Tout, error) {
	eg := errgroup.Group{}
	switch {
	case concurrency == 0:
		eg.SetLimit(1)
	case concurrency > 0:
		eg.SetLimit(concurrency)
	}

	results := make([]concurrentOutput[Tout], len(inputs))
	for i := range inputs {
		i := i
		eg.Go(func() error {
			out, err := f(inputs[i])
			if err != nil {
				return err
			}
			results[i] = concurrentOutput[Tout]{order: i, output: out}
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}

	slices.SortFunc(results, func(a, b concurrentOutput[Tout]) int {
		return cmp.Compare(a.order, b.order)
	})

	outputs := make([]Tout, len(results))
	for i, r := range results {
		outputs[i] = r.output
	}
	return outputs, nil
}
