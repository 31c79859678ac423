// Package frameiter streams rows of columnar input through a compiled
// evaluator one Frame at a time, sequentially or fanned out across a
// threading.Pool. This is the columnar-to-pointwise bridge the batched
// evaluator is built on, the same role bfs.bfs.go's bounded queue plays in
// streaming graph frontiers without materializing them all at once.
package frameiter

import (
	"golang.org/x/sync/errgroup"

	"github.com/katalvlaran/ensemble/frame"
	"github.com/katalvlaran/ensemble/threading"
)

// Source fills one row's worth of input slots into f.
type Source interface {
	Len() int
	Fill(row int, f *frame.Frame) error
}

// Sink reads one row's worth of output slots out of f.
type Sink interface {
	Collect(row int, f *frame.Frame) error
}

// ForEach runs process once per row in src, sequentially, resetting
// outputs before each call and collecting them into sink afterward.
func ForEach(layout *frame.Layout, src Source, sink Sink, process func(f *frame.Frame)) error {
	f := layout.NewFrame()
	for row := 0; row < src.Len(); row++ {
		f.ResetOutputs()
		if err := src.Fill(row, f); err != nil {
			return err
		}
		process(f)
		if err := sink.Collect(row, f); err != nil {
			return err
		}
	}
	return nil
}

// ForEachThreaded partitions src's rows into contiguous chunks, one per
// worker in pool, and runs them concurrently via errgroup: each worker owns
// a private Frame built from layout, so no row's evaluation ever shares
// mutable state with another's. Collect is called with disjoint row
// indices across workers, which is race-free in Go even without locking
// since distinct slice/array elements are distinct memory locations.
func ForEachThreaded(layout *frame.Layout, src Source, sink Sink, process func(f *frame.Frame), pool *threading.Pool) error {
	n := src.Len()
	if n == 0 {
		return nil
	}
	threads := pool.RecommendedThreads()
	if threads > n {
		threads = n
	}
	if threads <= 1 {
		return ForEach(layout, src, sink, process)
	}

	chunk := (n + threads - 1) / threads
	var g errgroup.Group
	for start := 0; start < n; start += chunk {
		start := start
		end := start + chunk
		if end > n {
			end = n
		}
		g.Go(func() error {
			f := layout.NewFrame()
			for row := start; row < end; row++ {
				f.ResetOutputs()
				if err := src.Fill(row, f); err != nil {
					return err
				}
				process(f)
				if err := sink.Collect(row, f); err != nil {
					return err
				}
			}
			return nil
		})
	}
	return g.Wait()
}
