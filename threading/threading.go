// Package threading provides the minimal thread-pool abstraction the
// batched evaluator and frame iterator need: how many workers to use, and
// how to fan work out across them. It is deliberately thin, mirroring
// core.Graph's preference for a small, concrete handle type over an
// elaborate executor framework.
package threading

import "runtime"

// Pool reports how many workers to use for parallel work and fans
// goroutines out across them.
type Pool struct {
	threads int
}

// NewPool returns a Pool configured to use threads workers. threads <= 0
// means "use the recommended value" (runtime.GOMAXPROCS(0)).
func NewPool(threads int) *Pool {
	if threads <= 0 {
		threads = runtime.GOMAXPROCS(0)
	}
	return &Pool{threads: threads}
}

// RecommendedThreads returns the number of workers this pool uses.
func (p *Pool) RecommendedThreads() int { return p.threads }

// Go starts fn on a new goroutine and returns a join function that blocks
// until fn returns.
func (p *Pool) Go(fn func()) (join func()) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		fn()
	}()
	return func() { <-done }
}
