package hashmap

import "sync"

// Barrier is a cyclic rendezvous point for a fixed number of goroutines,
// equivalent to POSIX's pthread_barrier_t: Wait blocks until exactly n
// goroutines have called it, then releases all of them and resets for
// the next cycle.
type Barrier struct {
	mu         sync.Mutex
	cond       *sync.Cond
	n          int
	count      int
	generation int
}

// NewBarrier creates a Barrier that releases once n goroutines call Wait.
func NewBarrier(n int) *Barrier {
	b := &Barrier{n: n}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Wait blocks the calling goroutine until n goroutines (across all
// callers of this Barrier) have called Wait since the last release.
func (b *Barrier) Wait() {
	b.mu.Lock()
	gen := b.generation
	b.count++
	if b.count == b.n {
		b.count = 0
		b.generation++
		b.cond.Broadcast()
		b.mu.Unlock()
		return
	}
	for gen == b.generation {
		b.cond.Wait()
	}
	b.mu.Unlock()
}
