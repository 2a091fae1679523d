// Package memlimit implements the process-wide memory budget: a
// budget-checked allocation ledger that every major startup allocation
// (buffer pools, the hash map's node slab and table) must be reserved
// against before its backing slice is created, so a too-small -m/--mem
// budget fails cleanly instead of as a surprise OOM partway through
// startup. Grounded on original_source/src/mem_allocator.c's
// KC__MemAllocator.
package memlimit

import (
	"fmt"
	"sync"

	"github.com/chtkc-go/chtkc/chtkcerr"
)

// Budget tracks how much of a fixed byte limit remains unreserved.
type Budget struct {
	mu            sync.Mutex
	limit         uint64
	available     uint64
	reservedCount uint64
	releasedCount uint64
}

// New creates a Budget with the given byte limit, all of it available.
func New(limit uint64) *Budget {
	return &Budget{limit: limit, available: limit}
}

// Limit returns the budget's total byte limit.
func (b *Budget) Limit() uint64 {
	return b.limit
}

// Available returns how many bytes remain unreserved.
func (b *Budget) Available() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.available
}

// Reserve accounts for one allocation of size bytes under name (used
// only for the error message), returning a chtkcerr.AllocationOverLimit
// error if size exceeds what remains available rather than letting the
// caller's subsequent make()/append() run unchecked. Go's allocator
// already aligns slices suitably for their element type, so unlike the
// original's KC__mem_aligned_alloc there is no separate aligned-reserve
// path to model.
func (b *Budget) Reserve(size uint64, name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if size > b.available {
		return chtkcerr.E(chtkcerr.AllocationOverLimit, fmt.Sprintf("allocating memory for %s failed", name))
	}
	b.available -= size
	b.reservedCount++
	return nil
}

// Release records that one previously Reserve'd allocation has been
// given up. It does not restore Available: the original's KC__mem_free
// doesn't either (it is never passed a size, only a pointer), since
// nothing in this pipeline frees a startup-sized allocation before the
// whole budget is torn down anyway. Release exists so Close can assert
// the accounting balanced.
func (b *Budget) Release() {
	b.mu.Lock()
	b.releasedCount++
	b.mu.Unlock()
}

// Close asserts every Reserve was matched by a Release, mirroring
// KC__mem_allocator_free's KC__ASSERT(allocated_count == freed_count).
// Call once during process shutdown, after every pipeline component
// built against this Budget has released its allocations.
func (b *Budget) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.reservedCount != b.releasedCount {
		return fmt.Errorf("memlimit: unbalanced accounting: %d reserved, %d released", b.reservedCount, b.releasedCount)
	}
	return nil
}
