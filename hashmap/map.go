// Package hashmap implements the lock-free, fixed-capacity, multi-writer
// K-mer counter at the heart of the pipeline: a chained hash table over a
// slab of pre-allocated nodes, partitioned into one contiguous block per
// worker thread so each thread can bump-allocate new nodes without
// contention, with a barrier-synchronized transition to a "keys locked"
// state once the slab is exhausted, in which existing keys' counts still
// increment but no new key is admitted.
package hashmap

import (
	"sync"
	"sync/atomic"

	"github.com/chtkc-go/chtkc/kmer"
)

// nodeBlock is one thread's private range of node IDs [startID, endID)
// plus its bump-allocation and freeze-sync state.
type nodeBlock struct {
	startID uint64
	endID   uint64

	nextID atomic.Uint64

	// currentID is the node this thread has pre-fetched and not yet
	// committed to the table; only ever touched by the owning thread.
	currentID uint64

	// synced is true once this thread has passed through the barrier
	// after keys were locked (or in FinishAddingKmers, if it had not
	// passed through it before); only ever touched by the owning thread.
	synced bool
}

// Map is the concurrent K-mer counter. Width (the number of 64-bit words
// per K-mer) is fixed at creation and every K-mer passed to AddKmer must
// have exactly that many words.
type Map struct {
	width int

	table []atomic.Uint64 // table[i] = head node id of the collision chain, 0 = null

	// Flat, parallel node storage; node id 0 is reserved as the null
	// sentinel and never holds data. Node id i's K-mer words live at
	// words[i*width : (i+1)*width].
	next  []atomic.Uint64
	count []atomic.Uint32
	words []uint64

	blocks []*nodeBlock

	keysLocked atomic.Bool
	barrier    *Barrier
}

// New creates a Map with the given table capacity and node slab size
// (nodesCount), partitioned evenly across blocksCount worker threads
// (callers of AddKmer/FinishAddingKmers/Export must use thread IDs in
// [0, blocksCount)). See PlanCapacity for deriving tableCapacity and
// nodesCount from a memory budget.
func New(tableCapacity, nodesCount uint64, k int, blocksCount int) *Map {
	width := kmer.Width(k)

	m := &Map{
		width: width,
		table: make([]atomic.Uint64, tableCapacity),
		next:  make([]atomic.Uint64, nodesCount+1),
		count: make([]atomic.Uint32, nodesCount+1),
		words: make([]uint64, (nodesCount+1)*uint64(width)),
		barrier: NewBarrier(blocksCount),
	}

	step := nodesCount / uint64(blocksCount)
	m.blocks = make([]*nodeBlock, blocksCount)
	for i := 0; i < blocksCount; i++ {
		start := 1 + step*uint64(i)
		end := 1 + step*uint64(i+1)
		if i == blocksCount-1 {
			end = nodesCount + 1
		}
		m.blocks[i] = &nodeBlock{startID: start, endID: end}
	}

	m.Clear()
	return m
}

// MaxKeyCount returns the maximum number of distinct K-mers the map can
// hold before it must lock its keys and overflow.
func (m *Map) MaxKeyCount() uint64 {
	last := m.blocks[len(m.blocks)-1]
	return last.endID - 1
}

// SetTableCapacity shrinks the usable portion of the hash table; intended
// only for tests that need to force collisions/overflow deterministically
// with a small table.
func (m *Map) SetTableCapacity(capacity uint64) {
	if capacity > uint64(len(m.table)) {
		panic("hashmap: SetTableCapacity cannot grow beyond the allocated table")
	}
	m.table = m.table[:capacity]
}

// LockKeys forces the map into its frozen state; intended only for tests
// that need to exercise the add-after-lock rejection path directly.
func (m *Map) LockKeys() {
	m.keysLocked.Store(true)
}

func (m *Map) nodeWords(id uint64) []uint64 {
	return m.words[id*uint64(m.width) : (id+1)*uint64(m.width)]
}

// hash is the table's bucket function: a deliberately weak sum of the
// K-mer's words modulo the table capacity. This is simple by design, not
// by oversight: correctness tests exercise collision handling directly by
// building a map with a tiny table capacity (New, or SetTableCapacity) to
// provoke guaranteed collisions, which requires the bucket function to be
// this predictable.
func (m *Map) hash(words []uint64) uint64 {
	var sum uint64
	for _, w := range words {
		sum += w
	}
	return sum % uint64(len(m.table))
}

func (m *Map) requestNode(blockIdx int) (id uint64, ok bool) {
	block := m.blocks[blockIdx]
	for {
		id = block.nextID.Load()
		if id == block.endID {
			return 0, false
		}
		if block.nextID.CompareAndSwap(id, id+1) {
			m.count[id].Store(0)
			return id, true
		}
	}
}

func (m *Map) pollingRequestNode(start int) (id uint64, ok bool) {
	if id, ok = m.requestNode(start); ok {
		return id, true
	}
	n := len(m.blocks)
	for i := 0; i < n-1; i++ {
		start++
		if start == n {
			start = 0
		}
		if id, ok = m.requestNode(start); ok {
			return id, true
		}
	}
	return 0, false
}

func (m *Map) incrementSaturating(id uint64) {
	for {
		c := m.count[id].Load()
		if c == ^uint32(0) {
			return
		}
		if m.count[id].CompareAndSwap(c, c+1) {
			return
		}
	}
}

// collisionListAdd walks the chain starting at *list looking for words.
// If found, it atomically increments that node's count (saturating) and
// returns its id. If not found, it returns 0 and the slot (the final
// *atomic.Uint64 in the chain, holding 0) where a new node could be
// linked in via CompareAndSwap.
func (m *Map) collisionListAdd(list *atomic.Uint64, words []uint64) (foundID uint64, tail *atomic.Uint64) {
	for {
		id := list.Load()
		if id == 0 {
			return 0, list
		}
		if kmer.Equal(m.nodeWords(id), words) {
			m.incrementSaturating(id)
			return id, nil
		}
		list = &m.next[id]
	}
}

// AddKmer records one occurrence of the canonical K-mer words (a
// width-length word array, width = kmer.Width(k)) on behalf of worker
// threadID. It returns false if the map's key set is frozen (at
// capacity) and words is not already present — the caller must then
// treat this K-mer as overflow (spill it as a super-K-mer for a later
// pass) rather than surfacing any error.
func (m *Map) AddKmer(threadID int, words []uint64) bool {
	block := m.blocks[threadID]

	if !block.synced && block.currentID == 0 {
		if id, ok := m.pollingRequestNode(threadID); ok {
			block.currentID = id
		} else {
			m.keysLocked.Store(true)
		}
	}

	// Once some thread has locked the keys, every thread must pass
	// through the barrier once to acknowledge it before any of them can
	// trust a "not found" result as final (a thread that hasn't
	// acknowledged yet might still be mid-insert of the very K-mer
	// another thread is looking up).
	if !block.synced && m.keysLocked.Load() {
		m.barrier.Wait()
		block.synced = true
	}

	tableIdx := m.hash(words)
	tail := &m.table[tableIdx]

	foundID, tail := m.collisionListAdd(tail, words)
	if foundID != 0 {
		return true
	}

	if block.synced && m.keysLocked.Load() {
		return false
	}

	id := block.currentID
	copy(m.nodeWords(id), words)
	m.count[id].Store(1)
	m.next[id].Store(0)

	for {
		foundID, tail = m.collisionListAdd(tail, words)
		if foundID != 0 {
			// Another thread inserted the same K-mer first; discard our
			// pre-fetched node's content (but keep the node itself
			// reserved for next time) by marking it empty.
			m.count[id].Store(0)
			return true
		}
		if tail.CompareAndSwap(0, id) {
			break
		}
	}
	block.currentID = 0
	return true
}

// FinishAddingKmers must be called by every worker thread once it has no
// more K-mers to add for this pass, so threads that never triggered a
// freeze still pass through the barrier exactly once.
func (m *Map) FinishAddingKmers(threadID int) {
	block := m.blocks[threadID]
	if !block.synced {
		m.barrier.Wait()
		block.synced = true
	}
}

// Clear resets the map to empty, ready for a new pass: it unlocks keys,
// rewinds every block's bump allocator, and zeroes every table slot
// (parallelized across the same number of worker threads the map was
// created with, matching the write concurrency the table was sized for).
func (m *Map) Clear() {
	m.keysLocked.Store(false)

	for _, b := range m.blocks {
		b.nextID.Store(b.startID)
		b.currentID = 0
		b.synced = false
	}

	n := len(m.blocks)
	step := len(m.table) / n
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		start := i * step
		end := (i + 1) * step
		if i == n-1 {
			end = len(m.table)
		}
		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			for j := start; j < end; j++ {
				m.table[j].Store(0)
			}
		}(start, end)
	}
	wg.Wait()
}

// Export calls fn once for every live node owned by worker threadID
// (count != 0), passing that node's K-mer words (aliasing Map-owned
// storage; callers that need to retain them must copy) and its count.
// It returns the number of nodes exported.
func (m *Map) Export(threadID int, fn func(words []uint64, count uint32)) int {
	block := m.blocks[threadID]
	exported := 0
	end := block.nextID.Load()
	for id := block.startID; id < end; id++ {
		c := m.count[id].Load()
		if c == 0 {
			continue
		}
		fn(m.nodeWords(id), c)
		exported++
	}
	return exported
}
