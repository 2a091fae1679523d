package hashmap

import "github.com/chtkc-go/chtkc/kmer"

// nodeIDSize is the on-the-wire/in-memory size, in bytes, of a node ID
// (this package always uses uint64 node IDs; the original C
// implementation's 32-bit KC__MEM_OPT build variant is not reproduced
// here, see DESIGN.md).
const nodeIDSize = 8

// nodeOverheadSize is the per-node byte cost outside of the packed K-mer
// itself: an 8-byte next-pointer plus a 4-byte count.
const nodeOverheadSize = nodeIDSize + 4

// PlanCapacity derives how many hash-map nodes and how large a hash table
// can be built inside memBudget bytes for K-mers of length k, following
// the same split the original sizing does: nodes and table memory are
// apportioned so that (roughly) 3 nodes are allocated for every 4 table
// slots, then the table takes the remaining bytes and is rounded down to the nearest
// size that is itself a prime number (reducing clustering from the weak
// hash function, see Map's hash method).
func PlanCapacity(memBudget uint64, k int) (nodesCount, tableCapacity uint64) {
	width := kmer.Width(k)
	nodeSize := nodeOverheadSize + width*8

	nodesCount = memBudget / (uint64(nodeSize)*3 + nodeIDSize*4) * 3
	nodesMem := uint64(nodeSize) * nodesCount

	tableMemLimit := memBudget - nodesMem
	tableCapacityLimit := tableMemLimit / nodeIDSize
	tableCapacity = maxPrimeNumber(tableCapacityLimit)
	return nodesCount, tableCapacity
}

func isPrime(n uint64) bool {
	if n < 2 {
		return false
	}
	for i := uint64(2); i*i <= n; i++ {
		if n%i == 0 {
			return false
		}
	}
	return true
}

// maxPrimeNumber returns the largest prime <= limit. It panics if no
// prime exists at or below limit (i.e. limit < 2), which signals a memory
// budget too small to build any usable hash table.
func maxPrimeNumber(limit uint64) uint64 {
	n := limit
	for n > 0 && !isPrime(n) {
		n--
	}
	if n == 0 {
		panic("hashmap: no prime table capacity fits in the given memory budget")
	}
	return n
}
