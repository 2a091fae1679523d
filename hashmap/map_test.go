package hashmap

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

const testK = 21 // width = kmer.Width(21) = 1

func TestAddKmerCountsRepeats(t *testing.T) {
	m := New(97, 100, testK, 1)

	a := []uint64{42}
	for i := 0; i < 5; i++ {
		require.True(t, m.AddKmer(0, a))
	}
	m.FinishAddingKmers(0)

	var gotWords []uint64
	var gotCount uint32
	n := m.Export(0, func(words []uint64, count uint32) {
		gotWords = append([]uint64(nil), words...)
		gotCount = count
	})
	require.Equal(t, 1, n)
	require.Equal(t, a, gotWords)
	require.Equal(t, uint32(5), gotCount)
}

func TestAddKmerDistinctKeysTrackedSeparately(t *testing.T) {
	m := New(97, 100, testK, 1)

	a := []uint64{1}
	b := []uint64{2}
	c := []uint64{3}

	require.True(t, m.AddKmer(0, a))
	require.True(t, m.AddKmer(0, b))
	require.True(t, m.AddKmer(0, b))
	require.True(t, m.AddKmer(0, c))
	require.True(t, m.AddKmer(0, c))
	require.True(t, m.AddKmer(0, c))
	m.FinishAddingKmers(0)

	counts := map[uint64]uint32{}
	m.Export(0, func(words []uint64, count uint32) {
		counts[words[0]] = count
	})
	require.Equal(t, map[uint64]uint32{1: 1, 2: 2, 3: 3}, counts)
}

// TestAddKmerCollisionWithTinyTable forces every key into the same bucket
// (table capacity 1) to exercise the collision-chain walk directly, with
// the weak sum-mod-capacity hash function left untouched as required.
func TestAddKmerCollisionWithTinyTable(t *testing.T) {
	m := New(1, 100, testK, 1)

	a := []uint64{10}
	b := []uint64{20}

	require.True(t, m.AddKmer(0, a))
	require.True(t, m.AddKmer(0, b))
	require.True(t, m.AddKmer(0, a))
	m.FinishAddingKmers(0)

	counts := map[uint64]uint32{}
	m.Export(0, func(words []uint64, count uint32) {
		counts[words[0]] = count
	})
	require.Equal(t, map[uint64]uint32{10: 2, 20: 1}, counts)
}

// TestAddKmerLocksKeysOnOverflow exercises the core overflow contract: a
// single-node slab accepts its first distinct key, rejects a second
// distinct key once the slab is exhausted (the caller must treat that as
// "spill to a later pass"), yet keeps counting repeats of the key it
// already holds.
func TestAddKmerLocksKeysOnOverflow(t *testing.T) {
	m := New(1, 1, testK, 1)

	a := []uint64{1}
	b := []uint64{2}

	require.True(t, m.AddKmer(0, a), "first distinct key must be accepted")
	require.False(t, m.AddKmer(0, b), "second distinct key must overflow once the slab is full")
	require.True(t, m.AddKmer(0, a), "repeats of an already-held key must still be counted after lock")
	m.FinishAddingKmers(0)

	counts := map[uint64]uint32{}
	m.Export(0, func(words []uint64, count uint32) {
		counts[words[0]] = count
	})
	require.Equal(t, map[uint64]uint32{1: 2}, counts)
}

// TestAddKmerMultiBlockOverflowUnlocksOtherBlocks checks that when one
// thread's block is full but another thread's block still has room, a
// polling request succeeds by borrowing from that block instead of
// locking prematurely.
func TestAddKmerMultiBlockOverflowUnlocksOtherBlocks(t *testing.T) {
	m := New(97, 2, testK, 2)

	// Thread 0 uses its own node, then a second distinct key should still
	// succeed by polling into thread 1's still-empty block.
	require.True(t, m.AddKmer(0, []uint64{1}))
	require.True(t, m.AddKmer(0, []uint64{2}))

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); m.FinishAddingKmers(0) }()
	go func() { defer wg.Done(); m.FinishAddingKmers(1) }()
	wg.Wait()

	total := 0
	m.Export(0, func([]uint64, uint32) { total++ })
	m.Export(1, func([]uint64, uint32) { total++ })
	require.Equal(t, 2, total)
}

func TestClearResetsForNextPass(t *testing.T) {
	m := New(97, 100, testK, 1)
	require.True(t, m.AddKmer(0, []uint64{7}))
	m.FinishAddingKmers(0)

	m.Clear()

	n := m.Export(0, func([]uint64, uint32) {})
	require.Equal(t, 0, n, "cleared map must export nothing")

	require.True(t, m.AddKmer(0, []uint64{7}))
	m.FinishAddingKmers(0)
	n = m.Export(0, func([]uint64, uint32) {})
	require.Equal(t, 1, n)
}

func TestConcurrentAddKmerNoLostUpdates(t *testing.T) {
	const threads = 4
	const perThread = 500

	m := New(9973, 100000, testK, threads)

	var wg sync.WaitGroup
	for t := 0; t < threads; t++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for i := 0; i < perThread; i++ {
				key := uint64(i % 50)
				m.AddKmer(id, []uint64{key})
			}
			m.FinishAddingKmers(id)
		}(t)
	}
	wg.Wait()

	total := map[uint64]uint32{}
	var mu sync.Mutex
	for id := 0; id < threads; id++ {
		m.Export(id, func(words []uint64, count uint32) {
			mu.Lock()
			total[words[0]] += count
			mu.Unlock()
		})
	}

	require.Len(t, total, 50)
	for key, count := range total {
		require.Equal(t, uint32(threads*perThread/50), count, "key=%d", key)
	}
}

func TestMaxKeyCount(t *testing.T) {
	m := New(97, 100, testK, 4)
	require.Equal(t, uint64(100), m.MaxKeyCount())
}
