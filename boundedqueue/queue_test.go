package boundedqueue

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func ExampleQueue() {
	q := New(2)
	q.Enqueue("a")
	q.Enqueue("b")
	v, _ := q.Dequeue()
	fmt.Println(v)
	// Output: a
}

func TestQueueBasics(t *testing.T) {
	q := New(2)
	require.True(t, q.IsEmpty())
	require.False(t, q.IsFull())
	require.Equal(t, 2, q.Cap())

	require.True(t, q.Enqueue("a"))
	require.True(t, q.Enqueue("b"))
	require.True(t, q.IsFull())
	require.Equal(t, 2, q.Len())

	front, ok := q.Front()
	require.True(t, ok)
	require.Equal(t, "a", front)

	v, ok := q.Dequeue()
	require.True(t, ok)
	require.Equal(t, "a", v)

	v, ok = q.Dequeue()
	require.True(t, ok)
	require.Equal(t, "b", v)

	require.True(t, q.IsEmpty())
}

func TestQueueWraps(t *testing.T) {
	q := New(3)
	for i := 0; i < 10; i++ {
		require.True(t, q.Enqueue(i))
		v, ok := q.Dequeue()
		require.True(t, ok)
		require.Equal(t, i, v)
	}
}

// chanEmpty reports whether ch currently holds no value, without blocking.
func chanEmpty(ch chan bool) bool {
	select {
	case <-ch:
		return false
	default:
		return true
	}
}

func TestQueueBlocksOnEmptyThenWakes(t *testing.T) {
	q := New(1)
	done := make(chan bool, 1)

	go func() {
		v, ok := q.Dequeue()
		require.True(t, ok)
		require.Equal(t, "hello", v)
		done <- true
	}()

	require.True(t, chanEmpty(done))
	time.Sleep(10 * time.Millisecond)
	require.True(t, chanEmpty(done))

	q.Enqueue("hello")

	<-done
}

func TestQueueBlocksOnFullThenWakes(t *testing.T) {
	q := New(1)
	require.True(t, q.Enqueue("first"))
	done := make(chan bool, 1)

	go func() {
		ok := q.Enqueue("second")
		require.True(t, ok)
		done <- true
	}()

	require.True(t, chanEmpty(done))
	time.Sleep(10 * time.Millisecond)
	require.True(t, chanEmpty(done))

	v, ok := q.Dequeue()
	require.True(t, ok)
	require.Equal(t, "first", v)

	<-done
	v, ok = q.Dequeue()
	require.True(t, ok)
	require.Equal(t, "second", v)
}

func TestQueueCloseUnblocksDequeue(t *testing.T) {
	q := New(1)
	done := make(chan bool, 1)

	go func() {
		_, ok := q.Dequeue()
		require.False(t, ok)
		done <- true
	}()

	time.Sleep(10 * time.Millisecond)
	q.Close()
	<-done
}

func TestQueueCloseThenEnqueueFails(t *testing.T) {
	q := New(1)
	q.Close()
	require.False(t, q.Enqueue("x"))
}

func TestQueueReopen(t *testing.T) {
	q := New(1)
	q.Close()
	_, ok := q.Dequeue()
	require.False(t, ok)

	q.Reopen()
	require.True(t, q.Enqueue("again"))
	v, ok := q.Dequeue()
	require.True(t, ok)
	require.Equal(t, "again", v)
}

func TestQueueWithConcurrentProducerConsumer(t *testing.T) {
	q := New(4)
	const n = 200

	var wg sync.WaitGroup
	results := make(chan int, n)

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			q.Enqueue(i)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			v, ok := q.Dequeue()
			require.True(t, ok)
			results <- v.(int)
		}
	}()

	wg.Wait()
	close(results)

	i := 0
	for v := range results {
		require.Equal(t, i, v)
		i++
	}
	require.Equal(t, n, i)
}
