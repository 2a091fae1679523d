// Package boundedqueue implements a fixed-capacity, thread-safe FIFO
// queue with blocking Enqueue/Dequeue, built the way
// grailbio-base/syncqueue builds its LIFO: a mutex-guarded slice plus a
// condition variable, with the classic "while (condition not met) wait"
// loop around the check.
package boundedqueue

import "sync"

// Queue is a fixed-capacity FIFO. Enqueue blocks while the queue is full;
// Dequeue blocks while it is empty. Close unblocks any callers waiting in
// either direction; a closed-and-empty queue's Dequeue returns ok=false,
// and Enqueue on a closed queue always returns false.
//
// Reopen clears the closed flag, allowing the same Queue to be reused
// across passes of a multi-pass pipeline run without reallocating its
// backing array.
type Queue struct {
	mu       sync.Mutex
	notEmpty *sync.Cond
	notFull  *sync.Cond

	items  []interface{}
	front  int
	rear   int
	length int
	closed bool
}

// New creates a Queue with the given fixed capacity. capacity must be > 0.
func New(capacity int) *Queue {
	if capacity <= 0 {
		panic("boundedqueue: capacity must be positive")
	}
	q := &Queue{items: make([]interface{}, capacity)}
	q.notEmpty = sync.NewCond(&q.mu)
	q.notFull = sync.NewCond(&q.mu)
	return q
}

// Cap returns the queue's fixed capacity.
func (q *Queue) Cap() int {
	return len(q.items)
}

// Len returns the number of items currently queued.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.length
}

// IsEmpty reports whether the queue currently holds no items.
func (q *Queue) IsEmpty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.length == 0
}

// IsFull reports whether the queue is at capacity.
func (q *Queue) IsFull() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.length == len(q.items)
}

// Front returns the item at the head of the queue without removing it.
// ok is false if the queue is empty.
func (q *Queue) Front() (item interface{}, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.length == 0 {
		return nil, false
	}
	return q.items[q.front], true
}

// Enqueue adds item to the tail of the queue, blocking while the queue is
// full. It returns false without enqueuing if the queue is or becomes
// closed while waiting.
func (q *Queue) Enqueue(item interface{}) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.length == len(q.items) && !q.closed {
		q.notFull.Wait()
	}
	if q.closed {
		return false
	}
	q.items[q.rear] = item
	q.rear++
	if q.rear == len(q.items) {
		q.rear = 0
	}
	q.length++
	q.notEmpty.Signal()
	return true
}

// Dequeue removes and returns the item at the head of the queue, blocking
// while the queue is empty. ok is false only once the queue is closed and
// drained.
func (q *Queue) Dequeue() (item interface{}, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.length == 0 && !q.closed {
		q.notEmpty.Wait()
	}
	if q.length == 0 {
		return nil, false
	}
	item = q.items[q.front]
	q.items[q.front] = nil
	q.front++
	if q.front == len(q.items) {
		q.front = 0
	}
	q.length--
	q.notFull.Signal()
	return item, true
}

// Close marks the queue closed, unblocking any goroutine currently
// waiting in Enqueue or Dequeue. Already-queued items remain available to
// Dequeue until drained.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.notEmpty.Broadcast()
	q.notFull.Broadcast()
	q.mu.Unlock()
}

// Reopen clears the closed flag so the queue can be reused for another
// pass. The queue must be idle (no goroutines blocked on it) when this is
// called.
func (q *Queue) Reopen() {
	q.mu.Lock()
	q.closed = false
	q.mu.Unlock()
}
