// Package bufferqueue implements the paired blank/filled buffer queue
// that carries read data (and super-K-mer spill data) between pipeline
// stages without per-buffer allocation: a fixed pool of byte buffers
// circulates between a "blank" queue (buffers available to be filled)
// and a "filled" queue (buffers ready to be consumed).
package bufferqueue

import "github.com/chtkc-go/chtkc/boundedqueue"

// Type tags what kind of payload a Buffer currently holds.
type Type int

// Buffer payload kinds, matching the file/record formats the pipeline
// moves between its stages.
const (
	TypeFASTA Type = iota
	TypeFASTQ
	TypeSuperKmer
	TypeKmer
)

func (t Type) String() string {
	switch t {
	case TypeFASTA:
		return "fasta"
	case TypeFASTQ:
		return "fastq"
	case TypeSuperKmer:
		return "super-kmer"
	case TypeKmer:
		return "kmer"
	default:
		return "unknown"
	}
}

// Buffer is one fixed-size block in the queue's pool, tagged with the
// kind of data it currently holds and how much of it is valid.
type Buffer struct {
	Data   []byte
	Type   Type
	Length int
}

// Size returns the buffer's fixed capacity in bytes.
func (b *Buffer) Size() int {
	return len(b.Data)
}

// Queue is a fixed pool of Buffers cycling between a blank queue (not yet
// filled) and a filled queue (ready to consume), as used for both the
// read-buffer queue (file readers -> K-mer processors) and the
// write-buffer queue (K-mer processors -> file writer).
type Queue struct {
	buffers []Buffer
	blank   *boundedqueue.Queue
	filled  *boundedqueue.Queue
}

// New creates a Queue owning count buffers of the given byte size, all
// initially blank.
func New(bufferSize, count int) *Queue {
	if bufferSize <= 0 {
		panic("bufferqueue: bufferSize must be positive")
	}
	if count <= 0 {
		panic("bufferqueue: count must be positive")
	}

	q := &Queue{
		buffers: make([]Buffer, count),
		blank:   boundedqueue.New(count),
		filled:  boundedqueue.New(count),
	}
	for i := range q.buffers {
		q.buffers[i].Data = make([]byte, bufferSize)
		q.blank.Enqueue(&q.buffers[i])
	}
	// The filled queue is closed until the first StartInput: a consumer
	// that races ahead of any producer must see "no more input" rather
	// than block forever.
	q.filled.Close()
	return q
}

// StartInput must be called before producers and consumers start running
// for a pass, reopening the filled queue so DequeueFilled blocks for new
// data instead of reporting end-of-input immediately.
func (q *Queue) StartInput() {
	q.filled.Reopen()
}

// FinishInput must be called once producers have stopped (and before
// consumers are required to stop): it closes the filled queue so that any
// DequeueFilled call blocked with nothing left to drain returns
// immediately with ok=false.
func (q *Queue) FinishInput() {
	q.filled.Close()
}

// GetBlank returns a blank buffer, blocking until one is available. The
// returned buffer's Length is reset to 0.
func (q *Queue) GetBlank() *Buffer {
	v, _ := q.blank.Dequeue()
	b := v.(*Buffer)
	b.Length = 0
	return b
}

// EnqueueFilled publishes a buffer a producer has finished filling.
func (q *Queue) EnqueueFilled(b *Buffer) {
	if !q.filled.Enqueue(b) {
		panic("bufferqueue: enqueue filled buffer on a queue with input not started")
	}
}

// DequeueFilled returns the next filled buffer to consume, blocking while
// none is available. ok is false once FinishInput has been called and the
// filled queue has drained.
func (q *Queue) DequeueFilled() (b *Buffer, ok bool) {
	v, ok := q.filled.Dequeue()
	if !ok {
		return nil, false
	}
	return v.(*Buffer), true
}

// RecycleBlank returns a buffer a consumer has finished with to the blank
// pool.
func (q *Queue) RecycleBlank(b *Buffer) {
	q.blank.Enqueue(b)
}

// BuffersCount returns the size of the buffer pool.
func (q *Queue) BuffersCount() int {
	return len(q.buffers)
}
