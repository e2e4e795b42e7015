package lockfree

import (
	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"

	"github.com/jzx17/golockfree/pkg/types"
)

type boundedSlot[T any] struct {
	// seq identifies which lap of the ring currently owns the slot:
	// seq == pos       -> ready for the producer claiming pos
	// seq == pos+1     -> ready for the consumer claiming pos
	// anything behind  -> the previous lap has not been consumed yet
	seq  atomix.Uint64
	data T
	_    padShort
}

// BoundedQueue is a fixed-capacity lock-free MPMC ring queue using
// per-slot sequence counters for ABA-safe slot claiming.
//
// The footprint is fixed at construction; no allocation happens after
// New. Push signals a full queue immediately with ErrQueueFull instead
// of waiting, which is the backpressure mechanism: the rejected value
// stays with the caller. The full threshold is exactly the requested
// capacity; the ring itself is sized to the next power of two for mask
// indexing, but the extra slots are never admitted into.
type BoundedQueue[T any] struct {
	_        pad
	tail     atomix.Uint64
	_        pad
	head     atomix.Uint64
	_        pad
	closed   atomix.Bool
	_        pad
	buffer   []boundedSlot[T]
	mask     uint64
	capacity uint64 // requested capacity, may be below len(buffer)
}

// NewBoundedQueue creates a queue holding at most capacity elements.
// Capacity must be at least 2.
func NewBoundedQueue[T any](capacity int) *BoundedQueue[T] {
	if capacity < 2 {
		panic("lockfree: capacity must be >= 2")
	}
	n := uint64(roundToPow2(capacity))
	q := &BoundedQueue[T]{
		buffer:   make([]boundedSlot[T], n),
		mask:     n - 1,
		capacity: uint64(capacity),
	}
	for i := uint64(0); i < n; i++ {
		q.buffer[i].seq.StoreRelaxed(i)
	}
	return q
}

// Push enqueues v. Returns ErrQueueFull once the queue holds a full
// capacity of unconsumed elements and ErrQueueClosed after Close; in
// both cases v stays with the caller. Push never blocks and never drops
// a value silently.
func (q *BoundedQueue[T]) Push(v T) error {
	if q.closed.LoadAcquire() {
		return types.ErrQueueClosed
	}
	sw := spin.Wait{}
	for {
		tail := q.tail.LoadAcquire()
		// head only moves forward, so a claim admitted against this
		// snapshot can never push occupancy past the requested capacity
		if tail-q.head.LoadAcquire() >= q.capacity {
			return types.ErrQueueFull
		}
		slot := &q.buffer[tail&q.mask]
		seq := slot.seq.LoadAcquire()
		diff := int64(seq) - int64(tail)

		if diff == 0 {
			if q.tail.CompareAndSwapAcqRel(tail, tail+1) {
				slot.data = v
				slot.seq.StoreRelease(tail + 1)
				return nil
			}
		} else if diff < 0 {
			// the previous lap's consumer has not released the slot yet;
			// surface it as the retryable full condition
			return types.ErrQueueFull
		}
		sw.Once()
	}
}

// Pop dequeues the oldest available element. Returns ErrQueueEmpty when
// nothing is ready and ErrQueueClosed once the queue is closed and
// fully drained.
func (q *BoundedQueue[T]) Pop() (T, error) {
	var zero T
	sw := spin.Wait{}
	for {
		head := q.head.LoadAcquire()
		slot := &q.buffer[head&q.mask]
		seq := slot.seq.LoadAcquire()
		diff := int64(seq) - int64(head+1)

		if diff == 0 {
			if q.head.CompareAndSwapAcqRel(head, head+1) {
				v := slot.data
				slot.data = zero
				slot.seq.StoreRelease(head + q.mask + 1)
				return v, nil
			}
		} else if diff < 0 {
			if q.closed.LoadAcquire() && q.head.LoadAcquire() == q.tail.LoadAcquire() {
				return zero, types.ErrQueueClosed
			}
			return zero, types.ErrQueueEmpty
		}
		sw.Once()
	}
}

// Len returns an approximate element count. It is a racy snapshot, only
// useful for monitoring.
func (q *BoundedQueue[T]) Len() int {
	tail := q.tail.LoadAcquire()
	head := q.head.LoadAcquire()
	if tail <= head {
		return 0
	}
	n := tail - head
	if n > q.capacity {
		n = q.capacity
	}
	return int(n)
}

// Cap returns the capacity requested at construction.
func (q *BoundedQueue[T]) Cap() int {
	return int(q.capacity)
}

// Close marks the queue as accepting no further pushes. Concurrent
// pushes that already claimed a slot may still complete; enforcement of
// the submission boundary belongs to the caller. Remaining elements
// stay poppable until drained.
func (q *BoundedQueue[T]) Close() {
	q.closed.StoreRelease(true)
}
