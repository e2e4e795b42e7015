package lockfree

import (
	"sync"
	"sync/atomic"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"

	"github.com/jzx17/golockfree/pkg/epoch"
	"github.com/jzx17/golockfree/pkg/types"
)

const (
	segShift = 8
	segSize  = 1 << segShift // slots per segment
)

const (
	slotEmpty int32 = iota
	slotWritten
	slotConsumed
)

type segSlot[T any] struct {
	state atomix.Int32
	data  T
}

// segment is one fixed-size block of the unbounded queue. Local tail
// counts claimed write positions (it may overshoot segSize under
// producer races, which only means the segment is exhausted); local
// head counts consumed positions and never exceeds segSize.
type segment[T any] struct {
	_     pad
	tail  atomix.Uint64
	_     pad
	head  atomix.Uint64
	_     pad
	next  atomic.Pointer[segment[T]]
	slots [segSize]segSlot[T]
}

// UnboundedQueue is a lock-free MPMC queue over a linked list of
// fixed-size segments. Push never fails for lack of capacity: the
// producer that finds the tail segment exhausted allocates a fresh
// segment and CASes it onto the chain; producers that lose that race
// discard their allocation and follow the winner's segment.
//
// The cost of never failing is the absence of backpressure: a sustained
// producer/consumer imbalance grows process memory without bound.
// Callers that need backpressure must use BoundedQueue instead.
//
// Fully consumed segments are retired through the epoch collector.
// Both Push and Pop pin the collector, because a slow producer may
// still hold a reference to a segment the consumers have finished with;
// the guard is what keeps that segment from being recycled under it.
type UnboundedQueue[T any] struct {
	_         pad
	tail      atomic.Pointer[segment[T]]
	_         pad
	head      atomic.Pointer[segment[T]]
	_         pad
	closed    atomix.Bool
	collector *epoch.Collector
	pool      sync.Pool
	freeSeg   epoch.FreeFunc
}

// NewUnboundedQueue creates an empty queue. The collector may be shared
// with other structures; pass nil for a private one.
func NewUnboundedQueue[T any](c *epoch.Collector) *UnboundedQueue[T] {
	if c == nil {
		c = epoch.NewCollector()
	}
	q := &UnboundedQueue[T]{collector: c}
	q.pool.New = func() any { return new(segment[T]) }
	q.freeSeg = func(item any) {
		q.pool.Put(item.(*segment[T]))
	}
	first := q.newSegment()
	q.tail.Store(first)
	q.head.Store(first)
	return q
}

func (q *UnboundedQueue[T]) newSegment() *segment[T] {
	seg := q.pool.Get().(*segment[T])
	seg.tail.StoreRelaxed(0)
	seg.head.StoreRelaxed(0)
	seg.next.Store(nil)
	var zero T
	for i := range seg.slots {
		seg.slots[i].state.StoreRelaxed(slotEmpty)
		seg.slots[i].data = zero
	}
	return seg
}

// Push enqueues v. It fails only with ErrQueueClosed after Close; a
// failed segment allocation is fatal by contract (the runtime aborts on
// out-of-memory), there is no error path for it.
func (q *UnboundedQueue[T]) Push(v T) error {
	if q.closed.LoadAcquire() {
		return types.ErrQueueClosed
	}
	g := q.collector.Pin()
	defer g.Unpin()

	sw := spin.Wait{}
	for {
		seg := q.tail.Load()
		pos := seg.tail.AddAcqRel(1) - 1
		if pos < segSize {
			slot := &seg.slots[pos]
			slot.data = v
			slot.state.StoreRelease(slotWritten)
			return nil
		}
		q.advanceTail(seg)
		sw.Once()
	}
}

// advanceTail installs or follows the successor of an exhausted
// segment.
func (q *UnboundedQueue[T]) advanceTail(seg *segment[T]) {
	next := seg.next.Load()
	if next == nil {
		fresh := q.newSegment()
		if seg.next.CompareAndSwap(nil, fresh) {
			next = fresh
		} else {
			// lost the race: hand the unpublished segment back
			q.pool.Put(fresh)
			next = seg.next.Load()
		}
	}
	q.tail.CompareAndSwap(seg, next)
}

// Pop dequeues the oldest available element. Returns ErrQueueEmpty when
// nothing is ready and ErrQueueClosed once the queue is closed and
// fully drained.
func (q *UnboundedQueue[T]) Pop() (T, error) {
	var zero T
	g := q.collector.Pin()
	defer g.Unpin()

	sw := spin.Wait{}
	for {
		seg := q.head.Load()
		pos := seg.head.LoadAcquire()
		if pos >= segSize {
			// segment fully consumed: follow the chain or report empty
			next := seg.next.Load()
			if next == nil {
				return zero, q.emptyErr()
			}
			if q.head.CompareAndSwap(seg, next) {
				// q.tail may still reference the exhausted segment if
				// the producer that claimed its last slot never needed
				// a successor; move it off before retiring. Producers
				// that already loaded the old pointer are pinned, so
				// the segment outlives their claim attempts.
				q.tail.CompareAndSwap(seg, next)
				g.Retire(seg, q.freeSeg)
			}
			continue
		}

		slot := &seg.slots[pos]
		if slot.state.LoadAcquire() != slotWritten {
			if pos >= seg.tail.LoadAcquire() {
				// nothing claimed at this position
				return zero, q.emptyErr()
			}
			// a producer claimed the slot and is mid-write
			sw.Once()
			continue
		}

		if seg.head.CompareAndSwapAcqRel(pos, pos+1) {
			v := slot.data
			slot.data = zero
			slot.state.StoreRelease(slotConsumed)
			return v, nil
		}
		sw.Once()
	}
}

func (q *UnboundedQueue[T]) emptyErr() error {
	if q.closed.LoadAcquire() {
		return types.ErrQueueClosed
	}
	return types.ErrQueueEmpty
}

// Close marks the queue as accepting no further pushes. Concurrent
// pushes past the closed check may still land; enforcement of the
// submission boundary belongs to the caller. Remaining elements stay
// poppable until drained.
func (q *UnboundedQueue[T]) Close() {
	q.closed.StoreRelease(true)
}
