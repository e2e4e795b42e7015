// Package lockfree provides lock-free MPMC data structures: an
// unbounded Treiber stack, a fixed-capacity ring queue and an unbounded
// segmented queue.
//
// None of the operations acquire a lock or block on another goroutine's
// progress; contention is resolved by CAS retry with a bounded
// spin-then-yield wait. Removed nodes and exhausted segments are
// retired through an epoch.Collector instead of being recycled
// directly, so pointer reuse cannot trip the ABA problem.
//
// Ordering: the stack is strictly LIFO for a single-producer,
// single-consumer pairing. The MPMC queues preserve each individual
// producer's push order but do not guarantee any interleaving across
// producers; callers that need a global order must add their own
// sequence stamp or use a single producer.
//
// Len and IsEmpty on any of these structures are approximate snapshots
// and must never be used to infer exclusive access.
package lockfree

const cacheLine = 64

// pad separates hot fields onto distinct cache lines
type pad [cacheLine]byte

// padShort keeps adjacent ring slots from sharing one cache line
type padShort [48]byte

// roundToPow2 rounds n up to the next power of two
func roundToPow2(n int) int {
	size := 1
	for size < n {
		size <<= 1
	}
	return size
}
