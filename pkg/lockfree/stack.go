package lockfree

import (
	"sync"
	"sync/atomic"

	"code.hybscloud.com/spin"

	"github.com/jzx17/golockfree/pkg/epoch"
)

type stackNode[T any] struct {
	value T
	next  *stackNode[T]
}

// Stack is an unbounded lock-free LIFO stack (Treiber).
//
// Nodes come from a per-stack sync.Pool. Reuse is exactly what makes
// the ABA hazard real: a popped node handed straight back to the pool
// could reappear as the head while another Pop still holds the old
// pointer, and that Pop's CAS would splice a stale next pointer back
// in. Pop therefore retires nodes through the epoch collector, which
// defers the return to the pool until no pinned guard can observe them.
type Stack[T any] struct {
	_         pad
	head      atomic.Pointer[stackNode[T]]
	_         pad
	collector *epoch.Collector
	pool      sync.Pool
	freeNode  epoch.FreeFunc
}

// NewStack creates an empty stack. The collector may be shared with
// other structures; pass nil to give the stack a private one.
func NewStack[T any](c *epoch.Collector) *Stack[T] {
	if c == nil {
		c = epoch.NewCollector()
	}
	s := &Stack[T]{collector: c}
	s.pool.New = func() any { return new(stackNode[T]) }
	s.freeNode = func(item any) {
		n := item.(*stackNode[T])
		var zero T
		n.value = zero
		n.next = nil
		s.pool.Put(n)
	}
	return s
}

// Push adds a value to the top of the stack. It never fails and never
// blocks; under contention it retries the head CAS.
//
// Push needs no guard: it only copies the observed head pointer into
// the new node and never dereferences it, and a reused node at the same
// address can only win the CAS when it genuinely is the current head.
func (s *Stack[T]) Push(v T) {
	n := s.pool.Get().(*stackNode[T])
	n.value = v
	sw := spin.Wait{}
	for {
		head := s.head.Load()
		n.next = head
		if s.head.CompareAndSwap(head, n) {
			return
		}
		sw.Once()
	}
}

// Pop removes and returns the top value. The second result is false
// when the stack is empty. The removed node is retired, never freed in
// place.
func (s *Stack[T]) Pop() (T, bool) {
	var zero T
	g := s.collector.Pin()
	defer g.Unpin()

	sw := spin.Wait{}
	for {
		head := s.head.Load()
		if head == nil {
			return zero, false
		}
		next := head.next
		if s.head.CompareAndSwap(head, next) {
			v := head.value
			g.Retire(head, s.freeNode)
			return v, true
		}
		sw.Once()
	}
}

// IsEmpty reports whether the stack appeared empty at some instant.
func (s *Stack[T]) IsEmpty() bool {
	return s.head.Load() == nil
}
