// MIT License
//
// Copyright (c) 2023-2026 Convoy Authors
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package actors

import (
	"sync"
	"sync/atomic"
	"unsafe"
)

// node is one mailbox queue node
type node struct {
	value atomic.Pointer[ReceiveContext]
	next  unsafe.Pointer
}

// Single global pool for queue nodes to avoid per-message allocations.
var nodePool = sync.Pool{New: func() any { return new(node) }}

// mailbox is a lock-free multi-producer, single-consumer FIFO queue.
//
// It is safe for many producer goroutines to call Enqueue concurrently while
// exactly one consumer goroutine calls Dequeue. FIFO ordering is preserved
// with respect to overall arrival order, which gives every subscriber the
// per-publisher ordering guarantee of the bus. The queue is unbounded;
// producers are never blocked.
//
// Reference: https://concurrencyfreaks.blogspot.com/2014/04/multi-producer-single-consumer-queue.html
type mailbox struct {
	head unsafe.Pointer // *node, consumer side
	tail unsafe.Pointer // *node, producer side
}

// newMailbox returns an initialized mailbox. The zero value is not usable.
func newMailbox() *mailbox {
	item := new(node)
	return &mailbox{
		head: unsafe.Pointer(item),
		tail: unsafe.Pointer(item),
	}
}

// Enqueue appends the given ReceiveContext to the tail of the mailbox. It is
// non-blocking and safe for concurrent producers.
func (m *mailbox) Enqueue(value *ReceiveContext) {
	tnode := nodePool.Get().(*node)
	tnode.value.Store(value)
	atomic.StorePointer(&tnode.next, nil)

	// swap the tail pointer and link the previous tail to this node
	prev := (*node)(atomic.SwapPointer(&m.tail, unsafe.Pointer(tnode)))
	atomic.StorePointer(&prev.next, unsafe.Pointer(tnode))
}

// Dequeue removes and returns the message at the head of the mailbox, or nil
// when the mailbox is empty. It must be called by exactly one consumer
// goroutine.
func (m *mailbox) Dequeue() *ReceiveContext {
	head := (*node)(atomic.LoadPointer(&m.head))
	next := (*node)(atomic.LoadPointer(&head.next))

	if next == nil {
		return nil
	}

	atomic.StorePointer(&m.head, unsafe.Pointer(next))
	value := next.value.Load()
	next.value.Store(nil) // avoid memory leaks

	nodePool.Put(head)
	return value
}

// IsEmpty reports whether the mailbox currently holds no messages. The result
// may become stale immediately in the presence of concurrent producers.
func (m *mailbox) IsEmpty() bool {
	head := (*node)(atomic.LoadPointer(&m.head))
	next := (*node)(atomic.LoadPointer(&head.next))
	return next == nil
}
