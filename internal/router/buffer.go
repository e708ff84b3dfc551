package router

import "sync"

// GrowableBuffer is a thread-safe FIFO that doubles its capacity when it
// reaches 70% full. A bounded buffer stops growing at its maximum capacity
// and drops the oldest item to admit a new one.
type GrowableBuffer[T any] struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []T // ring storage, len(items) is the capacity
	head   int
	count  int
	maxCap int // 0 = unbounded
	closed bool

	stats BufferStats
}

// BufferStats contains buffer statistics.
type BufferStats struct {
	Count         int   `json:"count"`
	Capacity      int   `json:"capacity"`
	TotalReceived int64 `json:"total_received"`
	TotalSent     int64 `json:"total_sent"`
	ResizeCount   int   `json:"resize_count"`
	Dropped       int64 `json:"dropped"`
}

// NewGrowableBuffer creates an unbounded buffer with the given initial capacity.
func NewGrowableBuffer[T any](initialCapacity int) *GrowableBuffer[T] {
	return NewBoundedBuffer[T](initialCapacity, 0)
}

// NewBoundedBuffer creates a buffer that grows up to maxCapacity items.
// maxCapacity <= 0 means unbounded.
func NewBoundedBuffer[T any](initialCapacity, maxCapacity int) *GrowableBuffer[T] {
	if initialCapacity < 1 {
		initialCapacity = 1
	}
	if maxCapacity > 0 && initialCapacity > maxCapacity {
		initialCapacity = maxCapacity
	}
	b := &GrowableBuffer[T]{
		items:  make([]T, initialCapacity),
		maxCap: maxCapacity,
	}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Send appends an item. Returns false if the buffer is closed.
func (b *GrowableBuffer[T]) Send(item T) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return false
	}

	if b.count+1 >= growThreshold(len(b.items)) {
		b.grow()
	}
	if b.count == len(b.items) {
		b.pop()
		b.stats.Dropped++
	}

	b.items[(b.head+b.count)%len(b.items)] = item
	b.count++
	b.stats.TotalReceived++

	b.cond.Signal()
	return true
}

// Receive blocks until an item is available or the buffer is closed.
// Returns false once the buffer is closed and empty.
func (b *GrowableBuffer[T]) Receive() (T, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for b.count == 0 && !b.closed {
		b.cond.Wait()
	}
	if b.count == 0 {
		var zero T
		return zero, false
	}

	b.stats.TotalSent++
	return b.pop(), true
}

// TryReceive returns the oldest item without blocking.
func (b *GrowableBuffer[T]) TryReceive() (T, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count == 0 {
		var zero T
		return zero, false
	}

	b.stats.TotalSent++
	return b.pop(), true
}

// DrainTo removes up to max items (all of them if max <= 0) in FIFO order.
func (b *GrowableBuffer[T]) DrainTo(max int) []T {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count == 0 {
		return nil
	}

	n := b.count
	if max > 0 && max < n {
		n = max
	}

	out := make([]T, n)
	for i := range out {
		out[i] = b.pop()
	}
	b.stats.TotalSent += int64(n)
	return out
}

// Close closes the buffer. Receivers still get the remaining items.
func (b *GrowableBuffer[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	b.cond.Broadcast()
}

// Len returns the number of buffered items.
func (b *GrowableBuffer[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// Cap returns the current capacity.
func (b *GrowableBuffer[T]) Cap() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}

// Stats returns buffer statistics.
func (b *GrowableBuffer[T]) Stats() BufferStats {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := b.stats
	s.Count = b.count
	s.Capacity = len(b.items)
	return s
}

// pop removes the head item. Caller holds the lock and has checked count > 0.
func (b *GrowableBuffer[T]) pop() T {
	item := b.items[b.head]
	var zero T
	b.items[b.head] = zero
	b.head = (b.head + 1) % len(b.items)
	b.count--
	return item
}

// grow doubles the capacity, clamped to maxCap. Caller holds the lock.
func (b *GrowableBuffer[T]) grow() {
	newCap := len(b.items) * 2
	if b.maxCap > 0 && newCap > b.maxCap {
		newCap = b.maxCap
	}
	if newCap <= len(b.items) {
		return
	}

	items := make([]T, newCap)
	for i := 0; i < b.count; i++ {
		items[i] = b.items[(b.head+i)%len(b.items)]
	}
	b.items = items
	b.head = 0
	b.stats.ResizeCount++
}

func growThreshold(capacity int) int {
	t := capacity * 70 / 100
	if t < 1 {
		t = 1
	}
	return t
}
