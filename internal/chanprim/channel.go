// Package chanprim implements the bounded, blocking ring-buffer channel
// primitive: a fixed-capacity queue of value.Value with blocking
// Read/Write, online Grow/Shrink, and an explicit Close. Grounded on the
// original channel.c (mutex plus two condition variables, "has_items"
// and "has_space") and on the teacher's internal/io threading package's
// use of sync primitives for runtime-level concurrency.
package chanprim

import (
	"errors"
	"sync"

	"github.com/orizon-lang/dongvm/internal/value"
)

// ErrClosed is returned by Write and Grow once Close has run, by Read
// once a closed channel's buffer is empty, and by a Shrink that still has
// to wait for room when it finds the channel closed.
var ErrClosed = errors.New("chanprim: channel closed")

// Channel is a fixed-capacity ring buffer of value.Value guarded by a
// single mutex and two condition variables, exactly mirroring
// channel_t's m_has_items/m_has_space pair.
type Channel struct {
	mu       sync.Mutex
	hasItems *sync.Cond
	hasSpace *sync.Cond
	buf      []value.Value
	start    int
	count    int
	closed   bool
}

// New creates a channel with the given fixed capacity. bufsize must be
// > 0, matching channel_init's precondition.
func New(bufsize int) *Channel {
	if bufsize <= 0 {
		panic("chanprim: bufsize must be > 0")
	}
	c := &Channel{buf: make([]value.Value, bufsize)}
	c.hasItems = sync.NewCond(&c.mu)
	c.hasSpace = sync.NewCond(&c.mu)
	return c
}

// Len returns the number of items currently buffered.
func (c *Channel) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}

// Cap returns the channel's current fixed capacity.
func (c *Channel) Cap() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.buf)
}

// Read blocks until an item is available or the channel is closed,
// removing and returning the oldest buffered item (channel_read in the
// original source). Draining continues to work after Close as long as
// buffered items remain; ErrClosed is returned only once the buffer is
// empty and closed.
func (c *Channel) Read() (value.Value, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for c.count == 0 {
		if c.closed {
			return value.Undef(), ErrClosed
		}
		c.hasItems.Wait()
	}
	v := c.buf[c.start]
	c.buf[c.start] = value.Undef()
	c.start = (c.start + 1) % len(c.buf)
	c.count--
	c.hasSpace.Signal()
	return v, nil
}

// TryRead removes and returns the oldest buffered item without
// blocking. ok is false if the buffer was empty (whether or not the
// channel is closed).
func (c *Channel) TryRead() (v value.Value, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.count == 0 {
		return value.Undef(), false
	}
	v = c.buf[c.start]
	c.buf[c.start] = value.Undef()
	c.start = (c.start + 1) % len(c.buf)
	c.count--
	c.hasSpace.Signal()
	return v, true
}

// Write blocks until buffer space is available or the channel is
// closed, then appends v at the tail (channel_write in the original
// source). Writing to a closed channel returns ErrClosed immediately.
func (c *Channel) Write(v value.Value) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	for c.count >= len(c.buf) {
		c.hasSpace.Wait()
		if c.closed {
			return ErrClosed
		}
	}
	index := (c.start + c.count) % len(c.buf)
	c.buf[index] = v
	c.count++
	c.hasItems.Signal()
	return nil
}

// resizeLocked reallocates the ring buffer to newSize, unrotating the
// existing contents so index 0 of the new buffer is the current head,
// exactly as _channel_resize_nonlocking does. Must be called with c.mu
// held.
func (c *Channel) resizeLocked(newSize int) {
	newBuf := make([]value.Value, newSize)
	straight := c.count
	if len(c.buf)-c.start < straight {
		straight = len(c.buf) - c.start
	}
	rotated := c.count - straight
	copy(newBuf[0:straight], c.buf[c.start:c.start+straight])
	copy(newBuf[straight:straight+rotated], c.buf[0:rotated])
	c.buf = newBuf
	c.start = 0
}

// Grow enlarges the channel's capacity to newSize, signaling any
// blocked writer. A newSize that does not exceed the current capacity
// is a silent no-op, matching channel_grow_buffer.
func (c *Channel) Grow(newSize int) error {
	if newSize <= 0 {
		panic("chanprim: newSize must be > 0")
	}
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	grew := false
	if newSize > len(c.buf) {
		c.resizeLocked(newSize)
		grew = true
	}
	c.mu.Unlock()
	if grew {
		c.hasSpace.Signal()
	}
	return nil
}

// Shrink reduces the channel's capacity to newSize, blocking until the
// buffered count drops to newSize or below (channel_shrink_buffer). A
// newSize that is not smaller than the current capacity is a silent
// no-op.
func (c *Channel) Shrink(newSize int) error {
	if newSize <= 0 {
		panic("chanprim: newSize must be > 0")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if newSize >= len(c.buf) {
		return nil
	}
	for c.count > newSize {
		if c.closed {
			return ErrClosed
		}
		c.hasSpace.Wait()
	}
	c.resizeLocked(newSize)
	return nil
}

// Close marks the channel closed and wakes every blocked reader and
// writer. Buffered items already written remain readable via Read/TryRead
// until drained; this is an addition over the original source (which had
// no explicit close), resolving spec.md's Open Question on channel
// closure semantics.
func (c *Channel) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.hasItems.Broadcast()
	c.hasSpace.Broadcast()
}

// Closed reports whether Close has been called.
func (c *Channel) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
