package heap

import (
	"sync"

	"github.com/orizon-lang/dongvm/internal/pool"
	"github.com/orizon-lang/dongvm/internal/value"
)

// Array is an owned, resizable sequence of Values. Push/pop at the tail
// are amortized O(1); unshift/shift at the head move elements, matching
// array_push/array_pop/array_unshift/array_shift in the original source.
// Go's append already gives us amortized growth, so there is no
// "ARRAY_GROW_SIZE" constant to mirror explicitly.
type Array struct {
	mu    sync.Mutex
	items []value.Value
}

// Arrays is the pool of Array objects.
type Arrays struct {
	pool *pool.Pool[*Array]
}

// NewArrays creates an empty array pool.
func NewArrays() *Arrays {
	return &Arrays{pool: pool.New[*Array](func(a **Array) { *a = nil })}
}

// Allocate creates a fresh empty array and returns its handle.
func (a *Arrays) Allocate(shared bool) pool.Handle {
	h := a.pool.Allocate(shared)
	*a.pool.At(h) = &Array{}
	return h
}

// Reference increments handle's refcount.
func (a *Arrays) Reference(h pool.Handle) pool.Handle { return a.pool.Reference(h) }

// Release decrements handle's refcount, dropping the backing slice at
// zero so every element's owned STRING/ref payload becomes collectible.
func (a *Arrays) Release(h pool.Handle) { a.pool.Release(h) }

func (a *Arrays) get(h pool.Handle) *Array {
	a.pool.Lock(h)
	defer a.pool.Unlock(h)
	return *a.pool.At(h)
}

// Len returns the number of elements currently stored.
func (a *Arrays) Len(h pool.Handle) int {
	arr := a.get(h)
	arr.mu.Lock()
	defer arr.mu.Unlock()
	return len(arr.items)
}

// ItemAt returns the Value at index i. i must be < Len(h); out-of-range
// access is undefined at the opcode level per spec.md §4.3 ("pop/shift on
// empty are undefined at the opcode level; callers must check") and
// panics here rather than silently returning garbage.
func (a *Arrays) ItemAt(h pool.Handle, i int) value.Value {
	arr := a.get(h)
	arr.mu.Lock()
	defer arr.mu.Unlock()
	return arr.items[i]
}

// Push appends v to the tail, taking ownership of it (moved in, per
// spec.md §4.3).
func (a *Arrays) Push(h pool.Handle, v value.Value) {
	arr := a.get(h)
	arr.mu.Lock()
	defer arr.mu.Unlock()
	arr.items = append(arr.items, v)
}

// Pop removes and returns the tail Value. Panics if empty; callers (the
// ARPOP opcode handler) must check Len first.
func (a *Arrays) Pop(h pool.Handle) value.Value {
	arr := a.get(h)
	arr.mu.Lock()
	defer arr.mu.Unlock()
	n := len(arr.items)
	v := arr.items[n-1]
	arr.items = arr.items[:n-1]
	return v
}

// Unshift inserts v at the head, shifting every existing element up by
// one (array_unshift in the original source moves memory; Go's slice
// insert does the same).
func (a *Arrays) Unshift(h pool.Handle, v value.Value) {
	arr := a.get(h)
	arr.mu.Lock()
	defer arr.mu.Unlock()
	arr.items = append(arr.items, value.Undef())
	copy(arr.items[1:], arr.items)
	arr.items[0] = v
}

// Shift removes and returns the head Value, shifting the remainder down.
// Panics if empty.
func (a *Arrays) Shift(h pool.Handle) value.Value {
	arr := a.get(h)
	arr.mu.Lock()
	defer arr.mu.Unlock()
	v := arr.items[0]
	copy(arr.items, arr.items[1:])
	arr.items = arr.items[:len(arr.items)-1]
	return v
}

// Splice returns a new, independent Array (registered in this same pool
// and returned as a fresh handle) holding a copy of the n elements
// starting at index i, matching array_splice's copy-out semantics.
func (a *Arrays) Splice(h pool.Handle, i, n int) pool.Handle {
	arr := a.get(h)
	arr.mu.Lock()
	src := make([]value.Value, n)
	copy(src, arr.items[i:i+n])
	arr.mu.Unlock()

	newH := a.Allocate(false)
	newArr := a.get(newH)
	newArr.items = src
	return newH
}
