package heap

import (
	"github.com/orizon-lang/dongvm/internal/pool"
)

// Function is a first-class handle to a bytecode entry point, the
// runtime analogue of function_handle_t from the original vmtypes.h.
// FUNLIT pushes one of these as a value; FRCALL (call-through-reference)
// dereferences it instead of reading an inline operand.
type Function struct {
	Entry uint64
}

// Functions is the pool of Function objects.
type Functions struct {
	pool *pool.Pool[Function]
}

// NewFunctions creates an empty function-handle pool.
func NewFunctions() *Functions {
	return &Functions{pool: pool.New[Function](nil)}
}

// Allocate creates a function handle pointing at entry and returns its
// pool handle.
func (f *Functions) Allocate(entry uint64) pool.Handle {
	h := f.pool.Allocate(false)
	*f.pool.At(h) = Function{Entry: entry}
	return h
}

// Reference increments handle's refcount.
func (f *Functions) Reference(h pool.Handle) pool.Handle { return f.pool.Reference(h) }

// Release decrements handle's refcount.
func (f *Functions) Release(h pool.Handle) { f.pool.Release(h) }

// Entry returns the bytecode offset handle points to.
func (f *Functions) Entry(h pool.Handle) uint64 {
	return (*f.pool.At(h)).Entry
}
