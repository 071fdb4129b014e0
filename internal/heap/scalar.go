// Package heap implements the pooled heap object kinds shared by scalar
// references, arrays, and hashes (the channel primitive lives in
// internal/chanprim; streams and function records live alongside these
// in stream.go and function.go). Every kind is backed by a
// internal/pool.Pool[T] so handles, refcounts, and the SHARED per-slot
// mutex are uniform across kinds, per spec.md §4.1.
package heap

import (
	"github.com/orizon-lang/dongvm/internal/pool"
	"github.com/orizon-lang/dongvm/internal/value"
)

// Scalars is the process-wide (or per-Context, see vm.Context) pool of
// scalar cells. A scalar cell is just a pooled value.Value plus whatever
// per-slot mutex the pool grants it when allocated SHARED.
type Scalars struct {
	pool *pool.Pool[value.Value]
}

// NewScalars creates an empty scalar pool.
func NewScalars() *Scalars {
	return &Scalars{pool: pool.New[value.Value](nil)}
}

// Allocate creates a fresh UNDEF scalar cell and returns its handle.
func (s *Scalars) Allocate(shared bool) pool.Handle {
	return s.pool.Allocate(shared)
}

// Reference increments handle's refcount.
func (s *Scalars) Reference(h pool.Handle) pool.Handle { return s.pool.Reference(h) }

// Release decrements handle's refcount, freeing the cell at zero.
func (s *Scalars) Release(h pool.Handle) { s.pool.Release(h) }

// Get returns a deep copy of the scalar's current value, taking the
// per-slot lock if the scalar was allocated SHARED (scalar_get_value in
// the original source).
func (s *Scalars) Get(h pool.Handle) value.Value {
	s.pool.Lock(h)
	defer s.pool.Unlock(h)
	return (*s.pool.At(h)).Clone()
}

// Set replaces the scalar's value, first discarding whatever was there
// (scalar_set_value in the original source: "first destroys prior
// payload"). When v is a reference Value, the caller is responsible for
// having already taken out a Reference on the referent — Set does not
// implicitly refcount, matching anon_scalar_assign's plain-copy
// semantics.
func (s *Scalars) Set(h pool.Handle, v value.Value) {
	s.pool.Lock(h)
	defer s.pool.Unlock(h)
	*s.pool.At(h) = v.Clone()
}

// Lock acquires the scalar's per-slot content mutex (a no-op for a
// scalar allocated non-SHARED), for callers that need to hold it across
// more than one operation (the SRLOCK/SRUNLOCK opcode pair).
func (s *Scalars) Lock(h pool.Handle) { s.pool.Lock(h) }

// Unlock releases a lock acquired by Lock.
func (s *Scalars) Unlock(h pool.Handle) { s.pool.Unlock(h) }

// Refcount exposes the pool's refcount for invariant tests.
func (s *Scalars) Refcount(h pool.Handle) uint32 { return s.pool.Refcount(h) }

// InUse reports whether handle currently names a live scalar.
func (s *Scalars) InUse(h pool.Handle) bool { return s.pool.InUse(h) }
