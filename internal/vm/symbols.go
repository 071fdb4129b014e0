package vm

import (
	"github.com/orizon-lang/dongvm/internal/pool"
	"github.com/orizon-lang/dongvm/internal/symtab"
	"github.com/orizon-lang/dongvm/internal/value"
)

// Symbol kind/flag encoding for SYMDEF's inline flags word. The
// retrieved original source references a SYMBOL_TYPE_MASK and per-kind
// constants (SYMBOL_SCALAR, SYMBOL_CHANNEL, ...) whose defining header
// was not part of the recovered sources; this is a from-scratch,
// documented re-derivation covering every reference kind spec.md §3
// names (scalar/array/hash/channel), plus function for symmetry with
// FUNLIT. The low byte is the kind; bit 31 is the SHARED flag, passed
// straight through to the underlying pool's Allocate(shared bool).
const (
	SymScalar uint32 = iota
	SymArray
	SymHash
	SymChannel
	SymFunction
)

const (
	symKindMask  = 0xFF
	SymFlagShared = 0x80000000

	// defaultChannelBufsize is used when SYMDEF defines a channel: the
	// opcode carries no size operand (original_source's symbol_define
	// calls channel_allocate() bare), so a fixed default stands in for
	// an explicit bufsize. An assembler wanting a different capacity
	// should allocate the channel itself and bind it via SYMCLONE
	// instead of going through SYMDEF.
	defaultChannelBufsize = 16
)

// defineSymbol implements SYMDEF: allocate a fresh heap object of the
// kind named by flags and bind identifier to it in scope, registering a
// release callback that returns the object to its pool.
func (c *Context) defineSymbol(identifier symtab.Identifier, flags uint32) error {
	shared := flags&SymFlagShared != 0
	kind := flags & symKindMask

	var v value.Value
	var release func()

	switch kind {
	case SymScalar:
		h := c.heaps.Scalars.Allocate(shared)
		v = value.NewRef(value.ScalarRef, h)
		release = func() { c.heaps.Scalars.Release(h) }
	case SymArray:
		h := c.heaps.Arrays.Allocate(shared)
		v = value.NewRef(value.ArrayRef, h)
		release = func() { c.heaps.Arrays.Release(h) }
	case SymHash:
		h := c.heaps.Hashes.Allocate()
		v = value.NewRef(value.HashRef, h)
		release = func() { c.heaps.Hashes.Release(h) }
	case SymChannel:
		h := c.heaps.Channels.Allocate(defaultChannelBufsize)
		v = value.NewRef(value.ChannelRef, h)
		release = func() { c.heaps.Channels.Release(h) }
	case SymFunction:
		h := c.heaps.Functions.Allocate(0)
		v = value.NewRef(value.FunctionRef, h)
		release = func() { c.heaps.Functions.Release(h) }
	default:
		return &Trap{Err: errTrapf("symdef: unhandled symbol kind %d", kind)}
	}

	// A duplicate define in the current scope is a no-op rather than a
	// fault: the just-allocated handle leaks back to its pool instead
	// of leaving an unreachable orphan, matching symbol_define's own
	// debug-and-discard behavior on collision.
	if !c.scope.Define(identifier, v, release) {
		release()
	}
	return nil
}

// referentReference bumps the pool refcount backing a Ref Value,
// dispatching on its tag (SYMCLONE needs this to share a binding across
// two identifiers in the same scope chain without a double release).
func (c *Context) referentReference(v value.Value) {
	switch v.Tag {
	case value.ScalarRef:
		c.heaps.Scalars.Reference(v.Handle())
	case value.ArrayRef:
		c.heaps.Arrays.Reference(v.Handle())
	case value.HashRef:
		c.heaps.Hashes.Reference(v.Handle())
	case value.ChannelRef:
		c.heaps.Channels.Reference(v.Handle())
	case value.FunctionRef:
		c.heaps.Functions.Reference(v.Handle())
	}
}

func (c *Context) referentRelease(v value.Value) func() {
	h := v.Handle()
	switch v.Tag {
	case value.ScalarRef:
		return func() { c.heaps.Scalars.Release(h) }
	case value.ArrayRef:
		return func() { c.heaps.Arrays.Release(h) }
	case value.HashRef:
		return func() { c.heaps.Hashes.Release(h) }
	case value.ChannelRef:
		return func() { c.heaps.Channels.Release(h) }
	case value.FunctionRef:
		return func() { c.heaps.Functions.Release(h) }
	default:
		return func() {}
	}
}

// cloneSymbol implements SYMCLONE: look up identifier anywhere in the
// scope chain and, if found, bind it again in the *current* scope,
// sharing the same underlying handle (symbol_define's "as_scalar =
// scalar_reference(...)" pattern generalized to every ref kind).
func (c *Context) cloneSymbol(identifier symtab.Identifier) bool {
	v, ok := symtab.Lookup(c.scope, identifier)
	if !ok {
		return false
	}
	c.referentReference(v)
	if !c.scope.Define(identifier, v, c.referentRelease(v)) {
		// Already locally defined: undo the speculative reference.
		c.referentRelease(v)()
		return false
	}
	return true
}

// pool.Pool is referenced only by doc comments above; this blank import
// guard keeps goimports from flagging the package as unused if a future
// edit trims the Reference/Release helpers down to one tag.
var _ = pool.Handle(0)
