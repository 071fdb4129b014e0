// Package vm implements the stack-based bytecode interpreter: a Context
// per goroutine (the Go analogue of the original source's one-thread-
// per-vm_context_t model), a data stack of value.Value, a return stack
// of {PC, scope} records pushed by CALL and popped by RETURN, and an
// opcode dispatch loop driven by internal/bytecode.Op.
//
// Grounded on original_source/vm.c (vm_context_t, vm_execute,
// vm_ds_*/vm_rs_*) and bytecode.c (the inst_* handlers), generalized
// from anon_scalar_t/scalar_handle_t to value.Value/pool.Handle and
// from threads to goroutines per the teacher's cmd/orizon-repl
// read-eval-print loop structure.
package vm

import (
	"fmt"
	"io"
	"os"

	"github.com/orizon-lang/dongvm/internal/bytecode"
	"github.com/orizon-lang/dongvm/internal/chanprim"
	"github.com/orizon-lang/dongvm/internal/heap"
	"github.com/orizon-lang/dongvm/internal/rtlog"
	"github.com/orizon-lang/dongvm/internal/symtab"
	"github.com/orizon-lang/dongvm/internal/value"
)

const (
	initialDataStack   = 16
	initialReturnStack = 16
)

// returnFrame is one CALL's saved continuation: where to resume on
// RETURN, and which scope was active at the call site.
type returnFrame struct {
	pc    int
	scope *symtab.Scope
}

// Heaps bundles every pooled object kind a Context needs, so multiple
// Contexts in the same process can share one set of pools (the Go
// analogue of the original source's process-wide scalar/array/hash/
// channel pools) or each get their own, at the caller's discretion.
type Heaps struct {
	Scalars   *heap.Scalars
	Arrays    *heap.Arrays
	Hashes    *heap.Hashes
	Channels  *chanprim.Channels
	Functions *heap.Functions
	Streams   *heap.Streams
}

// NewHeaps constructs a fresh, independent set of pools.
func NewHeaps() *Heaps {
	scalars := heap.NewScalars()
	return &Heaps{
		Scalars:   scalars,
		Arrays:    heap.NewArrays(),
		Hashes:    heap.NewHashes(scalars),
		Channels:  chanprim.NewChannels(),
		Functions: heap.NewFunctions(),
		Streams:   heap.NewStreams(),
	}
}

// Context is one interpreter instance: immutable code, a program
// counter, two stacks, a current lexical scope, and the heap pools it
// reads and writes through. Run executes it to completion on the
// calling goroutine.
type Context struct {
	code []byte
	pc   int

	ds []value.Value
	rs []returnFrame

	scope *symtab.Scope
	heaps *Heaps
	out   io.Writer
	log   rtlog.Logger
	trace bool
}

// Option configures a Context at construction time, matching the
// teacher's ThreadOption functional-options pattern
// (internal/io/threading.go's WithMaxThreads/WithDefaultStackSize).
type Option func(*Context)

// WithLogger overrides the Context's Logger (rtlog.Default() otherwise).
func WithLogger(l rtlog.Logger) Option {
	return func(c *Context) { c.log = l }
}

// WithOpcodeTrace enables a Debugf line per executed instruction, for
// diagnosing a misbehaving program; off by default since it dominates
// the log at any real program size.
func WithOpcodeTrace(enabled bool) Option {
	return func(c *Context) { c.trace = enabled }
}

// WithOutput sets the destination OUT/OUTL write to, equivalent to
// calling SetOutput after construction.
func WithOutput(w io.Writer) Option {
	return func(c *Context) { c.out = w }
}

// NewContext creates a Context ready to execute prog starting at its
// declared entry offset, rooted at a fresh top-level scope chained to
// parentScope (nil for an independent top-level Context). heaps may be
// shared across multiple Contexts to let them exchange references
// through channels, arrays, and hashes.
func NewContext(prog *bytecode.Program, heaps *Heaps, parentScope *symtab.Scope, opts ...Option) *Context {
	c := &Context{
		code:  prog.Code,
		pc:    int(prog.Entry),
		ds:    make([]value.Value, 0, initialDataStack),
		rs:    make([]returnFrame, 0, initialReturnStack),
		scope: symtab.NewScope(parentScope),
		heaps: heaps,
		out:   os.Stdout,
		log:   rtlog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetOutput redirects OUT/OUTL's destination (tests substitute a
// buffer here instead of os.Stdout).
func (c *Context) SetOutput(w io.Writer) { c.out = w }

// Scope returns the Context's current lexical scope.
func (c *Context) Scope() *symtab.Scope { return c.scope }

// Heaps returns the pool bundle this Context reads and writes through.
func (c *Context) Heaps() *Heaps { return c.heaps }

// DataStackLen reports the number of Values currently on the data
// stack (tests use this to assert an empty stack at termination, per
// spec.md §8's function-call scenario).
func (c *Context) DataStackLen() int { return len(c.ds) }

func (c *Context) dsPush(v value.Value) {
	c.ds = append(c.ds, v)
}

func (c *Context) dsPop() (value.Value, error) {
	n := len(c.ds)
	if n == 0 {
		return value.Undef(), fmt.Errorf("%w: data stack underflow", ErrTrap)
	}
	v := c.ds[n-1]
	c.ds = c.ds[:n-1]
	return v, nil
}

func (c *Context) dsTop() (value.Value, error) {
	n := len(c.ds)
	if n == 0 {
		return value.Undef(), fmt.Errorf("%w: data stack underflow", ErrTrap)
	}
	return c.ds[n-1], nil
}

func (c *Context) rsPush(f returnFrame) {
	c.rs = append(c.rs, f)
}

func (c *Context) rsPop() (returnFrame, error) {
	n := len(c.rs)
	if n == 0 {
		return returnFrame{}, fmt.Errorf("%w: return stack underflow", ErrTrap)
	}
	f := c.rs[n-1]
	c.rs = c.rs[:n-1]
	return f, nil
}
