package vm

import (
	"math"

	"github.com/orizon-lang/dongvm/internal/bytecode"
	"github.com/orizon-lang/dongvm/internal/chanprim"
	"github.com/orizon-lang/dongvm/internal/pool"
	"github.com/orizon-lang/dongvm/internal/symtab"
	"github.com/orizon-lang/dongvm/internal/value"
)

// handler reads any inline operands for its opcode starting at c.pc+1,
// performs the opcode's effect, and returns the signed delta Run adds to
// c.pc afterward (mirroring the original source's per-instruction
// handler contract from vm_execute).
type handler func(c *Context) (int, error)

var handlers map[bytecode.Op]handler

func init() {
	handlers = map[bytecode.Op]handler{
		bytecode.DROP: opDrop,
		bytecode.SWAP: opSwap,
		bytecode.DUP:  opDup,
		bytecode.OVER: opOver,

		bytecode.BRANCH:  opBranch,
		bytecode.BRANCH0: opBranch0,
		bytecode.CALL:    opCall,
		bytecode.RETURN:  opReturn,

		bytecode.SYMDEF:   opSymdef,
		bytecode.SYMFIND:  opSymfind,
		bytecode.SYMCLONE: opSymclone,
		bytecode.SYMUNDEF: opSymundef,

		bytecode.SRLOCK:   opSrlock,
		bytecode.SRUNLOCK: opSrunlock,
		bytecode.SRREAD:   opSrread,
		bytecode.SRWRITE:  opSrwrite,

		bytecode.ARINDEX:  opArindex,
		bytecode.ARPUSH:   opArpush,
		bytecode.ARPOP:    opArpop,
		bytecode.ARSHFT:   opArshift,
		bytecode.ARUNSHFT: opArunshift,

		bytecode.HRINDEX:  opHrindex,
		bytecode.HRKEYEX:  opHrkeyex,
		bytecode.HRKEYDEL: opHrkeydel,

		bytecode.CRREAD:  opCrread,
		bytecode.CRWRITE: opCrwrite,

		bytecode.FRCALL: opFrcall,

		bytecode.INTLIT:  opIntlit,
		bytecode.INTADD:  intBinop(func(a, b int64) int64 { return a + b }),
		bytecode.INTSUBT: intBinop(func(a, b int64) int64 { return a - b }),
		bytecode.INTMULT: intBinop(func(a, b int64) int64 { return a * b }),
		bytecode.INTDIV:  opIntdiv,
		bytecode.INTMOD:  opIntmod,

		bytecode.STRLIT: opStrlit,
		bytecode.STRCAT: opStrcat,

		bytecode.FLTLIT:  opFltlit,
		bytecode.FLTADD:  fltBinop(func(a, b float64) float64 { return a + b }),
		bytecode.FLTSUBT: fltBinop(func(a, b float64) float64 { return a - b }),
		bytecode.FLTMULT: fltBinop(func(a, b float64) float64 { return a * b }),
		bytecode.FLTDIV:  fltBinop(func(a, b float64) float64 { return a / b }),
		bytecode.FLTMOD:  fltBinop(math.Mod),

		bytecode.FUNLIT: opFunlit,

		bytecode.OUT:  opOut,
		bytecode.OUTL: opOutl,
	}
}

// Run drives the dispatch loop until END terminates the Context or a
// fault traps it, mirroring vm_execute's `while (pc < len) { ... }`:
// a PC that lands exactly on the end of the code with no pending return
// frame also ends the Context, as END does.
func (c *Context) Run() error {
	for {
		if c.pc == len(c.code) && len(c.rs) == 0 {
			return nil
		}
		if c.pc < 0 || c.pc >= len(c.code) {
			return &Trap{PC: c.pc, Err: errTrapf("program counter %d out of range (code length %d)", c.pc, len(c.code))}
		}

		op := bytecode.Op(c.code[c.pc])

		if c.trace {
			c.log.Debugf("pc=%d op=%s ds=%d rs=%d", c.pc, op, len(c.ds), len(c.rs))
		}

		switch op {
		case bytecode.END:
			if len(c.rs) != 0 {
				return &Trap{PC: c.pc, Op: byte(op), Err: errTrapf("END reached with %d pending return frame(s)", len(c.rs))}
			}
			return nil
		case bytecode.NOOP:
			c.pc++
			continue
		}

		fn, ok := handlers[op]
		if !ok {
			return &Trap{PC: c.pc, Op: byte(op), Err: errTrapf("unknown opcode %d", op)}
		}

		delta, err := fn(c)
		if err != nil {
			return &Trap{PC: c.pc, Op: byte(op), Err: err}
		}
		c.pc += delta
	}
}

// valueHandle extracts the pool.Handle a Value names, whether it
// arrived as a tagged reference (FUNLIT, a symbol clone) or a plain INT
// (SYMFIND, HRINDEX, every other opcode that pushes "a handle" pushes it
// as a bare integer, matching the original source's anon_scalar union
// carrying a raw scalar_handle_t/array_handle_t/etc).
func valueHandle(v value.Value) pool.Handle {
	if v.Tag.IsRef() {
		return v.Handle()
	}
	return pool.Handle(v.Int())
}

func (c *Context) popHandle() (pool.Handle, error) {
	v, err := c.dsPop()
	if err != nil {
		return 0, err
	}
	return valueHandle(v), nil
}

func (c *Context) peekHandle() (pool.Handle, error) {
	v, err := c.dsTop()
	if err != nil {
		return 0, err
	}
	return valueHandle(v), nil
}

// --- Stack manipulation ---

func opDrop(c *Context) (int, error) {
	if _, err := c.dsPop(); err != nil {
		return 0, err
	}
	return 1, nil
}

// opSwap implements the spec's corrected (a b -- b a); the original
// source's inst_SWAP pushes b twice instead of swapping, which spec.md
// calls out as a bug this runtime does not reproduce.
func opSwap(c *Context) (int, error) {
	b, err := c.dsPop()
	if err != nil {
		return 0, err
	}
	a, err := c.dsPop()
	if err != nil {
		return 0, err
	}
	c.dsPush(b)
	c.dsPush(a)
	return 1, nil
}

func opDup(c *Context) (int, error) {
	top, err := c.dsTop()
	if err != nil {
		return 0, err
	}
	c.dsPush(top.Clone())
	return 1, nil
}

func opOver(c *Context) (int, error) {
	b, err := c.dsPop()
	if err != nil {
		return 0, err
	}
	a, err := c.dsPop()
	if err != nil {
		return 0, err
	}
	c.dsPush(a)
	c.dsPush(b)
	c.dsPush(a.Clone())
	return 1, nil
}

// --- Control flow ---

func opBranch(c *Context) (int, error) {
	return int(bytecode.Int64(c.code, c.pc+1)), nil
}

func opBranch0(c *Context) (int, error) {
	a, err := c.dsPop()
	if err != nil {
		return 0, err
	}
	if !a.Bool() {
		return int(bytecode.Int64(c.code, c.pc+1)), nil
	}
	return 1 + 8, nil
}

func opCall(c *Context) (int, error) {
	target := bytecode.Uint64(c.code, c.pc+1)
	savedPC := c.pc + 1 + 8
	c.rsPush(returnFrame{pc: savedPC, scope: c.scope})
	c.scope = symtab.NewScope(c.scope)
	return int(int64(target) - int64(c.pc)), nil
}

func opReturn(c *Context) (int, error) {
	frame, err := c.rsPop()
	if err != nil {
		return 0, err
	}
	c.scope.Close()
	c.scope = frame.scope
	return frame.pc - c.pc, nil
}

func opFrcall(c *Context) (int, error) {
	h, err := c.popHandle()
	if err != nil {
		return 0, err
	}
	entry := c.heaps.Functions.Entry(h)
	savedPC := c.pc + 1
	c.rsPush(returnFrame{pc: savedPC, scope: c.scope})
	c.scope = symtab.NewScope(c.scope)
	return int(int64(entry) - int64(c.pc)), nil
}

// --- Symbols ---

func opSymdef(c *Context) (int, error) {
	flags := bytecode.Uint32(c.code, c.pc+1)
	id := bytecode.Int64(c.code, c.pc+5)
	if err := c.defineSymbol(symtab.Identifier(id), flags); err != nil {
		return 0, err
	}
	return 1 + 4 + 8, nil
}

func opSymfind(c *Context) (int, error) {
	id := bytecode.Int64(c.code, c.pc+1)
	v, ok := symtab.Lookup(c.scope, symtab.Identifier(id))
	if !ok {
		c.dsPush(value.NewInt(0))
	} else {
		c.dsPush(value.NewInt(int64(valueHandle(v))))
	}
	return 1 + 8, nil
}

func opSymclone(c *Context) (int, error) {
	id := bytecode.Int64(c.code, c.pc+1)
	c.cloneSymbol(symtab.Identifier(id))
	return 1 + 8, nil
}

func opSymundef(c *Context) (int, error) {
	id := bytecode.Int64(c.code, c.pc+1)
	c.scope.Undefine(symtab.Identifier(id))
	return 1 + 8, nil
}

// --- Scalar refs ---

func opSrlock(c *Context) (int, error) {
	h, err := c.peekHandle()
	if err != nil {
		return 0, err
	}
	c.heaps.Scalars.Lock(h)
	return 1, nil
}

func opSrunlock(c *Context) (int, error) {
	h, err := c.peekHandle()
	if err != nil {
		return 0, err
	}
	c.heaps.Scalars.Unlock(h)
	return 1, nil
}

func opSrread(c *Context) (int, error) {
	h, err := c.popHandle()
	if err != nil {
		return 0, err
	}
	c.dsPush(c.heaps.Scalars.Get(h))
	return 1, nil
}

func opSrwrite(c *Context) (int, error) {
	h, err := c.popHandle()
	if err != nil {
		return 0, err
	}
	a, err := c.dsPop()
	if err != nil {
		return 0, err
	}
	c.heaps.Scalars.Set(h, a)
	return 1, nil
}

// --- Array refs ---

func opArindex(c *Context) (int, error) {
	h, err := c.popHandle()
	if err != nil {
		return 0, err
	}
	iv, err := c.dsPop()
	if err != nil {
		return 0, err
	}
	idx := int(iv.ToInt())
	n := c.heaps.Arrays.Len(h)
	if idx < 0 || idx >= n {
		return 0, errTrapf("array index %d out of range (len %d)", idx, n)
	}
	c.dsPush(c.heaps.Arrays.ItemAt(h, idx))
	return 1, nil
}

func opArpush(c *Context) (int, error) {
	h, err := c.popHandle()
	if err != nil {
		return 0, err
	}
	a, err := c.dsPop()
	if err != nil {
		return 0, err
	}
	c.heaps.Arrays.Push(h, a)
	return 1, nil
}

func opArpop(c *Context) (int, error) {
	h, err := c.popHandle()
	if err != nil {
		return 0, err
	}
	if c.heaps.Arrays.Len(h) == 0 {
		return 0, errTrapf("array pop on empty array")
	}
	c.dsPush(c.heaps.Arrays.Pop(h))
	return 1, nil
}

func opArshift(c *Context) (int, error) {
	h, err := c.popHandle()
	if err != nil {
		return 0, err
	}
	if c.heaps.Arrays.Len(h) == 0 {
		return 0, errTrapf("array shift on empty array")
	}
	c.dsPush(c.heaps.Arrays.Shift(h))
	return 1, nil
}

func opArunshift(c *Context) (int, error) {
	h, err := c.popHandle()
	if err != nil {
		return 0, err
	}
	a, err := c.dsPop()
	if err != nil {
		return 0, err
	}
	c.heaps.Arrays.Unshift(h, a)
	return 1, nil
}

// --- Hash refs ---

func opHrindex(c *Context) (int, error) {
	h, err := c.popHandle()
	if err != nil {
		return 0, err
	}
	k, err := c.dsPop()
	if err != nil {
		return 0, err
	}
	sh := c.heaps.Hashes.KeyItem(h, k)
	c.dsPush(value.NewInt(int64(sh)))
	return 1, nil
}

func opHrkeyex(c *Context) (int, error) {
	h, err := c.popHandle()
	if err != nil {
		return 0, err
	}
	k, err := c.dsPop()
	if err != nil {
		return 0, err
	}
	if c.heaps.Hashes.KeyExists(h, k) {
		c.dsPush(value.NewInt(1))
	} else {
		c.dsPush(value.NewInt(0))
	}
	return 1, nil
}

func opHrkeydel(c *Context) (int, error) {
	h, err := c.popHandle()
	if err != nil {
		return 0, err
	}
	k, err := c.dsPop()
	if err != nil {
		return 0, err
	}
	c.heaps.Hashes.KeyDelete(h, k)
	return 1, nil
}

// --- Channel refs ---

// opCrread implements CRREAD's blocking read. A closed-and-drained
// channel is not a VM fault (spec.md §4.3 leaves closure semantics to
// the implementation): it pushes Undef, a value a script can test for
// falsiness exactly like a hash miss or an unbound SYMFIND.
func opCrread(c *Context) (int, error) {
	h, err := c.popHandle()
	if err != nil {
		return 0, err
	}
	ch := c.heaps.Channels.Get(h)
	v, rerr := ch.Read()
	if rerr != nil {
		c.dsPush(value.Undef())
		return 1, nil
	}
	c.dsPush(v)
	return 1, nil
}

// opCrwrite implements CRWRITE's blocking write. A write to a closed
// channel has nowhere to report failure in its (a h --) stack effect,
// so it is a silent drop, symmetric with opCrread's Undef on a closed
// read.
func opCrwrite(c *Context) (int, error) {
	h, err := c.popHandle()
	if err != nil {
		return 0, err
	}
	a, err := c.dsPop()
	if err != nil {
		return 0, err
	}
	ch := c.heaps.Channels.Get(h)
	if werr := ch.Write(a); werr != nil && werr != chanprim.ErrClosed {
		return 0, werr
	}
	return 1, nil
}

// --- Literals & arithmetic ---

func opIntlit(c *Context) (int, error) {
	c.dsPush(value.NewInt(bytecode.Int64(c.code, c.pc+1)))
	return 1 + 8, nil
}

func intBinop(op func(a, b int64) int64) handler {
	return func(c *Context) (int, error) {
		b, err := c.dsPop()
		if err != nil {
			return 0, err
		}
		a, err := c.dsPop()
		if err != nil {
			return 0, err
		}
		c.dsPush(value.NewInt(op(a.ToInt(), b.ToInt())))
		return 1, nil
	}
}

func opIntdiv(c *Context) (int, error) {
	b, err := c.dsPop()
	if err != nil {
		return 0, err
	}
	a, err := c.dsPop()
	if err != nil {
		return 0, err
	}
	bi := b.ToInt()
	if bi == 0 {
		return 0, errTrapf("integer division by zero")
	}
	c.dsPush(value.NewInt(a.ToInt() / bi))
	return 1, nil
}

func opIntmod(c *Context) (int, error) {
	b, err := c.dsPop()
	if err != nil {
		return 0, err
	}
	a, err := c.dsPop()
	if err != nil {
		return 0, err
	}
	bi := b.ToInt()
	if bi == 0 {
		return 0, errTrapf("integer modulo by zero")
	}
	c.dsPush(value.NewInt(a.ToInt() % bi))
	return 1, nil
}

// opStrlit reads a uint16 length then that many raw bytes; an embedded
// zero byte terminates the *stored* string early, but the PC always
// advances past the full run, matching spec.md §4.5's STRLIT note.
func opStrlit(c *Context) (int, error) {
	length := int(bytecode.Uint16(c.code, c.pc+1))
	raw := c.code[c.pc+3 : c.pc+3+length]
	s := raw
	for i, b := range raw {
		if b == 0 {
			s = raw[:i]
			break
		}
	}
	c.dsPush(value.NewString(string(s)))
	return 1 + 2 + length, nil
}

func opStrcat(c *Context) (int, error) {
	b, err := c.dsPop()
	if err != nil {
		return 0, err
	}
	a, err := c.dsPop()
	if err != nil {
		return 0, err
	}
	c.dsPush(value.NewString(a.ToString() + b.ToString()))
	return 1, nil
}

func opFltlit(c *Context) (int, error) {
	c.dsPush(value.NewFloat(bytecode.Float64(c.code, c.pc+1)))
	return 1 + 8, nil
}

func fltBinop(op func(a, b float64) float64) handler {
	return func(c *Context) (int, error) {
		b, err := c.dsPop()
		if err != nil {
			return 0, err
		}
		a, err := c.dsPop()
		if err != nil {
			return 0, err
		}
		c.dsPush(value.NewFloat(op(a.ToFloat(), b.ToFloat())))
		return 1, nil
	}
}

func opFunlit(c *Context) (int, error) {
	entry := bytecode.Uint64(c.code, c.pc+1)
	h := c.heaps.Functions.Allocate(entry)
	c.dsPush(value.NewRef(value.FunctionRef, h))
	return 1 + 8, nil
}

// --- I/O ---

func opOut(c *Context) (int, error) {
	a, err := c.dsPop()
	if err != nil {
		return 0, err
	}
	if _, werr := c.out.Write([]byte(a.ToString())); werr != nil {
		return 0, werr
	}
	return 1, nil
}

func opOutl(c *Context) (int, error) {
	a, err := c.dsPop()
	if err != nil {
		return 0, err
	}
	if _, werr := c.out.Write([]byte(a.ToString() + "\n")); werr != nil {
		return 0, werr
	}
	return 1, nil
}
