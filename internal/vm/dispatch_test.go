package vm

import (
	"bytes"
	"testing"
	"time"

	"github.com/orizon-lang/dongvm/internal/bytecode"
	"github.com/orizon-lang/dongvm/internal/symtab"
	"github.com/orizon-lang/dongvm/internal/value"
)

func runProgram(t *testing.T, asm *bytecode.Assembler, heaps *Heaps) (*Context, string) {
	t.Helper()
	if heaps == nil {
		heaps = NewHeaps()
	}
	prog := asm.Program(0)
	ctx := NewContext(prog, heaps, nil)
	var out bytes.Buffer
	ctx.SetOutput(&out)
	if err := ctx.Run(); err != nil {
		t.Fatalf("run error: %v", err)
	}
	return ctx, out.String()
}

// spec.md §8 scenario 1: INTLIT 3, INTLIT 4, INTADD, INTLIT 2, INTMULT,
// OUTL, END -> stdout "14\n".
func TestIntegerArithmeticScenario(t *testing.T) {
	asm := bytecode.NewAssembler().
		OpInt64(bytecode.INTLIT, 3).
		OpInt64(bytecode.INTLIT, 4).
		Op(bytecode.INTADD).
		OpInt64(bytecode.INTLIT, 2).
		Op(bytecode.INTMULT).
		Op(bytecode.OUTL).
		Op(bytecode.END)

	_, out := runProgram(t, asm, nil)
	if out != "14\n" {
		t.Fatalf("output = %q, want %q", out, "14\n")
	}
}

// spec.md §8 scenario 2: a function body at offset F containing
// INTLIT 7, RETURN; main CALL F, OUTL, END -> "7\n", empty data stack.
func TestFunctionCallScenario(t *testing.T) {
	asm := bytecode.NewAssembler()

	// main: CALL F, OUTL, END
	asm.OpUint64(bytecode.CALL, 0) // target patched below
	callTargetOffset := 1          // operand starts right after the opcode byte
	asm.Op(bytecode.OUTL)
	asm.Op(bytecode.END)

	functionEntry := uint64(asm.Len())
	asm.OpInt64(bytecode.INTLIT, 7)
	asm.Op(bytecode.RETURN)

	code := asm.Code()
	patchUint64(code, callTargetOffset, functionEntry)

	prog := &bytecode.Program{Version: bytecode.FormatVersion, Code: code, Entry: 0}
	ctx := NewContext(prog, NewHeaps(), nil)
	var out bytes.Buffer
	ctx.SetOutput(&out)
	if err := ctx.Run(); err != nil {
		t.Fatalf("run error: %v", err)
	}
	if out.String() != "7\n" {
		t.Fatalf("output = %q, want %q", out.String(), "7\n")
	}
	if n := ctx.DataStackLen(); n != 0 {
		t.Fatalf("data stack len = %d, want 0", n)
	}
}

func patchUint64(code []byte, offset int, v uint64) {
	for i := 0; i < 8; i++ {
		code[offset+i] = byte(v >> (8 * i))
	}
}

// spec.md §8 scenario 3: two Contexts share a capacity-1 channel;
// producer writes 10, 20, 30; consumer reads and OUTLs each in order.
func TestChannelRendezvousScenario(t *testing.T) {
	heaps := NewHeaps()
	chHandle := heaps.Channels.Allocate(1)

	producerAsm := bytecode.NewAssembler()
	for _, n := range []int64{10, 20, 30} {
		producerAsm.OpInt64(bytecode.INTLIT, n)
		producerAsm.OpInt64(bytecode.INTLIT, int64(chHandle))
		producerAsm.Op(bytecode.CRWRITE)
	}
	producerAsm.Op(bytecode.END)
	producer := NewContext(producerAsm.Program(0), heaps, nil)

	consumerAsm := bytecode.NewAssembler()
	for i := 0; i < 3; i++ {
		consumerAsm.OpInt64(bytecode.INTLIT, int64(chHandle))
		consumerAsm.Op(bytecode.CRREAD)
		consumerAsm.Op(bytecode.OUTL)
	}
	consumerAsm.Op(bytecode.END)
	consumer := NewContext(consumerAsm.Program(0), heaps, nil)
	var out bytes.Buffer
	consumer.SetOutput(&out)

	done := make(chan error, 2)
	go func() { done <- producer.Run() }()
	go func() { done <- consumer.Run() }()

	for i := 0; i < 2; i++ {
		select {
		case err := <-done:
			if err != nil {
				t.Fatalf("run error: %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for rendezvous")
		}
	}

	if out.String() != "10\n20\n30\n" {
		t.Fatalf("output = %q, want %q", out.String(), "10\n20\n30\n")
	}
}

// spec.md §8 scenario 4: hash auto-vivify. STRLIT "x", HRINDEX h,
// INTLIT 5, SRWRITE, STRLIT "x", HRKEYEX h, OUTL, END -> "1\n".
func TestHashAutoVivifyScenario(t *testing.T) {
	heaps := NewHeaps()
	hHandle := heaps.Hashes.Allocate()

	asm := bytecode.NewAssembler().
		OpString(bytecode.STRLIT, "x").
		OpInt64(bytecode.INTLIT, int64(hHandle)).
		Op(bytecode.HRINDEX). // ( "x" h -- scalarHandle )
		OpInt64(bytecode.INTLIT, 5).
		Op(bytecode.SWAP). // (scalarHandle 5 -- 5 scalarHandle), SRWRITE wants (a h --)
		Op(bytecode.SRWRITE).
		OpString(bytecode.STRLIT, "x").
		OpInt64(bytecode.INTLIT, int64(hHandle)).
		Op(bytecode.HRKEYEX).
		Op(bytecode.OUTL).
		Op(bytecode.END)

	_, out := runProgram(t, asm, heaps)
	if out != "1\n" {
		t.Fatalf("output = %q, want %q", out, "1\n")
	}
}

// spec.md §8 scenario 6: branch taken skips the OUTL; not taken falls
// through to it.
func TestBranchTakenAndNotTaken(t *testing.T) {
	build := func(cond int64) *bytecode.Assembler {
		asm := bytecode.NewAssembler()
		asm.OpInt64(bytecode.INTLIT, cond)
		branch0Opcode := asm.Len()
		asm.OpInt64(bytecode.BRANCH0, 0) // patched below
		asm.OpInt64(bytecode.INTLIT, 1)
		asm.Op(bytecode.OUTL)
		end := asm.Len()
		code := asm.Code()
		// Delta is relative to the BRANCH0 opcode byte itself (§4.5).
		patchUint64(code, branch0Opcode+1, uint64(int64(end-branch0Opcode)))
		return asm
	}

	takenAsm := build(0)
	takenAsm.Op(bytecode.END)
	_, out := runProgram(t, takenAsm, nil)
	if out != "" {
		t.Fatalf("taken branch output = %q, want empty", out)
	}

	notTakenAsm := build(1)
	notTakenAsm.Op(bytecode.END)
	_, out2 := runProgram(t, notTakenAsm, nil)
	if out2 != "1\n" {
		t.Fatalf("not-taken branch output = %q, want %q", out2, "1\n")
	}
}

func TestSwapIsCorrectedNotBuggy(t *testing.T) {
	asm := bytecode.NewAssembler().
		OpInt64(bytecode.INTLIT, 1).
		OpInt64(bytecode.INTLIT, 2).
		Op(bytecode.SWAP).
		Op(bytecode.OUTL).
		Op(bytecode.OUTL).
		Op(bytecode.END)

	_, out := runProgram(t, asm, nil)
	if out != "1\n2\n" {
		t.Fatalf("output = %q, want %q (SWAP must not duplicate the top value)", out, "1\n2\n")
	}
}

func TestDivisionByZeroTraps(t *testing.T) {
	asm := bytecode.NewAssembler().
		OpInt64(bytecode.INTLIT, 1).
		OpInt64(bytecode.INTLIT, 0).
		Op(bytecode.INTDIV).
		Op(bytecode.END)

	prog := asm.Program(0)
	ctx := NewContext(prog, NewHeaps(), nil)
	err := ctx.Run()
	if err == nil {
		t.Fatal("expected a trap on division by zero")
	}
	var trap *Trap
	if !asTrap(err, &trap) {
		t.Fatalf("error %v is not a *Trap", err)
	}
}

func asTrap(err error, out **Trap) bool {
	t, ok := err.(*Trap)
	if ok {
		*out = t
	}
	return ok
}

func TestEndWithPendingReturnFrameTraps(t *testing.T) {
	asm := bytecode.NewAssembler()
	asm.OpUint64(bytecode.CALL, 0)
	target := uint64(asm.Len())
	asm.Op(bytecode.END)
	code := asm.Code()
	patchUint64(code, 1, target)

	prog := &bytecode.Program{Version: bytecode.FormatVersion, Code: code, Entry: 0}
	ctx := NewContext(prog, NewHeaps(), nil)
	if err := ctx.Run(); err == nil {
		t.Fatal("expected a trap: END reached with a pending return frame")
	}
}

func TestFunctionReferenceCallScenario(t *testing.T) {
	asm := bytecode.NewAssembler()
	funlitOperand := asm.Len() + 1
	asm.OpUint64(bytecode.FUNLIT, 0) // patched below
	asm.Op(bytecode.FRCALL)
	asm.Op(bytecode.OUTL)
	asm.Op(bytecode.END)

	entry := uint64(asm.Len())
	asm.OpInt64(bytecode.INTLIT, 99)
	asm.Op(bytecode.RETURN)

	code := asm.Code()
	patchUint64(code, funlitOperand, entry)

	prog := &bytecode.Program{Version: bytecode.FormatVersion, Code: code, Entry: 0}
	ctx := NewContext(prog, NewHeaps(), nil)
	var out bytes.Buffer
	ctx.SetOutput(&out)
	if err := ctx.Run(); err != nil {
		t.Fatalf("run error: %v", err)
	}
	if out.String() != "99\n" {
		t.Fatalf("output = %q, want %q", out.String(), "99\n")
	}
}

func TestSymdefAndSymclone(t *testing.T) {
	heaps := NewHeaps()
	prog := &bytecode.Program{Version: bytecode.FormatVersion, Code: []byte{byte(bytecode.END)}, Entry: 0}
	ctx := NewContext(prog, heaps, nil)

	if err := ctx.defineSymbol(0, SymScalar); err != nil {
		t.Fatalf("defineSymbol: %v", err)
	}
	v, ok := symtab.Lookup(ctx.Scope(), 0)
	if !ok {
		t.Fatal("expected symbol 0 to be defined")
	}
	if v.Tag != value.ScalarRef {
		t.Fatalf("tag = %v, want ScalarRef", v.Tag)
	}
	handle := v.Handle()
	if heaps.Scalars.Refcount(handle) != 1 {
		t.Fatalf("refcount = %d, want 1", heaps.Scalars.Refcount(handle))
	}

	// id 0 is already bound in this same (local) scope, so SYMCLONE must
	// be a no-op failure rather than clobbering the existing binding.
	if ctx.cloneSymbol(0) {
		t.Fatal("cloneSymbol should fail when id is already locally defined")
	}

	child := NewContext(prog, heaps, ctx.Scope())
	if !child.cloneSymbol(0) {
		t.Fatal("cloneSymbol should succeed finding id in the parent scope")
	}
	if heaps.Scalars.Refcount(handle) != 2 {
		t.Fatalf("refcount after clone = %d, want 2", heaps.Scalars.Refcount(handle))
	}
}
