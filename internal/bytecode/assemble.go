package bytecode

import (
	"encoding/binary"
	"math"
)

// Assembler builds a Code byte slice one opcode at a time. It exists
// for tests and for tools that hand-assemble small programs; a real
// front end would emit this format directly from its own compiler.
type Assembler struct {
	code []byte
}

// NewAssembler creates an empty assembler.
func NewAssembler() *Assembler { return &Assembler{} }

// Op appends a bare opcode with no operand.
func (a *Assembler) Op(op Op) *Assembler {
	a.code = append(a.code, byte(op))
	return a
}

// OpInt64 appends op followed by a little-endian int64 operand.
func (a *Assembler) OpInt64(op Op, v int64) *Assembler {
	a.code = append(a.code, byte(op))
	a.code = appendUint64(a.code, uint64(v))
	return a
}

// OpUint64 appends op followed by a little-endian uint64 operand.
func (a *Assembler) OpUint64(op Op, v uint64) *Assembler {
	a.code = append(a.code, byte(op))
	a.code = appendUint64(a.code, v)
	return a
}

// OpFloat64 appends op followed by a little-endian IEEE-754 operand.
func (a *Assembler) OpFloat64(op Op, v float64) *Assembler {
	a.code = append(a.code, byte(op))
	a.code = appendUint64(a.code, math.Float64bits(v))
	return a
}

// OpString appends op followed by a uint16 length prefix and the
// string's bytes (STRLIT).
func (a *Assembler) OpString(op Op, s string) *Assembler {
	a.code = append(a.code, byte(op))
	a.code = appendUint16(a.code, uint16(len(s)))
	a.code = append(a.code, s...)
	return a
}

// OpSymbol appends op followed by a uint32 flags word and an int64
// identifier (SYMDEF).
func (a *Assembler) OpSymbol(op Op, flags uint32, id int64) *Assembler {
	a.code = append(a.code, byte(op))
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], flags)
	a.code = append(a.code, tmp[:]...)
	a.code = appendUint64(a.code, uint64(id))
	return a
}

// OpIdentifier appends op followed by a bare int64 identifier (SYMFIND,
// SYMCLONE, SYMUNDEF).
func (a *Assembler) OpIdentifier(op Op, id int64) *Assembler {
	return a.OpInt64(op, id)
}

// Len reports the current byte length of the assembled code, useful for
// computing branch targets before they're known.
func (a *Assembler) Len() int { return len(a.code) }

// Code returns the assembled byte slice.
func (a *Assembler) Code() []byte { return a.code }

// Program wraps the assembled code as a Program starting at entry.
func (a *Assembler) Program(entry uint64) *Program {
	return &Program{Version: FormatVersion, Code: a.code, Entry: entry}
}
