package bytecode

import (
	"encoding/binary"
	"math"
)

// Operand-reading helpers used by the interpreter's dispatch handlers.
// Every multi-byte inline operand is little-endian (spec.md §4.5's
// "implementer choice" resolved uniformly across all opcodes, not just
// STRLIT).

// Int64 reads a signed 8-byte operand at code[off:].
func Int64(code []byte, off int) int64 {
	return int64(binary.LittleEndian.Uint64(code[off : off+8]))
}

// Uint64 reads an unsigned 8-byte operand at code[off:] (CALL targets,
// FUNLIT entry offsets).
func Uint64(code []byte, off int) uint64 {
	return binary.LittleEndian.Uint64(code[off : off+8])
}

// Uint32 reads an unsigned 4-byte operand at code[off:] (SYMDEF flags).
func Uint32(code []byte, off int) uint32 {
	return binary.LittleEndian.Uint32(code[off : off+4])
}

// Uint16 reads an unsigned 2-byte operand at code[off:] (STRLIT length).
func Uint16(code []byte, off int) uint16 {
	return binary.LittleEndian.Uint16(code[off : off+2])
}

// Float64 reads an IEEE-754 8-byte operand at code[off:] (FLTLIT).
func Float64(code []byte, off int) float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(code[off : off+8]))
}
