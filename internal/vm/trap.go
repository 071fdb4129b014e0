package vm

import (
	"errors"
	"fmt"
)

// ErrTrap is wrapped by every unrecoverable fault a Context can hit:
// stack underflow, an out-of-range PC, an unknown opcode, or END reached
// with a nonempty return stack. Unlike the original
// source's bare asserts, a Trap terminates only the Context that hit
// it — Run returns the error instead of aborting the process.
var ErrTrap = errors.New("vm: trap")

// Trap carries the opcode and PC a fault occurred at, for diagnostics.
type Trap struct {
	PC  int
	Op  byte
	Err error
}

func (t *Trap) Error() string {
	return t.Err.Error()
}

func (t *Trap) Unwrap() error { return t.Err }

// errTrapf builds an ErrTrap-wrapped error with a formatted message, for
// handlers that fault on a condition more specific than a bare stack
// underflow (divide by zero, an out-of-range array index, an unhandled
// SYMDEF kind).
func errTrapf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrTrap, fmt.Sprintf(format, args...))
}
