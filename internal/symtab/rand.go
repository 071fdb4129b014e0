package symtab

import "math/rand"

// randBit picks predecessor-side vs successor-side replacement for
// Undefine's two-child case with even odds, the Go equivalent of the
// original source's `rand() & 0x4000` coin flip.
func randBit() bool {
	return rand.Int63()&1 == 0
}
