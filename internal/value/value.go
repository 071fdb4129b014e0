// Package value implements the tagged dynamic value used throughout the
// runtime: the data stack, scalar cells, array elements, and hash item
// values are all a value.Value.
package value

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/orizon-lang/dongvm/internal/pool"
)

// Tag identifies which member of Value's payload is live.
type Tag uint8

const (
	Undef Tag = iota
	Int
	Float
	String
	ScalarRef
	ArrayRef
	HashRef
	ChannelRef
	FunctionRef
	StreamRef
)

// String returns a human-readable tag name, used in trap messages.
func (t Tag) String() string {
	switch t {
	case Undef:
		return "undef"
	case Int:
		return "int"
	case Float:
		return "float"
	case String:
		return "string"
	case ScalarRef:
		return "scalar_ref"
	case ArrayRef:
		return "array_ref"
	case HashRef:
		return "hash_ref"
	case ChannelRef:
		return "channel_ref"
	case FunctionRef:
		return "function_ref"
	case StreamRef:
		return "stream_ref"
	default:
		return "unknown"
	}
}

// IsRef reports whether the tag carries a pool handle payload.
func (t Tag) IsRef() bool {
	return t >= ScalarRef && t <= StreamRef
}

// Value is a tagged dynamic datum: undef, a machine int, a machine float,
// an owned string, or a reference into one of the heap pools. The zero
// Value is Undef, matching the "fresh scalar is undefined" invariant of
// the pooled scalar cell (spec.md §4.2).
type Value struct {
	Tag Tag
	i   int64
	f   float64
	s   string
	h   pool.Handle
}

// Undef returns the zero value.
func Undef() Value { return Value{} }

// NewInt builds an INT value.
func NewInt(n int64) Value { return Value{Tag: Int, i: n} }

// NewFloat builds a FLOAT value.
func NewFloat(f float64) Value { return Value{Tag: Float, f: f} }

// NewString builds a STRING value; the byte sequence is deep-owned by the
// returned Value (Go strings are already immutable, so no copy is needed
// beyond what the caller already did by constructing s).
func NewString(s string) Value { return Value{Tag: String, s: s} }

// NewRef builds a reference Value for the given kind tag and handle. tag
// must be one of the *Ref tags.
func NewRef(tag Tag, h pool.Handle) Value {
	if !tag.IsRef() {
		panic("value: NewRef requires a reference tag")
	}
	return Value{Tag: tag, h: h}
}

// Int returns the INT payload; only valid when Tag == Int.
func (v Value) Int() int64 { return v.i }

// Float returns the FLOAT payload; only valid when Tag == Float.
func (v Value) Float() float64 { return v.f }

// Str returns the STRING payload; only valid when Tag == String.
func (v Value) Str() string { return v.s }

// Handle returns the pool handle payload; only valid when Tag.IsRef().
func (v Value) Handle() pool.Handle { return v.h }

// Clone deep-copies a Value. STRING payloads are copied by value (Go
// strings are immutable, so this is a no-op beyond the struct copy);
// reference payloads are NOT refcounted here — callers that need the
// refcount bump (e.g. SYMCLONE, stack push-as-clone) must call the
// owning pool's Reference explicitly. This mirrors anon_scalar_clone
// from the original source, which copies the union verbatim and leaves
// refcounting to the caller's context.
func (v Value) Clone() Value {
	return v
}

// Equal reports structural equality: deep for STRING, handle equality for
// references, bit equality for INT/FLOAT. Used by the data-stack
// round-trip property (spec.md §8).
func Equal(a, b Value) bool {
	if a.Tag != b.Tag {
		return false
	}
	switch a.Tag {
	case Undef:
		return true
	case Int:
		return a.i == b.i
	case Float:
		return a.f == b.f
	case String:
		return a.s == b.s
	default:
		return a.h == b.h
	}
}

// Bool implements the truthiness coercion of spec.md §4.2: INT != 0,
// FLOAT != 0.0, a non-empty STRING that isn't exactly "0", and any live
// reference are true; UNDEF is always false.
func (v Value) Bool() bool {
	switch v.Tag {
	case Undef:
		return false
	case Int:
		return v.i != 0
	case Float:
		return v.f != 0.0
	case String:
		return v.s != "" && v.s != "0"
	default:
		return v.h != 0
	}
}

// ToInt coerces to INT. STRING parses base-10, "0x"-prefixed hex, or a
// leading "0" octal form; an unparsable string yields 0, matching the
// source's "returning 0 on failure" contract (spec.md §4.2).
func (v Value) ToInt() int64 {
	switch v.Tag {
	case Undef:
		return 0
	case Int:
		return v.i
	case Float:
		return int64(v.f)
	case String:
		return parseIntLenient(v.s)
	default:
		return int64(v.h)
	}
}

// ToFloat coerces to FLOAT, analogous to ToInt.
func (v Value) ToFloat() float64 {
	switch v.Tag {
	case Undef:
		return 0
	case Int:
		return float64(v.i)
	case Float:
		return v.f
	case String:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.s), 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return float64(v.h)
	}
}

// ToString coerces to STRING via locale-independent formatting: integers
// render as decimal, floats with enough precision to round-trip, and
// UNDEF as the empty string (spec.md §4.2).
func (v Value) ToString() string {
	switch v.Tag {
	case Undef:
		return ""
	case Int:
		return strconv.FormatInt(v.i, 10)
	case Float:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case String:
		return v.s
	default:
		return strconv.FormatUint(uint64(v.h), 10)
	}
}

func parseIntLenient(s string) int64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	neg := false
	if s[0] == '+' || s[0] == '-' {
		neg = s[0] == '-'
		s = s[1:]
	}
	base := 10
	switch {
	case strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X"):
		base = 16
		s = s[2:]
	case strings.HasPrefix(s, "0") && len(s) > 1:
		base = 8
		s = s[1:]
	}
	n, err := strconv.ParseInt(s, base, 64)
	if err != nil {
		// Fall back to scanning a valid leading run, matching strtol's
		// "parse as much as is valid" behavior rather than failing outright.
		n = scanLeadingDigits(s, base)
	}
	if neg {
		n = -n
	}
	return n
}

func scanLeadingDigits(s string, base int) int64 {
	end := 0
	for end < len(s) {
		if _, err := strconv.ParseInt(s[:end+1], base, 64); err != nil {
			break
		}
		end++
	}
	if end == 0 {
		return 0
	}
	n, _ := strconv.ParseInt(s[:end], base, 64)
	return n
}

// GoString implements fmt.GoStringer for debugging / trap messages.
func (v Value) GoString() string {
	switch v.Tag {
	case Undef:
		return "undef"
	case Int:
		return fmt.Sprintf("int(%d)", v.i)
	case Float:
		return fmt.Sprintf("float(%s)", strconv.FormatFloat(v.f, 'g', -1, 64))
	case String:
		return fmt.Sprintf("string(%q)", v.s)
	default:
		return fmt.Sprintf("%s(%d)", v.Tag, v.h)
	}
}

// FloatBits is exported for round-trip tests that need bit-exact
// comparisons independent of NaN payload equality semantics.
func FloatBits(f float64) uint64 { return math.Float64bits(f) }
