// Package netchan exposes a chanprim.Channel over a network stream, so
// two interpreter processes on different hosts can rendezvous through
// the same bounded-channel semantics CRREAD/CRWRITE give two Contexts
// in one process. Grounded on the teacher's internal/runtime/netstack
// QUIC usage (TLS 1.3 enforcement, quic.Config option mapping,
// done-channel shutdown), narrowed from HTTP/3 request/response to one
// raw QUIC stream per connection carrying a sequence of wire-encoded
// value.Value items.
//
// A handle-tagged Value (ScalarRef, ArrayRef, ...) only means something
// inside the pool that allocated it; sending one across the wire to a
// process with its own, unrelated pools would silently corrupt or
// misattribute state, so the codec refuses to encode or decode one.
package netchan

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/orizon-lang/dongvm/internal/value"
)

const (
	wireUndef byte = iota
	wireInt
	wireFloat
	wireString
)

// ErrUnsendable is returned by EncodeValue for a reference-tagged Value.
var ErrUnsendable = fmt.Errorf("netchan: reference values cannot cross the wire")

// EncodeValue writes v to w in the bridge's wire format: a one-byte tag
// followed by the tag's payload (nothing for UNDEF, 8 bytes
// little-endian for INT/FLOAT, a uint32 length prefix plus raw bytes
// for STRING).
func EncodeValue(w io.Writer, v value.Value) error {
	switch v.Tag {
	case value.Undef:
		_, err := w.Write([]byte{wireUndef})
		return err
	case value.Int:
		var buf [9]byte
		buf[0] = wireInt
		binary.LittleEndian.PutUint64(buf[1:], uint64(v.Int()))
		_, err := w.Write(buf[:])
		return err
	case value.Float:
		var buf [9]byte
		buf[0] = wireFloat
		binary.LittleEndian.PutUint64(buf[1:], value.FloatBits(v.Float()))
		_, err := w.Write(buf[:])
		return err
	case value.String:
		s := v.Str()
		var head [5]byte
		head[0] = wireString
		binary.LittleEndian.PutUint32(head[1:], uint32(len(s)))
		if _, err := w.Write(head[:]); err != nil {
			return err
		}
		_, err := io.WriteString(w, s)
		return err
	default:
		return ErrUnsendable
	}
}

// DecodeValue reads one value.Value written by EncodeValue from r.
func DecodeValue(r io.Reader) (value.Value, error) {
	var tag [1]byte
	if _, err := io.ReadFull(r, tag[:]); err != nil {
		return value.Undef(), err
	}
	switch tag[0] {
	case wireUndef:
		return value.Undef(), nil
	case wireInt:
		var buf [8]byte
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return value.Undef(), err
		}
		return value.NewInt(int64(binary.LittleEndian.Uint64(buf[:]))), nil
	case wireFloat:
		var buf [8]byte
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return value.Undef(), err
		}
		bits := binary.LittleEndian.Uint64(buf[:])
		return value.NewFloat(math.Float64frombits(bits)), nil
	case wireString:
		var lbuf [4]byte
		if _, err := io.ReadFull(r, lbuf[:]); err != nil {
			return value.Undef(), err
		}
		n := binary.LittleEndian.Uint32(lbuf[:])
		sbuf := make([]byte, n)
		if _, err := io.ReadFull(r, sbuf); err != nil {
			return value.Undef(), err
		}
		return value.NewString(string(sbuf)), nil
	default:
		return value.Undef(), fmt.Errorf("netchan: unknown wire tag %d", tag[0])
	}
}
