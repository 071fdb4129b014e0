package bytecode

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/Masterminds/semver/v3"
)

// FormatVersion is the current .dong bytecode format version. Loaded
// programs must satisfy FormatConstraint; bumping the minor version is
// for backwards-compatible additions (a new opcode appended at the
// tail), the major version for anything that changes how existing
// bytes are read.
var FormatVersion = semver.MustParse("1.0.0")

// FormatConstraint is the range of format versions this build of the
// interpreter accepts.
var FormatConstraint = semver.MustParseConstraint("^1.0.0")

// magic identifies a .dong file before the semver header; four bytes
// so a stray text file or truncated read fails fast instead of
// misparsing as a version string.
var magic = [4]byte{'d', 'o', 'n', 'g'}

// Program is an assembled, loadable bytecode image: a flat byte slice
// plus the entry offset execution should begin at (the driver's analogue
// of the original source's "declared entry offset" convention, spec.md
// §4.5).
type Program struct {
	Version *semver.Version
	Code    []byte
	Entry   uint64
}

// Encode serializes a Program to the .dong wire format: 4-byte magic,
// a length-prefixed semver string, an 8-byte little-endian entry
// offset, then the raw code bytes.
func Encode(p *Program) []byte {
	vstr := p.Version.String()
	out := make([]byte, 0, 4+2+len(vstr)+8+len(p.Code))
	out = append(out, magic[:]...)
	out = appendUint16(out, uint16(len(vstr)))
	out = append(out, vstr...)
	out = appendUint64(out, p.Entry)
	out = append(out, p.Code...)
	return out
}

// Decode parses the .dong wire format produced by Encode, rejecting a
// version that does not satisfy FormatConstraint.
func Decode(raw []byte) (*Program, error) {
	if len(raw) < len(magic) {
		return nil, fmt.Errorf("bytecode: truncated header")
	}
	for i, b := range magic {
		if raw[i] != b {
			return nil, fmt.Errorf("bytecode: bad magic %x", raw[:len(magic)])
		}
	}
	off := len(magic)

	if len(raw) < off+2 {
		return nil, fmt.Errorf("bytecode: truncated version length")
	}
	vlen := int(binary.LittleEndian.Uint16(raw[off : off+2]))
	off += 2

	if len(raw) < off+vlen {
		return nil, fmt.Errorf("bytecode: truncated version string")
	}
	vstr := string(raw[off : off+vlen])
	off += vlen

	version, err := semver.NewVersion(vstr)
	if err != nil {
		return nil, fmt.Errorf("bytecode: invalid version %q: %w", vstr, err)
	}
	if !FormatConstraint.Check(version) {
		return nil, fmt.Errorf("bytecode: format version %s does not satisfy %s", version, FormatConstraint)
	}

	if len(raw) < off+8 {
		return nil, fmt.Errorf("bytecode: truncated entry offset")
	}
	entry := binary.LittleEndian.Uint64(raw[off : off+8])
	off += 8

	code := make([]byte, len(raw)-off)
	copy(code, raw[off:])

	return &Program{Version: version, Code: code, Entry: entry}, nil
}

// DecodeFile reads path and Decodes it, for CLI and devwatch callers
// that work with files rather than in-memory buffers.
func DecodeFile(path string) (*Program, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("bytecode: reading %s: %w", path, err)
	}
	prog, err := Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("bytecode: %s: %w", path, err)
	}
	return prog, nil
}

func appendUint16(b []byte, v uint16) []byte {
	var tmp [2]byte
	binary.LittleEndian.PutUint16(tmp[:], v)
	return append(b, tmp[:]...)
}

func appendUint64(b []byte, v uint64) []byte {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	return append(b, tmp[:]...)
}
