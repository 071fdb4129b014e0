package heap

import (
	"io"
	"sync"

	"github.com/orizon-lang/dongvm/internal/pool"
)

// Stream wraps an io.ReadWriteCloser (a file, a pipe, a net.Conn) behind
// the same handle/refcount discipline as every other heap kind, per
// SPEC_FULL.md's Supplemented Features (grounded on original_source's
// stream.c/file.c: negative return is the error contract, EOF is status
// 0 with zero bytes).
type Stream struct {
	mu     sync.Mutex
	rwc    io.ReadWriteCloser
	closed bool
}

// Streams is the pool of Stream objects.
type Streams struct {
	pool *pool.Pool[*Stream]
}

// NewStreams creates an empty stream pool.
func NewStreams() *Streams {
	return &Streams{pool: pool.New[*Stream](func(s **Stream) {
		if *s != nil {
			(*s).closeLocked()
		}
		*s = nil
	})}
}

// Open wraps an already-opened io.ReadWriteCloser as a pooled stream
// handle and returns it. The stream takes ownership of rwc: Release at
// refcount zero closes it.
func (s *Streams) Open(rwc io.ReadWriteCloser) pool.Handle {
	h := s.pool.Allocate(true)
	*s.pool.At(h) = &Stream{rwc: rwc}
	return h
}

// Reference increments handle's refcount.
func (s *Streams) Reference(h pool.Handle) pool.Handle { return s.pool.Reference(h) }

// Release decrements handle's refcount, closing the underlying
// io.ReadWriteCloser at zero.
func (s *Streams) Release(h pool.Handle) { s.pool.Release(h) }

func (s *Streams) get(h pool.Handle) *Stream {
	s.pool.Lock(h)
	defer s.pool.Unlock(h)
	return *s.pool.At(h)
}

// Read reads up to len(buf) bytes, returning the byte count and any
// error. Matches stream_read's "negative on error, zero with nil error
// on EOF" contract by translating io.EOF into (0, nil) rather than
// surfacing it as an error to VM callers — an opcode handler distinguishes
// EOF from a short read purely on the returned count.
func (s *Streams) Read(h pool.Handle, buf []byte) (int, error) {
	st := s.get(h)
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.closed {
		return 0, io.ErrClosedPipe
	}
	n, err := st.rwc.Read(buf)
	if err == io.EOF {
		return n, nil
	}
	return n, err
}

// Write writes buf in full (short writes from the underlying
// io.ReadWriteCloser are an error), returning the byte count written.
func (s *Streams) Write(h pool.Handle, buf []byte) (int, error) {
	st := s.get(h)
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.closed {
		return 0, io.ErrClosedPipe
	}
	return st.rwc.Write(buf)
}

// Close closes the underlying io.ReadWriteCloser early, independent of
// refcount; a subsequent Release still runs (Close is idempotent).
func (s *Streams) Close(h pool.Handle) error {
	st := s.get(h)
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.closeLocked()
}

func (st *Stream) closeLocked() error {
	if st.closed {
		return nil
	}
	st.closed = true
	return st.rwc.Close()
}
