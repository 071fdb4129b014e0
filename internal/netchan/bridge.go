package netchan

import (
	"context"
	"errors"
	"io"

	"github.com/orizon-lang/dongvm/internal/chanprim"
	"github.com/orizon-lang/dongvm/internal/rtlog"
)

// Stream is the minimal surface a Bridge needs from a transport: a
// quic.Stream satisfies it structurally, as does net.Conn or the
// net.Pipe halves used in tests, so the bridge logic never imports
// quic-go directly.
type Stream interface {
	io.Reader
	io.Writer
	io.Closer
}

// Bridge relays one chanprim.Channel's contents across a Stream in one
// direction. A full duplex link between two Contexts needs one Bridge
// per direction (two Channels and two Bridges, which may share a
// connection's one bidirectional stream), mirroring how CRREAD/CRWRITE each name a single channel
// handle rather than a bidirectional pair.
type Bridge struct {
	ch     *chanprim.Channel
	stream Stream
	log    rtlog.Logger
}

// NewBridge pairs a channel with a stream. logger may be nil, in which
// case rtlog.Discard is used (a bridge that logs nothing by default,
// since most callers run many of these concurrently).
func NewBridge(ch *chanprim.Channel, stream Stream, logger rtlog.Logger) *Bridge {
	if logger == nil {
		logger = rtlog.Discard
	}
	return &Bridge{ch: ch, stream: stream, log: logger}
}

// PumpToStream reads values out of the channel and writes each one, wire
// encoded, onto the stream, until the channel closes, the stream errors,
// or ctx is canceled. A closed channel ends the pump without error: the
// peer observes the stream's EOF/close the same way CRREAD observes
// ErrClosed locally.
func (b *Bridge) PumpToStream(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		v, err := b.ch.Read()
		if err != nil {
			if errors.Is(err, chanprim.ErrClosed) {
				return nil
			}
			return err
		}
		if err := EncodeValue(b.stream, v); err != nil {
			return err
		}
		b.log.Debugf("netchan: sent %s", v.GoString())
	}
}

// PumpFromStream decodes values off the stream and writes each one into
// the channel, until the stream hits EOF, the channel closes, or ctx is
// canceled. A write to an already-closed local channel ends the pump
// without error, matching CRWRITE's silent-drop-on-closed convention.
func (b *Bridge) PumpFromStream(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		v, err := DecodeValue(b.stream)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if err := b.ch.Write(v); err != nil {
			if errors.Is(err, chanprim.ErrClosed) {
				return nil
			}
			return err
		}
		b.log.Debugf("netchan: received %s", v.GoString())
	}
}
