package netchan

import (
	"context"
	"crypto/tls"
	"time"

	quic "github.com/quic-go/quic-go"
)

// Options configures the underlying QUIC connection, mirroring the
// teacher's HTTP3Options (internal/runtime/netstack/http3.go) mapped
// onto quic.Config fields instead of http3.Server's.
type Options struct {
	MaxIdleTimeout  time.Duration
	KeepAlivePeriod time.Duration
	Enable0RTT      bool
}

func (o Options) quicConfig() *quic.Config {
	qc := &quic.Config{}
	if o.MaxIdleTimeout > 0 {
		qc.MaxIdleTimeout = o.MaxIdleTimeout
	}
	if o.KeepAlivePeriod > 0 {
		qc.KeepAlivePeriod = o.KeepAlivePeriod
	}
	if o.Enable0RTT {
		qc.Allow0RTT = true
	}
	return qc
}

// requireTLS13 enforces TLS 1.3 the same way the teacher's HTTP3Server
// does: QUIC requires it, so a caller-supplied config with a lower or
// unset minimum is bumped rather than left to fail opaquely inside
// quic-go.
func requireTLS13(tlsConf *tls.Config, alpn string) *tls.Config {
	if tlsConf == nil {
		return &tls.Config{MinVersion: tls.VersionTLS13, NextProtos: []string{alpn}}
	}
	if tlsConf.MinVersion == 0 || tlsConf.MinVersion < tls.VersionTLS13 {
		c := tlsConf.Clone()
		c.MinVersion = tls.VersionTLS13
		if len(c.NextProtos) == 0 {
			c.NextProtos = []string{alpn}
		}
		return c
	}
	return tlsConf
}

// alpn identifies this package's wire protocol in the TLS handshake, so
// a QUIC listener shared with an unrelated protocol on the same port
// can distinguish connections.
const alpn = "dongvm-netchan/1"

// Listener accepts incoming netchan connections on one UDP socket.
type Listener struct {
	ql *quic.Listener
}

// Listen binds addr and begins accepting QUIC connections. tlsConf must
// carry a server certificate; its MinVersion/NextProtos are adjusted to
// satisfy QUIC's TLS 1.3 requirement if not already set.
func Listen(addr string, tlsConf *tls.Config, opts Options) (*Listener, error) {
	ql, err := quic.ListenAddr(addr, requireTLS13(tlsConf, alpn), opts.quicConfig())
	if err != nil {
		return nil, err
	}
	return &Listener{ql: ql}, nil
}

// Addr returns the socket's bound local address.
func (l *Listener) Addr() string { return l.ql.Addr().String() }

// Close stops accepting new connections.
func (l *Listener) Close() error { return l.ql.Close() }

// AcceptStream blocks until a peer dials in and opens its first stream,
// returning that stream as a Bridge endpoint. One connection carries
// exactly one stream in this package's protocol: a single channel's
// worth of traffic per Dial/Accept pair.
func (l *Listener) AcceptStream(ctx context.Context) (Stream, error) {
	conn, err := l.ql.Accept(ctx)
	if err != nil {
		return nil, err
	}
	return conn.AcceptStream(ctx)
}

// Dial opens a QUIC connection to addr and opens this package's single
// stream on it, ready to hand to NewBridge.
func Dial(ctx context.Context, addr string, tlsConf *tls.Config, opts Options) (Stream, error) {
	conn, err := quic.DialAddr(ctx, addr, requireTLS13(tlsConf, alpn), opts.quicConfig())
	if err != nil {
		return nil, err
	}
	return conn.OpenStreamSync(ctx)
}
