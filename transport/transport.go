// Package transport defines the opaque bidirectional-stream endpoint spec
// §4.E requires and a concrete implementation over QUIC. Per spec §1 the
// QUIC library itself is a collaborator treated as a black box: novanet
// only ever calls Connect/Accept/IsReachable/Close and reads/writes framed
// bytes on the Stream it gets back.
package transport

import (
	"context"
	"io"
)

// Stream is a single ordered, reliable bidirectional byte stream. Bytes
// written arrive in order on the peer's matching Stream (spec §4.E/§5:
// ordering is guaranteed within a connection, not across connections).
type Stream interface {
	io.ReadWriteCloser
}

// Connection is one established link to a remote address. A Connection
// may carry multiple concurrent Streams.
type Connection interface {
	OpenStream(ctx context.Context) (Stream, error)
	AcceptStream(ctx context.Context) (Stream, error)
	RemoteAddress() string
	Close() error
}

// Endpoint is the transport adapter's entry point: connect out, accept
// in, and report reachability, with no assumption about what runs
// underneath (QUIC here; spec treats the choice as a black box).
type Endpoint interface {
	ConnectTo(ctx context.Context, addr string) (Connection, error)
	Accept(ctx context.Context) (Connection, error)
	IsReachable(ctx context.Context, addr string) bool
	Close() error
}
