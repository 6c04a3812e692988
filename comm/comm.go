package comm

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/novanet/novanet/log"
	"github.com/novanet/novanet/section"
	"github.com/novanet/novanet/transport"
	"github.com/novanet/novanet/wire"
)

// maxFrameSize bounds a single frame read off the wire; spec §6 frames
// carry at most one chunk (or chunk-sized piece) plus a small header.
const maxFrameSize = 8 * 1024 * 1024

// Handler processes an inbound frame that isn't a reply to a pending
// SendAndAwait call. It is the seam the rest of the node (ae, membership,
// chunkstore, ...) hangs its dispatch logic off of.
type Handler func(ctx context.Context, from section.Peer, f wire.Frame)

// Comm is the node's messaging facade (spec §4.E): open a bounded number
// of outbound sessions, fan messages out over them, and correlate
// SendAndAwait replies by msg_id. Grounded on the teacher's grpcClient
// connection cache (drand internal/net/client_grpc.go), generalised to
// novanet's own frame/stream abstractions instead of grpc.
type Comm struct {
	mu       sync.RWMutex
	endpoint transport.Endpoint
	sessions map[xorKey]*PeerSession
	members  map[xorKey]section.Peer
	log      log.Logger
	handler  Handler

	awaitMu sync.Mutex
	waiters map[uuid.UUID]chan wire.Frame
}

// xorKey is xorname.Name used as a map key; declared locally so this file
// doesn't need to import xorname just for the key type.
type xorKey = [32]byte

// New builds a Comm bound to endpoint. Call Start to begin accepting
// inbound connections.
func New(endpoint transport.Endpoint, l log.Logger, handler Handler) *Comm {
	return &Comm{
		endpoint: endpoint,
		sessions: make(map[xorKey]*PeerSession),
		members:  make(map[xorKey]section.Peer),
		log:      l,
		handler:  handler,
		waiters:  make(map[uuid.UUID]chan wire.Frame),
	}
}

// UpdateMembers replaces the set of peers Comm is willing to keep sessions
// open to (spec §4.E: sessions to peers that leave the known membership
// are torn down rather than leaked).
func (c *Comm) UpdateMembers(peers []section.Peer) {
	next := make(map[xorKey]section.Peer, len(peers))
	for _, p := range peers {
		next[p.Name] = p
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.members = next
	for key, sess := range c.sessions {
		if _, stillMember := next[key]; !stillMember {
			sess.close()
			delete(c.sessions, key)
		}
	}
}

func (c *Comm) sessionFor(peer section.Peer) *PeerSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	if sess, ok := c.sessions[peer.Name]; ok && sess.State() != Dead {
		return sess
	}
	sess := newPeerSession(peer, c.endpoint, c.log)
	c.sessions[peer.Name] = sess
	return sess
}

// Send fires f at peer without waiting for a reply, retrying with backoff
// across the session's retry budget (spec §4.E).
func (c *Comm) Send(ctx context.Context, peer section.Peer, f wire.Frame) error {
	sess := c.sessionFor(peer)
	payload, err := f.Encode()
	if err != nil {
		return fmt.Errorf("comm: encode frame: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < defaultRetryBudget; attempt++ {
		if sess.State() == Dead {
			return fmt.Errorf("comm: peer %s is dead", peer.Address)
		}
		stream, err := sess.openStream(ctx)
		if err != nil {
			lastErr = err
			select {
			case <-time.After(sess.backoffDelay(attempt)):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}
		if err := writeFrame(stream, payload); err != nil {
			_ = stream.Close()
			lastErr = err
			continue
		}
		_ = stream.Close()
		return nil
	}
	return fmt.Errorf("comm: send to %s exhausted retries: %w", peer.Address, lastErr)
}

// SendAndAwait sends f and blocks until a reply frame carrying the same
// msg_id arrives, ctx is cancelled, or timeout elapses.
func (c *Comm) SendAndAwait(ctx context.Context, peer section.Peer, f wire.Frame, timeout time.Duration) (wire.Frame, error) {
	ch := make(chan wire.Frame, 1)
	c.awaitMu.Lock()
	c.waiters[f.MsgID] = ch
	c.awaitMu.Unlock()
	defer func() {
		c.awaitMu.Lock()
		delete(c.waiters, f.MsgID)
		c.awaitMu.Unlock()
	}()

	if err := c.Send(ctx, peer, f); err != nil {
		return wire.Frame{}, err
	}

	select {
	case reply := <-ch:
		return reply, nil
	case <-time.After(timeout):
		return wire.Frame{}, fmt.Errorf("comm: send-and-await to %s timed out", peer.Address)
	case <-ctx.Done():
		return wire.Frame{}, ctx.Err()
	}
}

// IsReachable reports whether addr currently answers a connection attempt,
// without registering or retaining a session (used by dysfunction scoring
// and AE probing, spec §4.F/§4.J).
func (c *Comm) IsReachable(ctx context.Context, addr string) bool {
	return c.endpoint.IsReachable(ctx, addr)
}

// CloseEndpoint tears down every session and the underlying transport
// endpoint.
func (c *Comm) CloseEndpoint() error {
	c.mu.Lock()
	for _, sess := range c.sessions {
		sess.close()
	}
	c.sessions = make(map[xorKey]*PeerSession)
	c.mu.Unlock()
	return c.endpoint.Close()
}

// Start runs the accept loop until ctx is cancelled: every inbound
// connection is read stream-by-stream, each frame either resolved against
// a pending SendAndAwait or handed to Handler.
func (c *Comm) Start(ctx context.Context) error {
	for {
		conn, err := c.endpoint.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if c.log != nil {
				c.log.Warn("comm_accept_error", "err", err)
			}
			continue
		}
		go c.serveConn(ctx, conn)
	}
}

func (c *Comm) serveConn(ctx context.Context, conn transport.Connection) {
	for {
		stream, err := conn.AcceptStream(ctx)
		if err != nil {
			return
		}
		go c.serveStream(ctx, conn, stream)
	}
}

func (c *Comm) serveStream(ctx context.Context, conn transport.Connection, stream transport.Stream) {
	defer stream.Close()

	payload, err := readFrame(stream)
	if err != nil {
		if c.log != nil {
			c.log.Debug("comm_frame_read_error", "remote", conn.RemoteAddress(), "err", err)
		}
		return
	}
	f, err := wire.Decode(payload)
	if err != nil {
		if c.log != nil {
			c.log.Warn("comm_frame_decode_error", "remote", conn.RemoteAddress(), "err", err)
		}
		return
	}

	c.awaitMu.Lock()
	ch, waiting := c.waiters[f.MsgID]
	c.awaitMu.Unlock()
	if waiting {
		select {
		case ch <- f:
		default:
		}
		return
	}

	if c.handler != nil {
		from := section.Peer{Name: f.Dst.Name, Address: conn.RemoteAddress()}
		c.handler(ctx, from, f)
	}
}

// writeFrame/readFrame add a 4-byte big-endian length prefix around an
// already wire.Frame-encoded payload, matching the length-prefixed
// convention the rest of the wire package uses internally.
func writeFrame(w io.Writer, payload []byte) error {
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(payload)))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

func readFrame(r io.Reader) ([]byte, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(hdr[:])
	if n > maxFrameSize {
		return nil, fmt.Errorf("comm: frame of %d bytes exceeds limit", n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}
