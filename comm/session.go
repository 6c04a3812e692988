// Package comm implements spec §4.E's messaging facade: Comm and
// PeerSession. It mirrors the teacher's per-peer connection cache
// (drand internal/net/client_grpc.go's grpcClient, a mutex-guarded
// map[string]*grpc.ClientConn with a dial timeout), generalised from a
// single grpc.ClientConn per peer to a transport.Connection opened lazily
// and retried with backoff when it drops.
package comm

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/novanet/novanet/log"
	"github.com/novanet/novanet/section"
	"github.com/novanet/novanet/transport"
)

// LinkState is a PeerSession's connection state (spec §3 PeerSession).
type LinkState int

const (
	Connected LinkState = iota
	Reconnecting
	Dead
)

func (s LinkState) String() string {
	switch s {
	case Connected:
		return "connected"
	case Reconnecting:
		return "reconnecting"
	case Dead:
		return "dead"
	default:
		return "unknown"
	}
}

const (
	defaultRetryBudget  = 5
	defaultInitialDelay = 100 * time.Millisecond
	defaultMaxDelay     = 10 * time.Second
	dialTimeout         = 10 * time.Second
)

// PeerSession owns the single transport.Connection novanet keeps open to
// one peer, re-dialling with exponential backoff and jitter (spec §4.E)
// until its retry budget is spent, at which point it goes Dead and the
// owning Comm evicts it.
type PeerSession struct {
	mu          sync.Mutex
	peer        section.Peer
	endpoint    transport.Endpoint
	conn        transport.Connection
	state       LinkState
	retriesLeft int
	log         log.Logger
}

func newPeerSession(peer section.Peer, endpoint transport.Endpoint, l log.Logger) *PeerSession {
	return &PeerSession{
		peer:        peer,
		endpoint:    endpoint,
		state:       Reconnecting,
		retriesLeft: defaultRetryBudget,
		log:         l,
	}
}

// State returns the current link state.
func (s *PeerSession) State() LinkState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// openStream returns a stream to the peer, dialling (or redialling) the
// underlying connection on demand and consuming one unit of retry budget
// on failure. Once the budget is exhausted the session is marked Dead and
// every subsequent call fails immediately without attempting the network.
func (s *PeerSession) openStream(ctx context.Context) (transport.Stream, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == Dead {
		return nil, fmt.Errorf("comm: session to %s is dead", s.peer.Address)
	}

	if s.conn == nil {
		if err := s.dialLocked(ctx); err != nil {
			return nil, err
		}
	}

	stream, err := s.conn.OpenStream(ctx)
	if err != nil {
		s.conn = nil
		if dialErr := s.dialLocked(ctx); dialErr != nil {
			return nil, dialErr
		}
		stream, err = s.conn.OpenStream(ctx)
		if err != nil {
			s.failLocked()
			return nil, fmt.Errorf("comm: open stream to %s: %w", s.peer.Address, err)
		}
	}
	s.state = Connected
	return stream, nil
}

// dialLocked must be called with mu held. It makes a single dial attempt:
// a failure consumes one retry via failLocked, a success resets the retry
// budget. It does not wait or retry itself; the jittered delay between
// attempts comes from backoffDelay.
func (s *PeerSession) dialLocked(ctx context.Context) error {
	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	conn, err := s.endpoint.ConnectTo(dialCtx, s.peer.Address)
	if err != nil {
		s.failLocked()
		return fmt.Errorf("comm: dial %s: %w", s.peer.Address, err)
	}
	s.conn = conn
	s.state = Connected
	s.retriesLeft = defaultRetryBudget
	return nil
}

// failLocked consumes one retry and, once the budget runs out, transitions
// the session to Dead. Must be called with mu held.
func (s *PeerSession) failLocked() {
	s.retriesLeft--
	if s.retriesLeft <= 0 {
		s.state = Dead
		if s.log != nil {
			s.log.Warn("comm_peer_dead", "peer", s.peer.Address)
		}
		return
	}
	s.state = Reconnecting
}

func (s *PeerSession) backoffDelay(attempt int) time.Duration {
	d := defaultInitialDelay << uint(attempt)
	if d > defaultMaxDelay || d <= 0 {
		d = defaultMaxDelay
	}
	return time.Duration(rand.Int63n(int64(d)))
}

func (s *PeerSession) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}
	s.state = Dead
}
