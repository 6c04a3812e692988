package comm

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/novanet/novanet/section"
	"github.com/novanet/novanet/transport"
	"github.com/novanet/novanet/wire"
	"github.com/novanet/novanet/xorname"
)

// pipeEndpoint is an in-memory transport.Endpoint over net.Pipe, used so
// comm's dispatch logic can be exercised without a real QUIC socket.
type pipeEndpoint struct {
	incoming chan transport.Connection
}

func newPipePair() (a, b *pipeEndpoint) {
	a = &pipeEndpoint{incoming: make(chan transport.Connection, 4)}
	b = &pipeEndpoint{incoming: make(chan transport.Connection, 4)}
	return a, b
}

func (e *pipeEndpoint) ConnectTo(ctx context.Context, addr string) (transport.Connection, error) {
	c1, c2 := net.Pipe()
	other := peerEndpoints[addr]
	other.incoming <- &pipeConn{c: c2, remote: "dialer"}
	return &pipeConn{c: c1, remote: addr}, nil
}

func (e *pipeEndpoint) Accept(ctx context.Context) (transport.Connection, error) {
	select {
	case c := <-e.incoming:
		return c, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (e *pipeEndpoint) IsReachable(ctx context.Context, addr string) bool { return true }
func (e *pipeEndpoint) Close() error                                     { return nil }

type pipeConn struct {
	c      net.Conn
	remote string
}

func (p *pipeConn) OpenStream(ctx context.Context) (transport.Stream, error)   { return p.c, nil }
func (p *pipeConn) AcceptStream(ctx context.Context) (transport.Stream, error) { return p.c, nil }
func (p *pipeConn) RemoteAddress() string                                     { return p.remote }
func (p *pipeConn) Close() error                                              { return p.c.Close() }

// peerEndpoints lets ConnectTo find the listening side by address; fine
// for this single-process test harness.
var peerEndpoints = map[string]*pipeEndpoint{}

// TestCommSendAndAwaitRoundTrip exercises SendAndAwait end to end: the
// server's handler replies with a new frame carrying the inbound
// frame's msg_id (the only reply mechanism Comm has, since Handler
// carries no stream reference and serveStream closes the inbound
// stream as soon as the handler returns), and that reply must resolve
// the client's waiting SendAndAwait call.
func TestCommSendAndAwaitRoundTrip(t *testing.T) {
	serverEP, clientEP := newPipePair()
	peerEndpoints["server-addr-roundtrip"] = serverEP
	peerEndpoints["client-addr-roundtrip"] = clientEP

	serverPeer := section.Peer{Name: xorname.Random(), Address: "server-addr-roundtrip"}
	clientPeer := section.Peer{Name: xorname.Random(), Address: "client-addr-roundtrip"}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var server *Comm
	server = New(serverEP, nil, func(ctx context.Context, from section.Peer, f wire.Frame) {
		msg, err := wire.DecodePayload(f.Payload)
		require.NoError(t, err)
		require.NotNil(t, msg.AntiEntropyProbe)

		replyPayload, err := wire.EncodePayload(wire.Message{
			Type:             wire.MsgAntiEntropyProbe,
			AntiEntropyProbe: &wire.AntiEntropyProbePayload{SectionKey: section.PublicKey("reply-key")},
		})
		require.NoError(t, err)
		reply := wire.Frame{
			MsgID:   f.MsgID,
			Kind:    wire.KindServiceReply,
			Dst:     wire.Destination{Name: clientPeer.Name},
			Payload: replyPayload,
		}
		require.NoError(t, server.Send(ctx, clientPeer, reply))
	})
	go server.Start(ctx)

	client := New(clientEP, nil, nil)
	go client.Start(ctx)

	msg := wire.Message{
		Type:             wire.MsgAntiEntropyProbe,
		AntiEntropyProbe: &wire.AntiEntropyProbePayload{SectionKey: section.PublicKey("k")},
	}
	payload, err := wire.EncodePayload(msg)
	require.NoError(t, err)

	frame := wire.Frame{
		MsgID:   wire.NewMsgID(),
		Kind:    wire.KindNodeAuth,
		Dst:     wire.Destination{Name: serverPeer.Name},
		Payload: payload,
	}

	reply, err := client.SendAndAwait(ctx, serverPeer, frame, 2*time.Second)
	require.NoError(t, err)
	require.Equal(t, frame.MsgID, reply.MsgID)

	replyMsg, err := wire.DecodePayload(reply.Payload)
	require.NoError(t, err)
	require.NotNil(t, replyMsg.AntiEntropyProbe)
	require.Equal(t, section.PublicKey("reply-key"), replyMsg.AntiEntropyProbe.SectionKey)
}

func TestCommUpdateMembersEvictsDroppedPeer(t *testing.T) {
	_, clientEP := newPipePair()
	client := New(clientEP, nil, nil)

	peer := section.Peer{Name: xorname.Random(), Address: "gone"}
	sess := newPeerSession(peer, clientEP, nil)
	client.sessions[peer.Name] = sess

	client.UpdateMembers(nil)

	require.Empty(t, client.sessions)
	require.Equal(t, Dead, sess.State())
}
