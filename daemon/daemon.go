// Package daemon wires together one running novanet node: transport,
// comm, network knowledge, membership, anti-entropy, dysfunction
// tracking, the chunk store, delivery-group routing, and metrics, all
// behind one long-lived process. Grounded on the teacher's
// core.DrandDaemon (core/drand_daemon.go): a struct holding every
// subsystem plus a state lock and an exit channel, constructed by one
// NewDaemon and torn down by Stop.
package daemon

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/novanet/novanet/ae"
	"github.com/novanet/novanet/chunkstore"
	"github.com/novanet/novanet/comm"
	"github.com/novanet/novanet/config"
	"github.com/novanet/novanet/dysfunction"
	"github.com/novanet/novanet/knowledge"
	"github.com/novanet/novanet/log"
	"github.com/novanet/novanet/membership"
	"github.com/novanet/novanet/metrics"
	"github.com/novanet/novanet/metrics/pprof"
	"github.com/novanet/novanet/section"
	"github.com/novanet/novanet/transport"
	"github.com/novanet/novanet/wire"
	"github.com/novanet/novanet/xorname"
)

// nodeReplyTimeout bounds how long an elder waits for an adult to
// acknowledge a replicate/fetch round before counting it as a failed
// holder (spec §4.I's "fastest correct holder reply" read path and
// "supermajority acknowledge" write path).
const nodeReplyTimeout = 5 * time.Second

// elderCacheSize bounds the number of hot chunks an elder keeps in
// memory for the read path (spec §4.I).
const elderCacheSize = 256

// Daemon is one running node: everything an operator's SPEC_FULL.md
// process needs to serve membership, anti-entropy, and chunk storage
// for its current section.
type Daemon struct {
	cfg   config.Config
	log   log.Logger
	self  section.Peer
	store *chunkstore.LocalStore

	endpoint transport.Endpoint
	comm     *comm.Comm

	state      sync.Mutex
	knowledge  *knowledge.Knowledge
	ae         *ae.Engine
	dys        *dysfunction.Tracker
	grace      *membership.GracePeriod
	threshold  *metrics.ThresholdMonitor
	metricsLis interface{ Close() error }

	replicator *chunkstore.Replicator
	fetcher    *chunkstore.Fetcher

	exitCh chan struct{}
}

// Params carries everything NewDaemon needs beyond cfg that a bootstrap
// (the genesis section, or a join-response) supplies.
type Params struct {
	Self       section.Peer
	GenesisSAP section.SignedSAP
	Tree       *section.Tree
	DataDir    string
	MetricsBind string
}

// NewDaemon builds a daemon bound to the section described by p, ready
// for Start. It does not itself run the join protocol; the caller
// resolves GenesisSAP/Tree first (bootstrap, or an existing on-disk
// snapshot) the way membership's admission flow produces one.
func NewDaemon(cfg config.Config, l log.Logger, p Params) (*Daemon, error) {
	if l == nil {
		l = log.DefaultLogger()
	}

	k, err := knowledge.New(p.Self.Name, p.GenesisSAP, p.Tree)
	if err != nil {
		return nil, fmt.Errorf("daemon: building network knowledge: %w", err)
	}

	store, err := chunkstore.OpenLocalStore(p.DataDir, defaultStoreCapacity, l)
	if err != nil {
		return nil, fmt.Errorf("daemon: opening chunk store: %w", err)
	}

	endpoint, err := transport.NewQUICEndpoint(p.Self.Address)
	if err != nil {
		return nil, fmt.Errorf("daemon: binding transport: %w", err)
	}

	cache, err := chunkstore.NewElderCache(elderCacheSize)
	if err != nil {
		return nil, fmt.Errorf("daemon: building elder chunk cache: %w", err)
	}

	d := &Daemon{
		cfg:       cfg,
		log:       l,
		self:      p.Self,
		store:     store,
		endpoint:  endpoint,
		knowledge: k,
		ae:        ae.New(k),
		dys:       dysfunction.NewTracker(),
		grace:     membership.NewGracePeriod(),
		exitCh:    make(chan struct{}),
	}
	d.comm = comm.New(endpoint, l, d.handle)
	d.comm.UpdateMembers(k.Elders())

	d.replicator = &chunkstore.Replicator{
		ReplicationFactor: chunkstore.DefaultReplicationFactor,
		Send:              d.sendReplicateChunk,
	}
	d.fetcher = &chunkstore.Fetcher{
		ReplicationFactor: chunkstore.DefaultReplicationFactor,
		Cache:             cache,
		Fetch:             d.fetchChunk,
	}

	d.threshold = metrics.NewThresholdMonitor(p.Tree.AllPrefixes()[0].String(), l, membership.Supermajority(cfg.ElderCount))

	if p.MetricsBind != "" {
		d.metricsLis = metrics.Start(p.MetricsBind, l, pprof.WithProfile())
	}

	return d, nil
}

const defaultStoreCapacity = 10 << 30 // 10 GiB, overridden by config in a full deployment

// Start runs the daemon's comm loop and background monitors until
// ctx is cancelled or Stop is called.
func (d *Daemon) Start(ctx context.Context) error {
	d.log.Info("daemon_start", "self", d.self.Name.String(), "address", d.self.Address)
	d.threshold.Start()

	if err := d.comm.Start(ctx); err != nil {
		return fmt.Errorf("daemon: comm loop exited: %w", err)
	}
	return nil
}

// Stop tears the daemon down: closes the transport endpoint, stops the
// threshold monitor, closes the metrics listener if one was started,
// and closes the chunk store's index.
func (d *Daemon) Stop() error {
	close(d.exitCh)
	d.threshold.Stop()
	if d.metricsLis != nil {
		_ = d.metricsLis.Close()
	}
	if err := d.comm.CloseEndpoint(); err != nil {
		d.log.Warn("daemon_stop", "closing endpoint", "err", err)
	}
	return d.store.Close()
}

// WaitExit blocks until Stop has been called.
func (d *Daemon) WaitExit() <-chan struct{} {
	return d.exitCh
}

// handle dispatches one inbound wire frame by kind, the way
// spec §4.B's "tagged variant with an exhaustive match at the
// dispatcher" describes: each arm is a pure function of the current
// knowledge snapshot plus the message, so the switch itself carries no
// state beyond what it reads from d.
func (d *Daemon) handle(ctx context.Context, from section.Peer, f wire.Frame) {
	msg, err := wire.DecodePayload(f.Payload)
	if err != nil {
		d.log.Warn("daemon_handle", "decode failed", "from", from.Name.String(), "err", err)
		return
	}

	switch msg.Type {
	case wire.MsgAntiEntropy:
		d.handleAntiEntropy(ctx, from, msg)
	case wire.MsgAntiEntropyProbe:
		d.handleProbe(ctx, from, f, msg)
	case wire.MsgNodeCmdStoreChunk:
		d.handleStoreChunk(ctx, from, f, msg)
	case wire.MsgNodeCmdReplicateChunk:
		d.handleReplicateChunk(ctx, from, f, msg)
	case wire.MsgNodeQueryGetChunk:
		d.handleGetChunk(ctx, from, f, msg)
	case wire.MsgNodeQueryResponse:
		// A reply whose SendAndAwait waiter has already been removed
		// (timed out or the caller moved on) lands here; it isn't a
		// communication fault, just a race against the timeout.
		d.log.Debug("daemon_handle", "stale node reply", "from", from.Name.String())
	case wire.MsgClientQueryGetChunk:
		d.handleClientGetChunk(ctx, from, f, msg)
	case wire.MsgClientCmdStoreChunk:
		d.handleClientStoreChunk(ctx, from, f, msg)
	default:
		d.dys.TrackIssue(from.Name, dysfunction.Communication, "")
		d.log.Debug("daemon_handle", "unhandled kind", msg.Type, "from", from.Name.String())
	}
}

// sendReply encodes m into a frame carrying msgID (so the original
// caller's SendAndAwait waiter, if any, resolves it) and sends it back
// to the peer fire-and-forget. Comm never hands a handler its inbound
// stream to write a reply on directly (Handler carries no stream
// reference, and serveStream closes that stream as soon as the
// synchronous handler call returns), so every reply in this package
// travels as a new outbound frame correlated by msg_id instead — the
// same mechanism SendAndAwait itself relies on to resolve replies.
func (d *Daemon) sendReply(ctx context.Context, to section.Peer, msgID uuid.UUID, m wire.Message) {
	payload, err := wire.EncodePayload(m)
	if err != nil {
		d.log.Warn("daemon_reply", "to", to.Name.String(), "err", err)
		return
	}
	frame := wire.Frame{
		MsgID:   msgID,
		Kind:    wire.KindServiceReply,
		Dst:     wire.Destination{Name: to.Name, SectionKey: d.knowledge.OurSectionKey()},
		Payload: payload,
	}
	if err := d.comm.Send(ctx, to, frame); err != nil {
		d.log.Warn("daemon_reply", "to", to.Name.String(), "err", err)
	}
}

// handleAntiEntropy drives spec §4.F's originator-side bounce handling:
// HandleBounce tells us whether to give up, apply an Update silently,
// or resend the original bounced bytes to a new target after a
// backoff delay. The resend itself happens off the handler goroutine
// so a slow/backed-off peer never stalls the accept loop.
func (d *Daemon) handleAntiEntropy(ctx context.Context, from section.Peer, msg wire.Message) {
	if msg.AntiEntropy == nil {
		return
	}
	resend, err := d.ae.HandleBounce(*msg.AntiEntropy, from, d.dys, map[string]bool{d.knowledge.OurSectionKey().String(): true})
	if err != nil {
		d.log.Warn("daemon_ae", "from", from.Name.String(), "err", err)
		return
	}
	if resend == nil {
		return
	}

	original, err := wire.Decode(resend.Bytes)
	if err != nil {
		d.log.Warn("daemon_ae", "decoding bounced frame", "err", err)
		return
	}
	d.log.Debug("daemon_ae", "resend queued", "to", resend.Target.Name.String(), "delay", resend.Delay)
	go func() {
		if resend.Delay > 0 {
			timer := time.NewTimer(resend.Delay)
			defer timer.Stop()
			select {
			case <-timer.C:
			case <-ctx.Done():
				return
			}
		}
		if err := d.comm.Send(ctx, resend.Target, original); err != nil {
			d.log.Warn("daemon_ae", "resend failed", "to", resend.Target.Name.String(), "err", err)
		}
	}()
}

// handleProbe answers an AntiEntropyProbe (spec §4.F): silent if our
// key already matches theirs, otherwise the proof chain bridging their
// key to ours travels back as an AntiEntropy/Update message.
func (d *Daemon) handleProbe(ctx context.Context, from section.Peer, f wire.Frame, msg wire.Message) {
	if msg.AntiEntropyProbe == nil {
		return
	}
	reply, err := d.ae.BuildProbeReply(msg.AntiEntropyProbe.SectionKey)
	if err != nil {
		d.log.Warn("daemon_probe", "from", from.Name.String(), "err", err)
		return
	}
	if reply == nil {
		return
	}
	d.sendReply(ctx, from, f.MsgID, wire.Message{Type: wire.MsgAntiEntropy, AntiEntropy: reply})
}

// storeChunkAndAck is the adult-side half of the write path (spec
// §4.I): persist the chunk to the local store and ack (or nack) the
// elder that sent it, correlated by the inbound frame's msg_id.
func (d *Daemon) storeChunkAndAck(ctx context.Context, from section.Peer, msgID uuid.UUID, addr xorname.Name, data []byte) {
	err := d.store.Put(ctx, addr, data)
	if err != nil {
		d.dys.TrackIssue(from.Name, dysfunction.Communication, "")
		d.log.Warn("daemon_store_chunk", "addr", addr.String(), "err", err)
	}
	d.sendReply(ctx, from, msgID, wire.Message{
		Type:              wire.MsgNodeQueryResponse,
		NodeQueryResponse: &wire.NodeQueryResponsePayload{Address: addr, Found: err == nil},
	})
}

func (d *Daemon) handleStoreChunk(ctx context.Context, from section.Peer, f wire.Frame, msg wire.Message) {
	if msg.NodeCmdStoreChunk == nil {
		return
	}
	d.storeChunkAndAck(ctx, from, f.MsgID, msg.NodeCmdStoreChunk.Address, msg.NodeCmdStoreChunk.Bytes)
}

// handleReplicateChunk is the adult-side target of Replicator's fan-out
// (spec §4.I write path): an elder ranks holders and sends this to
// each one, waiting for supermajority acks.
func (d *Daemon) handleReplicateChunk(ctx context.Context, from section.Peer, f wire.Frame, msg wire.Message) {
	if msg.NodeCmdReplicateChunk == nil {
		return
	}
	d.storeChunkAndAck(ctx, from, f.MsgID, msg.NodeCmdReplicateChunk.Address, msg.NodeCmdReplicateChunk.Bytes)
}

// handleGetChunk is the adult-side target of Fetcher's fan-out (spec
// §4.I read path): reply with the chunk if we hold it, Found: false
// otherwise, so the elder's Fetcher can move on to the next holder.
func (d *Daemon) handleGetChunk(ctx context.Context, from section.Peer, f wire.Frame, msg wire.Message) {
	if msg.NodeQueryGetChunk == nil {
		return
	}
	addr := msg.NodeQueryGetChunk.Address
	data, err := d.store.Get(ctx, addr)
	if err != nil {
		d.log.Debug("daemon_get_chunk", "addr", addr.String(), "from", from.Name.String(), "err", err)
		d.sendReply(ctx, from, f.MsgID, wire.Message{
			Type:              wire.MsgNodeQueryResponse,
			NodeQueryResponse: &wire.NodeQueryResponsePayload{Address: addr, Found: false},
		})
		return
	}
	d.sendReply(ctx, from, f.MsgID, wire.Message{
		Type:              wire.MsgNodeQueryResponse,
		NodeQueryResponse: &wire.NodeQueryResponsePayload{Address: addr, Bytes: data, Found: true},
	})
}

// handleClientGetChunk is the client-facing Query{GetChunk} entry point
// (spec §6/§7): resolve via Fetcher against our current adults, and
// reply with either the chunk or a Found: false the client can
// interpret as NotEnoughChunksRetrieved and retry.
func (d *Daemon) handleClientGetChunk(ctx context.Context, from section.Peer, f wire.Frame, msg wire.Message) {
	if msg.ClientQueryGetChunk == nil {
		return
	}
	addr := msg.ClientQueryGetChunk.Address
	data, err := d.fetcher.Get(ctx, d.knowledge.Adults(), addr)
	if err != nil {
		d.log.Debug("daemon_client_get_chunk", "addr", addr.String(), "from", from.Name.String(), "err", err)
		d.sendReply(ctx, from, f.MsgID, wire.Message{
			Type:              wire.MsgNodeQueryResponse,
			NodeQueryResponse: &wire.NodeQueryResponsePayload{Address: addr, Found: false},
		})
		return
	}
	d.sendReply(ctx, from, f.MsgID, wire.Message{
		Type:              wire.MsgNodeQueryResponse,
		NodeQueryResponse: &wire.NodeQueryResponsePayload{Address: addr, Bytes: data, Found: true},
	})
}

// handleClientStoreChunk is the client-facing Cmd{StoreChunk} entry
// point (spec §6/§7): rank the current adults and replicate through
// them, reporting success only once supermajority acknowledges. There
// is no partial-success reply — the client sees Found: true or
// Found: false, never a count.
func (d *Daemon) handleClientStoreChunk(ctx context.Context, from section.Peer, f wire.Frame, msg wire.Message) {
	if msg.ClientCmdStoreChunk == nil {
		return
	}
	addr := msg.ClientCmdStoreChunk.Address
	err := d.replicator.Replicate(ctx, d.knowledge.Adults(), addr, msg.ClientCmdStoreChunk.Bytes)
	if err != nil {
		d.log.Warn("daemon_client_store_chunk", "addr", addr.String(), "from", from.Name.String(), "err", err)
	}
	d.sendReply(ctx, from, f.MsgID, wire.Message{
		Type:              wire.MsgNodeQueryResponse,
		NodeQueryResponse: &wire.NodeQueryResponsePayload{Address: addr, Found: err == nil},
	})
}

// sendReplicateChunk is the Replicator.Send callback: push addr/data to
// a ranked adult holder and wait for its ack.
func (d *Daemon) sendReplicateChunk(ctx context.Context, peer section.Peer, addr xorname.Name, data []byte) error {
	payload, err := wire.EncodePayload(wire.Message{
		Type:                  wire.MsgNodeCmdReplicateChunk,
		NodeCmdReplicateChunk: &wire.NodeCmdReplicateChunkPayload{Address: addr, Bytes: data},
	})
	if err != nil {
		return fmt.Errorf("daemon: encoding replicate chunk: %w", err)
	}
	frame := wire.Frame{
		MsgID:   wire.NewMsgID(),
		Kind:    wire.KindSectionAuth,
		Dst:     wire.Destination{Name: peer.Name, SectionKey: d.knowledge.OurSectionKey()},
		Payload: payload,
	}
	reply, err := d.comm.SendAndAwait(ctx, peer, frame, nodeReplyTimeout)
	if err != nil {
		return err
	}
	ack, err := wire.DecodePayload(reply.Payload)
	if err != nil {
		return fmt.Errorf("daemon: decoding replicate ack: %w", err)
	}
	if ack.NodeQueryResponse == nil || !ack.NodeQueryResponse.Found {
		return fmt.Errorf("daemon: adult %s did not acknowledge chunk %s", peer.Name.String(), addr.String())
	}
	return nil
}

// fetchChunk is the Fetcher.Fetch callback: ask a ranked adult holder
// for addr and return its bytes once the hash check passes (done by
// the caller, Fetcher.Get).
func (d *Daemon) fetchChunk(ctx context.Context, peer section.Peer, addr xorname.Name) ([]byte, error) {
	payload, err := wire.EncodePayload(wire.Message{
		Type:              wire.MsgNodeQueryGetChunk,
		NodeQueryGetChunk: &wire.NodeQueryGetChunkPayload{Address: addr},
	})
	if err != nil {
		return nil, fmt.Errorf("daemon: encoding get chunk query: %w", err)
	}
	frame := wire.Frame{
		MsgID:   wire.NewMsgID(),
		Kind:    wire.KindSectionAuth,
		Dst:     wire.Destination{Name: peer.Name, SectionKey: d.knowledge.OurSectionKey()},
		Payload: payload,
	}
	reply, err := d.comm.SendAndAwait(ctx, peer, frame, nodeReplyTimeout)
	if err != nil {
		return nil, err
	}
	resp, err := wire.DecodePayload(reply.Payload)
	if err != nil {
		return nil, fmt.Errorf("daemon: decoding get chunk reply: %w", err)
	}
	if resp.NodeQueryResponse == nil || !resp.NodeQueryResponse.Found {
		return nil, chunkstore.ErrNotEnoughChunksRetrieved
	}
	return resp.NodeQueryResponse.Bytes, nil
}
