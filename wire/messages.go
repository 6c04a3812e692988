package wire

import (
	"github.com/novanet/novanet/section"
	"github.com/novanet/novanet/xorname"
)

// MessageType discriminates the payload carried by a Frame (spec §6's
// "system-message payloads" and "client-message payloads" lists).
type MessageType uint8

const (
	MsgAntiEntropy MessageType = iota
	MsgAntiEntropyProbe
	MsgJoinRequest
	MsgJoinResponse
	MsgPropose
	MsgDKGStart
	MsgDKGMessage
	MsgDKGFailure
	MsgRelocate
	MsgNodeCmdStoreChunk
	MsgNodeCmdReplicateChunk
	MsgNodeQueryGetChunk
	MsgNodeQueryResponse
	MsgClientQueryGetChunk
	MsgClientCmdStoreChunk
	MsgLoadReport
)

// AEKind distinguishes the three Anti-Entropy bounce shapes of spec §4.F.
type AEKind uint8

const (
	AEUpdate AEKind = iota
	AERetry
	AERedirect
)

// AntiEntropyPayload is the AntiEntropy system message.
type AntiEntropyPayload struct {
	Update  section.TreeUpdate
	Kind    AEKind
	Members []section.SignedNodeState // only set for AEUpdate
	Bounced []byte                    // the original frame bytes, only set for Retry/Redirect
}

// AntiEntropyProbePayload asks a peer whether our key has moved past theirs.
type AntiEntropyProbePayload struct {
	SectionKey section.PublicKey
}

// JoinRequestPayload is sent by a candidate to any known elder.
type JoinRequestPayload struct {
	Candidate   section.Peer
	PuzzleProof []byte // solution to the proof-of-work-style puzzle
	Nonce       []byte
}

// JoinResponseKind enumerates the four shapes of spec §6 JoinResponse.
type JoinResponseKind uint8

const (
	JoinRetry JoinResponseKind = iota
	JoinRedirect
	JoinApproval
	JoinChallenge
)

// JoinResponsePayload replies to a JoinRequest.
type JoinResponsePayload struct {
	Kind      JoinResponseKind
	SAP       *section.SignedSAP
	Nonce     []byte // set on JoinChallenge
	Signed    *section.SignedNodeState
	ProofChain *section.Dag
}

// ProposePayload carries a section-level decision awaiting threshold
// signature (e.g. Online(NodeState::Joined), elder churn, split).
type ProposePayload struct {
	Content []byte // serialised NodeState/SAP being proposed
	Share   []byte // proposer's partial signature
}

// DKGStartPayload kicks off a DKG round for a candidate elder set.
type DKGStartPayload struct {
	Prefix       xorname.Prefix
	Participants []section.Peer
	Threshold    int
	RoundID      uint64
}

// DKGMessagePayload is an opaque DKG-protocol message; novanet treats the
// DKG protocol itself as a black box (spec §1), so only round bookkeeping
// fields are interpreted here.
type DKGMessagePayload struct {
	RoundID uint64
	Data    []byte
}

// DKGFailurePayload reports a DKG round could not complete.
type DKGFailurePayload struct {
	RoundID uint64
	Reason  string
}

// RelocatePayload instructs a member to relocate to a new name.
type RelocatePayload struct {
	NewName xorname.Name
}

// NodeCmdStoreChunkPayload is an elder's instruction that it has accepted
// a chunk and it must now be placed.
type NodeCmdStoreChunkPayload struct {
	Address xorname.Name
	Bytes   []byte
}

// NodeCmdReplicateChunkPayload is an elder fanning a chunk out to a
// specific adult holder.
type NodeCmdReplicateChunkPayload struct {
	Address xorname.Name
	Bytes   []byte
}

// NodeQueryGetChunkPayload asks an adult for a chunk it is expected to hold.
type NodeQueryGetChunkPayload struct {
	Address xorname.Name
}

// NodeQueryResponsePayload is the elder-to-elder or adult-to-elder reply.
type NodeQueryResponsePayload struct {
	Address xorname.Name
	Bytes   []byte
	Found   bool
}

// ClientQueryGetChunkPayload is the client-facing Query{GetChunk}.
type ClientQueryGetChunkPayload struct {
	Address xorname.Name
}

// ClientCmdStoreChunkPayload is the client-facing Cmd{StoreChunk}.
type ClientCmdStoreChunkPayload struct {
	Address xorname.Name
	Bytes   []byte
}

// LoadReportPayload asks a noisy peer to slow its sends to us (spec §5).
type LoadReportPayload struct {
	DelayHint int64 // nanoseconds
}

// Message is the decoded form of a Frame's payload: exactly one of the
// pointer fields matching Type is non-nil. A concrete struct (rather than
// an interface) keeps gob encoding simple and allocation-free to decode.
type Message struct {
	Type MessageType

	AntiEntropy      *AntiEntropyPayload
	AntiEntropyProbe *AntiEntropyProbePayload
	JoinRequest      *JoinRequestPayload
	JoinResponse     *JoinResponsePayload
	Propose          *ProposePayload
	DKGStart         *DKGStartPayload
	DKGMessage       *DKGMessagePayload
	DKGFailure       *DKGFailurePayload
	Relocate         *RelocatePayload
	NodeCmdStoreChunk      *NodeCmdStoreChunkPayload
	NodeCmdReplicateChunk  *NodeCmdReplicateChunkPayload
	NodeQueryGetChunk      *NodeQueryGetChunkPayload
	NodeQueryResponse      *NodeQueryResponsePayload
	ClientQueryGetChunk    *ClientQueryGetChunkPayload
	ClientCmdStoreChunk    *ClientCmdStoreChunkPayload
	LoadReport             *LoadReportPayload
}
