package section

import (
	"bytes"
	"encoding/binary"

	"github.com/novanet/novanet/xorname"
)

// MemberState is the lifecycle state of a section member (spec §3 NodeState).
type MemberState uint8

const (
	Joined MemberState = iota
	Left
	Relocated
)

func (s MemberState) String() string {
	switch s {
	case Joined:
		return "Joined"
	case Left:
		return "Left"
	case Relocated:
		return "Relocated"
	default:
		return "Unknown"
	}
}

// NodeState records a member's peer identity and lifecycle state.
// RelocatedTo is only meaningful when State == Relocated.
type NodeState struct {
	Peer        Peer
	State       MemberState
	RelocatedTo xorname.Name
}

func (n NodeState) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	pb, err := n.Peer.MarshalBinary()
	if err != nil {
		return nil, err
	}
	_ = binary.Write(&buf, binary.BigEndian, uint32(len(pb)))
	buf.Write(pb)
	buf.WriteByte(byte(n.State))
	buf.Write(n.RelocatedTo.Bytes())
	return buf.Bytes(), nil
}

// SignedNodeState is a NodeState authorised by the section that observed
// the transition, so any recipient can verify membership against the DAG
// (spec §3).
type SignedNodeState = SectionSigned[NodeState]
