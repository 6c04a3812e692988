package membership

import (
	"fmt"

	"github.com/novanet/novanet/section"
	"github.com/novanet/novanet/wire"
)

// BuildJoinChallenge issues the nonce a candidate must solve
// PuzzleDifficulty leading zero bits against (spec §4.G admission).
func BuildJoinChallenge(nonce []byte) wire.JoinResponsePayload {
	return wire.JoinResponsePayload{Kind: wire.JoinChallenge, Nonce: nonce}
}

// AcceptJoinRequest verifies a candidate's puzzle solution against the
// nonce the section issued it.
func AcceptJoinRequest(req wire.JoinRequestPayload, nonce []byte) bool {
	return VerifyPuzzle(nonce, req.Candidate.Name, req.PuzzleProof)
}

// ProposeOnline builds and threshold-signs the Online(NodeState::Joined)
// proposal for a newly admitted candidate (spec §4.G: "the elders
// propose Online(NodeState::Joined); once threshold-signed, the new
// SectionSigned<NodeState> is gossiped").
func ProposeOnline(candidate section.Peer, dkg *section.DKGResult) (section.SignedNodeState, error) {
	state := section.NodeState{Peer: candidate, State: section.Joined}
	sig, err := selfSign(state, dkg)
	if err != nil {
		return section.SignedNodeState{}, fmt.Errorf("membership: proposing online: %w", err)
	}
	return section.SignedNodeState{Value: state, Sig: sig}, nil
}
