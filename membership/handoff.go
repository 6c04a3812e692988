package membership

import (
	"fmt"

	"github.com/novanet/novanet/section"
)

// SiblingHandoff builds the Update sent to every elder of the sibling SAP
// on commit of a split: our new SAP plus the chain bridging it to the
// shared parent key. It builds nothing else; replicated-data metadata for
// chunks newly addressable under the sibling's prefix (spec §4.I) is not
// part of its result.
func SiblingHandoff(ourNewSAP section.SignedSAP, dag *section.Dag, parentKey section.PublicKey) (section.TreeUpdate, error) {
	chain, err := dag.PartialDag(parentKey, ourNewSAP.Value.ThresholdKey)
	if err != nil {
		return section.TreeUpdate{}, fmt.Errorf("membership: building sibling handoff chain: %w", err)
	}
	return section.TreeUpdate{SignedSAP: ourNewSAP, ProofChain: chain}, nil
}
