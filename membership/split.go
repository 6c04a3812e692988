package membership

import (
	"fmt"

	"github.com/novanet/novanet/section"
	"github.com/novanet/novanet/xorname"
)

// ShouldSplit reports whether a section at prefix should split, per
// spec §4.G: membership at least 2x the recommended size, and both
// would-be halves (split on the first differing bit past the prefix)
// individually meet the recommended size.
func ShouldSplit(members []Candidate, prefix xorname.Prefix, cfg Config) (split bool, left, right xorname.Prefix) {
	if len(members) < 2*cfg.RecommendedSectionSize {
		return false, xorname.Prefix{}, xorname.Prefix{}
	}

	left = prefix.Pushed(0)
	right = prefix.Pushed(1)
	var leftCount, rightCount int
	for _, c := range members {
		if c.Peer.Name.Matches(left) {
			leftCount++
		} else {
			rightCount++
		}
	}

	if leftCount >= cfg.RecommendedSectionSize && rightCount >= cfg.RecommendedSectionSize {
		return true, left, right
	}
	return false, xorname.Prefix{}, xorname.Prefix{}
}

// SplitResult is the outcome of running DKG for both halves of a split:
// two fresh SAPs, each signed by the section's old threshold key into
// the DAG (spec §4.G: "the old section key signs both child keys").
type SplitResult struct {
	Left, Right       section.SignedSAP
	LeftDKG, RightDKG *section.DKGResult
}

// ExecuteSplit runs the (simulated, spec-black-box) DKG once per half and
// signs both resulting keys into dag under oldKey, using sign to obtain
// oldKey's threshold signature over each child key's bytes -- in
// production this is backed by a Propose round collecting partial
// signatures from the old section's elders and aggregating them
// (section.AggregateSignature); tests can pass a single-elder stand-in.
func ExecuteSplit(
	dag *section.Dag,
	oldKey section.PublicKey,
	sign func(msg []byte) ([]byte, error),
	leftPrefix, rightPrefix xorname.Prefix,
	leftElders, rightElders []section.Peer,
	threshold int,
) (*SplitResult, error) {
	leftNames := peerNames(leftElders)
	rightNames := peerNames(rightElders)

	leftDKG, err := section.RunDKG(leftNames, threshold)
	if err != nil {
		return nil, fmt.Errorf("membership: dkg for left half: %w", err)
	}
	rightDKG, err := section.RunDKG(rightNames, threshold)
	if err != nil {
		return nil, fmt.Errorf("membership: dkg for right half: %w", err)
	}

	leftSAP, err := section.NewSAP(leftPrefix, leftElders, leftDKG.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("membership: building left sap: %w", err)
	}
	rightSAP, err := section.NewSAP(rightPrefix, rightElders, rightDKG.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("membership: building right sap: %w", err)
	}

	if err := signIntoDag(dag, oldKey, leftDKG.PublicKey, sign); err != nil {
		return nil, err
	}
	if err := signIntoDag(dag, oldKey, rightDKG.PublicKey, sign); err != nil {
		return nil, err
	}

	// A SAP is self-certifying: it carries its own new threshold key's
	// signature over itself, not the parent's (only the DAG edge above
	// is signed by the parent). We hold every share from the simulated
	// DKG, so the section can self-sign as soon as the key exists.
	leftSig, err := selfSign(leftSAP, leftDKG)
	if err != nil {
		return nil, err
	}
	rightSig, err := selfSign(rightSAP, rightDKG)
	if err != nil {
		return nil, err
	}

	return &SplitResult{
		Left:     section.SignedSAP{Value: leftSAP, Sig: leftSig},
		Right:    section.SignedSAP{Value: rightSAP, Sig: rightSig},
		LeftDKG:  leftDKG,
		RightDKG: rightDKG,
	}, nil
}

func signIntoDag(dag *section.Dag, parent, child section.PublicKey, sign func([]byte) ([]byte, error)) error {
	sig, err := sign([]byte(child))
	if err != nil {
		return fmt.Errorf("membership: signing child key into dag: %w", err)
	}
	if err := dag.Insert(parent, child, sig); err != nil {
		return fmt.Errorf("membership: inserting dag edge: %w", err)
	}
	return nil
}

func peerNames(peers []section.Peer) []xorname.Name {
	out := make([]xorname.Name, len(peers))
	for i, p := range peers {
		out[i] = p.Name
	}
	return out
}
