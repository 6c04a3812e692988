package daemon

import (
	"fmt"

	"github.com/novanet/novanet/section"
	"github.com/novanet/novanet/xorname"
)

// Genesis builds the Params for a brand-new, single-elder section: this
// node runs the DKG black box against itself, signs its own SAP, and
// seeds a tree with no ancestry. Grounded on the teacher's
// generate-keypair/share flow (cmd/drand/main.go's keygenCmd followed
// by shareCmd): generating cryptographic material is a separate,
// explicit step from joining an existing network, not folded into
// every node start. This package has no path that builds Params from a
// JoinResponse of an existing section; Genesis is the only constructor.
func Genesis(self section.Peer) (Params, error) {
	dkg, err := section.RunDKG([]xorname.Name{self.Name}, 1)
	if err != nil {
		return Params{}, fmt.Errorf("daemon: genesis dkg: %w", err)
	}

	sap, err := section.NewSAP(xorname.Prefix{}, []section.Peer{self}, dkg.PublicKey)
	if err != nil {
		return Params{}, fmt.Errorf("daemon: genesis sap: %w", err)
	}

	sapBytes, err := sap.MarshalBinary()
	if err != nil {
		return Params{}, fmt.Errorf("daemon: marshalling genesis sap: %w", err)
	}

	partial, err := section.SignPartial(dkg.Shares[self.Name], sapBytes)
	if err != nil {
		return Params{}, fmt.Errorf("daemon: signing genesis sap: %w", err)
	}
	full, err := section.AggregateSignature(dkg.PubPoly, sapBytes, [][]byte{partial}, 1, 1)
	if err != nil {
		return Params{}, fmt.Errorf("daemon: aggregating genesis signature: %w", err)
	}

	signedSAP := section.SignedSAP{
		Value: sap,
		Sig:   section.Signature{PublicKey: dkg.PublicKey, Signature: full},
	}

	tree := section.NewTree(dkg.PublicKey)
	if _, err := tree.Update(signedSAP, section.NewDag(dkg.PublicKey), section.TrustedKeySet(dkg.PublicKey)); err != nil {
		return Params{}, fmt.Errorf("daemon: seeding genesis tree: %w", err)
	}

	return Params{Self: self, GenesisSAP: signedSAP, Tree: tree}, nil
}
