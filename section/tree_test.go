package section

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/novanet/novanet/xorname"
)

func elderPeers(names []xorname.Name) []Peer {
	peers := make([]Peer, len(names))
	for i, n := range names {
		peers[i] = Peer{Name: n, Address: n.String() + ":12000"}
	}
	return peers
}

func signSAP(t *testing.T, dkg *DKGResult, sap SAP) SignedSAP {
	t.Helper()
	msg, err := sap.MarshalBinary()
	require.NoError(t, err)
	partials := make([][]byte, 0, len(dkg.Shares))
	for _, sh := range dkg.Shares {
		p, err := SignPartial(sh, msg)
		require.NoError(t, err)
		partials = append(partials, p)
	}
	sig, err := AggregateSignature(dkg.PubPoly, msg, partials, dkg.Threshold, len(partials))
	require.NoError(t, err)
	return NewSectionSigned(sap, Signature{PublicKey: dkg.PublicKey, Signature: sig})
}

// TestTreeSingleSectionJoin checks the tree side of scenario S1: a
// five-elder genesis SAP, whose proof chain is the genesis key alone, is
// accepted as the root entry and served by GetByName.
func TestTreeSingleSectionJoin(t *testing.T) {
	names := make([]xorname.Name, 5)
	for i := range names {
		names[i] = xorname.Random()
	}
	genesisDKG, err := RunDKG(names, 3)
	require.NoError(t, err)

	root := xorname.RootPrefix()
	sap, err := NewSAP(root, elderPeers(names), genesisDKG.PublicKey)
	require.NoError(t, err)
	signed := signSAP(t, genesisDKG, sap)

	tree := NewTree(genesisDKG.PublicKey)
	proof := NewDag(genesisDKG.PublicKey) // no hops needed: genesis signs itself

	changed, err := tree.Update(signed, proof, TrustedKeySet(genesisDKG.PublicKey))
	require.NoError(t, err)
	require.True(t, changed)

	got, ok := tree.GetByName(names[0])
	require.True(t, ok)
	require.Equal(t, 5, len(got.Value.Elders))
	require.True(t, got.Value.Prefix.Equal(root))
}

// TestTreeSplitPrunesAncestor mirrors scenario S2: a root section splits
// into prefixes "0" and "1"; once both are known the root entry is pruned.
func TestTreeSplitPrunesAncestor(t *testing.T) {
	names := make([]xorname.Name, 4)
	for i := range names {
		names[i] = xorname.Random()
	}
	genesisDKG, err := RunDKG(names, 3)
	require.NoError(t, err)

	root := xorname.RootPrefix()
	rootSAP, err := NewSAP(root, elderPeers(names), genesisDKG.PublicKey)
	require.NoError(t, err)
	rootSigned := signSAP(t, genesisDKG, rootSAP)

	tree := NewTree(genesisDKG.PublicKey)
	_, err = tree.Update(rootSigned, NewDag(genesisDKG.PublicKey), TrustedKeySet(genesisDKG.PublicKey))
	require.NoError(t, err)

	// Split into two halves, each running its own DKG, keyed under the
	// genesis section key in the DAG.
	zeroPrefix := root.Pushed(0)
	onePrefix := root.Pushed(1)

	zeroDKG, err := RunDKG(names[:2], 2)
	require.NoError(t, err)
	oneDKG, err := RunDKG(names[2:], 2)
	require.NoError(t, err)

	mkProof := func(child PublicKey, dkgRes *DKGResult) *Dag {
		d := NewDag(genesisDKG.PublicKey)
		msg := []byte(child)
		partials := make([][]byte, 0, len(genesisDKG.Shares))
		for _, sh := range genesisDKG.Shares {
			p, err := SignPartial(sh, msg)
			require.NoError(t, err)
			partials = append(partials, p)
		}
		sig, err := AggregateSignature(genesisDKG.PubPoly, msg, partials, genesisDKG.Threshold, len(partials))
		require.NoError(t, err)
		require.NoError(t, d.Insert(genesisDKG.PublicKey, child, sig))
		return d
	}

	zeroSAP, err := NewSAP(zeroPrefix, elderPeers(names[:2]), zeroDKG.PublicKey)
	require.NoError(t, err)
	zeroSigned := signSAP(t, zeroDKG, zeroSAP)
	changed, err := tree.Update(zeroSigned, mkProof(zeroDKG.PublicKey, zeroDKG), TrustedKeySet(genesisDKG.PublicKey))
	require.NoError(t, err)
	require.True(t, changed)

	// Root is still present: "1" half not yet known, so root isn't covered.
	_, rootStillThere := tree.GetByName(onePrefix.SubstitutedIn(names[2]))
	require.True(t, rootStillThere)

	oneSAP, err := NewSAP(onePrefix, elderPeers(names[2:]), oneDKG.PublicKey)
	require.NoError(t, err)
	oneSigned := signSAP(t, oneDKG, oneSAP)
	changed, err = tree.Update(oneSigned, mkProof(oneDKG.PublicKey, oneDKG), TrustedKeySet(genesisDKG.PublicKey))
	require.NoError(t, err)
	require.True(t, changed)

	allPrefixes := tree.AllPrefixes()
	require.Len(t, allPrefixes, 2, "root must be pruned once both halves are known")

	got, ok := tree.GetByName(zeroPrefix.SubstitutedIn(names[0]))
	require.True(t, ok)
	require.True(t, got.Value.Prefix.Equal(zeroPrefix))
}
