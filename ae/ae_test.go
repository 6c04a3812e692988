package ae

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/novanet/novanet/knowledge"
	"github.com/novanet/novanet/section"
	"github.com/novanet/novanet/wire"
	"github.com/novanet/novanet/xorname"
)

func genesisKnowledge(t *testing.T) (*knowledge.Knowledge, xorname.Name) {
	t.Helper()
	dkg, err := section.RunDKG([]xorname.Name{xorname.Random()}, 1)
	require.NoError(t, err)

	ourName := xorname.Random()
	elder := section.Peer{Name: ourName, Address: "127.0.0.1:1"}
	sap, err := section.NewSAP(xorname.Prefix{}, []section.Peer{elder}, dkg.PublicKey)
	require.NoError(t, err)

	sig, err := section.SignPartial(dkg.Shares[elder.Name], mustMarshal(t, sap))
	require.NoError(t, err)
	full, err := section.AggregateSignature(dkg.PubPoly, mustMarshal(t, sap), [][]byte{sig}, 1, 1)
	require.NoError(t, err)

	signedSAP := section.SignedSAP{
		Value: sap,
		Sig:   section.Signature{PublicKey: dkg.PublicKey, Signature: full},
	}

	tree := section.NewTree(dkg.PublicKey)
	_, err = tree.Update(signedSAP, section.NewDag(dkg.PublicKey), section.TrustedKeySet(dkg.PublicKey))
	require.NoError(t, err)

	k, err := knowledge.New(ourName, signedSAP, tree)
	require.NoError(t, err)
	return k, ourName
}

func mustMarshal(t *testing.T, sap section.SAP) []byte {
	t.Helper()
	b, err := sap.MarshalBinary()
	require.NoError(t, err)
	return b
}

func TestClassifyDeliverWhenKeyMatches(t *testing.T) {
	k, ourName := genesisKnowledge(t)
	e := New(k)

	dst := wire.Destination{Name: ourName, SectionKey: k.OurSectionKey()}
	require.Equal(t, Deliver, e.Classify(dst))
}

func TestClassifyRetryWhenKeyStale(t *testing.T) {
	k, ourName := genesisKnowledge(t)
	e := New(k)

	dst := wire.Destination{Name: ourName, SectionKey: section.PublicKey("stale-key")}
	require.Equal(t, BounceRetry, e.Classify(dst))
}

func TestClassifyNoMatchingSectionOnEmptyTree(t *testing.T) {
	dkg, err := section.RunDKG([]xorname.Name{xorname.Random()}, 1)
	require.NoError(t, err)
	tree := section.NewTree(dkg.PublicKey)

	ourName := xorname.Random()
	prefix := xorname.NewPrefix(ourName, 1) // narrow, non-root prefix
	elder := section.Peer{Name: ourName, Address: "a"}
	sap, err := section.NewSAP(prefix, []section.Peer{elder}, dkg.PublicKey)
	require.NoError(t, err)
	sig, err := section.SignPartial(dkg.Shares[elder.Name], mustMarshal(t, sap))
	require.NoError(t, err)
	full, err := section.AggregateSignature(dkg.PubPoly, mustMarshal(t, sap), [][]byte{sig}, 1, 1)
	require.NoError(t, err)
	signed := section.SignedSAP{Value: sap, Sig: section.Signature{PublicKey: dkg.PublicKey, Signature: full}}

	k, err := knowledge.New(ourName, signed, tree)
	require.NoError(t, err)
	e := New(k)

	// A name with the opposite leading bit falls outside our prefix, and
	// the tree (never Update()'d) has nothing else to redirect to.
	other := ourName.WithBitFlipped(0)
	dst := wire.Destination{Name: other, SectionKey: section.PublicKey("whatever")}
	require.Equal(t, NoMatchingSection, e.Classify(dst))
}
