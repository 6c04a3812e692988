package delivery

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/novanet/novanet/knowledge"
	"github.com/novanet/novanet/section"
	"github.com/novanet/novanet/xorname"
)

func genesisKnowledge(t *testing.T, elders []section.Peer) (*knowledge.Knowledge, xorname.Name) {
	t.Helper()
	names := make([]xorname.Name, len(elders))
	for i, e := range elders {
		names[i] = e.Name
	}
	dkg, err := section.RunDKG(names, len(names))
	require.NoError(t, err)

	sap, err := section.NewSAP(xorname.Prefix{}, elders, dkg.PublicKey)
	require.NoError(t, err)

	msg, err := sap.MarshalBinary()
	require.NoError(t, err)

	partials := make([][]byte, len(elders))
	for i, e := range elders {
		p, err := section.SignPartial(dkg.Shares[e.Name], msg)
		require.NoError(t, err)
		partials[i] = p
	}
	full, err := section.AggregateSignature(dkg.PubPoly, msg, partials, len(elders), len(elders))
	require.NoError(t, err)

	signed := section.SignedSAP{Value: sap, Sig: section.Signature{PublicKey: dkg.PublicKey, Signature: full}}
	tree := section.NewTree(dkg.PublicKey)
	_, err = tree.Update(signed, section.NewDag(dkg.PublicKey), section.TrustedKeySet(dkg.PublicKey))
	require.NoError(t, err)

	k, err := knowledge.New(elders[0].Name, signed, tree)
	require.NoError(t, err)
	return k, elders[0].Name
}

func TestGroupReturnsOurEldersMinusSelfWhenNameInOurPrefix(t *testing.T) {
	self := xorname.Random()
	elders := []section.Peer{
		{Name: self, Address: "a"},
		{Name: xorname.Random(), Address: "b"},
		{Name: xorname.Random(), Address: "c"},
	}
	k, ourName := genesisKnowledge(t, elders)

	group := Group(k, ourName, xorname.Random(), 5)
	require.Len(t, group, len(elders)-1)
	for _, p := range group {
		require.NotEqual(t, ourName, p.Name)
	}
}

// Truncation applies to the other-section branches of Group; the
// our-prefix branch returns every other elder (see the test above), so
// the truncating helper is exercised directly.
func TestGroupTruncatesToDeliveryGroupSize(t *testing.T) {
	self := xorname.Random()
	var elders []section.Peer
	elders = append(elders, section.Peer{Name: self, Address: "a"})
	for i := 0; i < 4; i++ {
		elders = append(elders, section.Peer{Name: xorname.Random(), Address: "x"})
	}

	group := closestTruncated(elders, xorname.Random(), 2)
	require.Len(t, group, 2)
}

func TestMinDeliveryGroupSizeFormula(t *testing.T) {
	require.Equal(t, 1+7-5, MinDeliveryGroupSize(7))
}

func TestReportClassifiesDeliveryOutcome(t *testing.T) {
	peers := []section.Peer{{Name: xorname.Random()}, {Name: xorname.Random()}}

	status, failed := Report(5, 3, nil)
	require.Equal(t, AllRecipients, status)
	require.Empty(t, failed)

	status, failed = Report(5, 3, peers[:1])
	require.Equal(t, MinDeliveryGroupSizeReached, status)
	require.Len(t, failed, 1)

	status, failed = Report(5, 3, peers)
	require.Equal(t, MinDeliveryGroupSizeReached, status)
	require.Len(t, failed, 2)

	status, failed = Report(5, 5, peers)
	require.Equal(t, MinDeliveryGroupSizeFailed, status)
	require.Len(t, failed, 2)
}
