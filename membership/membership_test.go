package membership

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/novanet/novanet/section"
	"github.com/novanet/novanet/xorname"
)

func TestRankEldersOrdersByAgeThenDistance(t *testing.T) {
	ref := xorname.Random()
	old := Candidate{Peer: section.Peer{Name: xorname.Random()}, Age: 10}
	young := Candidate{Peer: section.Peer{Name: xorname.Random()}, Age: 1}

	cfg := Config{ElderCount: 1, RecommendedSectionSize: 30}
	ranked := RankElders([]Candidate{young, old}, ref, cfg)
	require.Len(t, ranked, 1)
	require.Equal(t, old.Peer.Name, ranked[0].Name)
}

func TestShouldSplitRequiresBothHalvesAtRecommendedSize(t *testing.T) {
	cfg := Config{ElderCount: 7, RecommendedSectionSize: 2}
	prefix := xorname.RootPrefix()

	left := prefix.Pushed(0)
	var members []Candidate
	for i := 0; i < 4; i++ {
		n := left.Name()
		if i%2 == 1 {
			n = n.WithBitFlipped(0)
		}
		members = append(members, Candidate{Peer: section.Peer{Name: n}})
	}

	split, l, r := ShouldSplit(members, prefix, cfg)
	require.True(t, split)
	require.Equal(t, 1, l.BitCount())
	require.Equal(t, 1, r.BitCount())
}

func TestPuzzleRoundTrip(t *testing.T) {
	nonce, err := IssueNonce()
	require.NoError(t, err)
	candidate := xorname.Random()

	proof := SolvePuzzle(nonce, candidate)
	require.True(t, VerifyPuzzle(nonce, candidate, proof))
	require.False(t, VerifyPuzzle(nonce, candidate, []byte("wrong")))
}

func TestExecuteSplitProducesTrustedChildKeys(t *testing.T) {
	oldDKG, err := section.RunDKG([]xorname.Name{xorname.Random()}, 1)
	require.NoError(t, err)
	dag := section.NewDag(oldDKG.PublicKey)

	sign := func(msg []byte) ([]byte, error) {
		var name xorname.Name
		for n := range oldDKG.Shares {
			name = n
			break
		}
		partial, err := section.SignPartial(oldDKG.Shares[name], msg)
		if err != nil {
			return nil, err
		}
		return section.AggregateSignature(oldDKG.PubPoly, msg, [][]byte{partial}, 1, 1)
	}

	prefix := xorname.RootPrefix()
	leftElder := section.Peer{Name: prefix.Pushed(0).Name(), Address: "l"}
	rightElder := section.Peer{Name: prefix.Pushed(1).Name(), Address: "r"}

	result, err := ExecuteSplit(dag, oldDKG.PublicKey, sign, prefix.Pushed(0), prefix.Pushed(1),
		[]section.Peer{leftElder}, []section.Peer{rightElder}, 1)
	require.NoError(t, err)

	require.NoError(t, result.Left.SelfVerify())
	require.NoError(t, result.Right.SelfVerify())
	require.True(t, dag.HasKey(result.Left.Value.ThresholdKey))
	require.True(t, dag.HasKey(result.Right.Value.ThresholdKey))
}
