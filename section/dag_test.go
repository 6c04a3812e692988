package section

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/novanet/novanet/xorname"
)

// signChildWith produces a parent->child DAG edge signature: every share of
// parentResult signs childKey, and the partials are aggregated into the
// parent section's threshold signature.
func signChildWith(t *testing.T, parentResult *DKGResult, childKey PublicKey) []byte {
	t.Helper()
	partials := make([][]byte, 0, len(parentResult.Shares))
	for _, sh := range parentResult.Shares {
		p, err := SignPartial(sh, childKey)
		require.NoError(t, err)
		partials = append(partials, p)
	}
	sig, err := AggregateSignature(parentResult.PubPoly, childKey, partials, parentResult.Threshold, len(partials))
	require.NoError(t, err)
	return sig
}

func TestDagInsertAndVerify(t *testing.T) {
	genesisParticipants := []xorname.Name{xorname.Random(), xorname.Random(), xorname.Random()}
	genesis, err := RunDKG(genesisParticipants, 2)
	require.NoError(t, err)

	dag := NewDag(genesis.PublicKey)
	require.True(t, dag.HasKey(genesis.PublicKey))

	child, err := RunDKG(genesisParticipants, 2)
	require.NoError(t, err)

	sig := signChildWith(t, genesis, child.PublicKey)
	require.NoError(t, dag.Insert(genesis.PublicKey, child.PublicKey, sig))
	require.True(t, dag.HasKey(child.PublicKey))

	// idempotent
	require.NoError(t, dag.Insert(genesis.PublicKey, child.PublicKey, sig))
}

func TestDagInsertRejectsUntrustedSignature(t *testing.T) {
	genesisParticipants := []xorname.Name{xorname.Random(), xorname.Random(), xorname.Random()}
	genesis, err := RunDKG(genesisParticipants, 2)
	require.NoError(t, err)
	dag := NewDag(genesis.PublicKey)

	child, err := RunDKG(genesisParticipants, 2)
	require.NoError(t, err)

	// Sign with the CHILD's own key instead of the parent's: must fail.
	bogus := signChildWith(t, child, genesis.PublicKey)
	err = dag.Insert(genesis.PublicKey, child.PublicKey, bogus)
	require.Error(t, err)
}

func TestPartialDagAndCheckTrust(t *testing.T) {
	participants := []xorname.Name{xorname.Random(), xorname.Random(), xorname.Random()}
	genesis, err := RunDKG(participants, 2)
	require.NoError(t, err)
	dag := NewDag(genesis.PublicKey)

	k1, err := RunDKG(participants, 2)
	require.NoError(t, err)
	sig1 := signChildWith(t, genesis, k1.PublicKey)
	require.NoError(t, dag.Insert(genesis.PublicKey, k1.PublicKey, sig1))

	k2, err := RunDKG(participants, 2)
	require.NoError(t, err)
	sig2 := signChildWith(t, k1, k2.PublicKey)
	require.NoError(t, dag.Insert(k1.PublicKey, k2.PublicKey, sig2))

	sub, err := dag.PartialDag(genesis.PublicKey, k2.PublicKey)
	require.NoError(t, err)
	require.True(t, sub.HasKey(genesis.PublicKey))
	require.True(t, sub.HasKey(k1.PublicKey))
	require.True(t, sub.HasKey(k2.PublicKey))

	require.True(t, CheckTrust(sub, TrustedKeySet(genesis.PublicKey)))
	require.False(t, CheckTrust(sub, TrustedKeySet(PublicKey(xorname.Random().Bytes()))))

	_, err = dag.PartialDag(k2.PublicKey, genesis.PublicKey)
	require.Error(t, err, "genesis is not reachable from a descendant")
}
