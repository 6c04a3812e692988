// Package section implements the sections DAG of BLS section keys (spec
// §4.B), the section tree / prefix map built on top of it (spec §4.C), the
// Section Authority Provider and NodeState types (spec §3), and the
// threshold-BLS primitives both are built from.
//
// The distributed key generation protocol that produces a section's
// threshold key shares is, per the specification, a black box: novanet
// only needs "a threshold key share per participant" out of it. We model
// that box with a trusted-dealer construction over the same pairing group
// the rest of the system signs with, so the resulting public key and
// shares are usable directly by github.com/drand/kyber/sign/tbls.
package section

import (
	"fmt"

	bls12381 "github.com/drand/kyber-bls12381"
	"github.com/drand/kyber"
	"github.com/drand/kyber/share"
	"github.com/drand/kyber/sign/tbls"
	"github.com/drand/kyber/util/random"

	"github.com/novanet/novanet/xorname"
)

// suite is the pairing used for every threshold key in the network. Keys
// live on G1 (48 bytes), signatures on G2 (96 bytes), matching the teacher
// scheme's "pedersen-bls-chained" layout.
var suite = bls12381.NewBLS12381SuiteWithDST(
	[]byte("NOVANET_SIG_BLS12381G1_XMD:SHA-256_SSWU_RO_NUL_"),
	[]byte("NOVANET_SIG_BLS12381G2_XMD:SHA-256_SSWU_RO_NUL_"),
)

var thresholdScheme = tbls.NewThresholdSchemeOnG2(suite)

// KeyGroup returns the group section public keys live in.
func KeyGroup() kyber.Group { return suite.G1() }

// PublicKey is a section's threshold BLS public key, serialised.
type PublicKey []byte

func (k PublicKey) String() string {
	return fmt.Sprintf("%x", []byte(k))[:16]
}

// Point decodes the public key into a kyber.Point.
func (k PublicKey) Point() (kyber.Point, error) {
	p := suite.G1().Point()
	if err := p.UnmarshalBinary(k); err != nil {
		return nil, fmt.Errorf("section: invalid public key: %w", err)
	}
	return p, nil
}

// Equal compares two public keys by their serialised bytes.
func (k PublicKey) Equal(other PublicKey) bool {
	if len(k) != len(other) {
		return false
	}
	for i := range k {
		if k[i] != other[i] {
			return false
		}
	}
	return true
}

func pointToKey(p kyber.Point) (PublicKey, error) {
	b, err := p.MarshalBinary()
	if err != nil {
		return nil, err
	}
	return PublicKey(b), nil
}

// KeyShare is one elder's share of the section's threshold private key,
// as handed out by the DKG black box.
type KeyShare struct {
	Share *share.PriShare
}

// DKGResult is the output of running the DKG black box for a candidate
// elder set: the section's new public key plus one share per participant.
type DKGResult struct {
	PublicKey PublicKey
	PubPoly   *share.PubPoly
	Shares    map[xorname.Name]*share.PriShare
	Threshold int
}

// RunDKG simulates the black-box DKG: a fresh threshold key pair is created
// and split `threshold`-of-`len(participants)` among participants. The
// specification treats the actual multi-round DKG protocol as an opaque
// collaborator; only its output contract (one key share per participant,
// and the aggregate public key) is part of the core.
func RunDKG(participants []xorname.Name, threshold int) (*DKGResult, error) {
	n := len(participants)
	if n == 0 {
		return nil, fmt.Errorf("section: cannot run dkg with zero participants")
	}
	if threshold < 1 || threshold > n {
		return nil, fmt.Errorf("section: invalid threshold %d for %d participants", threshold, n)
	}

	group := KeyGroup()
	secret := group.Scalar().Pick(random.New())
	priPoly := share.NewPriPoly(group, threshold, secret, random.New())
	pubPoly := priPoly.Commit(nil)
	priShares := priPoly.Shares(n)

	pubKey, err := pointToKey(pubPoly.Commit())
	if err != nil {
		return nil, err
	}

	shares := make(map[xorname.Name]*share.PriShare, n)
	for i, name := range participants {
		shares[name] = priShares[i]
	}

	return &DKGResult{
		PublicKey: pubKey,
		PubPoly:   pubPoly,
		Shares:    shares,
		Threshold: threshold,
	}, nil
}

// SignPartial produces this elder's threshold signature share over msg.
func SignPartial(ks *share.PriShare, msg []byte) ([]byte, error) {
	return thresholdScheme.Sign(ks, msg)
}

// AggregateSignature recovers the full section signature from at least
// `threshold` verified partial signatures.
func AggregateSignature(pubPoly *share.PubPoly, msg []byte, partials [][]byte, threshold, n int) ([]byte, error) {
	return thresholdScheme.Recover(pubPoly, msg, partials, threshold, n)
}

// VerifySignature checks a recovered (non-partial) signature against a
// section's public key. Every SectionSigned.SelfVerify and every DAG edge
// verification bottoms out here.
func VerifySignature(pub PublicKey, msg, sig []byte) error {
	p, err := pub.Point()
	if err != nil {
		return err
	}
	return thresholdScheme.VerifyRecovered(p, msg, sig)
}
