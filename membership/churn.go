package membership

import (
	"fmt"

	"github.com/novanet/novanet/section"
	"github.com/novanet/novanet/xorname"
)

// ChurnResult is a new elder-set SAP appended to the DAG under the
// previous section key, without a prefix split (spec §4.G "elder churn
// without split").
type ChurnResult struct {
	SAP section.SignedSAP
	DKG *section.DKGResult
}

// ExecuteElderChurn runs DKG among the newly ranked candidate elders,
// signs the resulting key into dag under oldKey (via sign, the old
// section's aggregated threshold signature over the new key), and
// self-signs the resulting SAP exactly as ExecuteSplit does for a new
// child key.
func ExecuteElderChurn(
	dag *section.Dag,
	oldKey section.PublicKey,
	sign func(msg []byte) ([]byte, error),
	prefix xorname.Prefix,
	newElders []section.Peer,
	threshold int,
) (*ChurnResult, error) {
	dkg, err := section.RunDKG(peerNames(newElders), threshold)
	if err != nil {
		return nil, fmt.Errorf("membership: dkg for elder churn: %w", err)
	}

	sap, err := section.NewSAP(prefix, newElders, dkg.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("membership: building churned sap: %w", err)
	}

	if err := signIntoDag(dag, oldKey, dkg.PublicKey, sign); err != nil {
		return nil, err
	}

	sig, err := selfSign(sap, dkg)
	if err != nil {
		return nil, err
	}

	return &ChurnResult{SAP: section.SignedSAP{Value: sap, Sig: sig}, DKG: dkg}, nil
}
