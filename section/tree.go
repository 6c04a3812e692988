package section

import (
	"fmt"
	"sync"

	"github.com/novanet/novanet/xorname"
)

// Tree is the prefix map of spec §3/§4.C: for every known section, its
// current signed SAP, pruned of ancestors once their descendants fully
// cover them, plus the Sections DAG backing every SAP's key.
type Tree struct {
	mu   sync.RWMutex
	dag  *Dag
	saps map[string]SignedSAP // prefix string -> current SAP
}

// NewTree creates an empty tree rooted at the given genesis key.
func NewTree(genesis PublicKey) *Tree {
	return &Tree{
		dag:  NewDag(genesis),
		saps: make(map[string]SignedSAP),
	}
}

// Dag exposes the backing sections DAG (read-mostly; mutated only through
// Update's proof-chain merge).
func (t *Tree) Dag() *Dag {
	return t.dag
}

// AllPrefixes returns every currently stored prefix.
func (t *Tree) AllPrefixes() []xorname.Prefix {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]xorname.Prefix, 0, len(t.saps))
	for _, s := range t.saps {
		out = append(out, s.Value.Prefix)
	}
	return out
}

// insert applies the three rules of spec §4.C insert(signed_sap): reject a
// prefix already covered by a stored descendant, add it, then prune any
// now-covered ancestor. Returns whether the tree changed. Caller holds the
// write lock.
func (t *Tree) insert(signed SignedSAP) (bool, error) {
	prefix := signed.Value.Prefix
	for _, existing := range t.saps {
		if prefix.IsAncestorOf(existing.Value.Prefix) {
			// a strict descendant of prefix is already present: reject.
			return false, fmt.Errorf("section: %s is already covered by stored descendant %s", prefix, existing.Value.Prefix)
		}
	}

	changed := false
	if old, ok := t.saps[prefix.String()]; !ok || !old.Sig.PublicKey.Equal(signed.Sig.PublicKey) {
		t.saps[prefix.String()] = signed
		changed = true
	}

	// Prune covered ancestors.
	for pfxStr, existing := range t.saps {
		p := existing.Value.Prefix
		if p.Equal(prefix) {
			continue
		}
		if !p.IsAncestorOf(prefix) {
			continue
		}
		descendants := t.descendantPrefixes(p)
		if p.IsCoveredBy(descendants) {
			delete(t.saps, pfxStr)
			changed = true
		}
	}
	return changed, nil
}

func (t *Tree) descendantPrefixes(of xorname.Prefix) []xorname.Prefix {
	out := make([]xorname.Prefix, 0)
	for _, existing := range t.saps {
		p := existing.Value.Prefix
		if p.IsExtensionOf(of) && !p.Equal(of) {
			out = append(out, p)
		}
	}
	return out
}

// Update is the only externally callable mutator (spec §4.C). It
// validates the SAP and its proof chain against what we already trust,
// merges the chain into the DAG, then inserts the SAP.
func (t *Tree) Update(signed SignedSAP, proofChain *Dag, trustedKeys map[string]bool) (bool, error) {
	if err := signed.SelfVerify(); err != nil {
		return false, fmt.Errorf("section: untrusted sap: %w", err)
	}
	if !signed.Value.ThresholdKey.Equal(signed.Sig.PublicKey) {
		return false, fmt.Errorf("section: untrusted sap: threshold key does not match signature's public key")
	}

	lastKeys := proofChain.Keys()
	if len(lastKeys) == 0 {
		return false, fmt.Errorf("section: untrusted sap: empty proof chain")
	}
	last := lastKeys[len(lastKeys)-1]
	if !last.Equal(signed.Value.ThresholdKey) {
		return false, fmt.Errorf("section: untrusted sap: proof chain does not end at the sap's key")
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	existing, haveExisting := t.saps[signed.Value.Prefix.String()]

	if haveExisting {
		if !CheckTrust(proofChain, TrustedKeySet(existing.Sig.PublicKey)) {
			return false, fmt.Errorf("section: untrusted chain: does not bridge from our current key for %s", signed.Value.Prefix)
		}
	} else {
		if !CheckTrust(proofChain, trustedKeys) {
			return false, fmt.Errorf("section: untrusted chain: shares no key with our trusted set")
		}
	}

	if err := t.dag.Merge(proofChain); err != nil {
		return false, fmt.Errorf("section: untrusted chain: %w", err)
	}

	if haveExisting && existing.Sig.PublicKey.Equal(signed.Sig.PublicKey) {
		return false, nil // idempotent re-application
	}
	if haveExisting {
		// Tie-break per spec §4.C: the SAP whose key has a strictly longer
		// path from genesis wins; equal-length paths must be identical SAPs.
		oldDepth := t.depthFromGenesis(existing.Sig.PublicKey)
		newDepth := t.depthFromGenesis(signed.Sig.PublicKey)
		if newDepth <= oldDepth {
			return false, nil
		}
	}

	return t.insert(signed)
}

// depthFromGenesis returns the length, in edges, of the path PartialDag
// finds from the DAG's genesis key to k, which is a path with the fewest
// edges; where k has several paths from genesis, longer ones are not
// measured. Caller holds the tree lock.
func (t *Tree) depthFromGenesis(k PublicKey) int {
	sub, err := t.dag.PartialDag(t.dag.GenesisKey(), k)
	if err != nil {
		return 0
	}
	return len(sub.Keys()) - 1
}

// GetByName returns the stored SAP whose prefix matches n with the
// largest bit count.
func (t *Tree) GetByName(n xorname.Name) (SignedSAP, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var best SignedSAP
	found := false
	for _, s := range t.saps {
		if !s.Value.Prefix.Matches(n) {
			continue
		}
		if !found || s.Value.Prefix.BitCount() > best.Value.Prefix.BitCount() {
			best = s
			found = true
		}
	}
	return best, found
}

// Closest returns the stored SAP minimising XOR-distance between its
// prefix name and n, optionally excluding one prefix.
func (t *Tree) Closest(n xorname.Name, exclude *xorname.Prefix) (SignedSAP, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var best SignedSAP
	found := false
	for _, s := range t.saps {
		if exclude != nil && s.Value.Prefix.Equal(*exclude) {
			continue
		}
		if !found || xorname.Closer(n, s.Value.Prefix.Name(), best.Value.Prefix.Name()) {
			best = s
			found = true
		}
	}
	return best, found
}

// ClosestOrOpposite falls back, when nothing in GetByName matches, to the
// SAP with the longest prefix matching n with its first bit flipped.
func (t *Tree) ClosestOrOpposite(n xorname.Name) (SignedSAP, bool) {
	if s, ok := t.GetByName(n); ok {
		return s, true
	}
	flipped := n.WithBitFlipped(0)
	t.mu.RLock()
	defer t.mu.RUnlock()
	var best SignedSAP
	found := false
	for _, s := range t.saps {
		if !s.Value.Prefix.Matches(flipped) {
			continue
		}
		if !found || s.Value.Prefix.BitCount() > best.Value.Prefix.BitCount() {
			best = s
			found = true
		}
	}
	return best, found
}
