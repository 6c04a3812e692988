// Package knowledge implements spec §4.D: a node's local view of its own
// section (our SAP, our members) layered on top of the shared section
// tree. All mutation goes through UpdateKnowledge and TrySwitchTo, modeled on the teacher's pattern
// of a single coordinator guarding shared state behind a read-write lock
// (see drand/drand core/drand_beacon.go holding its group/chain state).
package knowledge

import (
	"fmt"
	"sync"

	"github.com/novanet/novanet/section"
	"github.com/novanet/novanet/xorname"
)

// Knowledge is a node's NetworkKnowledge (spec §3).
type Knowledge struct {
	mu sync.RWMutex

	ourSignedSAP section.SignedSAP
	ourMembers   map[xorname.Name]section.SignedNodeState
	tree         *section.Tree

	keyShare   *section.DKGResult // set only while we hold elder status for ourSignedSAP's key
	ourName    xorname.Name
}

// New creates a Knowledge rooted at genesisSAP, which must already be
// signed by genesisSAP.Value.ThresholdKey (the network's genesis key).
func New(ourName xorname.Name, genesisSAP section.SignedSAP, tree *section.Tree) (*Knowledge, error) {
	if !genesisSAP.Value.Prefix.Matches(ourName) {
		return nil, fmt.Errorf("knowledge: genesis sap prefix %s does not match our name", genesisSAP.Value.Prefix)
	}
	return &Knowledge{
		ourSignedSAP: genesisSAP,
		ourMembers:   make(map[xorname.Name]section.SignedNodeState),
		tree:         tree,
		ourName:      ourName,
	}, nil
}

// OurSAP returns our section's current signed SAP.
func (k *Knowledge) OurSAP() section.SignedSAP {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.ourSignedSAP
}

// OurSectionKey is a convenience accessor used throughout AE and comm.
func (k *Knowledge) OurSectionKey() section.PublicKey {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.ourSignedSAP.Value.ThresholdKey
}

// SectionTree exposes the backing prefix map for read-only lookups.
func (k *Knowledge) SectionTree() *section.Tree {
	return k.tree
}

// Members returns a snapshot of our member set.
func (k *Knowledge) Members() map[xorname.Name]section.SignedNodeState {
	k.mu.RLock()
	defer k.mu.RUnlock()
	out := make(map[xorname.Name]section.SignedNodeState, len(k.ourMembers))
	for n, m := range k.ourMembers {
		out[n] = m
	}
	return out
}

// Elders returns the current SAP's elder peers.
func (k *Knowledge) Elders() []section.Peer {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return append([]section.Peer(nil), k.ourSignedSAP.Value.Elders...)
}

// Adults returns every member who is not an elder.
func (k *Knowledge) Adults() []section.Peer {
	k.mu.RLock()
	defer k.mu.RUnlock()
	out := make([]section.Peer, 0, len(k.ourMembers))
	for name, m := range k.ourMembers {
		if m.Value.State != section.Joined {
			continue
		}
		if !k.ourSignedSAP.Value.ContainsElder(name) {
			out = append(out, m.Value.Peer)
		}
	}
	return out
}

// IsElder reports whether name is one of our current elders.
func (k *Knowledge) IsElder(name xorname.Name) bool {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.ourSignedSAP.Value.ContainsElder(name)
}

// IsAdult reports whether name is a joined member and not an elder.
func (k *Knowledge) IsAdult(name xorname.Name) bool {
	k.mu.RLock()
	defer k.mu.RUnlock()
	m, ok := k.ourMembers[name]
	if !ok || m.Value.State != section.Joined {
		return false
	}
	return !k.ourSignedSAP.Value.ContainsElder(name)
}

// UpdateKnowledge applies a SectionTreeUpdate to the prefix map (spec
// §4.C), then, if the updated prefix now matches our own name, swaps in
// the new SAP, retains only members whose names still match the new
// prefix, and prunes archived members whose signing key has fallen off
// our lineage. Returns whether anything changed.
func (k *Knowledge) UpdateKnowledge(update section.TreeUpdate, members []section.SignedNodeState, trustedKeys map[string]bool) (bool, error) {
	changed, err := k.tree.Update(update.SignedSAP, update.ProofChain, trustedKeys)
	if err != nil {
		return false, err
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	if !update.SignedSAP.Value.Prefix.Matches(k.ourName) {
		return changed, nil
	}

	if !k.ourSignedSAP.Sig.PublicKey.Equal(update.SignedSAP.Sig.PublicKey) {
		k.ourSignedSAP = update.SignedSAP
		changed = true
	}

	for _, m := range members {
		if !m.Value.Peer.Name.Matches(update.SignedSAP.Value.Prefix) {
			continue
		}
		existing, ok := k.ourMembers[m.Value.Peer.Name]
		if !ok || !existing.Sig.PublicKey.Equal(m.Sig.PublicKey) || existing.Value.State != m.Value.State {
			k.ourMembers[m.Value.Peer.Name] = m
			changed = true
		}
	}

	for name, m := range k.ourMembers {
		if !name.Matches(update.SignedSAP.Value.Prefix) {
			delete(k.ourMembers, name)
			changed = true
			continue
		}
		if m.Value.State == section.Joined {
			continue
		}
		// Archived member: prune once the key it left under is no longer
		// on our current lineage back to genesis.
		if !k.dag().HasKey(m.Sig.PublicKey) {
			delete(k.ourMembers, name)
			changed = true
			continue
		}
		if _, err := k.dag().PartialDag(m.Sig.PublicKey, k.ourSignedSAP.Value.ThresholdKey); err != nil {
			delete(k.ourMembers, name)
			changed = true
		}
	}

	return changed, nil
}

func (k *Knowledge) dag() *section.Dag {
	return k.tree.Dag()
}

// TrySwitchTo atomically becomes an elder of the SAP at prefix/sectionKey
// if we already hold both that SAP and a DKG key share for it.
func (k *Knowledge) TrySwitchTo(sectionKey section.PublicKey, prefix xorname.Prefix, share *section.DKGResult) (bool, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	signed, ok := k.tree.GetByName(prefix.Name())
	if !ok || !signed.Value.Prefix.Equal(prefix) || !signed.Sig.PublicKey.Equal(sectionKey) {
		return false, nil
	}
	if share == nil || !share.PublicKey.Equal(sectionKey) {
		return false, nil
	}
	k.ourSignedSAP = signed
	k.keyShare = share
	return true, nil
}

// KeyShare returns our elder DKG key share for the current SAP, if any.
func (k *Knowledge) KeyShare() (*section.DKGResult, bool) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.keyShare, k.keyShare != nil
}

// ClosestSignedSAP looks up the section tree's closest SAP for name,
// falling back to our own SAP when the tree has nothing (spec §4.D).
func (k *Knowledge) ClosestSignedSAP(name xorname.Name) section.SignedSAP {
	if s, ok := k.tree.Closest(name, nil); ok {
		return s
	}
	return k.OurSAP()
}

// ProofChainTo returns the sub-DAG connecting fromKey to our current
// section key.
func (k *Knowledge) ProofChainTo(fromKey section.PublicKey) (*section.Dag, error) {
	k.mu.RLock()
	ourKey := k.ourSignedSAP.Value.ThresholdKey
	k.mu.RUnlock()
	return k.dag().PartialDag(fromKey, ourKey)
}
