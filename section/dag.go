package section

import (
	"fmt"
	"sync"
)

// edge is a parent -> child link: parent's threshold signature over the
// child key's serialised bytes.
type edge struct {
	parent, child string // PublicKey bytes, stringified for map keys
	signature     []byte
}

// Dag is the append-only DAG of section BLS keys described in spec §3/§4.B.
// Nodes are public keys; edges carry the parent's signature over the
// child's bytes. It is safe for concurrent use, mirroring the teacher's
// chainStore pattern of a single struct guarding its own lock (chain/store.go).
type Dag struct {
	mu         sync.RWMutex
	genesis    PublicKey
	nodes      map[string]PublicKey
	children   map[string][]string // parent key -> child keys, insertion order
	parents    map[string][]string // child key -> parent keys (supports forks)
	edgeSigs   map[string]edge      // "parent|child" -> edge
	insertion  []string             // keys() iteration order
}

// NewDag creates a DAG whose only node is the genesis key.
func NewDag(genesis PublicKey) *Dag {
	d := &Dag{
		genesis:   genesis,
		nodes:     make(map[string]PublicKey),
		children:  make(map[string][]string),
		parents:   make(map[string][]string),
		edgeSigs:  make(map[string]edge),
		insertion: nil,
	}
	gk := keyStr(genesis)
	d.nodes[gk] = genesis
	d.insertion = append(d.insertion, gk)
	return d
}

func keyStr(k PublicKey) string {
	return string(k)
}

// GenesisKey returns the DAG's distinguished root key.
func (d *Dag) GenesisKey() PublicKey {
	return d.genesis
}

// HasKey is O(1).
func (d *Dag) HasKey(k PublicKey) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.nodes[keyStr(k)]
	return ok
}

// Keys iterates known keys in insertion order.
func (d *Dag) Keys() []PublicKey {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]PublicKey, 0, len(d.insertion))
	for _, k := range d.insertion {
		out = append(out, d.nodes[k])
	}
	return out
}

// Insert verifies signature as parentKey's authorisation of childKey and
// adds the edge. Idempotent on duplicate edges. Fails with an
// "untrusted key" error if the signature does not verify, or if parentKey
// itself is unknown to the DAG (every non-genesis node needs a known
// parent, spec §3 invariant (i)).
func (d *Dag) Insert(parentKey, childKey PublicKey, signature []byte) error {
	if err := VerifySignature(parentKey, childKey, signature); err != nil {
		return fmt.Errorf("section: untrusted key: edge %s->%s does not verify: %w", parentKey, childKey, err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.nodes[keyStr(parentKey)]; !ok {
		return fmt.Errorf("section: untrusted key: parent %s not present in dag", parentKey)
	}

	pk, ck := keyStr(parentKey), keyStr(childKey)
	edgeKey := pk + "|" + ck
	if _, exists := d.edgeSigs[edgeKey]; exists {
		return nil // idempotent
	}

	if _, ok := d.nodes[ck]; !ok {
		d.nodes[ck] = childKey
		d.insertion = append(d.insertion, ck)
	}
	d.children[pk] = append(d.children[pk], ck)
	d.parents[ck] = append(d.parents[ck], pk)
	d.edgeSigs[edgeKey] = edge{parent: pk, child: ck, signature: signature}
	return nil
}

// LastKeyOn returards the given key itself if known -- a convenience used
// when callers already track "the last key on a path to X" and just need
// confirmation it is in the DAG.
func (d *Dag) LastKeyOn(pathTo PublicKey) (PublicKey, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	k, ok := d.nodes[keyStr(pathTo)]
	return k, ok
}

// PartialDag returns a sub-DAG holding the keys of one path from `from`
// to `to`, the one a breadth-first search finds (fewest edges), or fails
// with KeyNotFound if `to` is not reachable from `from`. Where several
// paths connect the two keys, keys found only on the other paths are not
// included.
func (d *Dag) PartialDag(from, to PublicKey) (*Dag, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	fk, tk := keyStr(from), keyStr(to)
	if _, ok := d.nodes[fk]; !ok {
		return nil, fmt.Errorf("section: key not found: %s is not in the dag", from)
	}
	if _, ok := d.nodes[tk]; !ok {
		return nil, fmt.Errorf("section: key not found: %s is not in the dag", to)
	}

	// BFS forward from `from`, recording parent pointers, until `to` is
	// reached; then walk back to collect exactly the keys/edges on a
	// connecting path.
	type frame struct{ key string }
	visited := map[string]string{fk: ""} // child -> parent used to reach it
	queue := []string{fk}
	reached := fk == tk
	for len(queue) > 0 && !reached {
		cur := queue[0]
		queue = queue[1:]
		for _, child := range d.children[cur] {
			if _, seen := visited[child]; seen {
				continue
			}
			visited[child] = cur
			if child == tk {
				reached = true
				break
			}
			queue = append(queue, child)
		}
	}
	if !reached {
		return nil, fmt.Errorf("section: key not found: %s is not reachable from %s", to, from)
	}

	sub := &Dag{
		genesis:   from,
		nodes:     make(map[string]PublicKey),
		children:  make(map[string][]string),
		parents:   make(map[string][]string),
		edgeSigs:  make(map[string]edge),
	}
	sub.nodes[fk] = d.nodes[fk]
	sub.insertion = append(sub.insertion, fk)

	// Walk back from tk to fk collecting the path, then replay edges
	// forward into the fresh sub-DAG (so Insert's own verification reruns).
	path := []string{tk}
	cur := tk
	for cur != fk {
		parent := visited[cur]
		path = append(path, parent)
		cur = parent
	}
	for i := len(path) - 1; i > 0; i-- {
		parent, child := path[i], path[i-1]
		e := d.edgeSigs[parent+"|"+child]
		if err := sub.Insert(d.nodes[parent], d.nodes[child], e.signature); err != nil {
			return nil, fmt.Errorf("section: replaying edge into partial dag: %w", err)
		}
	}
	return sub, nil
}

// CheckTrust reports whether candidate (a partial DAG presented by a
// peer) shares at least one key with trustedKeys and every edge in it
// verifies -- every edge verified at Insert time already, so this reduces
// to the intersection check, but we re-verify defensively since callers
// may build a Dag by other means in tests.
func CheckTrust(candidate *Dag, trustedKeys map[string]bool) bool {
	if candidate == nil {
		return false
	}
	shared := false
	for _, k := range candidate.Keys() {
		if trustedKeys[keyStr(k)] {
			shared = true
			break
		}
	}
	if !shared {
		return false
	}
	candidate.mu.RLock()
	defer candidate.mu.RUnlock()
	for _, e := range candidate.edgeSigs {
		if err := VerifySignature(candidate.nodes[e.parent], candidate.nodes[e.child], e.signature); err != nil {
			return false
		}
	}
	return true
}

// Merge folds another DAG's edges into d, re-verifying each (used when
// applying a proof chain received from a peer, spec §4.C step 7).
func (d *Dag) Merge(other *Dag) error {
	for _, e := range other.edgesSnapshot() {
		if err := d.Insert(other.nodes[e.parent], other.nodes[e.child], e.signature); err != nil {
			return err
		}
	}
	return nil
}

func (d *Dag) edgesSnapshot() []edge {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]edge, 0, len(d.edgeSigs))
	for _, e := range d.edgeSigs {
		out = append(out, e)
	}
	return out
}

// TrustedKeySet builds the map CheckTrust expects from a slice of keys.
func TrustedKeySet(keys ...PublicKey) map[string]bool {
	m := make(map[string]bool, len(keys))
	for _, k := range keys {
		m[keyStr(k)] = true
	}
	return m
}
