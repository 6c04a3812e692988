package section

import (
	"bytes"
	"encoding/gob"
	"fmt"
)

// wireEdge is the transport-friendly shape of an edge, used only for
// (de)serialising a Dag -- the Dag itself holds unexported fields and a
// mutex, neither of which gob can walk directly.
type wireEdge struct {
	Parent, Child []byte
	Signature     []byte
}

type wireDag struct {
	Genesis []byte
	Edges   []wireEdge
}

// GobEncode implements gob.GobEncoder so a *Dag can travel inside wire
// messages (e.g. a JoinResponse's proof chain) without exposing its
// internal locking/indexing structures.
func (d *Dag) GobEncode() ([]byte, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	w := wireDag{Genesis: d.genesis}
	for _, e := range d.edgeSigs {
		w.Edges = append(w.Edges, wireEdge{
			Parent:    d.nodes[e.parent],
			Child:     d.nodes[e.child],
			Signature: e.signature,
		})
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(w); err != nil {
		return nil, fmt.Errorf("section: gob-encode dag: %w", err)
	}
	return buf.Bytes(), nil
}

// GobDecode implements gob.GobDecoder, replaying edges through Insert so
// every signature is re-verified as it enters the new Dag value.
func (d *Dag) GobDecode(b []byte) error {
	var w wireDag
	if err := gob.NewDecoder(bytes.NewReader(b)).Decode(&w); err != nil {
		return fmt.Errorf("section: gob-decode dag: %w", err)
	}

	fresh := NewDag(PublicKey(w.Genesis))
	for _, e := range w.Edges {
		if err := fresh.Insert(PublicKey(e.Parent), PublicKey(e.Child), e.Signature); err != nil {
			return err
		}
	}
	*d = *fresh
	return nil
}
