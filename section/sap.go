package section

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/novanet/novanet/xorname"
)

// Peer is a (name, address) pair identifying a reachable node.
type Peer struct {
	Name    xorname.Name
	Address string
}

func (p Peer) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(p.Name.Bytes())
	buf.WriteString(p.Address)
	return buf.Bytes(), nil
}

// SAP is a SectionAuthorityProvider: the elder set and threshold public key
// authorising a section's decisions at a point in time (spec §3).
type SAP struct {
	Prefix            xorname.Prefix
	Elders            []Peer
	ThresholdKey      PublicKey
	ElderCountAtEpoch int
}

// NewSAP builds a SAP with its elders sorted by name and ElderCountAtEpoch
// set to their number, failing if elders is empty.
func NewSAP(prefix xorname.Prefix, elders []Peer, key PublicKey) (SAP, error) {
	if len(elders) == 0 {
		return SAP{}, fmt.Errorf("section: SAP must have a non-empty elder set")
	}
	sorted := append([]Peer(nil), elders...)
	sort.Slice(sorted, func(i, j int) bool {
		return bytes.Compare(sorted[i].Name.Bytes(), sorted[j].Name.Bytes()) < 0
	})
	return SAP{
		Prefix:            prefix,
		Elders:            sorted,
		ThresholdKey:      key,
		ElderCountAtEpoch: len(sorted),
	}, nil
}

// SectionKey returns the SAP's threshold public key.
func (s SAP) SectionKey() PublicKey {
	return s.ThresholdKey
}

// ElderCount returns the number of elders, which must equal the
// membership cardinality by spec invariant.
func (s SAP) ElderCount() int {
	return len(s.Elders)
}

// ContainsElder reports whether name is one of this SAP's elders.
func (s SAP) ContainsElder(name xorname.Name) bool {
	for _, e := range s.Elders {
		if e.Name.Equal(name) {
			return true
		}
	}
	return false
}

// ClosestElder returns the elder whose name is XOR-closest to target,
// excluding any name in exclude. Used by delivery-group routing (§4.K) and
// AE redirect handling (§4.F).
func (s SAP) ClosestElder(target xorname.Name, exclude map[xorname.Name]bool) (Peer, bool) {
	var best Peer
	found := false
	for _, e := range s.Elders {
		if exclude[e.Name] {
			continue
		}
		if !found || xorname.Closer(target, e.Name, best.Name) {
			best = e
			found = true
		}
	}
	return best, found
}

// MarshalBinary serialises the SAP deterministically (elders are kept
// sorted by name so this is stable across equivalent constructions); this
// is exactly what gets threshold-signed to produce a SectionSigned[SAP].
func (s SAP) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(byte(s.Prefix.BitCount()))
	buf.Write(s.Prefix.Name().Bytes())
	_ = binary.Write(&buf, binary.BigEndian, uint32(len(s.Elders)))
	for _, e := range s.Elders {
		eb, err := e.MarshalBinary()
		if err != nil {
			return nil, err
		}
		_ = binary.Write(&buf, binary.BigEndian, uint32(len(eb)))
		buf.Write(eb)
	}
	buf.Write(s.ThresholdKey)
	return buf.Bytes(), nil
}

// SignedSAP is a SAP plus the section signature authorising it.
type SignedSAP = SectionSigned[SAP]
