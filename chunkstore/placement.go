package chunkstore

import (
	"sort"

	"github.com/novanet/novanet/section"
	"github.com/novanet/novanet/xorname"
)

// DefaultReplicationFactor is the number of adults that store a copy of
// any given chunk (spec §4.I).
const DefaultReplicationFactor = 4

// RankedHolders returns the adults ranked by XOR-distance to addr,
// closest first, truncated to replicationFactor.
func RankedHolders(adults []section.Peer, addr xorname.Name, replicationFactor int) []section.Peer {
	ranked := append([]section.Peer(nil), adults...)
	sort.Slice(ranked, func(i, j int) bool {
		return xorname.Closer(addr, ranked[i].Name, ranked[j].Name)
	})
	if len(ranked) > replicationFactor {
		ranked = ranked[:replicationFactor]
	}
	return ranked
}

// Holds reports whether self is still among the top replicationFactor
// adults for addr, per the current adult set.
func Holds(self xorname.Name, adults []section.Peer, addr xorname.Name, replicationFactor int) bool {
	for _, p := range RankedHolders(adults, addr, replicationFactor) {
		if p.Name == self {
			return true
		}
	}
	return false
}
