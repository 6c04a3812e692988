package membership

import (
	"github.com/novanet/novanet/section"
	"github.com/novanet/novanet/xorname"
)

// ElderSetChanged reports whether ranking candidates under cfg/reference
// would produce a different elder set than current (spec §4.G: "when
// member churn causes a differently ranked set of elder candidates").
func ElderSetChanged(current []section.Peer, candidates []Candidate, reference xorname.Name, cfg Config) ([]section.Peer, bool) {
	ranked := RankElders(candidates, reference, cfg)
	if len(ranked) != len(current) {
		return ranked, true
	}
	currentSet := make(map[xorname.Name]bool, len(current))
	for _, p := range current {
		currentSet[p.Name] = true
	}
	for _, p := range ranked {
		if !currentSet[p.Name] {
			return ranked, true
		}
	}
	return ranked, false
}
