// Package dysfunction implements spec §4.J: per-peer, per-kind issue
// ledgers with time decay, weighted scoring and z-score outlier flagging.
// Grounded on the teacher's time-windowed cache of recent beacon rounds
// (core/beacon_cache.go keeps a bounded, time-ordered view and sweeps
// stale entries lazily on read) generalised from "one ledger of rounds"
// to "one ledger per (peer, issue kind)".
package dysfunction

import (
	"math"
	"sync"
	"time"

	"github.com/novanet/novanet/xorname"
)

// Kind enumerates the issue categories of spec §4.J.
type Kind int

const (
	Communication Kind = iota
	Dkg
	Knowledge
	AwaitingProbeResponse
	PendingRequestOperation
)

func (k Kind) String() string {
	switch k {
	case Communication:
		return "Communication"
	case Dkg:
		return "Dkg"
	case Knowledge:
		return "Knowledge"
	case AwaitingProbeResponse:
		return "AwaitingProbeResponse"
	case PendingRequestOperation:
		return "PendingRequestOperation"
	default:
		return "Unknown"
	}
}

// weight is each kind's contribution to a peer's raw score, per spec §4.J.
var weight = map[Kind]float64{
	Communication:           20,
	PendingRequestOperation: 1,
	Knowledge:               30,
	Dkg:                     10,
	AwaitingProbeResponse:   150,
}

const (
	retentionWindow   = 10 * time.Minute
	pendingMinAge     = 10 * time.Second
	dysfunctionZScore = 500
)

type entry struct {
	at    time.Time
	opID  string // only meaningful for PendingRequestOperation
}

// Tracker is the per-peer issue ledger and scorer. Safe for concurrent
// use: one write path (TrackIssue/RequestOperationFulfilled) and one read
// path (Score/DysfunctionalNodes), matching spec §5's "concurrent map,
// per-peer entries are append-only with a background sweep on read".
type Tracker struct {
	mu      sync.Mutex
	ledgers map[xorname.Name]map[Kind][]entry
	now     func() time.Time
}

// NewTracker builds an empty Tracker. now defaults to time.Now; tests may
// override it to make decay deterministic.
func NewTracker() *Tracker {
	return &Tracker{
		ledgers: make(map[xorname.Name]map[Kind][]entry),
		now:     time.Now,
	}
}

// TrackIssue appends a timestamped issue for peer under kind. opID is only
// meaningful for PendingRequestOperation and otherwise ignored.
func (t *Tracker) TrackIssue(peer xorname.Name, kind Kind, opID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	perKind, ok := t.ledgers[peer]
	if !ok {
		perKind = make(map[Kind][]entry)
		t.ledgers[peer] = perKind
	}
	perKind[kind] = append(perKind[kind], entry{at: t.now(), opID: opID})
}

// RequestOperationFulfilled removes the PendingRequestOperation entry
// matching opID for peer, per spec §4.J.
func (t *Tracker) RequestOperationFulfilled(peer xorname.Name, opID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	perKind, ok := t.ledgers[peer]
	if !ok {
		return
	}
	pending := perKind[PendingRequestOperation]
	out := pending[:0]
	for _, e := range pending {
		if e.opID != opID {
			out = append(out, e)
		}
	}
	perKind[PendingRequestOperation] = out
}

// recentCountLocked returns peer's live count for kind, after sweeping entries
// outside the retention window (and, for PendingRequestOperation, also
// excluding entries younger than pendingMinAge -- spec §4.J step 1).
// Caller holds t.mu.
func (t *Tracker) recentCountLocked(peer xorname.Name, kind Kind) int {
	perKind, ok := t.ledgers[peer]
	if !ok {
		return 0
	}
	entries := perKind[kind]
	now := t.now()
	kept := entries[:0]
	count := 0
	for _, e := range entries {
		if now.Sub(e.at) > retentionWindow {
			continue
		}
		kept = append(kept, e)
		if kind == PendingRequestOperation && now.Sub(e.at) < pendingMinAge {
			continue
		}
		count++
	}
	perKind[kind] = kept
	return count
}

// Scores computes every known peer's z-score per spec §4.J steps 1-4.
func (t *Tracker) Scores() map[xorname.Name]float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	peers := make([]xorname.Name, 0, len(t.ledgers))
	for p := range t.ledgers {
		peers = append(peers, p)
	}

	counts := make(map[xorname.Name]map[Kind]int, len(peers))
	for _, p := range peers {
		counts[p] = make(map[Kind]int, len(weight))
		for kind := range weight {
			counts[p][kind] = t.recentCountLocked(p, kind)
		}
	}

	raw := make(map[xorname.Name]float64, len(peers))
	for _, p := range peers {
		var sum float64
		for kind, w := range weight {
			mean := meanExcluding(counts, kind, p)
			score := float64(counts[p][kind]) - mean
			if score < 0 {
				score = 0
			}
			sum += w * score
		}
		raw[p] = sum
	}

	return standardise(raw)
}

func meanExcluding(counts map[xorname.Name]map[Kind]int, kind Kind, exclude xorname.Name) float64 {
	var sum float64
	n := 0
	for p, byKind := range counts {
		if p == exclude {
			continue
		}
		sum += float64(byKind[kind])
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// standardise applies spec §4.J step 4 literally: each peer's z-score is
// its raw score minus one population standard deviation of the raw
// scores across all peers (not the textbook (x-mean)/stddev: a peer with
// a much higher raw score than everyone else still clears a fixed
// absolute threshold, which is what the dysfunctionZScore cutoff assumes).
func standardise(raw map[xorname.Name]float64) map[xorname.Name]float64 {
	n := len(raw)
	if n == 0 {
		return raw
	}
	var sum float64
	for _, v := range raw {
		sum += v
	}
	mean := sum / float64(n)

	var variance float64
	for _, v := range raw {
		d := v - mean
		variance += d * d
	}
	variance /= float64(n)
	stddev := math.Sqrt(variance)

	out := make(map[xorname.Name]float64, n)
	for p, v := range raw {
		out[p] = v - stddev
	}
	return out
}

// DysfunctionalNodes returns every peer whose z-score exceeds the fixed
// threshold of spec §4.J.
func (t *Tracker) DysfunctionalNodes() []xorname.Name {
	scores := t.Scores()
	out := make([]xorname.Name, 0)
	for p, z := range scores {
		if z > dysfunctionZScore {
			out = append(out, p)
		}
	}
	return out
}
