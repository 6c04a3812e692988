// Package delivery implements spec §4.K: delivery-group routing, the
// recipient set a caller sends a message to for a given destination
// name, and the send-status classification reported back once delivery
// is attempted. Grounded on the teacher's epoch-aware routing decisions
// in core/drand_beacon.go (compare a destination against what's locally
// known, branch on match/no-match), generalised from "am I still in
// this group" to the Network Knowledge section-lookup chain ae.go
// already formalised for bounce classification.
package delivery

import (
	"sort"

	"github.com/novanet/novanet/knowledge"
	"github.com/novanet/novanet/membership"
	"github.com/novanet/novanet/section"
	"github.com/novanet/novanet/xorname"
)

// MinDeliveryGroupSize is the smallest recipient set that still
// guarantees at least one honest recipient under the Byzantine
// assumption (spec §4.K): 1 + elder_count - supermajority(elder_count).
func MinDeliveryGroupSize(elderCount int) int {
	return 1 + elderCount - membership.Supermajority(elderCount)
}

// Group resolves the delivery group for destination name n given our
// own Network Knowledge and identity (spec §4.K's three-way lookup).
func Group(k *knowledge.Knowledge, self xorname.Name, n xorname.Name, deliveryGroupSize int) []section.Peer {
	ourSAP := k.OurSAP()
	if n.Matches(ourSAP.Value.Prefix) {
		elders := make([]section.Peer, 0, len(ourSAP.Value.Elders))
		for _, e := range ourSAP.Value.Elders {
			if e.Name != self {
				elders = append(elders, e)
			}
		}
		return elders
	}

	if sap, ok := k.SectionTree().GetByName(n); ok {
		return closestTruncated(sap.Value.Elders, n, deliveryGroupSize)
	}

	sap := k.ClosestSignedSAP(n)
	return closestTruncated(sap.Value.Elders, n, deliveryGroupSize)
}

func closestTruncated(elders []section.Peer, n xorname.Name, size int) []section.Peer {
	ranked := append([]section.Peer(nil), elders...)
	sort.Slice(ranked, func(i, j int) bool {
		return xorname.Closer(n, ranked[i].Name, ranked[j].Name)
	})
	if size > 0 && len(ranked) > size {
		ranked = ranked[:size]
	}
	return ranked
}

// Status is the outcome of attempting delivery to a Group (spec §4.K).
type Status int

const (
	// AllRecipients reports every recipient in the group was reached.
	AllRecipients Status = iota
	// MinDeliveryGroupSizeReached reports at least min_delivery_group_size
	// recipients were reached, though not all of them.
	MinDeliveryGroupSizeReached
	// MinDeliveryGroupSizeFailed reports fewer than min_delivery_group_size
	// recipients were reached.
	MinDeliveryGroupSizeFailed
)

func (s Status) String() string {
	switch s {
	case AllRecipients:
		return "AllRecipients"
	case MinDeliveryGroupSizeReached:
		return "MinDeliveryGroupSizeReached"
	case MinDeliveryGroupSizeFailed:
		return "MinDeliveryGroupSizeFailed"
	default:
		return "Unknown"
	}
}

// Report classifies a delivery attempt's outcome given the group size
// sent to, the minimum required, and which recipients failed.
func Report(groupSize, minDeliveryGroupSize int, failed []section.Peer) (Status, []section.Peer) {
	reached := groupSize - len(failed)
	switch {
	case len(failed) == 0:
		return AllRecipients, failed
	case reached >= minDeliveryGroupSize:
		return MinDeliveryGroupSizeReached, failed
	default:
		return MinDeliveryGroupSizeFailed, failed
	}
}
