// Package ae implements the Anti-Entropy engine of spec §4.F: classifying
// inbound messages against local section knowledge, building the
// Retry/Redirect/Update/Probe bounces, and handling bounces received by
// the original sender. Grounded on the teacher's habit of a small
// stateless classifier plumbed straight off drand_beacon's live group
// view (core/drand_beacon.go's epoch-mismatch handling), generalised
// from "epoch numbers" to "section keys, with a DAG bridging them".
package ae

import (
	"fmt"

	"github.com/novanet/novanet/knowledge"
	"github.com/novanet/novanet/section"
	"github.com/novanet/novanet/wire"
	"github.com/novanet/novanet/xorname"
)

// Outcome is the result of classifying an inbound system message against
// our local Network Knowledge (spec §4.F's classification table).
type Outcome int

const (
	// Deliver means the message's destination key matches ours: hand it
	// to the upstream handler unchanged.
	Deliver Outcome = iota
	// BounceRetry means our prefix matches but the sender's key is stale.
	BounceRetry
	// BounceRedirect means our prefix does not cover the destination.
	BounceRedirect
	// NoMatchingSection means the prefix map has nothing useful to offer.
	NoMatchingSection
)

// Engine classifies and answers Anti-Entropy situations for one node.
type Engine struct {
	knowledge *knowledge.Knowledge
	backoff   *backoffTracker
}

// New builds an Engine reading from k.
func New(k *knowledge.Knowledge) *Engine {
	return &Engine{knowledge: k, backoff: newBackoffTracker()}
}

// Classify implements spec §4.F's classification table.
func (e *Engine) Classify(dst wire.Destination) Outcome {
	ourSAP := e.knowledge.OurSAP()
	if ourSAP.Value.Prefix.Matches(dst.Name) {
		if ourSAP.Value.ThresholdKey.Equal(dst.SectionKey) {
			return Deliver
		}
		return BounceRetry
	}

	if _, ok := e.knowledge.SectionTree().ClosestOrOpposite(dst.Name); ok {
		return BounceRedirect
	}
	return NoMatchingSection
}

// BuildRetry constructs the Retry bounce for a message we classified as
// BounceRetry: our SAP plus the proof chain bridging the sender's
// (stale) key to our current one.
func (e *Engine) BuildRetry(senderKey section.PublicKey, bounced []byte) (wire.AntiEntropyPayload, error) {
	ourSAP := e.knowledge.OurSAP()
	chain, err := e.knowledge.ProofChainTo(senderKey)
	if err != nil {
		// The sender's key may not be an ancestor of ours (e.g. a fork or
		// a key we've never seen); fall back to a chain rooted at our own
		// key so the recipient at least learns our current SAP.
		chain, err = e.knowledge.ProofChainTo(ourSAP.Value.ThresholdKey)
		if err != nil {
			return wire.AntiEntropyPayload{}, fmt.Errorf("ae: building retry proof chain: %w", err)
		}
	}
	return wire.AntiEntropyPayload{
		Update: section.TreeUpdate{SignedSAP: ourSAP, ProofChain: chain},
		Kind:   wire.AERetry,
		Bounced: bounced,
	}, nil
}

// BuildRedirect constructs the Redirect bounce: the signed SAP of the
// section closest to the destination name, plus the chain from our
// genesis to that SAP's key.
func (e *Engine) BuildRedirect(dstName xorname.Name, bounced []byte) (wire.AntiEntropyPayload, error) {
	closest := e.knowledge.ClosestSignedSAP(dstName)
	dag := e.knowledge.SectionTree().Dag()
	chain, err := dag.PartialDag(dag.GenesisKey(), closest.Value.ThresholdKey)
	if err != nil {
		return wire.AntiEntropyPayload{}, fmt.Errorf("ae: building redirect proof chain: %w", err)
	}
	return wire.AntiEntropyPayload{
		Update:  section.TreeUpdate{SignedSAP: closest, ProofChain: chain},
		Kind:    wire.AERedirect,
		Bounced: bounced,
	}, nil
}

// BuildProbeReply answers an AntiEntropyProbe: non-nil only if our key has
// moved past theirKey (spec §4.F: "reply with an Update if our key has
// moved past theirs, silent otherwise").
func (e *Engine) BuildProbeReply(theirKey section.PublicKey) (*wire.AntiEntropyPayload, error) {
	ourSAP := e.knowledge.OurSAP()
	if ourSAP.Value.ThresholdKey.Equal(theirKey) {
		return nil, nil
	}
	chain, err := e.knowledge.ProofChainTo(theirKey)
	if err != nil {
		return nil, nil // theirKey isn't an ancestor of ours: nothing useful to say
	}
	return &wire.AntiEntropyPayload{
		Update: section.TreeUpdate{SignedSAP: ourSAP, ProofChain: chain},
		Kind:   wire.AEUpdate,
	}, nil
}
