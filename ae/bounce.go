package ae

import (
	"fmt"
	"time"

	"github.com/novanet/novanet/dysfunction"
	"github.com/novanet/novanet/section"
	"github.com/novanet/novanet/wire"
)

// Resend describes what the original sender should do after processing a
// bounce: wait Delay, then resend Bytes to Target (Retry/Redirect), or do
// nothing further (Update/Probe-silent/give-up).
type Resend struct {
	Target section.Peer
	Bytes  []byte
	Delay  time.Duration
}

// HandleBounce implements spec §4.F's originator-side bounce handling.
// sender is who sent us the bounce (needed to detect the Redirect
// give-up case and to track dysfunction); trustedKeys seeds Update's
// trust check when we have no prior record of the section.
func (e *Engine) HandleBounce(ap wire.AntiEntropyPayload, sender section.Peer, dys *dysfunction.Tracker, trustedKeys map[string]bool) (*Resend, error) {
	switch ap.Kind {
	case wire.AEUpdate:
		_, err := e.knowledge.UpdateKnowledge(ap.Update, ap.Members, trustedKeys)
		if err != nil {
			return nil, fmt.Errorf("ae: applying update: %w", err)
		}
		return nil, nil

	case wire.AERetry:
		return e.handleRetry(ap, sender, dys, trustedKeys)

	case wire.AERedirect:
		return e.handleRedirect(ap, sender, dys, trustedKeys)

	default:
		return nil, fmt.Errorf("ae: unknown bounce kind %d", ap.Kind)
	}
}

func (e *Engine) handleRetry(ap wire.AntiEntropyPayload, sender section.Peer, dys *dysfunction.Tracker, trustedKeys map[string]bool) (*Resend, error) {
	oldKey := e.knowledge.OurSectionKey()

	if _, err := e.knowledge.UpdateKnowledge(ap.Update, nil, trustedKeys); err != nil {
		return nil, fmt.Errorf("ae: applying retry chain: %w", err)
	}

	newKey := ap.Update.SignedSAP.Value.ThresholdKey
	if newKey.Equal(oldKey) {
		// Dropping prevents a resend loop: the suggested key is the one we
		// already used (spec §4.F).
		return nil, nil
	}

	delay, exhausted := e.backoff.Bounced(sender.Name, BounceKindRetry)
	if exhausted {
		if dys != nil {
			dys.TrackIssue(sender.Name, dysfunction.AwaitingProbeResponse, "")
		}
		return nil, nil
	}
	return &Resend{Target: sender, Bytes: ap.Bounced, Delay: delay}, nil
}

func (e *Engine) handleRedirect(ap wire.AntiEntropyPayload, sender section.Peer, dys *dysfunction.Tracker, trustedKeys map[string]bool) (*Resend, error) {
	sap := ap.Update.SignedSAP
	if len(sap.Value.Elders) == 0 {
		// Empty SAP: fall through to our own closest elders.
		ourSAP := e.knowledge.OurSAP()
		target, ok := ourSAP.Value.ClosestElder(sender.Name, nil)
		if !ok {
			return nil, nil
		}
		return &Resend{Target: target, Bytes: ap.Bounced}, nil
	}

	if _, err := e.knowledge.UpdateKnowledge(ap.Update, nil, trustedKeys); err != nil {
		return nil, fmt.Errorf("ae: applying redirect sap: %w", err)
	}

	target, ok := sap.Value.ClosestElder(sender.Name, nil)
	if !ok || target.Name.Equal(sender.Name) {
		// Redirected straight back to the bouncer: give up (spec §4.F).
		return nil, nil
	}

	delay, exhausted := e.backoff.Bounced(sender.Name, BounceKindRedirect)
	if exhausted {
		if dys != nil {
			dys.TrackIssue(sender.Name, dysfunction.AwaitingProbeResponse, "")
		}
		return nil, nil
	}
	return &Resend{Target: target, Bytes: ap.Bounced, Delay: delay}, nil
}
