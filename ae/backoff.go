package ae

import (
	"math/rand"
	"sync"
	"time"

	"github.com/novanet/novanet/xorname"
)

// BounceKind distinguishes which AE bounce shape a backoff entry tracks;
// spec §4.F keys backoff by "(peer, AE-bounce) pair".
type BounceKind uint8

const (
	BounceKindRetry BounceKind = iota
	BounceKindRedirect
)

const (
	backoffInitial = 200 * time.Millisecond
	backoffMax     = 30 * time.Second
	backoffBudget  = 6 // attempts before we call the peer unreachable
)

type backoffKey struct {
	peer xorname.Name
	kind BounceKind
}

type backoffEntry struct {
	attempts int
	lastSeen time.Time
}

// backoffTracker holds one independent exponential-backoff-with-jitter
// counter per (peer, bounce kind), per spec §4.F.
type backoffTracker struct {
	mu      sync.Mutex
	entries map[backoffKey]*backoffEntry
}

func newBackoffTracker() *backoffTracker {
	return &backoffTracker{entries: make(map[backoffKey]*backoffEntry)}
}

// Bounced records a fresh bounce from peer for kind, returning the delay
// to wait before resending and whether the backoff budget is now
// exhausted (spec §4.F: "exhausting the backoff budget marks the peer
// with a dysfunction issue of kind AwaitingProbeResponse").
func (b *backoffTracker) Bounced(peer xorname.Name, kind BounceKind) (delay time.Duration, exhausted bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	key := backoffKey{peer: peer, kind: kind}
	e, ok := b.entries[key]
	if !ok {
		e = &backoffEntry{}
		b.entries[key] = e
	}
	e.attempts++
	e.lastSeen = time.Now()

	if e.attempts > backoffBudget {
		delete(b.entries, key)
		return 0, true
	}

	d := backoffInitial << uint(e.attempts-1)
	if d > backoffMax || d <= 0 {
		d = backoffMax
	}
	jittered := time.Duration(rand.Int63n(int64(d)))
	return jittered, false
}

// Clear resets the backoff state for peer/kind, used once a resend
// succeeds without a further bounce.
func (b *backoffTracker) Clear(peer xorname.Name, kind BounceKind) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.entries, backoffKey{peer: peer, kind: kind})
}
