package dysfunction

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/novanet/novanet/xorname"
)

func TestTrackIssueAndFlagOutlier(t *testing.T) {
	tr := NewTracker()
	noisy := xorname.Random()
	quiet := xorname.Random()

	tr.TrackIssue(quiet, Communication, "")

	for i := 0; i < 50; i++ {
		tr.TrackIssue(noisy, AwaitingProbeResponse, "")
	}

	flagged := tr.DysfunctionalNodes()
	require.Contains(t, flagged, noisy)
	require.NotContains(t, flagged, quiet)
}

func TestRecentCountExcludesExpiredEntries(t *testing.T) {
	tr := NewTracker()
	peer := xorname.Random()

	base := time.Now()
	tick := base
	tr.now = func() time.Time { return tick }

	tr.TrackIssue(peer, Communication, "")
	tick = base.Add(11 * time.Minute)

	tr.mu.Lock()
	count := tr.recentCountLocked(peer, Communication)
	tr.mu.Unlock()
	require.Equal(t, 0, count)
}

func TestPendingRequestFulfilledRemovesEntry(t *testing.T) {
	tr := NewTracker()
	peer := xorname.Random()

	tr.TrackIssue(peer, PendingRequestOperation, "op-1")
	tr.TrackIssue(peer, PendingRequestOperation, "op-2")
	tr.RequestOperationFulfilled(peer, "op-1")

	tr.mu.Lock()
	remaining := tr.ledgers[peer][PendingRequestOperation]
	tr.mu.Unlock()
	require.Len(t, remaining, 1)
	require.Equal(t, "op-2", remaining[0].opID)
}
