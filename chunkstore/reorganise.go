package chunkstore

import (
	"context"

	"github.com/novanet/novanet/section"
	"github.com/novanet/novanet/xorname"
)

// Reorganise pushes every local chunk no longer among the top
// replicationFactor adults to its new rightful holders, deleting the
// local copy once at least one push is acknowledged (spec §4.I
// reorganisation on churn).
func Reorganise(ctx context.Context, store *LocalStore, self xorname.Name, adults []section.Peer, replicationFactor int,
	push func(ctx context.Context, peer section.Peer, addr xorname.Name, data []byte) error) error {
	addrs, err := store.Addresses()
	if err != nil {
		return err
	}
	for _, addr := range addrs {
		if Holds(self, adults, addr, replicationFactor) {
			continue
		}
		data, err := store.Get(ctx, addr)
		if err != nil {
			continue
		}

		var pushedOK bool
		for _, holder := range RankedHolders(adults, addr, replicationFactor) {
			if push(ctx, holder, addr, data) == nil {
				pushedOK = true
			}
		}
		if pushedOK {
			_ = store.Delete(ctx, addr)
		}
	}
	return nil
}
