package chunkstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/novanet/novanet/membership"
	"github.com/novanet/novanet/section"
	"github.com/novanet/novanet/xorname"
)

// Replicator drives an elder's StoreChunk write path: verify the
// address, fan ReplicateChunk out to the ranked adults, and succeed
// once supermajority(replication_factor) acknowledge (spec §4.I write
// path).
type Replicator struct {
	ReplicationFactor int
	Send              func(ctx context.Context, peer section.Peer, addr xorname.Name, data []byte) error
}

// Replicate sends data to the ranked holders of addr and waits for all
// of them to respond before reporting success or failure.
func (r *Replicator) Replicate(ctx context.Context, adults []section.Peer, addr xorname.Name, data []byte) error {
	if xorname.Hash(data) != addr {
		return fmt.Errorf("chunkstore: address %s does not match content hash", addr)
	}

	holders := RankedHolders(adults, addr, r.ReplicationFactor)
	need := membership.Supermajority(len(holders))

	var mu sync.Mutex
	var acked int
	var wg sync.WaitGroup
	for _, h := range holders {
		h := h
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := r.Send(ctx, h, addr, data); err == nil {
				mu.Lock()
				acked++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if acked < need {
		return fmt.Errorf("chunkstore: only %d/%d holders of %d acknowledged %s", acked, need, len(holders), addr)
	}
	return nil
}
