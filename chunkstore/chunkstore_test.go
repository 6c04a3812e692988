package chunkstore

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/novanet/novanet/section"
	"github.com/novanet/novanet/xorname"
)

func TestLocalStorePutGetDelete(t *testing.T) {
	dir := t.TempDir()
	store, err := OpenLocalStore(dir, 0, nil)
	require.NoError(t, err)
	defer store.Close()

	data := []byte("a chunk's worth of bytes")
	addr := xorname.Hash(data)

	require.NoError(t, store.Put(context.Background(), addr, data))
	require.True(t, store.Has(addr))

	got, err := store.Get(context.Background(), addr)
	require.NoError(t, err)
	require.Equal(t, data, got)

	require.NoError(t, store.Delete(context.Background(), addr))
	require.False(t, store.Has(addr))
}

func TestLocalStorePutRejectsMismatchedAddress(t *testing.T) {
	dir := t.TempDir()
	store, err := OpenLocalStore(dir, 0, nil)
	require.NoError(t, err)
	defer store.Close()

	err = store.Put(context.Background(), xorname.Random(), []byte("data"))
	require.Error(t, err)
}

func TestRankedHoldersTruncatesToReplicationFactor(t *testing.T) {
	addr := xorname.Random()
	var adults []section.Peer
	for i := 0; i < 10; i++ {
		adults = append(adults, section.Peer{Name: xorname.Random()})
	}

	ranked := RankedHolders(adults, addr, DefaultReplicationFactor)
	require.Len(t, ranked, DefaultReplicationFactor)
	for i := 1; i < len(ranked); i++ {
		require.True(t, xorname.CmpDistance(addr, ranked[i-1].Name, ranked[i].Name) <= 0)
	}
}

func TestReplicatorSucceedsOnSupermajority(t *testing.T) {
	addr := xorname.Hash([]byte("data"))
	var adults []section.Peer
	for i := 0; i < 4; i++ {
		adults = append(adults, section.Peer{Name: xorname.Random()})
	}

	failing := adults[0].Name
	r := &Replicator{
		ReplicationFactor: 4,
		Send: func(_ context.Context, peer section.Peer, _ xorname.Name, _ []byte) error {
			if peer.Name == failing {
				return errors.New("send failed")
			}
			return nil
		},
	}

	err := r.Replicate(context.Background(), adults, addr, []byte("data"))
	require.NoError(t, err)
}

func TestReplicatorFailsBelowSupermajority(t *testing.T) {
	addr := xorname.Hash([]byte("data"))
	var adults []section.Peer
	for i := 0; i < 4; i++ {
		adults = append(adults, section.Peer{Name: xorname.Random()})
	}

	r := &Replicator{
		ReplicationFactor: 4,
		Send: func(_ context.Context, _ section.Peer, _ xorname.Name, _ []byte) error {
			return errors.New("send failed")
		},
	}

	err := r.Replicate(context.Background(), adults, addr, []byte("data"))
	require.Error(t, err)
}

func TestFetcherReturnsFirstWellFormedReply(t *testing.T) {
	data := []byte("chunk bytes")
	addr := xorname.Hash(data)
	var adults []section.Peer
	for i := 0; i < 4; i++ {
		adults = append(adults, section.Peer{Name: xorname.Random()})
	}

	f := &Fetcher{
		ReplicationFactor: 4,
		Fetch: func(_ context.Context, _ section.Peer, _ xorname.Name) ([]byte, error) {
			return data, nil
		},
	}

	got, err := f.Get(context.Background(), adults, addr)
	require.NoError(t, err)
	require.Equal(t, data, got)
}

func TestFetcherReportsNotEnoughChunksRetrieved(t *testing.T) {
	addr := xorname.Random()
	var adults []section.Peer
	for i := 0; i < 4; i++ {
		adults = append(adults, section.Peer{Name: xorname.Random()})
	}

	f := &Fetcher{
		ReplicationFactor: 4,
		Fetch: func(_ context.Context, _ section.Peer, _ xorname.Name) ([]byte, error) {
			return nil, errors.New("peer unreachable")
		},
	}
	_, err := f.Get(context.Background(), adults, addr)
	require.ErrorIs(t, err, ErrNotEnoughChunksRetrieved)
}
