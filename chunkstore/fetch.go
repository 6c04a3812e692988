package chunkstore

import (
	"context"
	"errors"

	lru "github.com/hashicorp/golang-lru"

	"github.com/novanet/novanet/section"
	"github.com/novanet/novanet/xorname"
)

// ErrNotEnoughChunksRetrieved is returned when fewer than one holder
// answers within the read path's timeout (spec §4.I read path).
var ErrNotEnoughChunksRetrieved = errors.New("chunkstore: not enough chunks retrieved")

// ElderCache bounds the set of hot chunks an elder keeps in memory.
// Grounded on drand's client/cache.go typedCache, which wraps the same
// hashicorp/golang-lru ARCCache around round results instead of chunks.
type ElderCache struct {
	arc *lru.ARCCache
}

// NewElderCache builds a cache holding at most size chunks.
func NewElderCache(size int) (*ElderCache, error) {
	arc, err := lru.NewARC(size)
	if err != nil {
		return nil, err
	}
	return &ElderCache{arc: arc}, nil
}

func (c *ElderCache) Get(addr xorname.Name) ([]byte, bool) {
	v, ok := c.arc.Get(addr)
	if !ok {
		return nil, false
	}
	return v.([]byte), true
}

func (c *ElderCache) Add(addr xorname.Name, data []byte) {
	c.arc.Add(addr, data)
}

// Fetcher drives an elder's GetChunk read path: check the hot cache,
// then fan out to the ranked adults in parallel and return the first
// well-formed reply.
type Fetcher struct {
	ReplicationFactor int
	Cache             *ElderCache
	Fetch             func(ctx context.Context, peer section.Peer, addr xorname.Name) ([]byte, error)
}

// Get resolves addr, preferring the cache, then the fastest correct
// holder reply.
func (f *Fetcher) Get(ctx context.Context, adults []section.Peer, addr xorname.Name) ([]byte, error) {
	if f.Cache != nil {
		if data, ok := f.Cache.Get(addr); ok {
			return data, nil
		}
	}

	holders := RankedHolders(adults, addr, f.ReplicationFactor)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type result struct {
		data []byte
		err  error
	}
	results := make(chan result, len(holders))
	for _, h := range holders {
		h := h
		go func() {
			data, err := f.Fetch(ctx, h, addr)
			results <- result{data, err}
		}()
	}

	for range holders {
		res := <-results
		if res.err == nil && xorname.Hash(res.data) == addr {
			if f.Cache != nil {
				f.Cache.Add(addr, res.data)
			}
			return res.data, nil
		}
	}
	return nil, ErrNotEnoughChunksRetrieved
}
