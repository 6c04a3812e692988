// Package chunkstore implements spec §4.I: adult-side on-disk chunk
// storage, elder-side replicated write/read paths, and reorganisation
// on churn. Grounded on the teacher's chain/boltdb/store.go BoltStore
// for the index/bucket shape, adapted from "one bucket of beacon
// rounds" to "one index of which chunk addresses are held locally",
// with chunk bytes themselves written via temp-file-then-rename so a
// crash mid-write never leaves a half-written chunk on disk.
package chunkstore

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	bolt "go.etcd.io/bbolt"

	"github.com/novanet/novanet/log"
	"github.com/novanet/novanet/metrics"
	"github.com/novanet/novanet/xorname"
)

var indexBucket = []byte("chunks")

// BoltFileName names the on-disk index kept alongside chunk files.
const BoltFileName = "chunkstore.db"

// DirPerm/FilePerm are the permissions used for the store directory and
// the index file, matching chain/boltdb/store.go's BoltStoreOpenPerm.
const (
	DirPerm  = 0o750
	FilePerm = 0o660
)

// LocalStore is a single adult's on-disk chunk store.
type LocalStore struct {
	mu       sync.Mutex
	dir      string
	db       *bolt.DB
	capacity int64
	used     int64
	count    int
	lastPct  int
	log      log.Logger
}

// OpenLocalStore opens (creating if needed) a chunk store rooted at dir
// with the given total capacity in bytes (0 disables capacity events).
func OpenLocalStore(dir string, capacity int64, l log.Logger) (*LocalStore, error) {
	if err := os.MkdirAll(dir, DirPerm); err != nil {
		return nil, fmt.Errorf("chunkstore: creating dir: %w", err)
	}
	db, err := bolt.Open(filepath.Join(dir, BoltFileName), FilePerm, nil)
	if err != nil {
		return nil, fmt.Errorf("chunkstore: opening index: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(indexBucket)
		return err
	}); err != nil {
		return nil, err
	}

	s := &LocalStore{dir: dir, db: db, capacity: capacity, log: l}
	if err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(indexBucket).ForEach(func(_, v []byte) error {
			s.used += int64(binary.BigEndian.Uint64(v))
			s.count++
			return nil
		})
	}); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *LocalStore) path(addr xorname.Name) string {
	return filepath.Join(s.dir, addr.String())
}

// Put verifies addr matches the content hash of data (spec §4.I write
// path check (a)), then writes it atomically via a temp file plus
// rename, and emits a log event every time the store's used capacity
// crosses a 10%-of-capacity boundary.
func (s *LocalStore) Put(_ context.Context, addr xorname.Name, data []byte) error {
	if xorname.Hash(data) != addr {
		return fmt.Errorf("chunkstore: address %s does not match content hash", addr)
	}

	tmp, err := os.CreateTemp(s.dir, "chunk-*.tmp")
	if err != nil {
		return fmt.Errorf("chunkstore: creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("chunkstore: writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("chunkstore: closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path(addr)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("chunkstore: renaming into place: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	sizeEntry := make([]byte, 8)
	binary.BigEndian.PutUint64(sizeEntry, uint64(len(data)))
	if err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(indexBucket).Put(addr.Bytes(), sizeEntry)
	}); err != nil {
		return err
	}
	s.used += int64(len(data))
	s.count++
	s.reportCapacity()
	return nil
}

// reportCapacity checks whether the store's used capacity has crossed a
// 10%-of-capacity boundary since the last Put/Delete; on a crossing it
// updates the chunk-store gauges and logs the new watermark (spec
// §4.I).
func (s *LocalStore) reportCapacity() {
	metrics.ChunksStored.Set(float64(s.count))
	if s.capacity <= 0 {
		return
	}
	pct := int(s.used * 100 / s.capacity)
	if pct/10 != s.lastPct/10 {
		metrics.ChunkStoreCapacityPct.Set(float64(pct))
		if s.log != nil {
			s.log.Info("chunkstore", "capacity_pct", pct)
		}
	}
	s.lastPct = pct
}

// Get reads a locally stored chunk's bytes.
func (s *LocalStore) Get(_ context.Context, addr xorname.Name) ([]byte, error) {
	return os.ReadFile(s.path(addr))
}

// Has reports whether addr is stored locally.
func (s *LocalStore) Has(addr xorname.Name) bool {
	_, err := os.Stat(s.path(addr))
	return err == nil
}

// Delete removes a locally stored chunk, used after a reorganisation
// push has been acknowledged.
func (s *LocalStore) Delete(_ context.Context, addr xorname.Name) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	info, statErr := os.Stat(s.path(addr))
	if err := os.Remove(s.path(addr)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("chunkstore: removing chunk: %w", err)
	}
	if statErr == nil {
		s.used -= info.Size()
		s.count--
	}
	if err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(indexBucket).Delete(addr.Bytes())
	}); err != nil {
		return err
	}
	s.reportCapacity()
	return nil
}

// Addresses lists every chunk address currently held locally.
func (s *LocalStore) Addresses() ([]xorname.Name, error) {
	var names []xorname.Name
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(indexBucket).ForEach(func(k, _ []byte) error {
			n, err := xorname.FromBytes(k)
			if err != nil {
				return err
			}
			names = append(names, n)
			return nil
		})
	})
	return names, err
}

// Close closes the underlying index.
func (s *LocalStore) Close() error {
	return s.db.Close()
}
