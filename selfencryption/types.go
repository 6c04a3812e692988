// Package selfencryption implements spec §4.H: client-side chunking and
// encryption that turns an arbitrary blob of bytes into a set of
// content-addressed chunks plus a data map, deterministically and
// without any network I/O. Grounded on the teacher's ECIES scheme
// (ecies/ecies.go: HKDF-derived symmetric key, AES-GCM seal/open) for
// the encryption primitive, and on the real self_encryption crate
// (original_source/sn/src/client/client_api/blob_apis.rs) for the
// Spot/Blob split, MIN_ENCRYPTABLE_BYTES, and DataMap/DataMapLevel
// shapes spec.md distilled this module from.
package selfencryption

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/novanet/novanet/xorname"
)

// MinEncryptableBytes is self_encryption's MIN_ENCRYPTABLE_BYTES bound:
// inputs shorter than this are Spots, everything else is a Blob.
const MinEncryptableBytes = 3072

// Scope controls whether a chunk's payload travels in the clear (Public)
// or encrypted under an owner-derived key (Private).
type Scope int

const (
	Public Scope = iota
	Private
)

// ErrSpotPaddingNeeded is returned when a Private spot's encrypted
// payload would cross MinEncryptableBytes; padding spots is explicitly
// not implemented (spec §4.H).
var ErrSpotPaddingNeeded = errors.New("selfencryption: spot padding needed")

// Address is a piece of self-encrypted data's externally visible
// content address, carrying the scope it was encrypted under.
type Address struct {
	Scope Scope
	Name  xorname.Name
}

// EncryptedChunk is one network-storable chunk produced by self
// encryption, addressed by the hash of its (encrypted) bytes.
type EncryptedChunk struct {
	Address xorname.Name
	Bytes   []byte
}

// ChunkInfo records one Blob segment's bookkeeping (spec §4.H): its
// index, the hash of its plaintext, the hash of its ciphertext (which is
// also the chunk's storage address), and its plaintext size.
type ChunkInfo struct {
	Index   int
	SrcHash xorname.Name
	DstHash xorname.Name
	Size    int
}

// DataMap is the ordered list of a Blob's chunk bookkeeping, enough to
// decrypt and reassemble (or range-read) the original bytes.
type DataMap struct {
	Chunks []ChunkInfo
}

// MarshalBinary serialises the data map deterministically -- the basis
// for deciding whether the map itself needs recursive self-encryption.
func (m DataMap) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	_ = binary.Write(&buf, binary.BigEndian, uint32(len(m.Chunks)))
	for _, c := range m.Chunks {
		_ = binary.Write(&buf, binary.BigEndian, uint32(c.Index))
		buf.Write(c.SrcHash.Bytes())
		buf.Write(c.DstHash.Bytes())
		_ = binary.Write(&buf, binary.BigEndian, uint32(c.Size))
	}
	return buf.Bytes(), nil
}

// UnmarshalDataMap parses bytes produced by DataMap.MarshalBinary.
func UnmarshalDataMap(b []byte) (DataMap, error) {
	r := bytes.NewReader(b)
	var n uint32
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return DataMap{}, fmt.Errorf("selfencryption: reading chunk count: %w", err)
	}
	m := DataMap{Chunks: make([]ChunkInfo, n)}
	for i := range m.Chunks {
		var idx, size uint32
		if err := binary.Read(r, binary.BigEndian, &idx); err != nil {
			return DataMap{}, err
		}
		var src, dst [xorname.Len]byte
		if _, err := r.Read(src[:]); err != nil {
			return DataMap{}, err
		}
		if _, err := r.Read(dst[:]); err != nil {
			return DataMap{}, err
		}
		if err := binary.Read(r, binary.BigEndian, &size); err != nil {
			return DataMap{}, err
		}
		m.Chunks[i] = ChunkInfo{Index: int(idx), SrcHash: xorname.Name(src), DstHash: xorname.Name(dst), Size: int(size)}
	}
	return m, nil
}

// DataMapLevel wraps a DataMap for storage: First means the map's own
// serialisation is small enough to store as-is; Additional means the
// map itself was too big and had to be self-encrypted again, so this
// level holds the *next* level's DataMap instead (spec §4.H).
type DataMapLevel struct {
	First      *DataMap
	Additional *DataMap
}

func (l DataMapLevel) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	if l.First != nil {
		buf.WriteByte(0)
		b, err := l.First.MarshalBinary()
		if err != nil {
			return nil, err
		}
		buf.Write(b)
		return buf.Bytes(), nil
	}
	buf.WriteByte(1)
	b, err := l.Additional.MarshalBinary()
	if err != nil {
		return nil, err
	}
	buf.Write(b)
	return buf.Bytes(), nil
}

// UnmarshalDataMapLevel parses bytes produced by DataMapLevel.MarshalBinary.
func UnmarshalDataMapLevel(b []byte) (DataMapLevel, error) {
	if len(b) == 0 {
		return DataMapLevel{}, fmt.Errorf("selfencryption: empty data map level")
	}
	m, err := UnmarshalDataMap(b[1:])
	if err != nil {
		return DataMapLevel{}, err
	}
	if b[0] == 0 {
		return DataMapLevel{First: &m}, nil
	}
	return DataMapLevel{Additional: &m}, nil
}
