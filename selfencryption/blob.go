package selfencryption

import (
	"fmt"

	"github.com/novanet/novanet/xorname"
)

// maxChunkSize bounds a single Blob segment, mirroring the real
// self_encryption crate's MAX_CHUNK_SIZE.
const maxChunkSize = 1 << 20 // 1 MiB

// splitSegments divides data into at least three segments (self
// encryption's chained obfuscation needs two "other" segments to derive
// each chunk's key from), sized as evenly as possible and capped at
// maxChunkSize.
func splitSegments(data []byte) [][]byte {
	total := len(data)
	numChunks := 3
	if total > 3*maxChunkSize {
		numChunks = (total + maxChunkSize - 1) / maxChunkSize
	}
	size := (total + numChunks - 1) / numChunks
	if size == 0 {
		size = 1
	}
	var segs [][]byte
	for off := 0; off < total; off += size {
		end := off + size
		if end > total {
			end = total
		}
		segs = append(segs, data[off:end])
	}
	for len(segs) < numChunks {
		segs = append(segs, []byte{})
	}
	return segs
}

// encodeDataMap self-encrypts data's segments: each segment's key is
// derived from the two segments "before" it, wrapping around the start
// (spec §4.H: "chained key derivation from src_hash_{i-1}/src_hash_{i-2},
// wrapping for the first two segments"). Private scope additionally
// mixes ownerKey into every segment's derivation so the same bytes don't
// converge to the same ciphertext across different owners.
func encodeDataMap(data []byte, scope Scope, ownerKey []byte) (DataMap, []EncryptedChunk, error) {
	segments := splitSegments(data)
	n := len(segments)
	srcHashes := make([]xorname.Name, n)
	for i, s := range segments {
		srcHashes[i] = xorname.Hash(s)
	}

	chunks := make([]EncryptedChunk, n)
	infos := make([]ChunkInfo, n)
	for i, s := range segments {
		prev1 := srcHashes[(i-1+n)%n]
		prev2 := srcHashes[(i-2+n)%n]
		secret := append(append([]byte{}, prev1.Bytes()...), prev2.Bytes()...)
		if scope == Private {
			secret = append(secret, ownerKey...)
		}
		ct, err := seal(secret, []byte(fmt.Sprintf("novanet-blob-%d", i)), s)
		if err != nil {
			return DataMap{}, nil, fmt.Errorf("selfencryption: encrypting segment %d: %w", i, err)
		}
		dst := xorname.Hash(ct)
		chunks[i] = EncryptedChunk{Address: dst, Bytes: ct}
		infos[i] = ChunkInfo{Index: i, SrcHash: srcHashes[i], DstHash: dst, Size: len(s)}
	}
	return DataMap{Chunks: infos}, chunks, nil
}

// decodeDataMap reassembles data given its chunks; chunkFetch resolves
// a chunk by address (from storage, or from an in-memory set in tests).
func decodeDataMap(m DataMap, scope Scope, ownerKey []byte, chunkFetch func(xorname.Name) ([]byte, error)) ([]byte, error) {
	n := len(m.Chunks)
	srcHashes := make([]xorname.Name, n)
	for _, c := range m.Chunks {
		srcHashes[c.Index] = c.SrcHash
	}

	out := make([][]byte, n)
	for _, c := range m.Chunks {
		ct, err := chunkFetch(c.DstHash)
		if err != nil {
			return nil, fmt.Errorf("selfencryption: fetching chunk %d: %w", c.Index, err)
		}
		prev1 := srcHashes[(c.Index-1+n)%n]
		prev2 := srcHashes[(c.Index-2+n)%n]
		secret := append(append([]byte{}, prev1.Bytes()...), prev2.Bytes()...)
		if scope == Private {
			secret = append(secret, ownerKey...)
		}
		pt, err := open(secret, []byte(fmt.Sprintf("novanet-blob-%d", c.Index)), ct)
		if err != nil {
			return nil, fmt.Errorf("selfencryption: decrypting segment %d: %w", c.Index, err)
		}
		out[c.Index] = pt
	}

	var total int
	for _, b := range out {
		total += len(b)
	}
	result := make([]byte, 0, total)
	for _, b := range out {
		result = append(result, b...)
	}
	return result, nil
}

// EncryptBlob self-encrypts data (spec §4.H: length >= MinEncryptableBytes)
// into a set of chunks plus a head chunk. The head chunk is the
// (possibly recursively wrapped) serialised DataMapLevel; its address is
// the Blob's externally visible content address.
func EncryptBlob(data []byte, scope Scope, ownerKey []byte) (Address, EncryptedChunk, []EncryptedChunk, error) {
	if len(data) < MinEncryptableBytes {
		return Address{}, EncryptedChunk{}, nil, fmt.Errorf("selfencryption: blob payload too small (%d bytes), use EncryptSpot", len(data))
	}

	m, chunks, err := encodeDataMap(data, scope, ownerKey)
	if err != nil {
		return Address{}, EncryptedChunk{}, nil, err
	}

	level := DataMapLevel{First: &m}
	serialized, err := level.MarshalBinary()
	if err != nil {
		return Address{}, EncryptedChunk{}, nil, err
	}

	// If the map's own serialisation is itself blob-sized, self-encrypt
	// it too and wrap one more level (spec §4.H's recursive
	// DataMapLevel::Additional wrapping).
	for len(serialized) >= MinEncryptableBytes {
		nextMap, nextChunks, err := encodeDataMap(serialized, scope, ownerKey)
		if err != nil {
			return Address{}, EncryptedChunk{}, nil, err
		}
		chunks = append(chunks, nextChunks...)
		level = DataMapLevel{Additional: &nextMap}
		serialized, err = level.MarshalBinary()
		if err != nil {
			return Address{}, EncryptedChunk{}, nil, err
		}
	}

	headAddr := xorname.Hash(serialized)
	head := EncryptedChunk{Address: headAddr, Bytes: serialized}
	return Address{Scope: scope, Name: headAddr}, head, chunks, nil
}

// DecryptBlob reverses EncryptBlob, unwrapping any recursive
// DataMapLevel::Additional levels before reassembling the original
// bytes (spec §4.H's unpack_head_chunk logic).
func DecryptBlob(head EncryptedChunk, scope Scope, ownerKey []byte, chunkFetch func(xorname.Name) ([]byte, error)) ([]byte, error) {
	level, err := UnmarshalDataMapLevel(head.Bytes)
	if err != nil {
		return nil, err
	}
	for level.First == nil {
		serialized, err := decodeDataMap(*level.Additional, scope, ownerKey, chunkFetch)
		if err != nil {
			return nil, err
		}
		level, err = UnmarshalDataMapLevel(serialized)
		if err != nil {
			return nil, err
		}
	}
	return decodeDataMap(*level.First, scope, ownerKey, chunkFetch)
}
