package selfencryption

import (
	"fmt"

	"github.com/novanet/novanet/xorname"
)

// resolveBaseMap unwraps recursive DataMapLevel::Additional levels down
// to the First DataMap describing the blob's actual content chunks.
func resolveBaseMap(head EncryptedChunk, scope Scope, ownerKey []byte, chunkFetch func(xorname.Name) ([]byte, error)) (DataMap, error) {
	level, err := UnmarshalDataMapLevel(head.Bytes)
	if err != nil {
		return DataMap{}, err
	}
	for level.First == nil {
		serialized, err := decodeDataMap(*level.Additional, scope, ownerKey, chunkFetch)
		if err != nil {
			return DataMap{}, err
		}
		level, err = UnmarshalDataMapLevel(serialized)
		if err != nil {
			return DataMap{}, err
		}
	}
	return *level.First, nil
}

// ReadRange decrypts only the chunks overlapping [from, from+length) of
// the original plaintext (spec §4.H's range-read operation) and returns
// the requested slice, clamped to the data's actual size.
func ReadRange(head EncryptedChunk, scope Scope, ownerKey []byte, from, length int64, chunkFetch func(xorname.Name) ([]byte, error)) ([]byte, error) {
	base, err := resolveBaseMap(head, scope, ownerKey, chunkFetch)
	if err != nil {
		return nil, err
	}

	n := len(base.Chunks)
	srcHashes := make([]xorname.Name, n)
	sizeOf := make([]int64, n)
	for _, c := range base.Chunks {
		srcHashes[c.Index] = c.SrcHash
		sizeOf[c.Index] = int64(c.Size)
	}
	offsets := make([]int64, n+1)
	for i := 0; i < n; i++ {
		offsets[i+1] = offsets[i] + sizeOf[i]
	}
	total := offsets[n]

	if from < 0 || from > total {
		return nil, fmt.Errorf("selfencryption: range start %d out of bounds (size %d)", from, total)
	}
	to := from + length
	if to > total {
		to = total
	}

	result := make([]byte, 0, to-from)
	for _, c := range base.Chunks {
		segStart, segEnd := offsets[c.Index], offsets[c.Index+1]
		if segEnd <= from || segStart >= to {
			continue
		}
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

		lo := int64(0)
		if segStart < from {
			lo = from - segStart
		}
		hi := int64(len(pt))
		if segEnd > to {
			hi -= segEnd - to
		}
		result = append(result, pt[lo:hi]...)
	}
	return result, nil
}
