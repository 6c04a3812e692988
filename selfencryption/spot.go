package selfencryption

import (
	"fmt"

	"github.com/novanet/novanet/xorname"
)

const spotInfo = "novanet-spot"

// EncryptSpot encodes data (shorter than MinEncryptableBytes) as a
// single chunk. Public spots are stored in the clear; Private spots are
// encrypted under a key derived from ownerKey (spec §4.H). Returns
// ErrSpotPaddingNeeded if a Private spot's ciphertext would itself reach
// MinEncryptableBytes -- padding a spot back down is out of scope, the
// caller is expected to fall back to EncryptBlob instead.
func EncryptSpot(data []byte, scope Scope, ownerKey []byte) (Address, EncryptedChunk, error) {
	if len(data) >= MinEncryptableBytes {
		return Address{}, EncryptedChunk{}, fmt.Errorf("selfencryption: spot payload too large (%d bytes), use EncryptBlob", len(data))
	}

	payload := data
	if scope == Private {
		ct, err := seal(ownerKey, []byte(spotInfo), data)
		if err != nil {
			return Address{}, EncryptedChunk{}, err
		}
		if len(ct) >= MinEncryptableBytes {
			return Address{}, EncryptedChunk{}, ErrSpotPaddingNeeded
		}
		payload = ct
	}

	addr := xorname.Hash(payload)
	return Address{Scope: scope, Name: addr}, EncryptedChunk{Address: addr, Bytes: payload}, nil
}

// DecryptSpot reverses EncryptSpot.
func DecryptSpot(chunk EncryptedChunk, scope Scope, ownerKey []byte) ([]byte, error) {
	if scope == Public {
		return chunk.Bytes, nil
	}
	return open(ownerKey, []byte(spotInfo), chunk.Bytes)
}
