// Package xorname implements the 256-bit content/node address space novanet
// is built on, and the bit-prefix arithmetic sections are carved from.
package xorname

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"lukechampine.com/blake3"
)

// Len is the number of bytes in a Name.
const Len = 32

// Name is a 256-bit address in XOR space. Both chunk addresses and peer/node
// identities live in this space so that "distance" is always comparable.
type Name [Len]byte

// Hash returns the Name obtained by content-hashing b. Chunk addresses and
// deterministic owner-derived identities are computed this way.
func Hash(b []byte) Name {
	return Name(blake3.Sum256(b))
}

// Random returns a cryptographically random Name, used for section genesis
// material and test fixtures.
func Random() Name {
	var n Name
	if _, err := rand.Read(n[:]); err != nil {
		panic("xorname: failed to read random bytes: " + err.Error())
	}
	return n
}

func (n Name) String() string {
	return hex.EncodeToString(n[:])
}

// Bit returns the value of bit i (0 = most significant bit of byte 0).
func (n Name) Bit(i int) uint8 {
	byteIdx := i / 8
	bitIdx := uint(7 - i%8)
	return (n[byteIdx] >> bitIdx) & 1
}

// WithBitFlipped returns a copy of n with bit i flipped.
func (n Name) WithBitFlipped(i int) Name {
	out := n
	byteIdx := i / 8
	bitIdx := uint(7 - i%8)
	out[byteIdx] ^= 1 << bitIdx
	return out
}

// Matches reports whether n falls under prefix p.
func (n Name) Matches(p Prefix) bool {
	return p.Matches(n)
}

// Equal reports byte-for-byte equality.
func (n Name) Equal(other Name) bool {
	return bytes.Equal(n[:], other[:])
}

// distance returns the XOR of two names, used as the metric for
// CmpDistance and every "closest" computation in the codebase.
func distance(a, b Name) Name {
	var d Name
	for i := range a {
		d[i] = a[i] ^ b[i]
	}
	return d
}

// CmpDistance compares the XOR-distance from target to a versus from target
// to b. It returns -1 if a is closer, 1 if b is closer, 0 if equidistant.
func CmpDistance(target, a, b Name) int {
	da := distance(target, a)
	db := distance(target, b)
	return bytes.Compare(da[:], db[:])
}

// Closer reports whether a is strictly closer to target than b.
func Closer(target, a, b Name) bool {
	return CmpDistance(target, a, b) < 0
}

// Bytes returns the raw 32 bytes.
func (n Name) Bytes() []byte {
	return n[:]
}

// FromBytes builds a Name from exactly Len bytes.
func FromBytes(b []byte) (Name, error) {
	var n Name
	if len(b) != Len {
		return n, fmt.Errorf("xorname: expected %d bytes, got %d", Len, len(b))
	}
	copy(n[:], b)
	return n, nil
}
