package membership

import (
	"crypto/rand"
	"fmt"

	"github.com/novanet/novanet/xorname"
)

// PuzzleDifficulty is the fixed number of leading zero bits a solution's
// hash must have (spec §4.G: "a proof-of-work-style puzzle (fixed
// difficulty) bound to a nonce the section issued").
const PuzzleDifficulty = 18

const nonceLen = 16

// IssueNonce mints a fresh nonce for a join attempt.
func IssueNonce() ([]byte, error) {
	n := make([]byte, nonceLen)
	if _, err := rand.Read(n); err != nil {
		return nil, fmt.Errorf("membership: generating nonce: %w", err)
	}
	return n, nil
}

// SolvePuzzle searches for a proof such that hash(nonce || candidate ||
// proof) has at least PuzzleDifficulty leading zero bits. Only ever
// called client-side by the joining candidate; elders only verify.
func SolvePuzzle(nonce []byte, candidate xorname.Name) []byte {
	var counter uint64
	for {
		proof := encodeCounter(counter)
		if leadingZeroBits(puzzleHash(nonce, candidate, proof)) >= PuzzleDifficulty {
			return proof
		}
		counter++
	}
}

// VerifyPuzzle checks a candidate's proof against the nonce the section
// issued it.
func VerifyPuzzle(nonce []byte, candidate xorname.Name, proof []byte) bool {
	return leadingZeroBits(puzzleHash(nonce, candidate, proof)) >= PuzzleDifficulty
}

func puzzleHash(nonce []byte, candidate xorname.Name, proof []byte) xorname.Name {
	buf := make([]byte, 0, len(nonce)+xorname.Len+len(proof))
	buf = append(buf, nonce...)
	buf = append(buf, candidate.Bytes()...)
	buf = append(buf, proof...)
	return xorname.Hash(buf)
}

func leadingZeroBits(n xorname.Name) int {
	count := 0
	for i := 0; i < xorname.Len*8; i++ {
		if n.Bit(i) != 0 {
			break
		}
		count++
	}
	return count
}

func encodeCounter(c uint64) []byte {
	b := make([]byte, 8)
	for i := range b {
		b[i] = byte(c >> (8 * uint(i)))
	}
	return b
}
