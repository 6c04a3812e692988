package section

import (
	"encoding"
	"fmt"
)

// Signature is a threshold BLS signature together with the public key it
// verifies against (spec §3 SectionSigned.sig).
type Signature struct {
	PublicKey PublicKey
	Signature []byte
}

// SectionSigned wraps a value with the section signature that authorised
// it. T must know how to serialise itself deterministically; that
// serialisation is exactly what was signed.
type SectionSigned[T encoding.BinaryMarshaler] struct {
	Value T
	Sig   Signature
}

// NewSectionSigned signs value with the given (already-aggregated)
// signature and public key.
func NewSectionSigned[T encoding.BinaryMarshaler](value T, sig Signature) SectionSigned[T] {
	return SectionSigned[T]{Value: value, Sig: sig}
}

// SelfVerify checks the signature against the public key embedded
// alongside it (spec §3: "checks signature against public_key on
// serialize(value)"). It does NOT check that public_key is the SAP's
// current key — callers that need that must compare separately, which is
// exactly what section.Tree.Update does.
func (s SectionSigned[T]) SelfVerify() error {
	msg, err := s.Value.MarshalBinary()
	if err != nil {
		return fmt.Errorf("section: marshal signed value: %w", err)
	}
	return VerifySignature(s.Sig.PublicKey, msg, s.Sig.Signature)
}
