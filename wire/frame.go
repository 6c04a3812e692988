// Package wire implements the on-wire message frame of spec §6:
//
//	[ msg_id: 128-bit ] [ kind: u8 ] [ src_auth: variant ]
//	[ dst: { name: 256-bit, section_key: bls_pk } ] [ payload: length-prefixed bytes ]
//
// Framing is hand-rolled with encoding/binary the way the teacher encodes
// fixed-width fields (chain.RoundToBytes in chain/store.go); payload
// variants are gob-encoded, since both candidate schema-driven codecs in
// the retrieval pack (protobuf, capnproto) need a code generator this
// environment cannot run (see DESIGN.md).
package wire

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"

	"github.com/google/uuid"

	"github.com/novanet/novanet/section"
	"github.com/novanet/novanet/xorname"
)

// Kind is the frame's authentication kind.
type Kind uint8

const (
	KindClient Kind = iota
	KindNodeAuth
	KindSectionAuth
	KindBLSShare
	KindServiceReply
)

// SrcAuth carries the sender's authentication, in one of three shapes
// depending on Kind: a single key+signature (client/node), a recovered
// threshold signature (section), or a share awaiting aggregation
// (bls-share).
type SrcAuth struct {
	PublicKey []byte // single-key or section threshold public key
	Signature []byte // single signature or recovered threshold signature
	ShareIdx  int32  // meaningful only for KindBLSShare; -1 otherwise
}

// Destination names the recipient section and the key the sender believes
// is current for it (spec §4.F classification is driven entirely by this).
type Destination struct {
	Name       xorname.Name
	SectionKey section.PublicKey
}

// Frame is a fully decoded wire message.
type Frame struct {
	MsgID   uuid.UUID
	Kind    Kind
	Src     SrcAuth
	Dst     Destination
	Payload []byte // gob-encoded Message
}

// Encode serialises the frame exactly per spec §6's field order.
func (f Frame) Encode() ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(f.MsgID[:]) // 128 bits
	buf.WriteByte(byte(f.Kind))

	if err := writeLP(&buf, f.Src.PublicKey); err != nil {
		return nil, err
	}
	if err := writeLP(&buf, f.Src.Signature); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, f.Src.ShareIdx); err != nil {
		return nil, err
	}

	buf.Write(f.Dst.Name.Bytes()) // 256 bits
	if err := writeLP(&buf, f.Dst.SectionKey); err != nil {
		return nil, err
	}

	if err := writeLP(&buf, f.Payload); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode parses bytes produced by Encode.
func Decode(b []byte) (Frame, error) {
	var f Frame
	r := bytes.NewReader(b)

	if _, err := r.Read(f.MsgID[:]); err != nil {
		return f, fmt.Errorf("wire: short frame reading msg_id: %w", err)
	}
	kindByte, err := r.ReadByte()
	if err != nil {
		return f, fmt.Errorf("wire: short frame reading kind: %w", err)
	}
	f.Kind = Kind(kindByte)

	if f.Src.PublicKey, err = readLP(r); err != nil {
		return f, fmt.Errorf("wire: reading src public key: %w", err)
	}
	if f.Src.Signature, err = readLP(r); err != nil {
		return f, fmt.Errorf("wire: reading src signature: %w", err)
	}
	if err := binary.Read(r, binary.BigEndian, &f.Src.ShareIdx); err != nil {
		return f, fmt.Errorf("wire: reading share index: %w", err)
	}

	var nameBuf [xorname.Len]byte
	if _, err := r.Read(nameBuf[:]); err != nil {
		return f, fmt.Errorf("wire: reading dst name: %w", err)
	}
	f.Dst.Name, _ = xorname.FromBytes(nameBuf[:])

	sk, err := readLP(r)
	if err != nil {
		return f, fmt.Errorf("wire: reading dst section key: %w", err)
	}
	f.Dst.SectionKey = section.PublicKey(sk)

	if f.Payload, err = readLP(r); err != nil {
		return f, fmt.Errorf("wire: reading payload: %w", err)
	}
	return f, nil
}

func writeLP(buf *bytes.Buffer, b []byte) error {
	if err := binary.Write(buf, binary.BigEndian, uint32(len(b))); err != nil {
		return err
	}
	buf.Write(b)
	return nil
}

func readLP(r *bytes.Reader) ([]byte, error) {
	var n uint32
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return nil, err
	}
	b := make([]byte, n)
	if n > 0 {
		if _, err := r.Read(b); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// EncodePayload gob-encodes a Message for embedding in a Frame.
func EncodePayload(msg Message) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&msg); err != nil {
		return nil, fmt.Errorf("wire: encode payload: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodePayload decodes a gob-encoded Message.
func DecodePayload(b []byte) (Message, error) {
	var msg Message
	if err := gob.NewDecoder(bytes.NewReader(b)).Decode(&msg); err != nil {
		return Message{}, fmt.Errorf("wire: decode payload: %w", err)
	}
	return msg, nil
}

// NewMsgID mints a fresh 128-bit message id (spec §6).
func NewMsgID() uuid.UUID {
	return uuid.New()
}
