// Package wire implements the binary frame format of SPEC_FULL.md §4.2:
// header, optional session tag, payload, optional signature, all
// little-endian. One stream carries exactly one frame.
package wire

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/binary"

	"github.com/jabolina/hmpc/pkg/hmpc/types"
)

// FormatVersion is the only format version this revision speaks. Bumping
// it is the sole sanctioned way to break wire compatibility (§6).
const FormatVersion uint8 = 0

// MaxPayloadSize bounds a single frame's payload, per §4.2 ("N bounded
// by a constant (≈ 2^33 bytes)"). We use exactly 1<<33 - 1.
const MaxPayloadSize uint64 = (1 << 33) - 1

// Feature flag bits (§4.2).
const (
	FeatureSessions uint8 = 1 << 0
	FeatureSigning  uint8 = 1 << 1
)

// header sizes, little-endian.
const (
	sizeVersion  = 1
	sizeFlags    = 1
	sizeKind     = 1
	sizeDatatype = 1
	sizeSender   = 2
	sizeReceiver = 2
	sizeID       = 8
	sizeSession  = types.SessionIDSize
	sizeSig      = types.SignatureSize

	fixedHeaderSize = sizeVersion + sizeFlags + sizeKind + sizeDatatype + sizeSender + sizeReceiver + sizeID
)

// Frame is one decoded wire message.
type Frame struct {
	Version   uint8
	Flags     uint8
	Kind      types.MessageKind
	Datatype  types.MessageDatatype
	Sender    types.PartyID
	Receiver  types.PartyID
	ID        types.MessageID
	Session   types.SessionID
	HasSession bool
	Payload   []byte
	Signature types.Signature
	HasSignature bool
}

func (f *Frame) Metadata() types.Metadata {
	return types.Metadata{
		Kind:       f.Kind,
		Datatype:   f.Datatype,
		Sender:     f.Sender,
		Receiver:   f.Receiver,
		ID:         f.ID,
		PayloadLen: uint64(len(f.Payload)),
	}
}

// Encode serializes f. If signKey is non-nil the signing feature bit is
// set and the frame is signed over SigningPayload(digest-of-payload).
// If session is non-nil the sessions feature bit is set.
func Encode(f *Frame, session *types.SessionID, signKey ed25519.PrivateKey) []byte {
	flags := uint8(0)
	if session != nil {
		flags |= FeatureSessions
	}
	if signKey != nil {
		flags |= FeatureSigning
	}

	size := fixedHeaderSize
	if session != nil {
		size += sizeSession
	}
	size += len(f.Payload)
	if signKey != nil {
		size += sizeSig
	}

	buf := make([]byte, size)
	off := 0
	buf[off] = FormatVersion
	off += sizeVersion
	buf[off] = flags
	off += sizeFlags
	buf[off] = uint8(f.Kind)
	off += sizeKind
	buf[off] = uint8(f.Datatype)
	off += sizeDatatype
	binary.LittleEndian.PutUint16(buf[off:], uint16(f.Sender))
	off += sizeSender
	binary.LittleEndian.PutUint16(buf[off:], uint16(f.Receiver))
	off += sizeReceiver
	binary.LittleEndian.PutUint64(buf[off:], uint64(f.ID))
	off += sizeID

	if session != nil {
		copy(buf[off:off+sizeSession], session[:])
		off += sizeSession
	}

	copy(buf[off:off+len(f.Payload)], f.Payload)
	payloadOff := off
	off += len(f.Payload)

	if signKey != nil {
		digest := sha256.Sum256(f.Payload)
		signPayload := signingPayload(buf[:payloadOff], digest)
		sig := ed25519.Sign(signKey, signPayload)
		copy(buf[off:off+sizeSig], sig)
	}
	_ = payloadOff

	return buf
}

// signingPayload concatenates the pre-payload header bytes (version..
// optional session) with the SHA-256 digest of the payload, per §4.2:
// "the concatenation of: version, flags, kind, datatype, sender,
// receiver, id, optionally session, and the SHA-256 digest of the
// payload — not the raw payload."
func signingPayload(header []byte, payloadDigest types.Hash) []byte {
	out := make([]byte, len(header)+types.HashSize)
	copy(out, header)
	copy(out[len(header):], payloadDigest[:])
	return out
}

// Decode parses a single frame from buf, as read in full from one
// stream ("read to end" up to MaxPayloadSize, per §4.2/§5).
func Decode(buf []byte) (*Frame, error) {
	if len(buf) < sizeVersion+sizeFlags {
		return nil, types.NewError(types.ErrKindStreamFinishedEarly, "frame shorter than header prefix")
	}

	f := &Frame{}
	off := 0

	f.Version = buf[off]
	off += sizeVersion
	if f.Version != FormatVersion {
		return nil, types.NewError(types.ErrKindFormatVersionMismatch, "unexpected format version")
	}

	f.Flags = buf[off]
	off += sizeFlags

	need := sizeKind + sizeDatatype + sizeSender + sizeReceiver + sizeID
	if len(buf)-off < need {
		return nil, types.NewError(types.ErrKindStreamFinishedEarly, "frame truncated in fixed header")
	}

	kind := types.MessageKind(buf[off])
	off += sizeKind
	if !kind.Valid() {
		return nil, types.NewError(types.ErrKindInvalidEnumValue, "unknown message kind")
	}
	f.Kind = kind

	f.Datatype = types.MessageDatatype(buf[off])
	off += sizeDatatype

	f.Sender = types.PartyID(binary.LittleEndian.Uint16(buf[off:]))
	off += sizeSender
	f.Receiver = types.PartyID(binary.LittleEndian.Uint16(buf[off:]))
	off += sizeReceiver
	f.ID = types.MessageID(binary.LittleEndian.Uint64(buf[off:]))
	off += sizeID

	if f.Flags&FeatureSessions != 0 {
		if len(buf)-off < sizeSession {
			return nil, types.NewError(types.ErrKindStreamFinishedEarly, "frame truncated in session field")
		}
		copy(f.Session[:], buf[off:off+sizeSession])
		f.HasSession = true
		off += sizeSession
	}

	sigPresent := f.Flags&FeatureSigning != 0
	trailing := 0
	if sigPresent {
		trailing = sizeSig
	}
	if len(buf)-off < trailing {
		return nil, types.NewError(types.ErrKindStreamFinishedEarly, "frame truncated before signature")
	}

	payloadLen := len(buf) - off - trailing
	if uint64(payloadLen) > MaxPayloadSize {
		return nil, types.NewError(types.ErrKindStreamTooLong, "payload exceeds maximum frame size")
	}

	payloadStart := off
	f.Payload = append([]byte(nil), buf[payloadStart:payloadStart+payloadLen]...)
	off += payloadLen

	if sigPresent {
		copy(f.Signature[:], buf[off:off+sizeSig])
		f.HasSignature = true
		off += sizeSig
	}

	return f, nil
}

// SigningPayload rebuilds the exact byte sequence a signature covers for
// a decoded frame, given the SHA-256 digest of its payload. Verify uses
// it to check a received frame's signature.
func SigningPayload(f *Frame, payloadDigest types.Hash) []byte {
	size := fixedHeaderSize
	if f.HasSession {
		size += sizeSession
	}
	buf := make([]byte, 0, size)
	tmp := make([]byte, 8)

	buf = append(buf, FormatVersion)
	buf = append(buf, f.Flags)
	buf = append(buf, uint8(f.Kind))
	buf = append(buf, uint8(f.Datatype))

	binary.LittleEndian.PutUint16(tmp[:2], uint16(f.Sender))
	buf = append(buf, tmp[:2]...)
	binary.LittleEndian.PutUint16(tmp[:2], uint16(f.Receiver))
	buf = append(buf, tmp[:2]...)
	binary.LittleEndian.PutUint64(tmp[:8], uint64(f.ID))
	buf = append(buf, tmp[:8]...)

	if f.HasSession {
		buf = append(buf, f.Session[:]...)
	}

	return signingPayload(buf, payloadDigest)
}

// Verify checks f's signature against verifyKey, given the payload's
// SHA-256 digest (callers that have the raw payload hash it themselves,
// as the inbound dispatcher does).
func Verify(f *Frame, payloadDigest types.Hash, verifyKey ed25519.PublicKey) bool {
	if !f.HasSignature {
		return false
	}
	signPayload := SigningPayload(f, payloadDigest)
	return ed25519.Verify(verifyKey, signPayload, f.Signature[:])
}
