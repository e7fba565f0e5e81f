package wire

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jabolina/hmpc/pkg/hmpc/types"
)

func sampleFrame() *Frame {
	return &Frame{
		Kind:     types.KindBroadcast,
		Datatype: 7,
		Sender:   1,
		Receiver: 2,
		ID:       42,
		Payload:  []byte("hello collective"),
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	f := sampleFrame()
	buf := Encode(f, nil, nil)

	got, err := Decode(buf)
	require.NoError(t, err)
	require.Equal(t, f.Kind, got.Kind)
	require.Equal(t, f.Datatype, got.Datatype)
	require.Equal(t, f.Sender, got.Sender)
	require.Equal(t, f.Receiver, got.Receiver)
	require.Equal(t, f.ID, got.ID)
	require.Equal(t, f.Payload, got.Payload)
	require.False(t, got.HasSession)
	require.False(t, got.HasSignature)
}

func TestEncodeDecodeWithSessionAndSigning(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	f := sampleFrame()
	var session types.SessionID
	copy(session[:], []byte("0123456789abcdef"))

	buf := Encode(f, &session, priv)
	got, err := Decode(buf)
	require.NoError(t, err)

	require.True(t, got.HasSession)
	require.Equal(t, session, got.Session)
	require.True(t, got.HasSignature)

	digest := sha256Digest(f.Payload)
	require.True(t, Verify(got, digest, pub))
}

func TestVerifyRejectsTamperedPayload(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	f := sampleFrame()
	buf := Encode(f, nil, priv)
	got, err := Decode(buf)
	require.NoError(t, err)

	got.Payload[0] ^= 0xFF
	digest := sha256Digest(got.Payload)
	require.False(t, Verify(got, digest, pub))
}

func TestDecodeRejectsWrongVersion(t *testing.T) {
	f := sampleFrame()
	buf := Encode(f, nil, nil)
	buf[0] = FormatVersion + 1

	_, err := Decode(buf)
	require.Error(t, err)
	require.Equal(t, types.ErrKindFormatVersionMismatch, types.KindOf(err))
}

func TestDecodeRejectsTruncatedStream(t *testing.T) {
	f := sampleFrame()
	buf := Encode(f, nil, nil)

	_, err := Decode(buf[:fixedHeaderSize-1])
	require.Error(t, err)
	require.Equal(t, types.ErrKindStreamFinishedEarly, types.KindOf(err))
}

func TestDecodeRejectsInvalidKind(t *testing.T) {
	f := sampleFrame()
	buf := Encode(f, nil, nil)
	buf[2] = 200 // kind byte, an unused discriminant

	_, err := Decode(buf)
	require.Error(t, err)
	require.Equal(t, types.ErrKindInvalidEnumValue, types.KindOf(err))
}

func sha256Digest(payload []byte) types.Hash {
	return types.Hash(sha256.Sum256(payload))
}
