package signing

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jabolina/hmpc/pkg/hmpc/types"
)

func TestDigestPayloadIsDeterministic(t *testing.T) {
	payload := []byte("same payload twice")
	require.Equal(t, DigestPayload(payload), DigestPayload(payload))
	require.NotEqual(t, DigestPayload(payload), DigestPayload([]byte("different payload")))
}

func TestKeyRingLookup(t *testing.T) {
	pub, _, err := GenerateKey()
	require.NoError(t, err)

	ring := NewKeyRing()
	ring.Add(types.PartyID(3), pub)

	got, err := ring.Lookup(3)
	require.NoError(t, err)
	require.Equal(t, pub, got)

	_, err = ring.Lookup(4)
	require.Error(t, err)
	require.Equal(t, types.ErrKindUnknownSender, types.KindOf(err))
}
