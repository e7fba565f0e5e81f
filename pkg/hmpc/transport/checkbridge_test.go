package transport

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jabolina/hmpc/pkg/hmpc/consistency"
	"github.com/jabolina/hmpc/pkg/hmpc/types"
)

func TestEncodeCheckPayloadLayout(t *testing.T) {
	key := consistency.CheckKey{Sender: types.PartyID(0x0102)}
	att := consistency.Attestation{Hash: types.Hash{1}, Signature: types.Signature{2}}

	buf := EncodeCheckPayload(key, att)
	require.Len(t, buf, 2+types.HashSize+types.SignatureSize)
	require.Equal(t, byte(0x02), buf[0])
	require.Equal(t, byte(0x01), buf[1])
	require.Equal(t, att.Hash[:], buf[2:2+types.HashSize])
	require.Equal(t, att.Signature[:], buf[2+types.HashSize:])
}
