package session

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jabolina/hmpc/pkg/hmpc/types"
)

func TestDeriveFromValue(t *testing.T) {
	v := uint64(42)
	id, err := Derive(Source{Value: &v})
	require.NoError(t, err)
	require.Equal(t, v, binary.LittleEndian.Uint64(id[0:8]))
}

func TestDeriveFromParseDecimalAndHex(t *testing.T) {
	dec, err := Derive(Source{Parse: "100"})
	require.NoError(t, err)
	require.Equal(t, uint64(100), binary.LittleEndian.Uint64(dec[0:8]))

	hex, err := Derive(Source{Parse: "0x64"})
	require.NoError(t, err)
	require.Equal(t, uint64(100), binary.LittleEndian.Uint64(hex[0:8]))
}

func TestDeriveFromParseRejectsGarbage(t *testing.T) {
	_, err := Derive(Source{Parse: "not-a-number"})
	require.Error(t, err)
	require.Equal(t, types.ErrKindUnparseableConfig, types.KindOf(err))
}

func TestDeriveFromStringIsDeterministic(t *testing.T) {
	a, err := Derive(Source{String: "some session label"})
	require.NoError(t, err)
	b, err := Derive(Source{String: "some session label"})
	require.NoError(t, err)
	require.Equal(t, a, b)

	c, err := Derive(Source{String: "a different label"})
	require.NoError(t, err)
	require.NotEqual(t, a, c)
}

func TestDeriveRequiresASource(t *testing.T) {
	_, err := Derive(Source{})
	require.Error(t, err)
	require.Equal(t, types.ErrKindMissingSession, types.KindOf(err))
}

func TestPrecedenceEnvValueWinsOverEverything(t *testing.T) {
	v := uint64(7)
	id, err := Precedence("99", "ignored", Source{Value: &v})
	require.NoError(t, err)
	require.Equal(t, uint64(99), binary.LittleEndian.Uint64(id[0:8]))
}

func TestPrecedenceEnvStringWinsOverConfigured(t *testing.T) {
	v := uint64(7)
	fromEnv, err := Precedence("", "label-from-env", Source{Value: &v})
	require.NoError(t, err)
	fromDirect, err := Derive(Source{String: "label-from-env"})
	require.NoError(t, err)
	require.Equal(t, fromDirect, fromEnv)
}

func TestPrecedenceFallsBackToConfigured(t *testing.T) {
	v := uint64(7)
	id, err := Precedence("", "", Source{Value: &v})
	require.NoError(t, err)
	require.Equal(t, uint64(7), binary.LittleEndian.Uint64(id[0:8]))
}
