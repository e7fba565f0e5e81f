// Package session implements §4.7 session handling: deriving the
// 128-bit per-run session id embedded in every frame once the sessions
// feature is enabled.
package session

import (
	"crypto/sha256"
	"encoding/binary"
	"math/big"
	"strings"

	"github.com/jabolina/hmpc/pkg/hmpc/types"
)

// Source is one of the three ways §6's config describes a session:
// a literal value, a decimal-or-hex string to parse, or a string to hash.
type Source struct {
	Value  *uint64 // low 64 bits of the session id; the high 64 bits are zero
	Parse  string  // decimal or 0x-prefixed hex, up to the full 128 bits
	String string
}

// Derive resolves a Source into the 16-byte session id embedded in
// every frame.
func Derive(src Source) (types.SessionID, error) {
	switch {
	case src.Value != nil:
		var id types.SessionID
		binary.LittleEndian.PutUint64(id[0:8], *src.Value)
		return id, nil

	case src.Parse != "":
		return parseDecimalOrHex(src.Parse)

	case src.String != "":
		digest := sha256.Sum256([]byte(src.String))
		var id types.SessionID
		copy(id[:], digest[:types.SessionIDSize])
		return id, nil

	default:
		return types.SessionID{}, types.NewError(types.ErrKindMissingSession, "no session source configured")
	}
}

func parseDecimalOrHex(s string) (types.SessionID, error) {
	trimmed := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	base := 10
	if trimmed != s {
		base = 16
	}
	v, ok := new(big.Int).SetString(trimmed, base)
	if !ok || v.Sign() < 0 || v.BitLen() > 8*types.SessionIDSize {
		return types.SessionID{}, types.NewError(types.ErrKindUnparseableConfig, "parsing session value: not an unsigned 128-bit decimal or hex number")
	}
	// FillBytes writes big-endian; the session id is little-endian.
	be := v.FillBytes(make([]byte, types.SessionIDSize))
	var id types.SessionID
	for i := range be {
		id[i] = be[len(be)-1-i]
	}
	return id, nil
}

// Precedence resolves the session according to §6's override order:
// HMPC_SESSION_VALUE env var, then HMPC_SESSION_STRING env var, then the
// config-file-provided Source.
func Precedence(envValue, envString string, configured Source) (types.SessionID, error) {
	if envValue != "" {
		return parseDecimalOrHex(envValue)
	}
	if envString != "" {
		return Derive(Source{String: envString})
	}
	return Derive(configured)
}
