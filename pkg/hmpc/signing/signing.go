// Package signing wraps the Ed25519 sign/verify and SHA-256 digest
// operations the wire codec and consistency checker depend on.
//
// This is one of the few places SPEC_FULL.md's domain stack is carried
// on the standard library rather than a pack dependency: crypto/ed25519
// and crypto/sha256 are the canonical constant-time implementations the
// Go toolchain ships, and every third-party Ed25519 package visible in
// the retrieved examples (e.g. github.com/agl/ed25519) predates and is
// now superseded by it. See DESIGN.md.
package signing

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"

	"github.com/jabolina/hmpc/pkg/hmpc/types"
)

// GenerateKey creates a new Ed25519 keypair.
func GenerateKey() (ed25519.PublicKey, ed25519.PrivateKey, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, types.WrapError(types.ErrKindMissingCertificate, "generating ed25519 keypair", err)
	}
	return pub, priv, nil
}

// DigestPayload returns the SHA-256 digest of a collective payload.
func DigestPayload(payload []byte) types.Hash {
	return types.Hash(sha256.Sum256(payload))
}

// KeyRing resolves a PartyID to its Ed25519 verification key. The
// consistency checker and inbound dispatcher use it to reject frames
// from parties whose public key isn't known (§8 property 6).
type KeyRing struct {
	verify map[types.PartyID]ed25519.PublicKey
}

func NewKeyRing() *KeyRing {
	return &KeyRing{verify: make(map[types.PartyID]ed25519.PublicKey)}
}

func (k *KeyRing) Add(id types.PartyID, pub ed25519.PublicKey) {
	k.verify[id] = pub
}

// Lookup returns the verification key for id, or ErrKindUnknownSender.
func (k *KeyRing) Lookup(id types.PartyID) (ed25519.PublicKey, error) {
	pub, ok := k.verify[id]
	if !ok {
		return nil, types.NewError(types.ErrKindUnknownSender, "no verification key for party")
	}
	return pub, nil
}
