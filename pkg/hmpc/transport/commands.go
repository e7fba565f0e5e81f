// Package transport implements the outbound multiplexer ("client",
// §4.3) and inbound dispatcher ("server", §4.4) over QUIC unidirectional
// streams.
package transport

import (
	"crypto/ed25519"

	"github.com/jabolina/hmpc/pkg/hmpc/types"
)

// SendVerb distinguishes the two outbound commands §4.3 describes: a
// normal collective payload, or a consistency attestation whose logical
// receiver differs from the peer physically carrying it.
type SendVerb uint8

const (
	VerbSend SendVerb = iota
	VerbSendCheck
)

// SendCommand is one unit of outbound work: open/reuse a connection to
// Peer, open a stream, write one frame.
type SendCommand struct {
	Verb     SendVerb
	Peer     types.PartyID // connection to open/reuse
	Receiver types.PartyID // logical receiver carried in the frame (may differ from Peer for SendCheck)
	Metadata types.Metadata
	Payload  []byte
	Session  *types.SessionID
	SignKey  ed25519.PrivateKey // nil disables the signing feature bit

	Done chan error // optional; receives the send's result on completion (never closed)
}
