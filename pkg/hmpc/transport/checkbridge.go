package transport

import (
	"context"
	"crypto/ed25519"
	"encoding/binary"

	"github.com/jabolina/hmpc/pkg/hmpc/consistency"
	"github.com/jabolina/hmpc/pkg/hmpc/types"
)

// EncodeCheckPayload serializes a consistency attestation into the
// payload carried by a ConsistencyCheckBroadcast/AllGather frame: the
// original data sender, the observed hash, and the attestor's own
// signature over (data kind, datatype, sender, id, hash).
func EncodeCheckPayload(key consistency.CheckKey, att consistency.Attestation) []byte {
	buf := make([]byte, 2+types.HashSize+types.SignatureSize)
	binary.LittleEndian.PutUint16(buf[0:2], uint16(key.Sender))
	copy(buf[2:2+types.HashSize], att.Hash[:])
	copy(buf[2+types.HashSize:], att.Signature[:])
	return buf
}

// PumpChecks drains SendCheckCommands from ch and turns each into an
// outbound SendCommand addressed explicitly to its logical receiver
// (§4.3: "SendCheck addresses the receiver explicitly"). It runs until
// ctx is cancelled or ch is closed.
func PumpChecks(ctx context.Context, out *Outbound, localID types.PartyID, session *types.SessionID, signKey ed25519.PrivateKey, ch <-chan consistency.SendCheckCommand) {
	for {
		select {
		case <-ctx.Done():
			return
		case cmd, ok := <-ch:
			if !ok {
				return
			}
			checkKind := types.KindConsistencyCheckBroadcast
			if cmd.Key.DataKind == types.KindAllGather {
				checkKind = types.KindConsistencyCheckAllGather
			}
			payload := EncodeCheckPayload(cmd.Key, cmd.Attestation)
			out.Send(ctx, SendCommand{
				Verb:     VerbSendCheck,
				Peer:     cmd.Receiver,
				Receiver: cmd.Receiver,
				Metadata: types.Metadata{
					Kind:     checkKind,
					Datatype: cmd.Key.Datatype,
					Sender:   localID,
					ID:       cmd.Key.ID,
				},
				Payload: payload,
				Session: session,
				SignKey: signKey,
			})
		}
	}
}
