// Package queue implements the collective planner of SPEC_FULL.md §4.1:
// input validation, message-id derivation, per-kind fan-out and task
// aggregation. It is the component the foreign boundary exposes as the
// opaque "Queue" handle.
package queue

import (
	"crypto/sha256"
	"encoding/binary"

	"github.com/jabolina/hmpc/pkg/hmpc/types"
)

// kindSpec yields the per-kind identifying fields the message-id digest
// includes, in the documented order (§4.1, design note §9: "a trait...
// to yield a per-kind digest"). Sender for Broadcast, receiver for
// Gather; AllGather and AllToAll contribute no extra field.
type kindSpec interface {
	kind() types.MessageKind
	digestFields() []byte
}

type broadcastSpec struct{ sender types.PartyID }

func (s broadcastSpec) kind() types.MessageKind { return types.KindBroadcast }
func (s broadcastSpec) digestFields() []byte {
	buf := make([]byte, 2)
	binary.LittleEndian.PutUint16(buf, uint16(s.sender))
	return buf
}

type gatherSpec struct{ receiver types.PartyID }

func (s gatherSpec) kind() types.MessageKind { return types.KindGather }
func (s gatherSpec) digestFields() []byte {
	buf := make([]byte, 2)
	binary.LittleEndian.PutUint16(buf, uint16(s.receiver))
	return buf
}

type allGatherSpec struct{}

func (allGatherSpec) kind() types.MessageKind  { return types.KindAllGather }
func (allGatherSpec) digestFields() []byte     { return nil }

type allToAllSpec struct{}

func (allToAllSpec) kind() types.MessageKind { return types.KindAllToAll }
func (allToAllSpec) digestFields() []byte    { return nil }

// digest computes the 32-byte message-id digest per §4.1: a
// length-prefixed senders set, the kind byte, the datatype byte, the
// kind's extra fields, then a length-prefixed receivers set.
func digest(senders, receivers []types.PartyID, datatype types.MessageDatatype, spec kindSpec) [32]byte {
	h := sha256.New()
	h.Write(types.EncodeSet(senders))
	h.Write([]byte{uint8(spec.kind())})
	h.Write([]byte{uint8(datatype)})
	h.Write(spec.digestFields())
	h.Write(types.EncodeSet(receivers))
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

type counterKey struct {
	kind     types.MessageKind
	datatype types.MessageDatatype
	digest   [32]byte
}

// nextID derives the MessageID for one use of (senders, datatype, spec,
// receivers): base (first 64 bits of the digest, little-endian) plus a
// per-tuple monotone counter (§4.1). The counter map is owned
// exclusively by the planner (§5); nextID guards it with q.counterMu
// itself, so callers need no lock.
func (q *Queue) nextID(senders, receivers []types.PartyID, datatype types.MessageDatatype, spec kindSpec) types.MessageID {
	d := digest(senders, receivers, datatype, spec)
	key := counterKey{kind: spec.kind(), datatype: datatype, digest: d}

	q.counterMu.Lock()
	c := q.counters[key]
	q.counters[key] = c + 1
	q.counterMu.Unlock()

	base := binary.LittleEndian.Uint64(d[0:8])
	return types.MessageID(base + c)
}
