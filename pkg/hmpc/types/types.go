// Package types holds the shared data model for the hmpc collective-
// communication engine: party identity, the roster, communicators,
// message metadata and the closed set of message kinds.
package types

import (
	"encoding/binary"
	"fmt"
	"sort"
)

// PartyID uniquely identifies a party within a Roster.
type PartyID uint16

// MessageDatatype is an opaque tag chosen by the caller. The engine never
// interprets it beyond including it in message identity.
type MessageDatatype uint8

// MessageID is the 64-bit derived identifier described by the planner's
// message-id derivation (base digest bits + per-tuple counter).
type MessageID uint64

// MessageKind is the closed enum of collective and control message kinds.
// Numeric codes are part of the wire format and must not be renumbered.
type MessageKind uint8

const (
	KindSend                      MessageKind = 1
	KindBroadcast                 MessageKind = 2
	KindScatter                   MessageKind = 3
	KindGather                    MessageKind = 4
	KindAllGather                 MessageKind = 5
	KindAllToAll                  MessageKind = 6
	KindConsistencyCheckBroadcast MessageKind = 18
	KindConsistencyCheckAllGather MessageKind = 21
)

func (k MessageKind) String() string {
	switch k {
	case KindSend:
		return "Send"
	case KindBroadcast:
		return "Broadcast"
	case KindScatter:
		return "Scatter"
	case KindGather:
		return "Gather"
	case KindAllGather:
		return "AllGather"
	case KindAllToAll:
		return "AllToAll"
	case KindConsistencyCheckBroadcast:
		return "ConsistencyCheckBroadcast"
	case KindConsistencyCheckAllGather:
		return "ConsistencyCheckAllGather"
	default:
		return fmt.Sprintf("MessageKind(%d)", uint8(k))
	}
}

// Valid reports whether k is one of the known discriminants.
func (k MessageKind) Valid() bool {
	switch k {
	case KindSend, KindBroadcast, KindScatter, KindGather, KindAllGather,
		KindAllToAll, KindConsistencyCheckBroadcast, KindConsistencyCheckAllGather:
		return true
	default:
		return false
	}
}

// IsConsistencyCheck reports whether this kind carries a hash+signature
// attestation rather than collective payload data.
func (k MessageKind) IsConsistencyCheck() bool {
	return k == KindConsistencyCheckBroadcast || k == KindConsistencyCheckAllGather
}

// NeedsCheck reports whether data frames of this kind must also be
// forwarded to the consistency checker (Broadcast, AllGather).
func (k MessageKind) NeedsCheck() bool {
	return k == KindBroadcast || k == KindAllGather
}

// CheckKindFor returns the consistency-check kind that attests to data
// frames of kind k. Panics if k does not need checking — callers must
// guard with NeedsCheck first.
func CheckKindFor(k MessageKind) MessageKind {
	switch k {
	case KindBroadcast:
		return KindConsistencyCheckBroadcast
	case KindAllGather:
		return KindConsistencyCheckAllGather
	default:
		panic(fmt.Sprintf("hmpc: %s has no consistency-check kind", k))
	}
}

// Roster is the ordered, total mapping from PartyID to network origin.
// Every runtime instance holds the full roster.
type Roster struct {
	entries map[PartyID]Origin
}

// Origin is a party's advertised network location: the hostname used for
// TLS name verification, and the resolved host:port to dial.
type Origin struct {
	Name string
	Host string
	Port uint16
}

func (o Origin) Address() string {
	return fmt.Sprintf("%s:%d", o.Host, o.Port)
}

// NewRoster builds a Roster from a plain map.
func NewRoster(entries map[PartyID]Origin) *Roster {
	cp := make(map[PartyID]Origin, len(entries))
	for id, o := range entries {
		cp[id] = o
	}
	return &Roster{entries: cp}
}

// Lookup returns the Origin for id.
func (r *Roster) Lookup(id PartyID) (Origin, bool) {
	o, ok := r.entries[id]
	return o, ok
}

// IDs returns every party id, ascending.
func (r *Roster) IDs() []PartyID {
	ids := make([]PartyID, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	SortPartyIDs(ids)
	return ids
}

func (r *Roster) Len() int { return len(r.entries) }

// SortPartyIDs sorts ids ascending, in place.
func SortPartyIDs(ids []PartyID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}

// Communicator is an ordered, de-duplicated set of party ids used as the
// sender-set and/or receiver-set of a collective call.
type Communicator struct {
	members []PartyID
	index   map[PartyID]struct{}
}

// NewCommunicator builds a Communicator from an arbitrary slice of ids,
// de-duplicating and sorting them.
func NewCommunicator(ids []PartyID) *Communicator {
	index := make(map[PartyID]struct{}, len(ids))
	members := make([]PartyID, 0, len(ids))
	for _, id := range ids {
		if _, seen := index[id]; seen {
			continue
		}
		index[id] = struct{}{}
		members = append(members, id)
	}
	SortPartyIDs(members)
	return &Communicator{members: members, index: index}
}

func (c *Communicator) Len() int { return len(c.members) }

func (c *Communicator) Members() []PartyID {
	out := make([]PartyID, len(c.members))
	copy(out, c.members)
	return out
}

func (c *Communicator) Contains(id PartyID) bool {
	_, ok := c.index[id]
	return ok
}

// Without returns the members of c excluding every id in exclude.
func (c *Communicator) Without(exclude ...PartyID) []PartyID {
	skip := make(map[PartyID]struct{}, len(exclude))
	for _, id := range exclude {
		skip[id] = struct{}{}
	}
	out := make([]PartyID, 0, len(c.members))
	for _, id := range c.members {
		if _, ok := skip[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}

// IsSubsetOf reports whether every member of c is also a member of other.
func (c *Communicator) IsSubsetOf(other *Communicator) bool {
	for _, id := range c.members {
		if !other.Contains(id) {
			return false
		}
	}
	return true
}

// EncodeSet length-prefix-encodes the ordered member set for the
// message-id digest (§4.1: "a length-prefixed senders/receivers set").
func EncodeSet(ids []PartyID) []byte {
	buf := make([]byte, 2+2*len(ids))
	binary.LittleEndian.PutUint16(buf[0:2], uint16(len(ids)))
	for i, id := range ids {
		off := 2 + 2*i
		binary.LittleEndian.PutUint16(buf[off:off+2], uint16(id))
	}
	return buf
}

// Metadata is the fixed set of per-message fields carried on the wire
// (§3 "Message metadata") and used as the Message buffer's lookup key.
type Metadata struct {
	Kind       MessageKind
	Datatype   MessageDatatype
	Sender     PartyID
	Receiver   PartyID
	ID         MessageID
	PayloadLen uint64
}

// Message is a fully received/assembled frame: metadata plus payload.
type Message struct {
	Metadata Metadata
	Payload  []byte
}

const (
	// HashSize is the SHA-256 digest size in bytes.
	HashSize = 32
	// SignatureSize is the Ed25519 signature size in bytes.
	SignatureSize = 64
	// SessionIDSize is the width of the session nonce mixed into frames.
	SessionIDSize = 16
)

// Hash is a SHA-256 digest.
type Hash [HashSize]byte

// Signature is an Ed25519 signature.
type Signature [SignatureSize]byte

// SessionID is the 128-bit per-run nonce partitioning the wire namespace.
type SessionID [SessionIDSize]byte
