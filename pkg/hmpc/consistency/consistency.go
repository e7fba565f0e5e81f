// Package consistency implements the equivocation-detecting consistency
// checker of SPEC_FULL.md §4.6. It guards Broadcast and AllGather: once
// a data frame and every expected peer attestation for the same logical
// message have arrived, it verifies the attestations' signatures and
// that every reported hash matches the data frame's hash.
package consistency

import (
	"context"
	"crypto/ed25519"

	"github.com/jabolina/hmpc/pkg/hmpc/signing"
	"github.com/jabolina/hmpc/pkg/hmpc/types"
)

// CheckKey identifies the collective run a consistency record tracks:
// the data kind being checked (not the consistency-check kind itself),
// its datatype, sender and message id.
type CheckKey struct {
	DataKind types.MessageKind
	Datatype types.MessageDatatype
	Sender   types.PartyID
	ID       types.MessageID
}

// Attestation is one peer's reported (hash, signature) pair for a
// CheckKey.
type Attestation struct {
	Hash      types.Hash
	Signature types.Signature
}

type checkValue struct {
	received   *Attestation
	receivers  map[types.PartyID]*Attestation
	registered bool
}

// CheckMessage is what the inbound dispatcher hands to the checker:
// either a peer's attestation (ReceivedCheck) or the local
// view of a just-arrived data frame (ReceivedData).
type CheckMessage struct {
	Key  CheckKey
	From types.PartyID // the attesting/reporting peer
	Attestation
}

// SendCheckCommand is emitted by the checker whenever it has something
// to attest and somewhere to send it; the runtime wires this channel to
// the outbound multiplexer's SendCheck verb through transport.PumpChecks
// (§4.3) — there is no direct
// reference from the checker to the multiplexer (design note in §9).
type SendCheckCommand struct {
	Receiver types.PartyID
	Key      CheckKey
	Attestation
}

type requestCmd struct {
	key               CheckKey
	expectedReceivers []types.PartyID
}

type waitCmd struct {
	reply chan error
}

// Checker owns the consistency map exclusively inside its task; all
// other code talks to it via the methods below, which enqueue commands
// on internal channels (§5: "Consistency map: mutated only by the
// checker task").
type Checker struct {
	log     types.Logger
	keys    *signing.KeyRing
	localID types.PartyID

	outbound chan<- SendCheckCommand

	requestCh chan requestCmd
	checkCh   chan CheckMessage
	dataCh    chan CheckMessage
	waitCh    chan waitCmd

	ctx    context.Context
	cancel context.CancelFunc
}

// New starts the checker's owning task.
func New(ctx context.Context, log types.Logger, localID types.PartyID, keys *signing.KeyRing, outbound chan<- SendCheckCommand) *Checker {
	ctx, cancel := context.WithCancel(ctx)
	c := &Checker{
		log:       log,
		keys:      keys,
		localID:   localID,
		outbound:  outbound,
		requestCh: make(chan requestCmd, 16),
		checkCh:   make(chan CheckMessage, 64),
		dataCh:    make(chan CheckMessage, 64),
		waitCh:    make(chan waitCmd, 16),
		ctx:       ctx,
		cancel:    cancel,
	}
	go c.run()
	return c
}

func (c *Checker) Close() { c.cancel() }

// Request registers that the local planner expects a report from every
// party in expectedReceivers for key (§4.6 Request).
func (c *Checker) Request(key CheckKey, expectedReceivers []types.PartyID) {
	select {
	case c.requestCh <- requestCmd{key: key, expectedReceivers: expectedReceivers}:
	case <-c.ctx.Done():
	}
}

// ReceivedCheck records a peer's attestation for key.
func (c *Checker) ReceivedCheck(msg CheckMessage) {
	select {
	case c.checkCh <- msg:
	case <-c.ctx.Done():
	}
}

// ReceivedData records the local hash+signature observed for the data
// frame identified by key.
func (c *Checker) ReceivedData(msg CheckMessage) {
	select {
	case c.dataCh <- msg:
	case <-c.ctx.Done():
	}
}

// Wait blocks until every registered record has closed, or ctx expires.
// If the checker is already clean it returns immediately. A clean
// checker call is a no-op — this is how the consistency feature being
// disabled degenerates to §4.8's "Wait is a no-op".
func (c *Checker) Wait(ctx context.Context) error {
	reply := make(chan error, 1)
	select {
	case c.waitCh <- waitCmd{reply: reply}:
	case <-ctx.Done():
		return types.WrapError(types.ErrKindTaskCancelled, "wait cancelled before enqueue", ctx.Err())
	case <-c.ctx.Done():
		return types.NewError(types.ErrKindLocallyClosed, "checker closed")
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return types.WrapError(types.ErrKindTaskCancelled, "wait cancelled", ctx.Err())
	case <-c.ctx.Done():
		return types.NewError(types.ErrKindLocallyClosed, "checker closed")
	}
}

func (c *Checker) run() {
	records := make(map[CheckKey]*checkValue)
	var waiters []waitCmd
	var fatal error

	getOrCreate := func(key CheckKey) *checkValue {
		v, ok := records[key]
		if !ok {
			v = &checkValue{receivers: make(map[types.PartyID]*Attestation)}
			records[key] = v
		}
		return v
	}

	emitSend := func(key CheckKey, att Attestation, to []types.PartyID) {
		for _, r := range to {
			cmd := SendCheckCommand{Receiver: r, Key: key, Attestation: att}
			select {
			case c.outbound <- cmd:
			case <-c.ctx.Done():
				return
			}
		}
	}

	closeRecords := func() {
		for key, v := range records {
			if !v.registered || v.received == nil {
				continue
			}
			for peer, att := range v.receivers {
				if att == nil {
					// expected, not yet reported
					continue
				}
				pub, err := c.keys.Lookup(peer)
				if err != nil {
					c.log.Errorf("consistency: %v", err)
					if fatal == nil {
						fatal = types.NewError(types.ErrKindUnknownSender, "attestation from party with no verification key")
					}
					delete(v.receivers, peer)
					continue
				}
				// each peer self-attests with its own key over the
				// (data-kind, datatype, sender, id, hash) tuple it observed.
				if !verifyAttestation(pub, key, *att) {
					c.log.Errorf("consistency: signature verification failed for party %d key %#v", peer, key)
					if fatal == nil {
						fatal = types.NewError(types.ErrKindConsistencySignatureFailed, "attestation signature invalid")
					}
					delete(v.receivers, peer)
					continue
				}
				if att.Hash != v.received.Hash {
					c.log.Errorf("consistency: hash mismatch from party %d for key %#v", peer, key)
					fatal = types.NewError(types.ErrKindInconsistentCollectiveCommunication, "equivocation detected")
					delete(v.receivers, peer)
					continue
				}
				delete(v.receivers, peer)
			}
			if v.registered && v.received != nil && len(v.receivers) == 0 {
				delete(records, key)
			}
		}
	}

	anyRegistered := func() bool {
		for _, v := range records {
			if v.registered {
				return true
			}
		}
		return false
	}

	// wakeWaiters only clears fatal once it has actually been delivered
	// to a parked Wait. A record can close (and set fatal) before any
	// Wait is parked — e.g. the caller's Broadcast already returned and
	// the peer's attestation arrives moments later — and that verdict
	// must survive until the next Wait call consumes it, not be
	// discarded here (§8 S4).
	wakeWaiters := func() {
		if anyRegistered() || len(waiters) == 0 {
			return
		}
		err := fatal
		for _, w := range waiters {
			w.reply <- err
		}
		waiters = nil
		fatal = nil
	}

	for {
		select {
		case <-c.ctx.Done():
			for _, w := range waiters {
				w.reply <- types.NewError(types.ErrKindLocallyClosed, "checker closed")
			}
			return

		case req := <-c.requestCh:
			v := getOrCreate(req.key)
			if v.registered {
				c.log.Errorf("consistency: multiple requests for key %#v", req.key)
				fatal = types.NewError(types.ErrKindMultipleRequests, "planner double-registered consistency key")
			}
			v.registered = true
			for _, r := range req.expectedReceivers {
				if _, ok := v.receivers[r]; !ok {
					v.receivers[r] = nil
				}
			}
			if v.received != nil {
				emitSend(req.key, *v.received, req.expectedReceivers)
			}
			closeRecords()
			wakeWaiters()

		case msg := <-c.checkCh:
			v := getOrCreate(msg.Key)
			existing, ok := v.receivers[msg.From]
			if ok && existing != nil {
				c.log.Errorf("consistency: multiple checks from party %d for key %#v", msg.From, msg.Key)
				fatal = types.NewError(types.ErrKindMultipleChecks, "duplicate attestation from party")
			}
			if !ok && v.registered {
				c.log.Errorf("consistency: unknown check from party %d for key %#v", msg.From, msg.Key)
				fatal = types.NewError(types.ErrKindUnknownCheck, "attestation from unexpected party")
			}
			att := msg.Attestation
			v.receivers[msg.From] = &att
			closeRecords()
			wakeWaiters()

		case msg := <-c.dataCh:
			v := getOrCreate(msg.Key)
			if v.received != nil {
				c.log.Errorf("consistency: multiple data messages for key %#v", msg.Key)
				fatal = types.NewError(types.ErrKindMultipleMessages, "duplicate data frame for message id")
			}
			att := msg.Attestation
			v.received = &att
			if v.registered {
				var to []types.PartyID
				for r := range v.receivers {
					to = append(to, r)
				}
				emitSend(msg.Key, att, to)
			}
			closeRecords()
			wakeWaiters()

		case w := <-c.waitCh:
			if !anyRegistered() {
				w.reply <- fatal
				fatal = nil
				continue
			}
			waiters = append(waiters, w)
		}
	}
}

// AttestationPayload builds the exact byte sequence an attestor signs
// (and a verifier re-derives) for a given CheckKey and observed hash:
// the data-kind, datatype, sender and id the attestation is about, plus
// the hash itself. It deliberately omits receiver/session — an
// attestation is about "what did you see for this logical message",
// not about the specific unicast frame that carried it to the attestor.
func AttestationPayload(key CheckKey, hash types.Hash) []byte {
	buf := make([]byte, 0, 1+1+2+8+types.HashSize)
	buf = append(buf, uint8(key.DataKind), uint8(key.Datatype))
	sender := make([]byte, 2)
	sender[0] = byte(key.Sender)
	sender[1] = byte(key.Sender >> 8)
	buf = append(buf, sender...)
	id := make([]byte, 8)
	for i := 0; i < 8; i++ {
		id[i] = byte(key.ID >> (8 * i))
	}
	buf = append(buf, id...)
	buf = append(buf, hash[:]...)
	return buf
}

// Sign produces this party's attestation signature for key/hash using
// its own Ed25519 private key.
func Sign(signKey ed25519.PrivateKey, key CheckKey, hash types.Hash) types.Signature {
	var sig types.Signature
	copy(sig[:], ed25519.Sign(signKey, AttestationPayload(key, hash)))
	return sig
}

func verifyAttestation(pub ed25519.PublicKey, key CheckKey, att Attestation) bool {
	return ed25519.Verify(pub, AttestationPayload(key, att.Hash), att.Signature[:])
}
