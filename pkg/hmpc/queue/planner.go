package queue

import (
	"context"
	"crypto/ed25519"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jabolina/hmpc/pkg/hmpc/buffer"
	"github.com/jabolina/hmpc/pkg/hmpc/consistency"
	"github.com/jabolina/hmpc/pkg/hmpc/signing"
	"github.com/jabolina/hmpc/pkg/hmpc/transport"
	"github.com/jabolina/hmpc/pkg/hmpc/types"
)

// Queue is the collective planner: the opaque handle the foreign
// boundary exposes, and the type a caller drives directly from Go.
// It owns the counters exclusively (§5); the outbound multiplexer, the
// buffer and the checker are referenced, not owned, in the sense that
// the runtime that constructs a Queue is also responsible for starting
// and stopping them (see Runtime in pkg/hmpc).
type Queue struct {
	log     types.Logger
	localID types.PartyID
	roster  *types.Roster

	outbound *transport.Outbound
	buf      *buffer.Buffer
	checker  *consistency.Checker // nil when the consistency feature is off

	session *types.SessionID
	signKey ed25519.PrivateKey
	keys    *signing.KeyRing

	counterMu sync.Mutex
	counters  map[counterKey]uint64

	stats *statsCollector
}

// Config bundles what New needs beyond the wired collaborators.
type Config struct {
	LocalID types.PartyID
	Roster  *types.Roster
	Session *types.SessionID
	SignKey ed25519.PrivateKey
	Keys    *signing.KeyRing
}

// New constructs a planner. checker may be nil, which disables the
// consistency feature: NeedsCheck kinds are fanned out without
// registering expectations, and Wait becomes a no-op (§4.8).
func New(log types.Logger, cfg Config, outbound *transport.Outbound, buf *buffer.Buffer, checker *consistency.Checker) *Queue {
	return &Queue{
		log:      log,
		localID:  cfg.LocalID,
		roster:   cfg.Roster,
		outbound: outbound,
		buf:      buf,
		checker:  checker,
		session:  cfg.Session,
		signKey:  cfg.SignKey,
		keys:     cfg.Keys,
		counters: make(map[counterKey]uint64),
		stats:    newStatsCollector(partyLabel(cfg.LocalID)),
	}
}

func partyLabel(id types.PartyID) string {
	return "party-" + itoa(uint64(id))
}

func itoa(v uint64) string {
	if v == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}

// Collector exposes the planner's statistics as a prometheus.Collector
// for a process that wants to scrape network_statistics.
func (q *Queue) Collector() prometheus.Collector { return q.stats }

// NetworkStatistics returns the current sent/received/rounds counters
// (§4.1 "network_statistics").
func (q *Queue) NetworkStatistics() Statistics { return q.stats.snapshot() }

func (q *Queue) validateCommunicator(comm *types.Communicator) error {
	if comm == nil || comm.Len() == 0 {
		return types.NewError(types.ErrKindInvalidCommunicator, "communicator must be non-empty")
	}
	return nil
}

func (q *Queue) consistencyEnabled() bool { return q.checker != nil }

func (q *Queue) sendTask(peer, receiver types.PartyID, meta types.Metadata, payload []byte) task {
	return func(ctx context.Context) error {
		done := make(chan error, 1)
		q.outbound.Send(ctx, transport.SendCommand{
			Verb:     transport.VerbSend,
			Peer:     peer,
			Receiver: receiver,
			Metadata: meta,
			Payload:  payload,
			Session:  q.session,
			SignKey:  q.signKey,
			Done:     done,
		})
		q.stats.addSent(1)
		select {
		case err := <-done:
			return err
		case <-ctx.Done():
			return types.WrapError(types.ErrKindTaskCancelled, "send cancelled", ctx.Err())
		}
	}
}

// receiveTask parks a receive in the buffer and, once delivered,
// validates the payload length against expectedSize (0 disables the
// check — used when the caller has no a-priori expected size).
// It writes the result into out, keyed by the sender recorded in meta.
func (q *Queue) receiveTask(meta types.Metadata, expectedSize int, out *sync.Map) task {
	return func(ctx context.Context) error {
		msg, err := q.buf.Receive(ctx, meta)
		if err != nil {
			return err
		}
		if expectedSize > 0 && len(msg.Payload) != expectedSize {
			return types.NewError(types.ErrKindSizeMismatch, "received payload size does not match expected size")
		}
		q.stats.addReceived(1)
		out.Store(msg.Metadata.Sender, msg.Payload)
		return nil
	}
}

func collectResult(out *sync.Map) Result {
	received := make(map[types.PartyID][]byte)
	out.Range(func(k, v interface{}) bool {
		received[k.(types.PartyID)] = v.([]byte)
		return true
	})
	return Result{Received: received}
}
