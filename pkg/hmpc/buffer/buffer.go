// Package buffer implements the message buffer of SPEC_FULL.md §4.5: the
// rendezvous between payloads that arrive off the wire and the
// collective planner's outstanding receive requests, keyed by message
// metadata.
//
// The buffer's two maps are owned exclusively by a single task reading
// off a command channel (§5: "Message buffer maps: mutated only by the
// buffer task; all other code interacts via channels"); everything else
// talks to it through Receive/Received, mirroring the teacher's
// request/observer-channel idiom in pkg/mcast/core/peer.go.
package buffer

import (
	"context"

	"github.com/jabolina/hmpc/pkg/hmpc/types"
)

// bufferKey strips PayloadLen from a Metadata value: the buffer's
// lookup identity is (kind, datatype, sender, receiver, id) — a
// receiver does not know the payload size before the message arrives,
// so that field can never be part of the rendezvous key (§3/§4.5).
func bufferKey(m types.Metadata) types.Metadata {
	m.PayloadLen = 0
	return m
}

// receiveRequest asks the buffer task to either hand back an
// already-arrived payload for meta, or park reply until one shows up.
type receiveRequest struct {
	meta  types.Metadata
	reply chan types.Message
}

// Buffer rendezvous arrived payloads with pending receive requests.
type Buffer struct {
	log types.Logger

	receiveCh chan receiveRequest
	arriveCh  chan types.Message
	ctx       context.Context
	cancel    context.CancelFunc
}

// New starts the buffer's owning task and returns a handle to it.
func New(ctx context.Context, log types.Logger) *Buffer {
	ctx, cancel := context.WithCancel(ctx)
	b := &Buffer{
		log:       log,
		receiveCh: make(chan receiveRequest),
		arriveCh:  make(chan types.Message, 64),
		ctx:       ctx,
		cancel:    cancel,
	}
	go b.run()
	return b
}

func (b *Buffer) Close() { b.cancel() }

// Receive asks for the payload matching meta. It blocks (respecting ctx)
// until the payload is available, either because it already arrived or
// because Received is called for the same metadata later. A second
// concurrent Receive for the same metadata is a programmer error (§4.5);
// it is logged and served, but the first reply channel is orphaned.
func (b *Buffer) Receive(ctx context.Context, meta types.Metadata) (types.Message, error) {
	reply := make(chan types.Message, 1)
	req := receiveRequest{meta: meta, reply: reply}

	select {
	case b.receiveCh <- req:
	case <-ctx.Done():
		return types.Message{}, types.WrapError(types.ErrKindTaskCancelled, "receive cancelled before enqueue", ctx.Err())
	case <-b.ctx.Done():
		return types.Message{}, types.NewError(types.ErrKindLocallyClosed, "buffer closed")
	}

	select {
	case msg := <-reply:
		return msg, nil
	case <-ctx.Done():
		return types.Message{}, types.WrapError(types.ErrKindTaskCancelled, "receive cancelled while waiting", ctx.Err())
	case <-b.ctx.Done():
		return types.Message{}, types.NewError(types.ErrKindLocallyClosed, "buffer closed")
	}
}

// Received delivers an arrived message into the buffer. It never blocks
// the caller beyond the buffer's internal channel capacity.
func (b *Buffer) Received(msg types.Message) {
	select {
	case b.arriveCh <- msg:
	case <-b.ctx.Done():
	}
}

func (b *Buffer) run() {
	pending := make(map[types.Metadata]types.Message)
	waiters := make(map[types.Metadata]chan types.Message)

	for {
		select {
		case <-b.ctx.Done():
			return

		case req := <-b.receiveCh:
			key := bufferKey(req.meta)
			if msg, ok := pending[key]; ok {
				delete(pending, key)
				req.reply <- msg
				continue
			}
			if _, dup := waiters[key]; dup {
				b.log.Warnf("duplicate receive for metadata %#v; programmer error", req.meta)
			}
			waiters[key] = req.reply

		case msg := <-b.arriveCh:
			key := bufferKey(msg.Metadata)
			if reply, ok := waiters[key]; ok {
				delete(waiters, key)
				reply <- msg
				continue
			}
			if _, dup := pending[key]; dup {
				b.log.Warnf("overwriting pending payload for metadata %#v", msg.Metadata)
			}
			pending[key] = msg
		}
	}
}
