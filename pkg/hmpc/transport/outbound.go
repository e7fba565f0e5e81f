package transport

import (
	"context"
	"crypto/tls"
	"sync"
	"time"

	"github.com/quic-go/quic-go"

	"github.com/jabolina/hmpc/pkg/hmpc/types"
	"github.com/jabolina/hmpc/pkg/hmpc/wire"
)

// IdleTimeout is the transport-level idle timeout applied to every QUIC
// connection the outbound multiplexer opens (§4.3, §5: "default 10
// minutes", no per-call timeout).
const IdleTimeout = 10 * time.Minute

// Dialer opens the underlying QUIC connection to a peer. Production
// code uses quic.DialAddr; NewOutbound accepts any other implementation.
type Dialer interface {
	Dial(ctx context.Context, addr string, tlsConf *tls.Config, cfg *quic.Config) (quic.Connection, error)
}

type quicDialer struct{}

func (quicDialer) Dial(ctx context.Context, addr string, tlsConf *tls.Config, cfg *quic.Config) (quic.Connection, error) {
	return quic.DialAddr(ctx, addr, tlsConf, cfg)
}

// QUICDialer is the production Dialer.
var QUICDialer Dialer = quicDialer{}

// Outbound is the per-runtime outbound multiplexer: a cache of one QUIC
// connection per peer, and a per-message task that opens a new
// unidirectional stream and writes a single frame (§4.3).
type Outbound struct {
	log    types.Logger
	roster *types.Roster
	dialer Dialer
	tlsConf func(peer types.PartyID) (*tls.Config, error)

	mu    sync.Mutex
	conns map[types.PartyID]quic.Connection

	wg sync.WaitGroup
}

// NewOutbound constructs an outbound multiplexer. tlsConf resolves the
// per-peer TLS configuration (it carries the peer's advertised name for
// certificate verification, per §4.3).
func NewOutbound(log types.Logger, roster *types.Roster, dialer Dialer, tlsConf func(types.PartyID) (*tls.Config, error)) *Outbound {
	return &Outbound{
		log:     log,
		roster:  roster,
		dialer:  dialer,
		tlsConf: tlsConf,
		conns:   make(map[types.PartyID]quic.Connection),
	}
}

// connectionFor returns a cached connection to peer, dialing one if
// necessary. Only the outbound multiplexer ever mutates this cache
// (§5).
func (o *Outbound) connectionFor(ctx context.Context, peer types.PartyID) (quic.Connection, error) {
	o.mu.Lock()
	if conn, ok := o.conns[peer]; ok {
		o.mu.Unlock()
		return conn, nil
	}
	o.mu.Unlock()

	origin, ok := o.roster.Lookup(peer)
	if !ok {
		return nil, types.NewError(types.ErrKindInvalidCommunicator, "peer not present in roster")
	}
	tlsConf, err := o.tlsConf(peer)
	if err != nil {
		return nil, types.WrapError(types.ErrKindMissingCertificate, "resolving TLS config for peer", err)
	}
	qConf := &quic.Config{MaxIdleTimeout: IdleTimeout}

	conn, err := o.dialer.Dial(ctx, origin.Address(), tlsConf, qConf)
	if err != nil {
		return nil, types.WrapError(types.ErrKindTransport, "dialing peer", err)
	}

	o.mu.Lock()
	if existing, ok := o.conns[peer]; ok {
		o.mu.Unlock()
		_ = conn.CloseWithError(0, "superseded by concurrent dial")
		return existing, nil
	}
	o.conns[peer] = conn
	o.mu.Unlock()
	return conn, nil
}

// evict drops a connection from the cache. Called only when the
// connection itself is lost, not on a single transient write failure
// (§4.3).
func (o *Outbound) evict(peer types.PartyID, conn quic.Connection) {
	o.mu.Lock()
	if current, ok := o.conns[peer]; ok && current == conn {
		delete(o.conns, peer)
	}
	o.mu.Unlock()
}

// Send dispatches cmd asynchronously: opens/reuses a connection, opens a
// unidirectional stream, writes one frame, and reports completion on
// cmd.Done if set. The task is spawned, not run inline — §4.3: "spawn a
// task that opens a new unidirectional stream, writes one frame, and
// finalizes the stream".
func (o *Outbound) Send(ctx context.Context, cmd SendCommand) {
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		err := o.send(ctx, cmd)
		if cmd.Done != nil {
			cmd.Done <- err
		}
	}()
}

func (o *Outbound) send(ctx context.Context, cmd SendCommand) error {
	conn, err := o.connectionFor(ctx, cmd.Peer)
	if err != nil {
		return err
	}

	stream, err := conn.OpenUniStreamSync(ctx)
	if err != nil {
		o.evict(cmd.Peer, conn)
		return types.WrapError(types.ErrKindTransport, "opening unidirectional stream", err)
	}

	frame := &wire.Frame{
		Kind:     cmd.Metadata.Kind,
		Datatype: cmd.Metadata.Datatype,
		Sender:   cmd.Metadata.Sender,
		Receiver: cmd.Receiver,
		ID:       cmd.Metadata.ID,
		Payload:  cmd.Payload,
	}
	buf := wire.Encode(frame, cmd.Session, cmd.SignKey)

	if _, err := stream.Write(buf); err != nil {
		return types.WrapError(types.ErrKindTransport, "writing frame", err)
	}
	return stream.Close()
}

// Wait blocks until every in-flight send task started by Send has
// completed (used by Runtime.Close for graceful shutdown).
func (o *Outbound) Wait() { o.wg.Wait() }

// Close closes every cached connection.
func (o *Outbound) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	for peer, conn := range o.conns {
		_ = conn.CloseWithError(0, "outbound multiplexer closing")
		delete(o.conns, peer)
	}
}
