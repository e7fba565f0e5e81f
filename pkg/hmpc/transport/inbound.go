package transport

import (
	"context"
	"crypto/ed25519"
	"crypto/tls"
	"encoding/binary"
	"io"
	"sync"

	"github.com/quic-go/quic-go"

	"github.com/jabolina/hmpc/pkg/hmpc/buffer"
	"github.com/jabolina/hmpc/pkg/hmpc/consistency"
	"github.com/jabolina/hmpc/pkg/hmpc/signing"
	"github.com/jabolina/hmpc/pkg/hmpc/types"
	"github.com/jabolina/hmpc/pkg/hmpc/wire"
)

// Listener is the subset of *quic.Listener the dispatcher needs, as an
// interface so another implementation can be passed to newInbound.
type Listener interface {
	Accept(ctx context.Context) (quic.Connection, error)
	Close() error
}

// Inbound is the inbound dispatcher ("server", §4.4): a single listener
// accepting connections, spawning one reader task per accepted
// unidirectional stream.
type Inbound struct {
	log      types.Logger
	listener Listener
	session  *types.SessionID
	keys     *signing.KeyRing
	localID  types.PartyID
	signKey  ed25519.PrivateKey

	buf      *buffer.Buffer
	checker  *consistency.Checker

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Listen starts the QUIC listener on addr with the given TLS config and
// returns a running Inbound dispatcher.
func Listen(ctx context.Context, log types.Logger, addr string, tlsConf *tls.Config, session *types.SessionID, keys *signing.KeyRing, localID types.PartyID, signKey ed25519.PrivateKey, buf *buffer.Buffer, checker *consistency.Checker) (*Inbound, error) {
	qConf := &quic.Config{MaxIdleTimeout: IdleTimeout}
	ln, err := quic.ListenAddr(addr, tlsConf, qConf)
	if err != nil {
		return nil, types.WrapError(types.ErrKindTransport, "starting QUIC listener", err)
	}
	return newInbound(ctx, log, ln, session, keys, localID, signKey, buf, checker), nil
}

func newInbound(ctx context.Context, log types.Logger, ln Listener, session *types.SessionID, keys *signing.KeyRing, localID types.PartyID, signKey ed25519.PrivateKey, buf *buffer.Buffer, checker *consistency.Checker) *Inbound {
	ctx, cancel := context.WithCancel(ctx)
	in := &Inbound{
		log:      log,
		listener: ln,
		session:  session,
		keys:     keys,
		localID:  localID,
		signKey:  signKey,
		buf:      buf,
		checker:  checker,
		ctx:      ctx,
		cancel:   cancel,
	}
	in.wg.Add(1)
	go in.acceptLoop()
	return in
}

func (in *Inbound) Close() error {
	in.cancel()
	err := in.listener.Close()
	in.wg.Wait()
	return err
}

func (in *Inbound) acceptLoop() {
	defer in.wg.Done()
	for {
		conn, err := in.listener.Accept(in.ctx)
		if err != nil {
			if in.ctx.Err() != nil {
				return
			}
			in.log.Warnf("inbound: accept failed: %v", err)
			continue
		}
		in.wg.Add(1)
		go in.connectionLoop(conn)
	}
}

func (in *Inbound) connectionLoop(conn quic.Connection) {
	defer in.wg.Done()
	for {
		stream, err := conn.AcceptUniStream(in.ctx)
		if err != nil {
			return
		}
		in.wg.Add(1)
		go in.readStream(stream)
	}
}

func (in *Inbound) readStream(stream quic.ReceiveStream) {
	defer in.wg.Done()
	buf, err := io.ReadAll(io.LimitReader(stream, int64(wire.MaxPayloadSize)+4096))
	if err != nil {
		in.log.Warnf("inbound: reading stream: %v", err)
		return
	}

	frame, err := wire.Decode(buf)
	if err != nil {
		in.log.Warnf("inbound: decoding frame: %v", err)
		return
	}

	if in.session != nil {
		if !frame.HasSession || frame.Session != *in.session {
			in.log.Warnf("inbound: session mismatch from party %d", frame.Sender)
			return
		}
	}

	if frame.Kind.IsConsistencyCheck() {
		if in.checker == nil {
			in.log.Warnf("inbound: consistency check from party %d with the consistency feature off", frame.Sender)
			return
		}
		in.routeConsistencyCheck(frame)
		return
	}

	if in.signKey != nil {
		if err := in.verifyDataFrame(frame); err != nil {
			in.log.Warnf("inbound: rejecting frame from party %d: %v", frame.Sender, err)
			return
		}
	}

	msg := types.Message{Metadata: frame.Metadata(), Payload: frame.Payload}

	if frame.Kind.NeedsCheck() && in.checker != nil {
		in.routeDataCheck(frame)
	}

	in.buf.Received(msg)
}

// verifyDataFrame checks a data frame's signature against its sender's
// verification key, per §4.2/§8 property 4 (tampered payload rejected)
// and property 6 (unknown sender rejected) — every data frame is
// checked here, not only the ones the consistency checker also tracks.
func (in *Inbound) verifyDataFrame(frame *wire.Frame) error {
	pub, err := in.keys.Lookup(frame.Sender)
	if err != nil {
		return err
	}
	digest := signing.DigestPayload(frame.Payload)
	if !wire.Verify(frame, digest, pub) {
		return types.NewError(types.ErrKindSignatureVerificationFailed, "data frame signature verification failed")
	}
	return nil
}

func (in *Inbound) routeConsistencyCheck(frame *wire.Frame) {
	if len(frame.Payload) < 2+types.HashSize+types.SignatureSize {
		in.log.Warnf("inbound: truncated consistency-check payload from party %d", frame.Sender)
		return
	}
	originalSender := types.PartyID(binary.LittleEndian.Uint16(frame.Payload[0:2]))
	var hash types.Hash
	copy(hash[:], frame.Payload[2:2+types.HashSize])
	var sig types.Signature
	copy(sig[:], frame.Payload[2+types.HashSize:2+types.HashSize+types.SignatureSize])

	dataKind := types.KindBroadcast
	if frame.Kind == types.KindConsistencyCheckAllGather {
		dataKind = types.KindAllGather
	}

	key := consistency.CheckKey{
		DataKind: dataKind,
		Datatype: frame.Datatype,
		Sender:   originalSender,
		ID:       frame.ID,
	}
	in.checker.ReceivedCheck(consistency.CheckMessage{
		Key:  key,
		From: frame.Sender,
		Attestation: consistency.Attestation{Hash: hash, Signature: sig},
	})
}

func (in *Inbound) routeDataCheck(frame *wire.Frame) {
	hash := signing.DigestPayload(frame.Payload)
	key := consistency.CheckKey{
		DataKind: frame.Kind,
		Datatype: frame.Datatype,
		Sender:   frame.Sender,
		ID:       frame.ID,
	}
	sig := consistency.Sign(in.signKey, key, hash)
	in.checker.ReceivedData(consistency.CheckMessage{
		Key:  key,
		From: in.localID,
		Attestation: consistency.Attestation{Hash: hash, Signature: sig},
	})
}
