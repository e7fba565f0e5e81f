// Package hmpc wires the engine's components — outbound multiplexer,
// inbound dispatcher, message buffer, consistency checker and
// collective planner — into a single running Runtime, the way the
// teacher's NewUnity wires peer, transport, state machine and storage
// into one Unity (pkg/mcast/protocol.go).
package hmpc

import (
	"context"
	"crypto/ed25519"
	"crypto/tls"
	"fmt"
	"os"

	"github.com/jabolina/hmpc/pkg/hmpc/buffer"
	"github.com/jabolina/hmpc/pkg/hmpc/config"
	"github.com/jabolina/hmpc/pkg/hmpc/consistency"
	"github.com/jabolina/hmpc/pkg/hmpc/logging"
	"github.com/jabolina/hmpc/pkg/hmpc/queue"
	"github.com/jabolina/hmpc/pkg/hmpc/session"
	"github.com/jabolina/hmpc/pkg/hmpc/signing"
	"github.com/jabolina/hmpc/pkg/hmpc/transport"
	"github.com/jabolina/hmpc/pkg/hmpc/types"
)

// Options configures Start beyond what the config file carries.
type Options struct {
	ConfigPath         string
	LocalID            types.PartyID
	ConsistencyEnabled bool
	Log                types.Logger // optional; defaults to logging.New()
}

// Runtime is a started engine instance: everything Close needs to shut
// down cleanly, and the Queue a caller drives.
type Runtime struct {
	Queue *queue.Queue

	log      types.Logger
	outbound *transport.Outbound
	inbound  *transport.Inbound
	buf      *buffer.Buffer
	checker  *consistency.Checker
	cancel   context.CancelFunc
}

// Start loads the config file, resolves the local party's key material
// and the session nonce (§6's precedence order), and brings up the
// outbound multiplexer, inbound dispatcher, message buffer, optional
// consistency checker and collective planner.
func Start(ctx context.Context, opts Options) (*Runtime, error) {
	log := opts.Log
	if log == nil {
		log = logging.New()
	}

	path := config.ResolvePath(opts.ConfigPath)
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	sessionID, err := session.Precedence(os.Getenv(config.EnvSessionValue), os.Getenv(config.EnvSessionString), cfg.Session)
	if err != nil {
		return nil, err
	}

	signKey, keys, err := loadKeyMaterial(cfg, opts.LocalID)
	if err != nil {
		return nil, err
	}

	tlsMat, err := loadTLSMaterial(cfg.Directories, cfg.Roster, opts.LocalID)
	if err != nil {
		return nil, err
	}

	localOrigin, ok := cfg.Roster.Lookup(opts.LocalID)
	if !ok {
		return nil, types.NewError(types.ErrKindInvalidCommunicator, "local party id not present in roster")
	}

	runCtx, cancel := context.WithCancel(ctx)

	buf := buffer.New(runCtx, log)

	var checker *consistency.Checker
	var checkOut chan consistency.SendCheckCommand
	if opts.ConsistencyEnabled {
		checkOut = make(chan consistency.SendCheckCommand, 256)
		checker = consistency.New(runCtx, log, opts.LocalID, keys, checkOut)
	}

	outbound := transport.NewOutbound(log, cfg.Roster, transport.QUICDialer, func(peer types.PartyID) (*tls.Config, error) {
		origin, ok := cfg.Roster.Lookup(peer)
		if !ok {
			return nil, types.NewError(types.ErrKindInvalidCommunicator, "peer not in roster")
		}
		return tlsMat.configFor(peer, origin)
	})

	if opts.ConsistencyEnabled {
		go transport.PumpChecks(runCtx, outbound, opts.LocalID, &sessionID, signKey, checkOut)
	}

	listenAddr := fmt.Sprintf(":%d", localOrigin.Port)
	in, err := transport.Listen(runCtx, log, listenAddr, tlsMat.serverConfig(), &sessionID, keys, opts.LocalID, signKey, buf, checker)
	if err != nil {
		cancel()
		return nil, err
	}

	q := queue.New(log, queue.Config{
		LocalID: opts.LocalID,
		Roster:  cfg.Roster,
		Session: &sessionID,
		SignKey: signKey,
		Keys:    keys,
	}, outbound, buf, checker)

	return &Runtime{
		Queue:    q,
		log:      log,
		outbound: outbound,
		inbound:  in,
		buf:      buf,
		checker:  checker,
		cancel:   cancel,
	}, nil
}

func loadKeyMaterial(cfg *config.Config, localID types.PartyID) (ed25519.PrivateKey, *signing.KeyRing, error) {
	_, _, _, signKeyPath := cfg.Directories.KeyPaths(localID)
	rawSignKey, err := os.ReadFile(signKeyPath)
	if err != nil {
		return nil, nil, types.WrapError(types.ErrKindMissingCertificate, "reading local signing key", err)
	}
	if len(rawSignKey) != ed25519.PrivateKeySize {
		return nil, nil, types.NewError(types.ErrKindMissingCertificate, "local signing key has the wrong size")
	}

	keys := signing.NewKeyRing()
	for _, id := range cfg.Roster.IDs() {
		_, _, verifyPath, _ := cfg.Directories.KeyPaths(id)
		raw, err := os.ReadFile(verifyPath)
		if err != nil {
			return nil, nil, types.WrapError(types.ErrKindMissingCertificate, fmt.Sprintf("reading verification key for party %d", id), err)
		}
		if len(raw) != ed25519.PublicKeySize {
			return nil, nil, types.NewError(types.ErrKindMissingCertificate, fmt.Sprintf("verification key for party %d has the wrong size", id))
		}
		keys.Add(id, ed25519.PublicKey(raw))
	}

	return ed25519.PrivateKey(rawSignKey), keys, nil
}

// Close shuts down the inbound dispatcher, lets in-flight sends drain,
// and releases cached outbound connections.
func (r *Runtime) Close() {
	r.cancel()
	if r.inbound != nil {
		_ = r.inbound.Close()
	}
	r.outbound.Wait()
	r.outbound.Close()
	r.buf.Close()
	if r.checker != nil {
		r.checker.Close()
	}
}
