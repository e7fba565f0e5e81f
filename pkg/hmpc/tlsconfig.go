package hmpc

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"

	"github.com/jabolina/hmpc/pkg/hmpc/config"
	"github.com/jabolina/hmpc/pkg/hmpc/types"
)

// tlsMaterial loads the local party's certificate/key pair and every
// roster member's self-signed certificate, trusted directly as its own
// anchor — the roster is closed and known in advance, so there is no
// separate CA (§3: certificate/key management is "interfaces only",
// out of scope for this engine; this is the minimal loader the
// interfaces need).
type tlsMaterial struct {
	localCert tls.Certificate
	trust     map[types.PartyID]*x509.Certificate
}

func loadTLSMaterial(dirs config.Directories, roster *types.Roster, localID types.PartyID) (*tlsMaterial, error) {
	certPath, keyPath, _, _ := dirs.KeyPaths(localID)
	certDER, err := os.ReadFile(certPath)
	if err != nil {
		return nil, types.WrapError(types.ErrKindMissingCertificate, "reading local certificate", err)
	}
	keyDER, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, types.WrapError(types.ErrKindMissingCertificate, "reading local certificate key", err)
	}
	if _, err := x509.ParseCertificate(certDER); err != nil {
		return nil, types.WrapError(types.ErrKindMissingCertificate, "parsing local certificate", err)
	}
	priv, err := x509.ParsePKCS8PrivateKey(keyDER)
	if err != nil {
		return nil, types.WrapError(types.ErrKindMissingCertificate, "parsing local certificate key", err)
	}

	trust := make(map[types.PartyID]*x509.Certificate, roster.Len())
	for _, id := range roster.IDs() {
		peerCertPath, _, _, _ := dirs.KeyPaths(id)
		der, err := os.ReadFile(peerCertPath)
		if err != nil {
			return nil, types.WrapError(types.ErrKindMissingCertificate, fmt.Sprintf("reading certificate for party %d", id), err)
		}
		peerCert, err := x509.ParseCertificate(der)
		if err != nil {
			return nil, types.WrapError(types.ErrKindMissingCertificate, fmt.Sprintf("parsing certificate for party %d", id), err)
		}
		trust[id] = peerCert
	}

	return &tlsMaterial{
		localCert: tls.Certificate{Certificate: [][]byte{certDER}, PrivateKey: priv},
		trust:     trust,
	}, nil
}

// configFor returns a mutual-TLS tls.Config that presents the local
// certificate and trusts exactly the certificate peer advertised in
// the roster — name-matched against its configured Origin.Name.
func (m *tlsMaterial) configFor(peer types.PartyID, origin types.Origin) (*tls.Config, error) {
	peerCert, ok := m.trust[peer]
	if !ok {
		return nil, types.NewError(types.ErrKindMissingCertificate, "no trusted certificate for peer")
	}
	pool := x509.NewCertPool()
	pool.AddCert(peerCert)
	return &tls.Config{
		Certificates: []tls.Certificate{m.localCert},
		RootCAs:      pool,
		ServerName:   origin.Name,
		NextProtos:   []string{"hmpc"},
	}, nil
}

// serverConfig is the listener-side counterpart: it presents the local
// certificate and trusts every roster member's self-signed certificate
// (mutual auth across a closed group of parties), deferring the actual
// client-certificate trust decision to tls.Config.ClientAuth.
func (m *tlsMaterial) serverConfig() *tls.Config {
	pool := x509.NewCertPool()
	for _, cert := range m.trust {
		pool.AddCert(cert)
	}
	return &tls.Config{
		Certificates: []tls.Certificate{m.localCert},
		ClientCAs:    pool,
		ClientAuth:   tls.RequireAndVerifyClientCert,
		NextProtos:   []string{"hmpc"},
	}
}
