package main

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// certValidity mirrors rcgen's default: a generously long self-signed
// certificate, since there is no CA rotation story for a closed roster
// (§3: certificate management is out of scope for the engine itself).
const certValidity = 10 * 365 * 24 * time.Hour

// createOrCheckCertificate implements the original's create-or-check
// decision table (hmpc-rs/src/bin/cert/mod.rs): generate a fresh pair
// when neither file exists, accept an existing pair as-is, refuse a
// partial pair unless force is set, and warn (when logging at info
// level) before overwriting under force.
func createOrCheckCertificate(certPath, keyPath, name string, force bool, log *logrus.Logger) error {
	_, certErr := os.Stat(certPath)
	_, keyErr := os.Stat(keyPath)
	certExists := certErr == nil
	keyExists := keyErr == nil

	switch {
	case !certExists && !keyExists:
		return writeCertificate(certPath, keyPath, name, log)
	case certExists && keyExists && !force:
		log.Debugf("certificate pair for %q already present, leaving as-is", name)
		return nil
	case certExists != keyExists && !force:
		return fmt.Errorf("certificate (%s) and key (%s) must both exist or both be absent; use --force to regenerate", certPath, keyPath)
	default:
		if certExists {
			log.Infof("overwriting certificate file: %s", certPath)
		}
		if keyExists {
			log.Infof("overwriting key file: %s", keyPath)
		}
		return writeCertificate(certPath, keyPath, name, log)
	}
}

func writeCertificate(certPath, keyPath, name string, log *logrus.Logger) error {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return fmt.Errorf("generating certificate keypair: %w", err)
	}

	serial, err := randomSerial()
	if err != nil {
		return err
	}

	template := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{CommonName: name},
		DNSNames:              []string{name},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(certValidity),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
		BasicConstraintsValid: true,
		IsCA:                  true,
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, pub, priv)
	if err != nil {
		return fmt.Errorf("self-signing certificate: %w", err)
	}
	keyDER, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return fmt.Errorf("marshaling certificate key: %w", err)
	}

	if err := writeFileUnder(certPath, der); err != nil {
		return err
	}
	if err := writeFileUnder(keyPath, keyDER); err != nil {
		return err
	}
	log.Infof("wrote certificate file: %s", certPath)
	log.Infof("wrote key file: %s", keyPath)
	return nil
}

// createOrCheckSigningKeys is the signing-key analogue of
// createOrCheckCertificate (hmpc-rs/src/bin/sign/mod.rs): a raw Ed25519
// keypair, not wrapped in a certificate, used only for message
// attestations (§4.6).
func createOrCheckSigningKeys(verifyPath, signPath string, force bool, log *logrus.Logger) error {
	_, verifyErr := os.Stat(verifyPath)
	_, signErr := os.Stat(signPath)
	verifyExists := verifyErr == nil
	signExists := signErr == nil

	switch {
	case !verifyExists && !signExists:
		return writeSigningKeys(verifyPath, signPath, log)
	case verifyExists && signExists && !force:
		log.Debugf("signing keypair already present at %q", signPath)
		return nil
	case verifyExists != signExists && !force:
		return fmt.Errorf("verification key (%s) and signing key (%s) must both exist or both be absent; use --force to regenerate", verifyPath, signPath)
	default:
		if verifyExists {
			log.Infof("overwriting verification key file: %s", verifyPath)
		}
		if signExists {
			log.Infof("overwriting signing key file: %s", signPath)
		}
		return writeSigningKeys(verifyPath, signPath, log)
	}
}

func writeSigningKeys(verifyPath, signPath string, log *logrus.Logger) error {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return fmt.Errorf("generating signing keypair: %w", err)
	}
	if err := writeFileUnder(verifyPath, pub); err != nil {
		return err
	}
	if err := writeFileUnder(signPath, priv); err != nil {
		return err
	}
	log.Infof("wrote verification key file: %s", verifyPath)
	log.Infof("wrote signing key file: %s", signPath)
	return nil
}

func writeFileUnder(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating directory for %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// randomSerial uses a UUID's bits as the certificate serial number,
// grounded in the pack's broad use of google/uuid for exactly this kind
// of scratch unique-identifier generation.
func randomSerial() (*big.Int, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return nil, fmt.Errorf("generating certificate serial: %w", err)
	}
	raw := id[:]
	return new(big.Int).SetBytes(raw), nil
}
