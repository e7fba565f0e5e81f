package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jabolina/hmpc/pkg/hmpc/types"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "hmpc.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoadParsesScalarAndStructParties(t *testing.T) {
	path := writeConfig(t, `
parties:
  1: "alpha"
  2:
    name: "beta"
    port: 6001
port: 5000
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	alpha, ok := cfg.Roster.Lookup(types.PartyID(1))
	require.True(t, ok)
	require.Equal(t, "alpha", alpha.Host)
	require.Equal(t, uint16(5000), alpha.Port)

	beta, ok := cfg.Roster.Lookup(types.PartyID(2))
	require.True(t, ok)
	require.Equal(t, "beta", beta.Name)
	require.Equal(t, uint16(6001), beta.Port)
}

func TestLoadParsesHostPortScalar(t *testing.T) {
	path := writeConfig(t, `
parties:
  1: "gamma:7000"
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	gamma, ok := cfg.Roster.Lookup(types.PartyID(1))
	require.True(t, ok)
	require.Equal(t, "gamma", gamma.Host)
	require.Equal(t, uint16(7000), gamma.Port)
}

func TestLoadDefaultsKeyMaterialDirectories(t *testing.T) {
	path := writeConfig(t, `
parties:
  1: "alpha"
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	dir := filepath.Dir(path)
	require.Equal(t, filepath.Join(dir, ".mpc", "cert"), cfg.Directories.CertDir)
	require.Equal(t, filepath.Join(dir, ".mpc", "sign-keys"), cfg.Directories.SignKeysDir)
}

func TestLoadHonorsExplicitDirectories(t *testing.T) {
	path := writeConfig(t, `
parties:
  1: "alpha"
cert_dir: "/tmp/custom-cert"
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "/tmp/custom-cert", cfg.Directories.CertDir)
}

func TestLoadParsesSessionSource(t *testing.T) {
	path := writeConfig(t, `
parties:
  1: "alpha"
session:
  string: "run-label"
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "run-label", cfg.Session.String)
}

func TestLoadRejectsMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	require.Equal(t, types.ErrKindMissingConfigFile, types.KindOf(err))
}

func TestLoadRejectsUnparseableYAML(t *testing.T) {
	path := writeConfig(t, "parties: [this is not a map")
	_, err := Load(path)
	require.Error(t, err)
	require.Equal(t, types.ErrKindUnparseableConfig, types.KindOf(err))
}

func TestKeyPathsNamesPerParty(t *testing.T) {
	d := Directories{CertDir: "/c", CertKeysDir: "/ck", SignVerifyDir: "/sv", SignKeysDir: "/sk"}
	cert, certKey, signVerify, signKey := d.KeyPaths(types.PartyID(3))
	require.Equal(t, "/c/3.x509.cert.der", cert)
	require.Equal(t, "/ck/3.cert-private.key.der", certKey)
	require.Equal(t, "/sv/3.ed25519-public.key.bin", signVerify)
	require.Equal(t, "/sk/3.ed25519-private.key.der", signKey)
}

func TestResolvePathPrefersEnv(t *testing.T) {
	t.Setenv(EnvConfigPath, "/from/env.yaml")
	require.Equal(t, "/from/env.yaml", ResolvePath("/explicit.yaml"))
}

func TestResolvePathFallsBackToExplicit(t *testing.T) {
	t.Setenv(EnvConfigPath, "")
	require.Equal(t, "/explicit.yaml", ResolvePath("/explicit.yaml"))
}
