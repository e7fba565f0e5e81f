// Package config parses the roster/session/key-material configuration
// file of SPEC_FULL.md §6 and resolves the environment-variable
// override precedence.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/jabolina/hmpc/pkg/hmpc/session"
	"github.com/jabolina/hmpc/pkg/hmpc/types"
)

const DefaultPort uint16 = 5000

// Environment variable names, in override precedence order (§6).
const (
	EnvConfigPath   = "HMPC_CONFIG"
	EnvSessionValue = "HMPC_SESSION_VALUE"
	EnvSessionString = "HMPC_SESSION_STRING"
)

// originYAML decodes the three shapes `parties` entries may take:
// a bare host string, a "host:port" string, or a {name, port} mapping.
type originYAML struct {
	scalar string
	Name   string `yaml:"name"`
	Port   uint16 `yaml:"port"`
}

func (o *originYAML) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		return node.Decode(&o.scalar)
	}
	type plain originYAML
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	*o = originYAML(p)
	return nil
}

type sessionYAML struct {
	Value  *uint64 `yaml:"value"`
	Parse  string  `yaml:"parse"`
	String string  `yaml:"string"`
}

type fileYAML struct {
	Parties     map[uint16]originYAML `yaml:"parties"`
	Port        *uint16                `yaml:"port"`
	CertDir     string                 `yaml:"cert_dir"`
	CertKeysDir string                 `yaml:"cert_keys_dir"`
	SignVerifyDir string               `yaml:"sign_verify_dir"`
	SignKeysDir string                 `yaml:"sign_keys_dir"`
	Session     *sessionYAML           `yaml:"session"`
}

// Directories holds the resolved key-material paths (§6's
// "<config-dir>/.mpc/{cert,cert-keys,sign-verify,sign-keys}" defaults).
type Directories struct {
	CertDir       string
	CertKeysDir   string
	SignVerifyDir string
	SignKeysDir   string
}

// Config is the parsed, defaulted configuration.
type Config struct {
	Roster      *types.Roster
	Directories Directories
	Session     session.Source
}

// Load reads and parses the config file at path exactly as given. It
// does not consult HMPC_CONFIG; callers apply that override with
// ResolvePath first.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, types.WrapError(types.ErrKindMissingConfigFile, "reading config file "+path, err)
	}

	var fy fileYAML
	if err := yaml.Unmarshal(raw, &fy); err != nil {
		return nil, types.WrapError(types.ErrKindUnparseableConfig, "parsing config file "+path, err)
	}

	port := DefaultPort
	if fy.Port != nil {
		port = *fy.Port
	}

	entries := make(map[types.PartyID]types.Origin, len(fy.Parties))
	for id, o := range fy.Parties {
		name := o.Name
		host := o.Name
		p := o.Port
		if o.scalar != "" {
			host, p = splitHostPort(o.scalar, port)
			name = host
		}
		if p == 0 {
			p = port
		}
		entries[types.PartyID(id)] = types.Origin{Name: name, Host: host, Port: p}
	}

	baseDir := filepath.Dir(path)
	dirs := Directories{
		CertDir:       defaultDir(fy.CertDir, baseDir, "cert"),
		CertKeysDir:   defaultDir(fy.CertKeysDir, baseDir, "cert-keys"),
		SignVerifyDir: defaultDir(fy.SignVerifyDir, baseDir, "sign-verify"),
		SignKeysDir:   defaultDir(fy.SignKeysDir, baseDir, "sign-keys"),
	}

	var src session.Source
	if fy.Session != nil {
		src = session.Source{Value: fy.Session.Value, Parse: fy.Session.Parse, String: fy.Session.String}
	}

	return &Config{
		Roster:      types.NewRoster(entries),
		Directories: dirs,
		Session:     src,
	}, nil
}

// ResolvePath applies HMPC_CONFIG's override precedence over an
// explicitly-provided path.
func ResolvePath(explicit string) string {
	if v := os.Getenv(EnvConfigPath); v != "" {
		return v
	}
	return explicit
}

func defaultDir(configured, baseDir, leaf string) string {
	if configured != "" {
		return configured
	}
	return filepath.Join(baseDir, ".mpc", leaf)
}

func splitHostPort(s string, fallbackPort uint16) (string, uint16) {
	host, portStr, err := splitLast(s, ':')
	if err != nil {
		return s, fallbackPort
	}
	var port uint16
	if _, err := fmt.Sscanf(portStr, "%d", &port); err != nil || port == 0 {
		return s, fallbackPort
	}
	return host, port
}

func splitLast(s string, sep byte) (string, string, error) {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == sep {
			return s[:i], s[i+1:], nil
		}
	}
	return "", "", fmt.Errorf("separator not found")
}

// KeyPaths returns the file names under the resolved directories for
// party id, per §6 "Key-material file names".
func (d Directories) KeyPaths(id types.PartyID) (certPath, certKeyPath, signVerifyPath, signKeyPath string) {
	certPath = filepath.Join(d.CertDir, fmt.Sprintf("%d.x509.cert.der", id))
	certKeyPath = filepath.Join(d.CertKeysDir, fmt.Sprintf("%d.cert-private.key.der", id))
	signVerifyPath = filepath.Join(d.SignVerifyDir, fmt.Sprintf("%d.ed25519-public.key.bin", id))
	signKeyPath = filepath.Join(d.SignKeysDir, fmt.Sprintf("%d.ed25519-private.key.der", id))
	return
}
