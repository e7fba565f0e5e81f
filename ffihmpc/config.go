//go:build cgo

package ffihmpc

/*
#include <stdint.h>
*/
import "C"

import (
	"crypto/ed25519"
	"os"

	"github.com/jabolina/hmpc/pkg/hmpc/config"
	"github.com/jabolina/hmpc/pkg/hmpc/types"
)

// loadedConfig is what hmpc_config_load validates eagerly, so a
// misconfigured path/id pair fails at load time rather than at the
// first collective call: the resolved config path (handed to
// hmpc.Start to build the real Runtime) and the local party id.
type loadedConfig struct {
	path    string
	localID types.PartyID
}

// hmpc_config_load parses the YAML config at path and confirms the
// local party's Ed25519 signing key exists and is the right size,
// returning an opaque ConfigHandle. A zero return is invalidHandle;
// detail is written through code.
//
//export hmpc_config_load
func hmpc_config_load(path *C.char, localID C.uint16_t, code *C.uint8_t) C.int64_t {
	if path == nil {
		writeCode(code, ErrInvalidPointer)
		return C.int64_t(invalidHandle)
	}
	goPath := C.GoString(path)

	cfg, err := config.Load(goPath)
	if err != nil {
		writeCode(code, codeFromError(err))
		return C.int64_t(invalidHandle)
	}

	id := types.PartyID(localID)
	_, _, _, signKeyPath := cfg.Directories.KeyPaths(id)
	raw, err := os.ReadFile(signKeyPath)
	if err != nil {
		writeCode(code, ErrMissingCertificate)
		return C.int64_t(invalidHandle)
	}
	if len(raw) != ed25519.PrivateKeySize {
		writeCode(code, ErrMissingCertificate)
		return C.int64_t(invalidHandle)
	}

	lc := &loadedConfig{path: goPath, localID: id}
	writeCode(code, Ok)
	return C.int64_t(configHandles.put(lc))
}

// hmpc_config_free releases a ConfigHandle. Freeing an unknown handle
// is a no-op (idempotent, matching the original's double-free safety).
//
//export hmpc_config_free
func hmpc_config_free(handle C.int64_t) {
	configHandles.remove(Handle(handle))
}

func writeCode(code *C.uint8_t, c ErrorCode) {
	if code != nil {
		*code = C.uint8_t(c)
	}
}
