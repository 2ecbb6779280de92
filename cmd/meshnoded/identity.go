package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/creditmesh/meshnode/ccrypto"
)

const identityFilename = "identity.key"

// loadOrCreateIdentity reads dataDir/identity.key (a hex-encoded secp256k1
// scalar) or, the first time meshnoded runs against a fresh data directory,
// generates one and writes it out -- standing in for the out-of-scope
// external identity-provisioning service spec.md assumes.
func loadOrCreateIdentity(dataDir string) (*ccrypto.PrivateKey, error) {
	path := filepath.Join(dataDir, identityFilename)

	raw, err := os.ReadFile(path)
	if err == nil {
		b, decErr := hex.DecodeString(string(raw))
		if decErr != nil {
			return nil, fmt.Errorf("malformed identity file %s: %w", path, decErr)
		}
		return ccrypto.PrivateKeyFromBytes(b)
	}
	if !os.IsNotExist(err) {
		return nil, err
	}

	priv, err := ccrypto.NewPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("generate identity: %w", err)
	}
	if err := os.WriteFile(path, []byte(hex.EncodeToString(priv.Bytes())), 0600); err != nil {
		return nil, fmt.Errorf("write identity file %s: %w", path, err)
	}
	return priv, nil
}
