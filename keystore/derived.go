package keystore

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"

	"golang.org/x/crypto/argon2"
)

const (
	// RootKeyEnvVar is the default environment variable holding the
	// base64-encoded 32 byte root key for a Derived resolver.
	RootKeyEnvVar = "SIMPLE_HMAC_AUTH_ROOTKEY"
)

type (
	// Key is root key material for deriving per-API-key secrets.
	Key [32]byte

	// Derived computes each key's secret as argon2id(rootKey, apiKey)
	// instead of storing it. The server resolves any key without a
	// database; provisioning a client is printing the derived secret for
	// its key (see DeriveSecret). Revocation requires rotating the root
	// key, so this trades management flexibility for zero storage.
	Derived struct {
		key Key
	}
)

func (k *Key) Zero() {
	for i := range k {
		k[i] = 0
	}
}

// KeyFromEnv reads the root key from varname and clears the variable so
// the key does not outlive startup in the process environment. getfn and
// setfn default to os.Getenv and os.Setenv.
func KeyFromEnv(varname string, getfn func(string) string, setfn func(string, string) error) (Key, error) {
	if getfn == nil {
		getfn = os.Getenv
	}
	if setfn == nil {
		setfn = os.Setenv
	}
	val := getfn(varname)
	setfn(varname, "")
	var key Key
	sz, err := base64.StdEncoding.Decode(key[:], []byte(val))
	if err != nil {
		return Key{}, fmt.Errorf("keystore: cannot decode string to valid key, cause %v", err)
	} else if sz != len(key) {
		return Key{}, fmt.Errorf("keystore: decoded key too short got %v expecting %v bytes", sz, len(key))
	}
	return key, nil
}

// NewDerived builds a resolver around the given root key.
func NewDerived(key Key) *Derived {
	return &Derived{key: key}
}

// ResolveSecret derives the secret for apiKey. Every key "exists" under
// this scheme.
func (d *Derived) ResolveSecret(_ context.Context, apiKey string) (string, bool, error) {
	return d.DeriveSecret(apiKey), true, nil
}

// DeriveSecret computes the shared secret for an API key. Hand the result
// to the client owning that key.
func (d *Derived) DeriveSecret(apiKey string) string {
	// 3 passes over 64 MB, the usual argon2id interactive parameters.
	buf := argon2.IDKey(d.key[:], []byte(apiKey), 3, 64*1024, 2, 32)
	return base64.RawStdEncoding.EncodeToString(buf)
}
