package sign

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
)

// ErrUnsupportedAlgorithm is returned by Sign for any algorithm token
// outside the supported set.
var ErrUnsupportedAlgorithm = errors.New("sign: unsupported HMAC algorithm")

// Algorithm identifies the HMAC digest used for a signature.
type Algorithm string

const (
	SHA1   Algorithm = "sha1"
	SHA256 Algorithm = "sha256"
	SHA512 Algorithm = "sha512"
)

// digests maps every supported algorithm token to its hash constructor.
// The set is closed, anything else must be rejected before signing.
var digests = map[Algorithm]func() hash.Hash{
	SHA1:   sha1.New,
	SHA256: sha256.New,
	SHA512: sha512.New,
}

// Valid reports whether a is one of the supported algorithm tokens.
func (a Algorithm) Valid() bool {
	_, ok := digests[a]
	return ok
}

func (a Algorithm) String() string { return string(a) }

// Sign computes the HMAC of the canonical string under the shared secret
// and returns it as lowercase hex. It fails only for an unsupported
// algorithm token.
func Sign(canonical, secret string, algorithm Algorithm) (string, error) {
	digest, ok := digests[algorithm]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, algorithm)
	}
	mac := hmac.New(digest, []byte(secret))
	mac.Write([]byte(canonical))
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// Header renders the `signature` header value for a computed digest.
func Header(algorithm Algorithm, hexDigest string) string {
	return Protocol + " " + string(algorithm) + " " + hexDigest
}

// Equal compares two hex digests in constant time.
func Equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
