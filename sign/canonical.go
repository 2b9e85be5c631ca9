package sign

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"sort"
	"strings"
)

// Protocol is the literal that identifies this signature scheme on the wire.
// It is the first token of the `signature` header.
const Protocol = "simple-hmac-auth"

// Scheme is the authorization scheme, as in `authorization: api-key <KEY>`.
const Scheme = "api-key"

// signedHeaders is the fixed set of headers covered by a signature.
// Anything outside this set must not influence the canonical string,
// otherwise proxies that inject headers would break verification.
var signedHeaders = map[string]struct{}{
	"authorization":  {},
	"content-length": {},
	"content-type":   {},
	"date":           {},
}

// Canonical builds the deterministic representation of a request that both
// sides sign: method, path, query, covered headers and a digest of the body,
// joined by newlines.
//
// query must be the exact encoded query as it appears on the wire, including
// the leading '?', or an empty string. Callers must never re-serialize a
// parsed query back into a string, the encoding round-trip is not stable
// across implementations. CanonicalQuery builds the segment from a raw query.
//
// Two requests that are logically identical canonicalize to byte-identical
// strings regardless of header casing or insertion order.
func Canonical(method, path, query string, headers http.Header, body []byte) string {
	covered := make(map[string]string, len(signedHeaders))
	for name, values := range headers {
		if len(values) == 0 {
			continue
		}
		name = strings.ToLower(name)
		if _, ok := signedHeaders[name]; !ok {
			continue
		}
		value := strings.TrimSpace(values[0])
		if name == "content-length" && value == "0" {
			// A zero length carries no more information than an absent
			// body, and clients without one never send the header.
			continue
		}
		covered[name] = value
	}

	names := make([]string, 0, len(covered))
	for name := range covered {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(strings.ToUpper(method))
	b.WriteByte('\n')
	b.WriteString(path)
	b.WriteByte('\n')
	b.WriteString(query)
	b.WriteByte('\n')
	for i, name := range names {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(name)
		b.WriteByte(':')
		b.WriteString(covered[name])
	}
	b.WriteByte('\n')
	b.WriteString(PayloadHash(body))
	return b.String()
}

// CanonicalQuery turns a raw (already encoded) query string into the
// canonical query segment: empty stays empty, anything else gains the
// leading '?' it has on the wire.
func CanonicalQuery(rawQuery string) string {
	if rawQuery == "" {
		return ""
	}
	return "?" + rawQuery
}

// PayloadHash returns the lowercase hex SHA-256 digest of the body.
// A nil or empty body hashes to the digest of the empty string.
func PayloadHash(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}
