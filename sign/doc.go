// Package sign holds the pure half of the protocol: turning a request into
// its canonical string and computing the HMAC over it.
//
// Both the client and the server build the exact same five-segment string
//
//	METHOD
//	/path
//	?already-encoded-query
//	covered headers, lowercased, sorted, one key:value per line
//	hex sha256 of the body
//
// and HMAC it under the shared secret. Possession of the secret is proven
// without ever putting it on the wire; any change to the method, path,
// query, covered headers or body changes the canonical string and therefore
// the signature.
//
// Everything in this package is deterministic and side-effect free.
package sign
