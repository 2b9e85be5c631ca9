// Package server validates signed inbound requests.
//
// A Service recomputes the canonical signature of each request with the
// secret belonging to its API key and rejects anything that does not match,
// is too old, or is malformed. Secrets come from a Resolver the host
// injects; the package ships none of its own (see the keystore package for
// ready-made ones).
//
// The validation is a straight line: extract the API key, resolve its
// secret under a deadline, require the signature and date headers, check
// the timestamp against the replay window, parse the signature header,
// recompute and compare. Each failure is a *Error with a stable wire code
// and ends that request; nothing is retried and nothing is swallowed.
//
// Hosts that serve plain net/http can use Service.Middleware; anything else
// can call Authenticate directly and map *Error.Status themselves.
package server
