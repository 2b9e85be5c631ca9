// Package keystore provides ready-made secret resolvers for the server:
// a static map, a SQLite-backed store, a caching decorator, a Lua-scripted
// resolver and an argon2-derived scheme that needs no storage at all.
//
// Each of them satisfies server.Resolver; the verification core itself
// never depends on this package.
package keystore

import "context"

// Resolver is the lookup contract consumed by the server package, restated
// here so decorators can wrap any implementation.
type Resolver interface {
	ResolveSecret(ctx context.Context, apiKey string) (secret string, found bool, err error)
}

// Static is a fixed API key to secret mapping, the simplest possible
// resolver. Useful for tests and single-tenant deployments.
type Static map[string]string

func (s Static) ResolveSecret(_ context.Context, apiKey string) (string, bool, error) {
	secret, ok := s[apiKey]
	return secret, ok, nil
}
