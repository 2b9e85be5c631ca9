package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jessety/simple-hmac-auth/sign"
)

// Resolver maps an API key to its shared secret. found reports whether the
// key exists at all; err is reserved for backend failures (a lost database,
// a broken script) and is surfaced to the caller as an internal error, never
// as "unrecognized key".
//
// The context carries the lookup deadline; implementations that block
// should honor it.
type Resolver interface {
	ResolveSecret(ctx context.Context, apiKey string) (secret string, found bool, err error)
}

// ResolverFunc adapts a plain function to the Resolver interface.
type ResolverFunc func(ctx context.Context, apiKey string) (string, bool, error)

func (f ResolverFunc) ResolveSecret(ctx context.Context, apiKey string) (string, bool, error) {
	return f(ctx, apiKey)
}

// Config tunes a Service. The zero value is usable; zero fields fall back
// to the defaults below. The value is copied by New and never mutated
// afterwards.
type Config struct {
	// SecretTimeout bounds a single Resolver call. Default 10s.
	SecretTimeout time.Duration

	// Skew is how far in the past a request's date header may lie before it
	// is rejected as a replay. Future-dated requests are deliberately not
	// rejected; only age is checked. Default 60s.
	Skew time.Duration

	// MaxBodyBytes caps how much of the body Authenticate is willing to
	// read when it drains the body itself. Default 1 MiB.
	MaxBodyBytes int64

	// OnError lets the middleware host replace the default JSON 401/413/500
	// responses.
	OnError ErrorHandler
}

const (
	defaultSecretTimeout = 10 * time.Second
	defaultSkew          = time.Minute
	defaultMaxBodyBytes  = 1 << 20
)

// Result describes a successfully authenticated request.
type Result struct {
	APIKey    string
	Secret    string
	Signature string
}

// Service verifies inbound requests. It holds no per-request state and is
// safe for concurrent use.
type Service struct {
	keys   Resolver
	config Config
	now    func() time.Time
}

// New builds a Service around the given key resolver.
func New(keys Resolver, config Config) *Service {
	if config.SecretTimeout <= 0 {
		config.SecretTimeout = defaultSecretTimeout
	}
	if config.Skew <= 0 {
		config.Skew = defaultSkew
	}
	if config.MaxBodyBytes <= 0 {
		config.MaxBodyBytes = defaultMaxBodyBytes
	}
	return &Service{keys: keys, config: config, now: time.Now}
}

// Authenticate drains the request body (bounded by Config.MaxBodyBytes),
// leaves a replacement reader on r.Body for downstream handlers, and
// validates the request. See AuthenticateBody for the validation rules.
func (s *Service) Authenticate(ctx context.Context, r *http.Request) (*Result, error) {
	var body []byte
	if r.Body != nil {
		var err error
		body, err = io.ReadAll(io.LimitReader(r.Body, s.config.MaxBodyBytes+1))
		r.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("server: unable to read request body, cause %w", err)
		}
		if int64(len(body)) > s.config.MaxBodyBytes {
			return nil, newError(CodeBodyTooLarge,
				fmt.Sprintf("Request body exceeds the %v byte limit", s.config.MaxBodyBytes))
		}
		r.Body = io.NopCloser(bytes.NewReader(body))
	}
	return s.AuthenticateBody(ctx, r, body)
}

// AuthenticateBody validates a request whose body the caller already holds.
// The checks run strictly in order and stop at the first failure:
// API key extraction, secret resolution, required headers, timestamp
// freshness, signature header shape, signature comparison. Every failure is
// a *Error carrying one of the wire codes.
//
// On success the returned Result carries the key, secret and signature; no
// Result is ever returned alongside an error.
func (s *Service) AuthenticateBody(ctx context.Context, r *http.Request, body []byte) (*Result, error) {
	apiKey := apiKeyOf(r)
	if apiKey == "" {
		return nil, newError(CodeAPIKeyMissing,
			"Missing API key. Include one in an 'authorization' header or an 'apiKey' query parameter.")
	}

	secret, err := s.resolveSecret(ctx, apiKey)
	if err != nil {
		return nil, err
	}

	signature := r.Header.Get("signature")
	if signature == "" {
		return nil, newError(CodeSignatureHeaderMissing, "Missing 'signature' header")
	}
	date := r.Header.Get("date")
	if date == "" {
		return nil, newError(CodeDateHeaderMissing, "Missing 'date' header")
	}

	when, ok := parseDate(date)
	now := s.now()
	if !ok || now.Sub(when) > s.config.Skew {
		return nil, &Error{
			Code:    CodeDateHeaderInvalid,
			Message: fmt.Sprintf("Date header is not within %v of the server time", s.config.Skew),
			Time:    now,
		}
	}

	tokens := strings.Fields(signature)
	if len(tokens) < 3 || tokens[0] != sign.Protocol {
		return nil, newError(CodeSignatureHeaderInvalid,
			"Signature header must be formatted as '"+sign.Protocol+" <algorithm> <signature>'")
	}
	algorithm := sign.Algorithm(tokens[1])
	if !algorithm.Valid() {
		return nil, newError(CodeHMACAlgorithmInvalid,
			fmt.Sprintf("Unsupported HMAC algorithm %q", tokens[1]))
	}

	canonical := sign.Canonical(r.Method, r.URL.Path, sign.CanonicalQuery(r.URL.RawQuery), r.Header, body)
	expected, err := sign.Sign(canonical, secret, algorithm)
	if err != nil {
		return nil, fmt.Errorf("server: unable to sign canonical request, cause %w", err)
	}
	if !sign.Equal(expected, tokens[2]) {
		return nil, newError(CodeSignatureInvalid, "Signature does not match")
	}

	return &Result{APIKey: apiKey, Secret: secret, Signature: tokens[2]}, nil
}

// resolveSecret races the resolver against the configured timeout. A result
// that arrives after the timeout is discarded; the channel is buffered so
// the lookup goroutine never leaks.
func (s *Service) resolveSecret(ctx context.Context, apiKey string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.SecretTimeout)
	defer cancel()

	type outcome struct {
		secret string
		found  bool
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		secret, found, err := s.keys.ResolveSecret(ctx, apiKey)
		done <- outcome{secret, found, err}
	}()

	select {
	case out := <-done:
		switch {
		case out.err != nil:
			var typed *Error
			if errors.As(out.err, &typed) {
				// The resolver chose its own wire code, keep it.
				return "", typed
			}
			return "", newError(CodeInternalSecretDiscovery,
				fmt.Sprintf("Secret lookup failed: %v", out.err))
		case !out.found:
			return "", newError(CodeAPIKeyUnrecognized, "Unrecognized API key")
		}
		return out.secret, nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", newError(CodeInternalSecretTimeout,
				fmt.Sprintf("Secret lookup did not complete within %v", s.config.SecretTimeout))
		}
		return "", newError(CodeInternalSecretDiscovery,
			fmt.Sprintf("Secret lookup aborted: %v", ctx.Err()))
	}
}

// apiKeyOf prefers the authorization header ("api-key <KEY>", second token)
// and falls back to an apiKey query parameter.
func apiKeyOf(r *http.Request) string {
	if header := r.Header.Get("authorization"); header != "" {
		if tokens := strings.Fields(header); len(tokens) >= 2 {
			return tokens[1]
		}
	}
	return r.URL.Query().Get("apiKey")
}

// parseDate accepts the date formats net/http itself accepts, RFC 1123
// first.
func parseDate(value string) (time.Time, bool) {
	when, err := http.ParseTime(value)
	if err != nil {
		return time.Time{}, false
	}
	return when, true
}
