package server

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/jessety/simple-hmac-auth/internal/logutil"
)

type contextKey byte

const resultKey = contextKey(1)

// ErrorHandler writes the response for a failed authentication. err is
// either a *Error with a wire code or an unexpected internal failure.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

// Middleware wraps a handler so that only authenticated requests reach it.
// The request body is drained for verification and replaced, handlers read
// it as usual. On success the Result is stored in the request context, see
// ResultFrom.
func (s *Service) Middleware(next http.Handler) http.Handler {
	onError := s.config.OnError
	if onError == nil {
		onError = writeError
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		log := logutil.GetOrDefault(ctx)
		result, err := s.Authenticate(ctx, r)
		if err != nil {
			log.Warn().
				Err(err).
				Str("key.digest", logutil.KeyDigest(apiKeyOf(r))).
				Str("req.path", r.URL.Path).
				Msg("Request rejected")
			onError(w, r, err)
			return
		}
		ctx = context.WithValue(ctx, resultKey, result)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ResultFrom returns the authentication result the middleware stored for
// this request. ok is false on any request that did not pass verification,
// so handlers cannot observe a half-authenticated state.
func ResultFrom(ctx context.Context) (*Result, bool) {
	result, ok := ctx.Value(resultKey).(*Result)
	return result, ok
}

// Authenticated reports whether the request behind ctx passed verification.
func Authenticated(ctx context.Context) bool {
	_, ok := ResultFrom(ctx)
	return ok
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Time    string `json:"time,omitempty"`
}

// writeError is the default ErrorHandler. It mirrors the shape the client
// package parses: {"error": {"code": ..., "message": ...}}.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	payload := errorPayload{Code: "INTERNAL_ERROR", Message: err.Error()}
	if typed, ok := err.(*Error); ok {
		status = typed.Status()
		payload.Code = typed.Code
		payload.Message = typed.Message
		if !typed.Time.IsZero() {
			payload.Time = typed.Time.UTC().Format(http.TimeFormat)
		}
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]errorPayload{"error": payload})
}
