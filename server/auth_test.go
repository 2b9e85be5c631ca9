package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/jessety/simple-hmac-auth/sign"
	"github.com/stretchr/testify/require"
)

const (
	testAPIKey = "SAMPLE_API_KEY"
	testSecret = "SAMPLE_SECRET"
)

func testKeys() Resolver {
	return ResolverFunc(func(_ context.Context, apiKey string) (string, bool, error) {
		if apiKey == testAPIKey {
			return testSecret, true, nil
		}
		return "", false, nil
	})
}

// signedRequest builds a request signed the way a well-behaved client
// would, timestamped at now.
func signedRequest(t *testing.T, now time.Time, method, target, body string) *http.Request {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	r := httptest.NewRequest(method, target, reader)
	r.Header.Set("Authorization", sign.Scheme+" "+testAPIKey)
	r.Header.Set("Date", now.UTC().Format(http.TimeFormat))
	if body != "" {
		r.Header.Set("Content-Length", strconv.Itoa(len(body)))
		r.Header.Set("Content-Type", "application/json")
	}
	canonical := sign.Canonical(method, r.URL.Path, sign.CanonicalQuery(r.URL.RawQuery), r.Header, []byte(body))
	digest, err := sign.Sign(canonical, testSecret, sign.SHA256)
	require.NoError(t, err)
	r.Header.Set("Signature", sign.Header(sign.SHA256, digest))
	return r
}

func frozen(svc *Service, now time.Time) *Service {
	svc.now = func() time.Time { return now }
	return svc
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	var typed *Error
	require.ErrorAs(t, err, &typed)
	require.Equal(t, code, typed.Code)
}

func TestAuthenticateAcceptsSignedRequest(t *testing.T) {
	now := time.Now()
	svc := frozen(New(testKeys(), Config{}), now)
	r := signedRequest(t, now, "POST", "/v1/items/?test=true&yes=affirmative", `{"test":true}`)

	result, err := svc.Authenticate(context.Background(), r)
	require.NoError(t, err)
	require.Equal(t, testAPIKey, result.APIKey)
	require.Equal(t, testSecret, result.Secret)
	require.Equal(t, r.Header.Get("Signature"), sign.Header(sign.SHA256, result.Signature))

	// the body must still be readable downstream
	body, err := io.ReadAll(r.Body)
	require.NoError(t, err)
	require.Equal(t, `{"test":true}`, string(body))
}

func TestAuthenticateRejectsTampering(t *testing.T) {
	now := time.Now()
	tamper := map[string]func(r *http.Request){
		"body":   func(r *http.Request) { r.Body = io.NopCloser(strings.NewReader(`{"test":false}`)) },
		"query":  func(r *http.Request) { r.URL.RawQuery = "test=false" },
		"path":   func(r *http.Request) { r.URL.Path = "/v1/other/" },
		"method": func(r *http.Request) { r.Method = "PUT" },
		"date": func(r *http.Request) {
			r.Header.Set("Date", now.Add(-time.Second).UTC().Format(http.TimeFormat))
		},
	}
	for name, mutate := range tamper {
		t.Run(name, func(t *testing.T) {
			svc := frozen(New(testKeys(), Config{}), now)
			r := signedRequest(t, now, "POST", "/v1/items/?test=true", `{"test":true}`)
			mutate(r)
			_, err := svc.Authenticate(context.Background(), r)
			requireCode(t, err, CodeSignatureInvalid)
		})
	}
}

func TestAuthenticateAPIKeyExtraction(t *testing.T) {
	now := time.Now()
	svc := frozen(New(testKeys(), Config{}), now)

	t.Run("missing", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/v1/items/", nil)
		_, err := svc.Authenticate(context.Background(), r)
		requireCode(t, err, CodeAPIKeyMissing)
	})

	t.Run("query fallback", func(t *testing.T) {
		// No authorization header at all; the key arrives as a query
		// parameter and the request is otherwise fully signed.
		r := httptest.NewRequest("GET", "/v1/items/?apiKey="+testAPIKey, nil)
		r.Header.Set("Date", now.UTC().Format(http.TimeFormat))
		canonical := sign.Canonical("GET", r.URL.Path, sign.CanonicalQuery(r.URL.RawQuery), r.Header, nil)
		digest, err := sign.Sign(canonical, testSecret, sign.SHA256)
		require.NoError(t, err)
		r.Header.Set("Signature", sign.Header(sign.SHA256, digest))

		result, err := svc.Authenticate(context.Background(), r)
		require.NoError(t, err)
		require.Equal(t, testAPIKey, result.APIKey)
	})

	t.Run("unrecognized", func(t *testing.T) {
		r := signedRequest(t, now, "GET", "/v1/items/", "")
		r.Header.Set("Authorization", sign.Scheme+" SOMEONE_ELSE")
		_, err := svc.Authenticate(context.Background(), r)
		requireCode(t, err, CodeAPIKeyUnrecognized)
	})
}

func TestAuthenticateRequiredHeaders(t *testing.T) {
	now := time.Now()
	svc := frozen(New(testKeys(), Config{}), now)

	r := signedRequest(t, now, "GET", "/v1/items/", "")
	r.Header.Del("Signature")
	r.Header.Del("Date")
	_, err := svc.Authenticate(context.Background(), r)
	// signature is checked before date
	requireCode(t, err, CodeSignatureHeaderMissing)

	r = signedRequest(t, now, "GET", "/v1/items/", "")
	r.Header.Del("Date")
	_, err = svc.Authenticate(context.Background(), r)
	requireCode(t, err, CodeDateHeaderMissing)
}

func TestAuthenticateSkewWindow(t *testing.T) {
	now := time.Now()
	skew := time.Minute

	t.Run("just inside", func(t *testing.T) {
		svc := frozen(New(testKeys(), Config{Skew: skew}), now)
		r := signedRequest(t, now.Add(-skew+time.Second), "GET", "/v1/items/", "")
		_, err := svc.Authenticate(context.Background(), r)
		require.NoError(t, err)
	})

	t.Run("just outside", func(t *testing.T) {
		svc := frozen(New(testKeys(), Config{Skew: skew}), now)
		r := signedRequest(t, now.Add(-skew-time.Second), "GET", "/v1/items/", "")
		_, err := svc.Authenticate(context.Background(), r)
		requireCode(t, err, CodeDateHeaderInvalid)

		var typed *Error
		require.ErrorAs(t, err, &typed)
		require.Equal(t, now, typed.Time, "rejection should carry the server clock")
	})

	t.Run("future dated", func(t *testing.T) {
		// Only age is checked; a client ahead of the server passes.
		svc := frozen(New(testKeys(), Config{Skew: skew}), now)
		r := signedRequest(t, now.Add(time.Hour), "GET", "/v1/items/", "")
		_, err := svc.Authenticate(context.Background(), r)
		require.NoError(t, err)
	})

	t.Run("unparseable", func(t *testing.T) {
		svc := frozen(New(testKeys(), Config{Skew: skew}), now)
		r := signedRequest(t, now, "GET", "/v1/items/", "")
		r.Header.Set("Date", "not a timestamp")
		_, err := svc.Authenticate(context.Background(), r)
		requireCode(t, err, CodeDateHeaderInvalid)
	})
}

func TestAuthenticateSignatureHeaderShape(t *testing.T) {
	now := time.Now()
	svc := frozen(New(testKeys(), Config{}), now)
	for _, tc := range []struct {
		name, header, code string
	}{
		{"two tokens", "simple-hmac-auth sha256", CodeSignatureHeaderInvalid},
		{"wrong tag", "other-protocol sha256 deadbeef", CodeSignatureHeaderInvalid},
		{"bad algorithm", "simple-hmac-auth md5 deadbeef", CodeHMACAlgorithmInvalid},
	} {
		t.Run(tc.name, func(t *testing.T) {
			r := signedRequest(t, now, "GET", "/v1/items/", "")
			r.Header.Set("Signature", tc.header)
			_, err := svc.Authenticate(context.Background(), r)
			requireCode(t, err, tc.code)
		})
	}
}

func TestAuthenticateSecretLookupFailures(t *testing.T) {
	now := time.Now()

	t.Run("backend error", func(t *testing.T) {
		keys := ResolverFunc(func(context.Context, string) (string, bool, error) {
			return "", false, errors.New("database on fire")
		})
		svc := frozen(New(keys, Config{}), now)
		r := signedRequest(t, now, "GET", "/v1/items/", "")
		_, err := svc.Authenticate(context.Background(), r)
		requireCode(t, err, CodeInternalSecretDiscovery)
	})

	t.Run("typed backend error keeps its code", func(t *testing.T) {
		keys := ResolverFunc(func(context.Context, string) (string, bool, error) {
			return "", false, &Error{Code: "TENANT_SUSPENDED", Message: "account suspended"}
		})
		svc := frozen(New(keys, Config{}), now)
		r := signedRequest(t, now, "GET", "/v1/items/", "")
		_, err := svc.Authenticate(context.Background(), r)
		requireCode(t, err, "TENANT_SUSPENDED")
	})

	t.Run("timeout", func(t *testing.T) {
		timeout := 50 * time.Millisecond
		keys := ResolverFunc(func(ctx context.Context, _ string) (string, bool, error) {
			<-ctx.Done()
			return "", false, ctx.Err()
		})
		svc := frozen(New(keys, Config{SecretTimeout: timeout}), now)
		r := signedRequest(t, now, "GET", "/v1/items/", "")

		started := time.Now()
		_, err := svc.Authenticate(context.Background(), r)
		elapsed := time.Since(started)
		requireCode(t, err, CodeInternalSecretTimeout)
		require.GreaterOrEqual(t, elapsed, timeout, "should not give up before the timeout")
		require.Less(t, elapsed, timeout+time.Second, "should give up shortly after the timeout")
	})
}

func TestAuthenticateBodyCeiling(t *testing.T) {
	now := time.Now()
	svc := frozen(New(testKeys(), Config{MaxBodyBytes: 8}), now)
	r := signedRequest(t, now, "POST", "/v1/items/", strings.Repeat("x", 9))
	_, err := svc.Authenticate(context.Background(), r)
	requireCode(t, err, CodeBodyTooLarge)
}

func TestAuthenticateBodySupplied(t *testing.T) {
	// The caller already drained the body and hands it over; big request
	// streams never pass through the service twice.
	now := time.Now()
	svc := frozen(New(testKeys(), Config{}), now)
	body := fmt.Sprintf(`{"n":%v}`, 42)
	r := signedRequest(t, now, "POST", "/v1/items/", body)
	r.Body = nil

	result, err := svc.AuthenticateBody(context.Background(), r, []byte(body))
	require.NoError(t, err)
	require.Equal(t, testAPIKey, result.APIKey)
}
