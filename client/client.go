package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/jessety/simple-hmac-auth/sign"
)

// Config describes where and as whom a Client talks. The value is copied
// by New and never mutated afterwards; zero fields fall back to the
// defaults below.
type Config struct {
	// Host and Port locate the server. Host is required.
	Host string
	Port int

	// Secure selects https. Off by default, which is only sane against a
	// local or test server: the scheme relies on HTTPS for confidentiality.
	Secure bool

	// APIKey identifies the caller. Required.
	APIKey string

	// Secret signs requests. When empty the client runs unsigned: no
	// signature header is attached, for endpoints that only identify
	// callers without authenticating them.
	Secret string

	// Algorithm selects the HMAC digest. Default sha256.
	Algorithm sign.Algorithm

	// Timeout bounds the whole request, connection included. Default 7.5s.
	Timeout time.Duration

	// DateHeader is the header the timestamp is written to, for deployments
	// where an intermediary rewrites `date`. Default "date". Note that only
	// `date` itself is covered by the signature.
	DateHeader string

	// Headers are sent with every request. Call-specific headers win on
	// collision.
	Headers http.Header
}

const (
	defaultTimeout   = 7500 * time.Millisecond
	defaultAlgorithm = sign.SHA256
)

// Call describes a single request.
type Call struct {
	Method string
	Path   string

	// Query values are serialized per key: strings, bools and numbers
	// directly, everything else as JSON. Keys are sorted so the encoded
	// form is deterministic.
	Query map[string]interface{}

	// Body: a string or []byte passes through as-is, anything else is
	// JSON-serialized and content-type defaults to application/json.
	Body interface{}

	Headers http.Header
}

// Client sends signed requests. Safe for concurrent use.
type Client struct {
	config Config
	http   *http.Client
	now    func() time.Time
}

// New validates the config and builds a Client.
func New(config Config) (*Client, error) {
	if config.Host == "" {
		return nil, &Error{Code: CodeBadInput, Message: "Host is required"}
	}
	if config.APIKey == "" {
		return nil, &Error{Code: CodeBadInput, Message: "APIKey is required"}
	}
	if config.Algorithm == "" {
		config.Algorithm = defaultAlgorithm
	}
	if !config.Algorithm.Valid() {
		return nil, &Error{Code: CodeBadInput,
			Message: fmt.Sprintf("Unsupported HMAC algorithm %q", config.Algorithm)}
	}
	if config.Timeout <= 0 {
		config.Timeout = defaultTimeout
	}
	if config.DateHeader == "" {
		config.DateHeader = "date"
	}
	if config.Port == 0 {
		if config.Secure {
			config.Port = 443
		} else {
			config.Port = 80
		}
	}
	return &Client{
		config: config,
		http:   &http.Client{Timeout: config.Timeout},
		now:    time.Now,
	}, nil
}

// Request builds, signs and dispatches a call, returning the response body.
// Failures before the wire are *Error with EBADINPUT, timeouts ETIMEOUT,
// non-2xx responses *ResponseError.
func (c *Client) Request(ctx context.Context, call Call) ([]byte, error) {
	if call.Method == "" || call.Path == "" {
		return nil, &Error{Code: CodeBadInput, Message: "Method and Path are required"}
	}

	query, err := encodeQuery(call.Query)
	if err != nil {
		return nil, err
	}
	body, contentType, err := encodeBody(call.Body)
	if err != nil {
		return nil, err
	}

	// instance defaults first, call headers win on collision; keys are
	// canonicalized so the two sources cannot shadow each other by casing
	headers := make(http.Header, len(c.config.Headers)+len(call.Headers)+4)
	for name, values := range c.config.Headers {
		headers[http.CanonicalHeaderKey(name)] = values
	}
	for name, values := range call.Headers {
		headers[http.CanonicalHeaderKey(name)] = values
	}
	headers.Set("Authorization", sign.Scheme+" "+c.config.APIKey)
	headers.Set(c.config.DateHeader, c.now().UTC().Format(http.TimeFormat))
	if len(body) > 0 {
		headers.Set("Content-Length", strconv.Itoa(len(body)))
		if headers.Get("Content-Type") == "" && contentType != "" {
			headers.Set("Content-Type", contentType)
		}
	}

	if c.config.Secret != "" {
		canonical := sign.Canonical(call.Method, call.Path, sign.CanonicalQuery(query), headers, body)
		digest, err := sign.Sign(canonical, c.config.Secret, c.config.Algorithm)
		if err != nil {
			return nil, &Error{Code: CodeBadInput, Message: err.Error()}
		}
		headers.Set("Signature", sign.Header(c.config.Algorithm, digest))
	}

	target := url.URL{
		Scheme:   "http",
		Host:     fmt.Sprintf("%v:%v", c.config.Host, c.config.Port),
		Path:     call.Path,
		RawQuery: query,
	}
	if c.config.Secure {
		target.Scheme = "https"
	}

	req, err := http.NewRequestWithContext(ctx, call.Method, target.String(), bytes.NewReader(body))
	if err != nil {
		return nil, &Error{Code: CodeBadInput, Message: err.Error()}
	}
	req.Header = headers

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, transportError(err)
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportError(err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, newResponseError(resp.StatusCode, respBody)
	}
	return respBody, nil
}

func transportError(err error) error {
	var netErr interface{ Timeout() bool }
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &Error{Code: CodeTimeout, Message: err.Error()}
	}
	return &Error{Code: CodeRequest, Message: err.Error()}
}

// encodeQuery serializes the query map into its on-the-wire form: keys
// sorted, values stringified (JSON for anything non-primitive), both sides
// percent-encoded. The same string is used for the URL and the canonical
// request, re-encoding on either side would break the signature.
func encodeQuery(query map[string]interface{}) (string, error) {
	if len(query) == 0 {
		return "", nil
	}
	keys := make([]string, 0, len(query))
	for key := range query {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var b bytes.Buffer
	for i, key := range keys {
		value, err := stringifyQueryValue(query[key])
		if err != nil {
			return "", &Error{Code: CodeBadInput,
				Message: fmt.Sprintf("Unable to serialize query parameter %q: %v", key, err)}
		}
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(key))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(value))
	}
	return b.String(), nil
}

func stringifyQueryValue(value interface{}) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case bool:
		return strconv.FormatBool(v), nil
	case int:
		return strconv.Itoa(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	default:
		blob, err := json.Marshal(v)
		if err != nil {
			return "", err
		}
		return string(blob), nil
	}
}

func encodeBody(body interface{}) (data []byte, contentType string, err error) {
	switch v := body.(type) {
	case nil:
		return nil, "", nil
	case []byte:
		return v, "", nil
	case string:
		return []byte(v), "", nil
	default:
		blob, err := json.Marshal(v)
		if err != nil {
			return nil, "", &Error{Code: CodeBadInput,
				Message: fmt.Sprintf("Unable to serialize request body: %v", err)}
		}
		return blob, "application/json", nil
	}
}
