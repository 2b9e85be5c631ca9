package client

import (
	"bytes"
	"io"
	"net/http"
	"strconv"

	"github.com/jessety/simple-hmac-auth/sign"
)

// Do signs a request the caller already built and dispatches it. The
// request's URL, method, headers and body are taken as-is; authorization,
// date and signature headers are attached. Useful when the high-level
// Request API is too narrow, e.g. for streaming responses.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	var body []byte
	if req.Body != nil {
		var err error
		body, err = io.ReadAll(req.Body)
		req.Body.Close()
		if err != nil {
			return nil, &Error{Code: CodeBadInput, Message: err.Error()}
		}
		req.Body = io.NopCloser(bytes.NewReader(body))
	}

	req.Header.Set("Authorization", sign.Scheme+" "+c.config.APIKey)
	req.Header.Set(c.config.DateHeader, c.now().UTC().Format(http.TimeFormat))
	if len(body) > 0 && req.Header.Get("Content-Length") == "" {
		req.Header.Set("Content-Length", strconv.Itoa(len(body)))
	}

	if c.config.Secret != "" {
		canonical := sign.Canonical(req.Method, req.URL.Path, sign.CanonicalQuery(req.URL.RawQuery), req.Header, body)
		digest, err := sign.Sign(canonical, c.config.Secret, c.config.Algorithm)
		if err != nil {
			return nil, &Error{Code: CodeBadInput, Message: err.Error()}
		}
		req.Header.Set("Signature", sign.Header(c.config.Algorithm, digest))
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, transportError(err)
	}
	return resp, nil
}
