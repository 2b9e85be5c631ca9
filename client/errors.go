package client

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// Client-side failure codes. Server-originated codes (see the server
// package) pass through ResponseError.Code unchanged.
const (
	CodeBadInput     = "EBADINPUT"
	CodeTimeout      = "ETIMEOUT"
	CodeUnauthorized = "EUNAUTHORIZED"
	CodeRequest      = "EREQUEST"
)

// Error is a failure that happened before or while talking to the server:
// bad input, a dead connection, an exceeded timeout.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%v: %v", e.Code, e.Message)
}

// ResponseError reconstructs a non-2xx response. The server's payload is
// parsed exactly once: a nested `error` object wins, then the body itself
// as a JSON object, then the raw body as a plain message. Fields carries
// any extra properties of the structured form.
type ResponseError struct {
	Code    string
	Message string
	Status  int
	Fields  map[string]string
}

func (e *ResponseError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%v: %v", e.Code, e.Message)
	}
	return e.Message
}

// Unauthorized reports whether the server rejected the request's
// credentials rather than the request itself.
func (e *ResponseError) Unauthorized() bool {
	return e.Status == http.StatusUnauthorized
}

func newResponseError(status int, body []byte) *ResponseError {
	e := &ResponseError{Status: status}
	if status == http.StatusUnauthorized {
		e.Code = CodeUnauthorized
	} else {
		e.Code = CodeRequest
	}

	var parsed map[string]json.RawMessage
	if err := json.Unmarshal(body, &parsed); err != nil {
		e.Message = string(body)
		return e
	}
	if nested, ok := parsed["error"]; ok {
		var inner map[string]json.RawMessage
		if err := json.Unmarshal(nested, &inner); err == nil {
			parsed = inner
		}
	}

	e.Fields = make(map[string]string, len(parsed))
	for name, raw := range parsed {
		var value string
		if err := json.Unmarshal(raw, &value); err != nil {
			value = string(raw)
		}
		switch name {
		case "code":
			e.Code = value
		case "message":
			e.Message = value
		default:
			e.Fields[name] = value
		}
	}
	if e.Message == "" {
		e.Message = http.StatusText(status)
	}
	return e
}
