package server

import (
	"fmt"
	"net/http"
	"time"
)

// Wire codes for every way a request can fail authentication. These are
// stable identifiers: clients match on them, so renaming one is a breaking
// protocol change.
const (
	CodeAPIKeyMissing           = "API_KEY_MISSING"
	CodeAPIKeyUnrecognized      = "API_KEY_UNRECOGNIZED"
	CodeSignatureHeaderMissing  = "SIGNATURE_HEADER_MISSING"
	CodeSignatureHeaderInvalid  = "SIGNATURE_HEADER_INVALID"
	CodeDateHeaderMissing       = "DATE_HEADER_MISSING"
	CodeDateHeaderInvalid       = "DATE_HEADER_INVALID"
	CodeHMACAlgorithmInvalid    = "HMAC_ALGORITHM_INVALID"
	CodeSignatureInvalid        = "SIGNATURE_INVALID"
	CodeBodyTooLarge            = "BODY_TOO_LARGE"
	CodeInternalSecretDiscovery = "INTERNAL_ERROR_SECRET_DISCOVERY"
	CodeInternalSecretTimeout   = "INTERNAL_ERROR_SECRET_TIMEOUT"
)

// Error is a terminal authentication failure. Code is one of the wire codes
// above, Message is a human-oriented explanation, Time carries the server
// clock when the failure is a timestamp rejection so clients can diagnose
// their drift.
type Error struct {
	Code    string
	Message string
	Time    time.Time
}

func (e *Error) Error() string {
	return fmt.Sprintf("%v: %v", e.Code, e.Message)
}

// Status maps the failure to the HTTP response code a host should send.
func (e *Error) Status() int {
	switch e.Code {
	case CodeBodyTooLarge:
		return http.StatusRequestEntityTooLarge
	case CodeInternalSecretDiscovery, CodeInternalSecretTimeout:
		return http.StatusInternalServerError
	default:
		return http.StatusUnauthorized
	}
}

func newError(code, message string) *Error {
	return &Error{Code: code, Message: message}
}
