// Package client sends requests signed for a simple-hmac-auth server.
//
// A Client is bound to one server and one API key. Each call serializes the
// query and body deterministically, timestamps the request, canonicalizes
// it the same way the server will, and attaches the HMAC signature header.
// A client built without a secret sends the same requests unsigned.
package client
