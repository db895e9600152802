// Package signer computes the HMAC-SHA256 request signatures expected by the
// Convert.com REST API.
//
// The signed message is the application id, the expiry timestamp, the full
// request URL and the exact request body, each on its own line. The server
// rejects a signature once its expiry has passed, so every request needs a
// fresh one.
package signer

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"
)

// Window is how long a signature stays valid after it is issued.
const Window = 30 * time.Second

// Scheme prefixes the signature in the Authorization header.
const Scheme = "Convert-HMAC-SHA256"

// Header names carried by every signed request.
const (
	HeaderExpires       = "Expires"
	HeaderApplicationID = "Convert-Application-ID"
	HeaderAuthorization = "Authorization"
)

// Message builds the canonical string that gets signed.
func Message(applicationID string, expires int64, url, body string) string {
	return strings.Join([]string{
		applicationID,
		strconv.FormatInt(expires, 10),
		url,
		body,
	}, "\n")
}

// Sign returns the lowercase hex HMAC-SHA256 of the canonical message keyed
// by secret. body must be the literal payload that will be sent ("" when the
// request has none).
func Sign(applicationID string, expires int64, url, body, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(Message(applicationID, expires, url, body)))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether signature matches the one Sign would produce.
func Verify(applicationID string, expires int64, url, body, secret, signature string) bool {
	expected := Sign(applicationID, expires, url, body, secret)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// Expires returns the unix timestamp a signature issued at now expires at.
func Expires(now time.Time) int64 {
	return now.Add(Window).Unix()
}

// Authorization formats signature as an Authorization header value.
func Authorization(signature string) string {
	return Scheme + " Signature=" + signature
}

// ParseAuthorization extracts the hex signature from an Authorization header
// value. ok is false if the value does not use the Convert scheme.
func ParseAuthorization(value string) (signature string, ok bool) {
	rest, found := strings.CutPrefix(value, Scheme+" ")
	if !found {
		return "", false
	}
	return strings.CutPrefix(strings.TrimSpace(rest), "Signature=")
}

// Headers returns the authentication headers for a request to url carrying
// body, signed at now.
func Headers(applicationID, secret, url, body string, now time.Time) map[string]string {
	expires := Expires(now)
	return map[string]string{
		HeaderExpires:       strconv.FormatInt(expires, 10),
		HeaderApplicationID: applicationID,
		HeaderAuthorization: Authorization(Sign(applicationID, expires, url, body, secret)),
	}
}
