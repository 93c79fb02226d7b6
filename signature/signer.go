// Package signature provides HMAC-SHA256 webhook signing, secret
// generation, and the JWT tokens that authenticate queue callbacks.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
)

// Header is the request header carrying the hex signature of the body.
const Header = "Beacon-Signature"

// ErrEmptySecret is returned when signing with an empty secret. Webhooks
// always receive a secret at creation, so this indicates corrupt data.
var ErrEmptySecret = errors.New("signature: empty signing secret")

// Sign returns the hex-encoded HMAC-SHA256 of body keyed by secret. body
// must be the exact bytes that will be transmitted.
func Sign(secret string, body []byte) (string, error) {
	if secret == "" {
		return "", ErrEmptySecret
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// Verify reports whether sig is the signature of body under secret.
func Verify(secret string, body []byte, sig string) bool {
	expected, err := Sign(secret, body)
	if err != nil {
		return false
	}
	return hmac.Equal([]byte(expected), []byte(sig))
}

// ForwardedAuthorization derives the HTTP Basic authorization value that
// customer-data receivers expect: the secret as username, no password.
func ForwardedAuthorization(secret string) (string, error) {
	if secret == "" {
		return "", ErrEmptySecret
	}
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(secret+":")), nil
}
