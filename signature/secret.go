package signature

import (
	"crypto/rand"
	"encoding/hex"
)

// SecretPrefix marks webhook signing secrets.
const SecretPrefix = "whsec_"

// GenerateSecret creates a cryptographically random signing secret.
// Format: "whsec_" + 32 bytes hex = 70 characters total.
func GenerateSecret() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic("signature: failed to generate random secret: " + err.Error())
	}
	return SecretPrefix + hex.EncodeToString(b)
}
