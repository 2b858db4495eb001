package hmac

import (
	cryptoHMAC "crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
)

// Signer derives url safe secrets from a single key
type Signer struct {
	key []byte
}

// New creates a signer for the given key
func New(key []byte) *Signer {
	return &Signer{key: key}
}

// Secret returns the secret for a scope, encoded as urlsafe base64
func (s *Signer) Secret(scope string) string {
	mac := cryptoHMAC.New(sha256.New, s.key)
	mac.Write([]byte(scope))

	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// Verify reports whether secret is the secret for scope, in constant time
func (s *Signer) Verify(scope, secret string) bool {
	return cryptoHMAC.Equal([]byte(secret), []byte(s.Secret(scope)))
}
