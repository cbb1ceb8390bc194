package security

import (
	"crypto/rand"
	"encoding/base64"
)

// GenerateOpaqueToken returns a URL-safe random string with n bytes of
// entropy, used for email verification links.
func GenerateOpaqueToken(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
