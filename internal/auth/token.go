package auth

import (
	"crypto/subtle"
	"strings"

	"course-content-service/internal/domain"
)

// StaticToken authorizes lecturer operations against a single shared secret.
// An empty secret authorizes nobody.
type StaticToken struct {
	secret []byte
}

func NewStaticToken(secret string) *StaticToken {
	return &StaticToken{secret: []byte(secret)}
}

// IsAuthorized reports whether credential matches the configured secret.
func (t *StaticToken) IsAuthorized(credential string) bool {
	if len(t.secret) == 0 || credential == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(credential), t.secret) == 1
}

// Authorize checks credential and names the reason for a rejection.
func (t *StaticToken) Authorize(credential string) error {
	if credential == "" {
		return domain.ErrCredentialMissing
	}
	if !t.IsAuthorized(credential) {
		return domain.ErrCredentialInvalid
	}
	return nil
}

// BearerCredential extracts the token from an Authorization header value.
func BearerCredential(header string) string {
	const prefix = "bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
