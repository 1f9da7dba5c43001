package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"time"
)

// refreshTokenBytes is the entropy of an opaque refresh token.
const refreshTokenBytes = 64

// IssueRefreshOpaque returns a new opaque refresh token and its expiry.
// Uniqueness is enforced by the store, not here.
func (i *TokenIssuer) IssueRefreshOpaque() (string, time.Time, error) {
	buf := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", time.Time{}, fmt.Errorf("read random bytes: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf), i.now().UTC().Add(i.cfg.refreshTokenLifetime), nil
}

// HashToken returns the hex SHA-256 digest used to store and look up a
// refresh token. The token itself is never persisted.
func HashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}
