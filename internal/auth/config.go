package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrConfigurationMissing is returned when a required signing setting is absent.
// It is fatal and only raised at startup.
var ErrConfigurationMissing = errors.New("signing configuration missing")

// DefaultRefreshTokenDays applies when no refresh lifetime is configured.
const DefaultRefreshTokenDays = 14

// SigningConfig is the immutable key material and lifetimes shared by the
// issuer and the session service. Build it once with NewSigningConfig.
type SigningConfig struct {
	key                  []byte
	issuer               string
	audience             string
	accessTokenLifetime  time.Duration
	refreshTokenLifetime time.Duration
}

// NewSigningConfig validates the raw settings. Key, issuer, audience and a
// positive access lifetime are required; refreshDays <= 0 means 14 days.
func NewSigningConfig(key, issuer, audience string, accessMinutes, refreshDays int) (SigningConfig, error) {
	var missing []string
	if key == "" {
		missing = append(missing, "key")
	}
	if strings.TrimSpace(issuer) == "" {
		missing = append(missing, "issuer")
	}
	if strings.TrimSpace(audience) == "" {
		missing = append(missing, "audience")
	}
	if accessMinutes <= 0 {
		missing = append(missing, "access token minutes")
	}
	if len(missing) > 0 {
		return SigningConfig{}, fmt.Errorf("%w: %s", ErrConfigurationMissing, strings.Join(missing, ", "))
	}
	if refreshDays <= 0 {
		refreshDays = DefaultRefreshTokenDays
	}

	k := make([]byte, len(key))
	copy(k, key)
	return SigningConfig{
		key:                  k,
		issuer:               issuer,
		audience:             audience,
		accessTokenLifetime:  time.Duration(accessMinutes) * time.Minute,
		refreshTokenLifetime: time.Duration(refreshDays) * 24 * time.Hour,
	}, nil
}

// Issuer returns the iss claim value.
func (c SigningConfig) Issuer() string { return c.issuer }

// Audience returns the aud claim value.
func (c SigningConfig) Audience() string { return c.audience }

// AccessTokenLifetime returns how long an access token stays valid.
func (c SigningConfig) AccessTokenLifetime() time.Duration { return c.accessTokenLifetime }

// RefreshTokenLifetime returns how long a refresh token stays valid.
func (c SigningConfig) RefreshTokenLifetime() time.Duration { return c.refreshTokenLifetime }

func (c SigningConfig) isZero() bool {
	return len(c.key) == 0
}
