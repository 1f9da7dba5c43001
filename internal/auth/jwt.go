package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/KavyaGunapati/TypeFromProject/internal/domain"
)

// ErrInvalidToken is returned for any access token that fails verification.
var ErrInvalidToken = errors.New("invalid access token")

// Claims represents the JWT claims for an access token.
type Claims struct {
	NameID string   `json:"nameid"`
	Name   string   `json:"name"`
	Email  string   `json:"email,omitempty"`
	Roles  []string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// TokenSubject is the identity an access token is minted for.
type TokenSubject struct {
	UserID   string
	UserName string
	Email    string
	Roles    []domain.Role
}

// TokenIssuer mints and verifies HS256 access tokens and mints opaque
// refresh tokens. It holds no state beyond its configuration.
type TokenIssuer struct {
	cfg SigningConfig
	now func() time.Time
}

// NewTokenIssuer creates an issuer. A zero SigningConfig is rejected.
func NewTokenIssuer(cfg SigningConfig) (*TokenIssuer, error) {
	if cfg.isZero() {
		return nil, ErrConfigurationMissing
	}
	return &TokenIssuer{cfg: cfg, now: time.Now}, nil
}

// WithClock returns a copy of the issuer reading time from now.
func (i *TokenIssuer) WithClock(now func() time.Time) *TokenIssuer {
	cp := *i
	cp.now = now
	return &cp
}

// Issue builds and signs an access token for subject. The returned expiry
// is the exact exp claim, so it is truncated to whole seconds.
func (i *TokenIssuer) Issue(subject TokenSubject) (string, time.Time, error) {
	if strings.TrimSpace(subject.UserID) == "" {
		return "", time.Time{}, fmt.Errorf("issue access token: empty subject")
	}

	now := i.now().UTC().Truncate(time.Second)
	expiresAt := now.Add(i.cfg.accessTokenLifetime)

	claims := &Claims{
		NameID: subject.UserID,
		Name:   subject.UserName,
		Email:  subject.Email,
		Roles:  domain.RoleNames(subject.Roles),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject.UserID,
			ID:        uuid.NewString(),
			Issuer:    i.cfg.issuer,
			Audience:  jwt.ClaimStrings{i.cfg.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.cfg.key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign access token: %w", err)
	}
	return signed, expiresAt, nil
}

// Validate parses and verifies an access token: HMAC signature, issuer,
// audience and the nbf/exp window with no leeway.
func (i *TokenIssuer) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return i.cfg.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(i.cfg.issuer),
		jwt.WithAudience(i.cfg.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
